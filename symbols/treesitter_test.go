//go:build cgo

package symbols

import (
	"context"
	"testing"
)

func findByName(symbols []Symbol, name string) *Symbol {
	for i := range symbols {
		if symbols[i].Name == name {
			return &symbols[i]
		}
	}
	return nil
}

func TestExtractSourceGo(t *testing.T) {
	source := []byte(`package main

type Handler struct {
	db *Database
}

func NewHandler(db *Database) *Handler {
	return &Handler{db: db}
}

func (h *Handler) Get(id string) (*Item, error) {
	return h.db.Find(id)
}

func helper() {
}
`)

	e := NewExtractor()
	symbols, err := e.ExtractSource(context.Background(), source, LangGo)
	if err != nil {
		t.Fatalf("ExtractSource failed: %v", err)
	}

	handler := findByName(symbols, "Handler")
	if handler == nil || handler.Kind != "type" {
		t.Fatalf("did not find Handler type, got %+v", symbols)
	}
	if findByName(handler.Children, "Get") == nil {
		t.Errorf("expected Get method nested under Handler, got children %+v", handler.Children)
	}

	if sym := findByName(symbols, "NewHandler"); sym == nil || sym.Kind != "function" {
		t.Error("did not find NewHandler function")
	}
	if sym := findByName(symbols, "helper"); sym == nil || sym.Kind != "function" {
		t.Error("did not find helper function")
	}
	if findByName(symbols, "Get") != nil {
		t.Error("Get should be nested, not top-level")
	}
}

func TestExtractSourceTypeScript(t *testing.T) {
	source := []byte(`
interface UserService {
	getUser(id: string): Promise<User>;
}

class UserServiceImpl implements UserService {
	constructor(private db: Database) {}

	async getUser(id: string): Promise<User> {
		return this.db.find(id);
	}
}

function createService(db: Database): UserService {
	return new UserServiceImpl(db);
}

const double = (x: number) => x * 2;
`)

	e := NewExtractor()
	symbols, err := e.ExtractSource(context.Background(), source, LangTypeScript)
	if err != nil {
		t.Fatalf("ExtractSource failed: %v", err)
	}

	if sym := findByName(symbols, "UserService"); sym == nil || sym.Kind != "interface" {
		t.Error("did not find UserService interface")
	}

	impl := findByName(symbols, "UserServiceImpl")
	if impl == nil || impl.Kind != "class" {
		t.Fatalf("did not find UserServiceImpl class, got %+v", symbols)
	}
	if findByName(impl.Children, "getUser") == nil {
		t.Errorf("expected getUser nested under class, got children %+v", impl.Children)
	}

	if sym := findByName(symbols, "createService"); sym == nil || sym.Kind != "function" {
		t.Error("did not find createService function")
	}
	if sym := findByName(symbols, "double"); sym == nil {
		t.Error("did not find named arrow function double")
	}
}

func TestExtractSourcePython(t *testing.T) {
	source := []byte(`
class UserRepository:
    def __init__(self, db):
        self.db = db

    def get_user(self, user_id):
        return self.db.find(user_id)

def create_repository(db):
    return UserRepository(db)
`)

	e := NewExtractor()
	symbols, err := e.ExtractSource(context.Background(), source, LangPython)
	if err != nil {
		t.Fatalf("ExtractSource failed: %v", err)
	}

	repo := findByName(symbols, "UserRepository")
	if repo == nil || repo.Kind != "class" {
		t.Fatalf("did not find UserRepository class, got %+v", symbols)
	}
	if len(repo.Children) != 2 {
		t.Errorf("expected 2 methods under class, got %+v", repo.Children)
	}

	if sym := findByName(symbols, "create_repository"); sym == nil || sym.Kind != "function" {
		t.Error("did not find create_repository function")
	}
	// Methods must not leak to top level as duplicate functions
	if findByName(symbols, "get_user") != nil {
		t.Error("get_user should only appear nested under its class")
	}
}

func TestExtractSourceLineRanges(t *testing.T) {
	source := []byte(`package main

func ProcessData(input []byte) ([]byte, error) {
	return nil, nil
}
`)

	e := NewExtractor()
	symbols, err := e.ExtractSource(context.Background(), source, LangGo)
	if err != nil {
		t.Fatalf("ExtractSource failed: %v", err)
	}
	if len(symbols) != 1 {
		t.Fatalf("expected 1 symbol, got %d", len(symbols))
	}

	s := symbols[0]
	if s.Name != "ProcessData" || s.Kind != "function" {
		t.Errorf("expected ProcessData function, got %s %s", s.Kind, s.Name)
	}
	if s.StartLine != 3 {
		t.Errorf("expected start line 3, got %d", s.StartLine)
	}
	if s.EndLine != 5 {
		t.Errorf("expected end line 5, got %d", s.EndLine)
	}
}

func TestExtractFileUnsupportedLanguage(t *testing.T) {
	e := NewExtractor()
	symbols, err := e.ExtractFile(context.Background(), "README.md")
	if err != nil {
		t.Fatalf("expected no error for unsupported language, got %v", err)
	}
	if symbols != nil {
		t.Errorf("expected no symbols for unsupported language, got %+v", symbols)
	}
}

func TestAvailableWithCGO(t *testing.T) {
	if !Available() {
		t.Error("expected Available() to be true with CGO")
	}
}
