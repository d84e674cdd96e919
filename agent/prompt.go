// Prompt text for the retrieval loop.

package agent

import (
	"fmt"
	"strings"

	"foray/model"
)

const systemPrompt = `You are a code-retrieval agent. Your job is to find the files and line ranges in one repository that answer a single question. You never modify anything.

Investigate with the tools: search runs a regular expression over file contents, read returns numbered lines from one file, symbol_lookup lists the symbols a file declares with their line ranges, reference_lookup finds every location referencing a name. Tool failures come back in brackets; adjust your call and continue.

Keep selections tight. Prefer the file that defines something over every file that mentions it, and line ranges or symbol names over whole files. When the question is answered, call finish exactly once: a short summary, the relevant files ordered most relevant first with ranges or symbols, a reason and confidence per file, and under not_found anything you looked for that does not exist.`

const noToolsNudge = "You must respond with a tool call. Use search, read, " +
	"symbol_lookup or reference_lookup to investigate, or call finish with " +
	"your selection."

const wrapUpNudge = "You are running low on iterations. Read anything " +
	"essential still unread, then call finish with what you have."

const forcedFinishPrompt = "Iteration limit reached. Call finish now with " +
	"the best selection you can assemble from what you have seen."

// taskPrompt renders the first user message: the question, optional
// hint keywords, and the pre-scan's relevance-ranked file tree.
func taskPrompt(query model.Query, seedTree string, maxIterations int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", query.Text)
	if len(query.Hints) > 0 {
		fmt.Fprintf(&b, "\nHint keywords: %s\n", strings.Join(query.Hints, ", "))
	}
	if seedTree != "" {
		fmt.Fprintf(&b, "\nFiles a lexical pre-scan ranked relevant (high scorers marked *):\n%s\n", seedTree)
	}
	fmt.Fprintf(&b, "\nYou have at most %d tool-calling iterations.", maxIterations)
	return b.String()
}
