package scanner

import (
	"sort"
	"strings"
)

type treeNode struct {
	dirs  map[string]*treeNode
	files []string
}

func newTreeNode() *treeNode {
	return &treeNode{dirs: make(map[string]*treeNode)}
}

// renderTree lays out repo-relative paths as an indented directory
// tree, directories first, everything sorted. Marked files carry a
// trailing asterisk.
func renderTree(files []string, marked map[string]bool) string {
	if len(files) == 0 {
		return emptyTreeLabel
	}

	root := newTreeNode()
	for _, f := range files {
		parts := strings.Split(f, "/")
		node := root
		for _, dir := range parts[:len(parts)-1] {
			child := node.dirs[dir]
			if child == nil {
				child = newTreeNode()
				node.dirs[dir] = child
			}
			node = child
		}
		node.files = append(node.files, parts[len(parts)-1])
	}

	var b strings.Builder
	writeTree(&b, root, "", "", marked)
	return strings.TrimRight(b.String(), "\n")
}

func writeTree(b *strings.Builder, node *treeNode, indent, prefix string, marked map[string]bool) {
	dirNames := make([]string, 0, len(node.dirs))
	for d := range node.dirs {
		dirNames = append(dirNames, d)
	}
	sort.Strings(dirNames)
	for _, d := range dirNames {
		b.WriteString(indent)
		b.WriteString(d)
		b.WriteString("/\n")
		writeTree(b, node.dirs[d], indent+"  ", prefix+d+"/", marked)
	}

	names := append([]string(nil), node.files...)
	sort.Strings(names)
	for _, f := range names {
		b.WriteString(indent)
		b.WriteString(f)
		if marked[prefix+f] {
			b.WriteString(" *")
		}
		b.WriteString("\n")
	}
}
