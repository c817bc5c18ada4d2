// Package syntax wraps the tree-sitter Rust grammar with the small set of
// expression shapes the pattern extractors look at.
package syntax

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
)

var rustLanguage = sitter.NewLanguage(rust.Language())

// File is a successfully parsed Rust source file. Callers must Close it.
type File struct {
	Path string
	Src  []byte

	tree *sitter.Tree
}

// ParseError reports the first ERROR or MISSING node found in a source file.
type ParseError struct {
	Path   string
	Line   int
	Column int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: syntax error", e.Path, e.Line, e.Column)
}

// Parse parses src as a Rust source file. Files containing syntax errors are
// rejected with a *ParseError.
func Parse(path string, src []byte) (*File, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(rustLanguage); err != nil {
		return nil, fmt.Errorf("setting rust language: %w", err)
	}

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("parsing %s: no tree produced", path)
	}

	root := tree.RootNode()
	if root.HasError() {
		perr := &ParseError{Path: path, Line: 1, Column: 1}
		if bad := firstError(root); bad != nil {
			pos := bad.StartPosition()
			perr.Line = int(pos.Row) + 1
			perr.Column = int(pos.Column) + 1
		}
		tree.Close()
		return nil, perr
	}

	return &File{Path: path, Src: src, tree: tree}, nil
}

// Close releases the underlying syntax tree.
func (f *File) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}

// Root returns the source_file node.
func (f *File) Root() Expr {
	return Expr{node: f.tree.RootNode(), src: f.Src}
}

func firstError(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	if !node.HasError() {
		return nil
	}
	for i := range node.ChildCount() {
		if bad := firstError(node.Child(i)); bad != nil {
			return bad
		}
	}
	return nil
}
