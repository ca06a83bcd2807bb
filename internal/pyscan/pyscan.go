/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/

// Package pyscan checks Python sources for structural compliance using a
// real syntax tree rather than line heuristics. It provides the three rules
// pyneat evaluates on every script: the top-level statement whitelist, the
// docstring presence check, and restricted-import detection.
package pyscan

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrSyntaxInvalid is returned by Parse when the source cannot be parsed
// into a well-formed syntax tree. Rule checks never run on such sources.
var ErrSyntaxInvalid = errors.New("source is not syntactically valid Python")

// Script is a parsed Python source ready for rule checks.
type Script struct {
	src  []byte
	tree *sitter.Tree
	root *sitter.Node
}

// Violation describes the first top-level statement that breaks the
// encapsulation rule.
type Violation struct {
	NodeType string // grammar node type, e.g. "expression_statement"
	Line     int    // 1-based
}

// FunctionRef identifies one function definition by name and line.
type FunctionRef struct {
	Name string
	Line int
}

// ImportRef identifies one restricted module import by module and line.
type ImportRef struct {
	Module string
	Line   int
}

// Parse builds the syntax tree for src. Returns ErrSyntaxInvalid when the
// tree contains parse errors.
func Parse(ctx context.Context, src []byte) (*Script, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil, ErrSyntaxInvalid
	}

	return &Script{src: src, tree: tree, root: root}, nil
}

// walk visits node and all its named descendants in source order.
func (s *Script) walk(node *sitter.Node, visit func(*sitter.Node)) {
	visit(node)
	count := int(node.NamedChildCount())
	for i := 0; i < count; i++ {
		s.walk(node.NamedChild(i), visit)
	}
}

func lineOf(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}
