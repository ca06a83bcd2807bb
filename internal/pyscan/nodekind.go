/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package pyscan

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// NodeKind classifies a top-level statement for the encapsulation rule.
// Dispatch happens over this enum, so a new allowed shape is one new
// constant and one new case arm.
type NodeKind int

const (
	KindDisallowed NodeKind = iota
	KindComment
	KindImport
	KindFromImport
	KindFutureImport
	KindFunctionDef
	KindClassDef
	KindDecoratedDef
	KindMainGuard
	KindLiteralExpr
)

// String returns a human-readable label for the kind.
func (k NodeKind) String() string {
	switch k {
	case KindComment:
		return "comment"
	case KindImport:
		return "import"
	case KindFromImport:
		return "from-import"
	case KindFutureImport:
		return "future import"
	case KindFunctionDef:
		return "function definition"
	case KindClassDef:
		return "class definition"
	case KindDecoratedDef:
		return "decorated definition"
	case KindMainGuard:
		return "main guard"
	case KindLiteralExpr:
		return "literal expression"
	default:
		return "disallowed"
	}
}

// classifyTopLevel maps a direct child of the module body to its NodeKind.
// Async functions parse as function_definition, so they need no extra arm.
func (s *Script) classifyTopLevel(node *sitter.Node) NodeKind {
	switch node.Type() {
	case "comment":
		return KindComment
	case "import_statement":
		return KindImport
	case "import_from_statement":
		return KindFromImport
	case "future_import_statement":
		return KindFutureImport
	case "function_definition":
		return KindFunctionDef
	case "class_definition":
		return KindClassDef
	case "decorated_definition":
		return KindDecoratedDef
	case "if_statement":
		if s.isMainGuard(node) {
			return KindMainGuard
		}
		return KindDisallowed
	case "expression_statement":
		if s.isLiteralExpression(node) {
			return KindLiteralExpr
		}
		return KindDisallowed
	default:
		return KindDisallowed
	}
}

// isMainGuard reports whether an if_statement's condition is exactly
// `__name__ == "__main__"`: the identifier on the left, the string
// literal on the right, a single equality operator. Chained comparisons
// and reversed operands do not qualify.
func (s *Script) isMainGuard(node *sitter.Node) bool {
	cond := node.ChildByFieldName("condition")
	if cond == nil || cond.Type() != "comparison_operator" {
		return false
	}
	if cond.NamedChildCount() != 2 {
		return false
	}
	op := cond.ChildByFieldName("operators")
	if op == nil || op.Type() != "==" {
		return false
	}
	return s.isDunderName(cond.NamedChild(0)) && s.isMainLiteral(cond.NamedChild(1))
}

func (s *Script) isDunderName(node *sitter.Node) bool {
	return node.Type() == "identifier" && node.Content(s.src) == "__name__"
}

func (s *Script) isMainLiteral(node *sitter.Node) bool {
	return node.Type() == "string" && stringLiteralValue(node.Content(s.src)) == "__main__"
}

// isLiteralExpression reports whether stmt is an expression statement whose
// sole value is a literal constant. This covers module and function
// docstrings as well as bare literals.
func (s *Script) isLiteralExpression(stmt *sitter.Node) bool {
	if stmt.Type() != "expression_statement" || stmt.NamedChildCount() != 1 {
		return false
	}
	switch stmt.NamedChild(0).Type() {
	case "string", "concatenated_string", "integer", "float", "true", "false", "none":
		return true
	}
	return false
}

// stringLiteralValue strips literal prefixes (r, b, u, f) and the
// surrounding quotes from a raw Python string literal. Escape sequences are
// left alone; the callers only compare against plain identifiers.
func stringLiteralValue(raw string) string {
	s := raw
	for len(s) > 0 {
		switch s[0] {
		case 'r', 'R', 'b', 'B', 'u', 'U', 'f', 'F':
			s = s[1:]
			continue
		}
		break
	}
	for _, q := range []string{`"""`, "'''", `"`, "'"} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}
