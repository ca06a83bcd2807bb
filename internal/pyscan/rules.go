/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package pyscan

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// CheckEncapsulation inspects only top-level statements (direct children of
// the module body). A script is encapsulated when every top-level statement
// is an import, a definition, a main guard, or a literal expression. The
// check short-circuits: it returns false together with the first offending
// statement and never enumerates further violations. Statements nested
// inside allowed constructs are not inspected.
func (s *Script) CheckEncapsulation() (bool, *Violation) {
	count := int(s.root.NamedChildCount())
	for i := 0; i < count; i++ {
		child := s.root.NamedChild(i)
		switch s.classifyTopLevel(child) {
		case KindComment, KindImport, KindFromImport, KindFutureImport,
			KindFunctionDef, KindClassDef, KindDecoratedDef,
			KindMainGuard, KindLiteralExpr:
			// allowed at module scope
		default:
			return false, &Violation{
				NodeType: child.Type(),
				Line:     lineOf(child),
			}
		}
	}
	return true, nil
}

// UndocumentedFunctions walks the entire tree and reports every function
// definition whose first body statement is not a literal docstring. Methods
// and nested functions are included, and duplicate names are reported once
// per occurrence in source order.
func (s *Script) UndocumentedFunctions() []FunctionRef {
	var refs []FunctionRef
	s.walk(s.root, func(node *sitter.Node) {
		if node.Type() != "function_definition" {
			return
		}
		if s.hasDocstring(node) {
			return
		}
		name := ""
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			name = nameNode.Content(s.src)
		}
		refs = append(refs, FunctionRef{Name: name, Line: lineOf(node)})
	})
	return refs
}

// hasDocstring reports whether the first non-comment statement of the
// function body is a literal expression.
func (s *Script) hasDocstring(fn *sitter.Node) bool {
	body := fn.ChildByFieldName("body")
	if body == nil {
		return false
	}
	count := int(body.NamedChildCount())
	for i := 0; i < count; i++ {
		stmt := body.NamedChild(i)
		if stmt.Type() == "comment" {
			continue
		}
		return s.isLiteralExpression(stmt)
	}
	return false
}

// RestrictedImports walks the entire tree (function bodies included) and
// reports the first occurrence of each restricted module in source order.
// Matching is exact on the dotted module path: restricting "os" does not
// flag "os.path".
func (s *Script) RestrictedImports(restricted []string) []ImportRef {
	if len(restricted) == 0 {
		return nil
	}

	banned := make(map[string]bool, len(restricted))
	for _, name := range restricted {
		banned[name] = true
	}

	seen := make(map[string]bool)
	var refs []ImportRef
	record := func(module string, node *sitter.Node) {
		if module == "" || !banned[module] || seen[module] {
			return
		}
		seen[module] = true
		refs = append(refs, ImportRef{Module: module, Line: lineOf(node)})
	}

	s.walk(s.root, func(node *sitter.Node) {
		switch node.Type() {
		case "import_statement":
			for _, module := range s.importedModules(node) {
				record(module, node)
			}
		case "import_from_statement":
			record(s.fromModule(node), node)
		case "future_import_statement":
			record("__future__", node)
		}
	})
	return refs
}

// UsesRestrictedImport reports whether the module is imported anywhere in
// the file, either as a plain import or as the source of a from-import.
func (s *Script) UsesRestrictedImport(module string) bool {
	return len(s.RestrictedImports([]string{module})) > 0
}

// importedModules returns the dotted module paths named by an
// import_statement, resolving aliases to the real module.
func (s *Script) importedModules(node *sitter.Node) []string {
	var modules []string
	count := int(node.NamedChildCount())
	for i := 0; i < count; i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			modules = append(modules, child.Content(s.src))
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				modules = append(modules, name.Content(s.src))
			}
		}
	}
	return modules
}

// fromModule returns the source module of an import_from_statement,
// including relative forms like ".util".
func (s *Script) fromModule(node *sitter.Node) string {
	module := node.ChildByFieldName("module_name")
	if module == nil {
		return ""
	}
	return module.Content(s.src)
}
