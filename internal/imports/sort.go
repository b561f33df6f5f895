// Package imports reorders and merges a file's import declarations into a
// canonical ordering: external modules before relative paths, alphabetical
// within each group, one statement per module. Non-import statements are
// never altered.
package imports

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/okiba/tstap/internal/document"
	"github.com/okiba/tstap/internal/treesitter"
)

// ErrSyntax is returned when the file cannot be parsed cleanly enough to
// rewrite its imports. The original text is never partially rewritten.
var ErrSyntax = errors.New("imports: syntax error")

// specifier is one name inside an import clause.
type specifier struct {
	name     string // imported name
	alias    string // local alias, "" if none
	typeOnly bool   // `import { type A }`
}

// moduleImport accumulates everything imported from one module.
type moduleImport struct {
	module      string
	typeOnly    bool // `import type ... from`
	defaultName string
	namespaces  []string
	named       []specifier
	namedSeen   map[string]bool
}

// Organize parses the snapshot and returns its text with the import block
// rewritten canonically. A file with zero imports is returned unchanged.
func Organize(snap document.Snapshot) (string, error) {
	src := []byte(snap.Text)

	if !treesitter.Supported(snap.Path) {
		return "", fmt.Errorf("imports: unsupported file %s", snap.Path)
	}
	tree, err := treesitter.Parse(snap.Path, src)
	if err != nil {
		return "", err
	}
	defer tree.Close()

	root := tree.RootNode()
	var stmts []*sitter.Node
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() == "import_statement" {
			stmts = append(stmts, child)
		}
	}
	if len(stmts) == 0 {
		return snap.Text, nil
	}
	if root.HasError() {
		return "", fmt.Errorf("%w in %s", ErrSyntax, snap.Path)
	}

	merged := make(map[string]*moduleImport) // key: module + type-only flag
	var order []string
	var sideEffects []string // modules imported for side effects only, in order
	sideEffectSeen := make(map[string]bool)
	clauseModules := make(map[string]bool)

	for _, stmt := range stmts {
		mod, clause := parseImport(stmt, src)
		if mod == "" {
			return "", fmt.Errorf("%w: import without source in %s", ErrSyntax, snap.Path)
		}
		if clause == nil {
			if !sideEffectSeen[mod] {
				sideEffectSeen[mod] = true
				sideEffects = append(sideEffects, mod)
			}
			continue
		}
		clauseModules[mod] = true

		key := mod
		if clause.typeOnly {
			key = mod + "\x00type"
		}
		mi, ok := merged[key]
		if !ok {
			mi = &moduleImport{module: mod, typeOnly: clause.typeOnly, namedSeen: make(map[string]bool)}
			merged[key] = mi
			order = append(order, key)
		}
		mi.merge(clause)
	}

	block := renderBlock(merged, order, sideEffects, clauseModules)
	return splice(src, stmts, block), nil
}

// merge folds one parsed clause into the accumulated module import.
func (mi *moduleImport) merge(c *moduleImport) {
	if c.defaultName != "" {
		if mi.defaultName == "" {
			mi.defaultName = c.defaultName
		} else if mi.defaultName != c.defaultName {
			// A second local name for the default export becomes a named
			// specifier: import { default as other } from "m".
			mi.addNamed(specifier{name: "default", alias: c.defaultName})
		}
	}
	for _, ns := range c.namespaces {
		if !contains(mi.namespaces, ns) {
			mi.namespaces = append(mi.namespaces, ns)
		}
	}
	for _, s := range c.named {
		mi.addNamed(s)
	}
}

func (mi *moduleImport) addNamed(s specifier) {
	key := s.name + "\x00" + s.alias
	if s.typeOnly {
		key += "\x00type"
	}
	if mi.namedSeen[key] {
		return
	}
	mi.namedSeen[key] = true
	mi.named = append(mi.named, s)
}

// parseImport pulls the module path and clause out of one import_statement.
// A nil clause means a bare side-effect import.
func parseImport(stmt *sitter.Node, src []byte) (string, *moduleImport) {
	var mod string
	if source := stmt.ChildByFieldName("source"); source != nil {
		mod = strings.Trim(source.Content(src), `"'`)
	}

	var clause *sitter.Node
	typeOnly := false
	for i := 0; i < int(stmt.ChildCount()); i++ {
		child := stmt.Child(i)
		switch child.Type() {
		case "type":
			typeOnly = true
		case "import_clause":
			clause = child
		}
	}
	if clause == nil {
		return mod, nil
	}

	mi := &moduleImport{module: mod, typeOnly: typeOnly, namedSeen: make(map[string]bool)}
	for i := 0; i < int(clause.ChildCount()); i++ {
		child := clause.Child(i)
		switch child.Type() {
		case "identifier":
			mi.defaultName = child.Content(src)
		case "namespace_import":
			if name := child.NamedChild(0); name != nil {
				mi.namespaces = append(mi.namespaces, name.Content(src))
			}
		case "named_imports":
			for j := 0; j < int(child.ChildCount()); j++ {
				spec := child.Child(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				var s specifier
				if name := spec.ChildByFieldName("name"); name != nil {
					s.name = name.Content(src)
				}
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					s.alias = alias.Content(src)
				}
				for k := 0; k < int(spec.ChildCount()); k++ {
					if spec.Child(k).Type() == "type" {
						s.typeOnly = true
					}
				}
				if s.name != "" {
					mi.addNamed(s)
				}
			}
		}
	}
	return mod, mi
}

// renderBlock produces the canonical import block, one statement per line.
func renderBlock(merged map[string]*moduleImport, order, sideEffects []string, clauseModules map[string]bool) string {
	var b strings.Builder

	// Side-effect imports come first, in original order. A module that is
	// also imported with a clause is already effectful; its bare import is
	// dropped during the merge.
	for _, mod := range sideEffects {
		if clauseModules[mod] {
			continue
		}
		fmt.Fprintf(&b, "import %q;\n", mod)
	}

	entries := make([]*moduleImport, 0, len(order))
	for _, key := range order {
		entries = append(entries, merged[key])
	}
	sort.Slice(entries, func(i, j int) bool {
		ei, ej := entries[i], entries[j]
		if ri, rj := isRelative(ei.module), isRelative(ej.module); ri != rj {
			return !ri // external modules first
		}
		if ei.module != ej.module {
			return ei.module < ej.module
		}
		return !ei.typeOnly // value import before type-only import
	})

	for _, mi := range entries {
		mi.render(&b)
	}
	return b.String()
}

// render writes this module's statements: one for default/named specifiers,
// plus one per namespace binding.
func (mi *moduleImport) render(b *strings.Builder) {
	prefix := "import "
	if mi.typeOnly {
		prefix = "import type "
	}

	if mi.defaultName != "" || len(mi.named) > 0 {
		b.WriteString(prefix)
		if mi.defaultName != "" {
			b.WriteString(mi.defaultName)
			if len(mi.named) > 0 {
				b.WriteString(", ")
			}
		}
		if len(mi.named) > 0 {
			named := append([]specifier(nil), mi.named...)
			sort.Slice(named, func(i, j int) bool {
				if named[i].name != named[j].name {
					return named[i].name < named[j].name
				}
				return named[i].alias < named[j].alias
			})
			b.WriteString("{ ")
			for i, s := range named {
				if i > 0 {
					b.WriteString(", ")
				}
				if s.typeOnly {
					b.WriteString("type ")
				}
				b.WriteString(s.name)
				if s.alias != "" {
					b.WriteString(" as ")
					b.WriteString(s.alias)
				}
			}
			b.WriteString(" }")
		}
		fmt.Fprintf(b, " from %q;\n", mi.module)
	}

	// Namespace bindings render as their own statement.
	namespaces := append([]string(nil), mi.namespaces...)
	sort.Strings(namespaces)
	for _, ns := range namespaces {
		fmt.Fprintf(b, "import * as %s from %q;\n", ns, mi.module)
	}
}

// splice replaces the original import statements with block, leaving every
// other byte of the file untouched. The block lands at the position of the
// first import.
func splice(src []byte, stmts []*sitter.Node, block string) string {
	type span struct{ start, end int }
	spans := make([]span, 0, len(stmts))
	for _, stmt := range stmts {
		start, end := int(stmt.StartByte()), int(stmt.EndByte())
		// Absorb the statement's trailing newline.
		if end < len(src) && src[end] == '\r' {
			end++
		}
		if end < len(src) && src[end] == '\n' {
			end++
		}
		spans = append(spans, span{start, end})
	}

	var b strings.Builder
	b.Grow(len(src) + len(block))
	b.Write(src[:spans[0].start])
	b.WriteString(block)

	pos := spans[0].start
	for _, sp := range spans {
		if sp.start > pos {
			gap := src[pos:sp.start]
			// Pure whitespace between two imports collapses; anything else
			// (comments, statements) is preserved verbatim.
			if strings.TrimSpace(string(gap)) != "" {
				b.Write(gap)
			}
		}
		pos = sp.end
	}
	b.Write(src[pos:])
	return b.String()
}

func isRelative(module string) bool {
	return module == "." || module == ".." ||
		strings.HasPrefix(module, "./") || strings.HasPrefix(module, "../")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
