package treesitter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// langForExt returns the tree-sitter language for a file extension, or nil.
func langForExt(ext string) *sitter.Language {
	switch ext {
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	case ".tsx", ".js", ".jsx", ".mjs":
		// The TSX grammar is a superset that also parses plain JS/JSX.
		return tsx.GetLanguage()
	default:
		return nil
	}
}

// Supported returns true if the file extension has a tree-sitter grammar.
func Supported(path string) bool {
	return langForExt(strings.ToLower(filepath.Ext(path))) != nil
}

// Parse parses source bytes into a tree. The caller owns the tree and must
// Close it.
func Parse(path string, src []byte) (*sitter.Tree, error) {
	lang := langForExt(strings.ToLower(filepath.Ext(path)))
	if lang == nil {
		return nil, fmt.Errorf("treesitter: no grammar for %s", path)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("treesitter: parse %s: %w", path, err)
	}
	return tree, nil
}

// ParseSource parses source bytes and returns the file's exported symbols.
// Files with an unsupported extension yield no exports and no error.
func ParseSource(path string, src []byte) ([]Export, error) {
	if !Supported(path) {
		return nil, nil
	}
	tree, err := Parse(path, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	return extractExports(tree.RootNode(), src), nil
}

// extractExports walks top-level statements and collects one Export per
// exported declaration. Non-exported declarations are not indexed.
func extractExports(root *sitter.Node, src []byte) []Export {
	var exports []Export
	count := int(root.ChildCount())

	for i := 0; i < count; i++ {
		child := root.Child(i)
		if child.Type() == "export_statement" {
			exports = append(exports, exportsFrom(child, src)...)
		}
	}
	return exports
}

// exportsFrom collects the names one export_statement makes importable.
func exportsFrom(node *sitter.Node, src []byte) []Export {
	isDefault := hasToken(node, "default")

	if decl := node.ChildByFieldName("declaration"); decl != nil {
		return declarationExports(decl, src, isDefault)
	}

	// export default <expression>;
	if value := node.ChildByFieldName("value"); value != nil {
		name := "default"
		pos := int(value.StartByte())
		if value.Type() == "identifier" {
			name = content(value, src)
		}
		return []Export{{Name: name, Pos: pos, Default: true}}
	}

	// export { a, b as c } [from "..."]
	var exports []Export
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "export_clause" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			spec := child.Child(j)
			if spec.Type() != "export_specifier" {
				continue
			}
			nameNode := spec.ChildByFieldName("name")
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				nameNode = alias
			}
			if nameNode == nil {
				continue
			}
			exports = append(exports, Export{
				Name:    content(nameNode, src),
				Pos:     int(nameNode.StartByte()),
				Default: content(nameNode, src) == "default",
			})
		}
	}
	return exports
}

// declarationExports extracts names from the declaration carried by an
// export statement.
func declarationExports(decl *sitter.Node, src []byte, isDefault bool) []Export {
	switch decl.Type() {
	case "function_declaration", "generator_function_declaration",
		"class_declaration", "abstract_class_declaration",
		"interface_declaration", "type_alias_declaration",
		"enum_declaration", "internal_module":
		name := decl.ChildByFieldName("name")
		if name == nil {
			// Anonymous default export: `export default class {}`.
			return []Export{{Name: "default", Pos: int(decl.StartByte()), Default: isDefault}}
		}
		return []Export{{Name: content(name, src), Pos: int(name.StartByte()), Default: isDefault}}

	case "lexical_declaration", "variable_declaration":
		var exports []Export
		for i := 0; i < int(decl.ChildCount()); i++ {
			child := decl.Child(i)
			if child.Type() != "variable_declarator" {
				continue
			}
			name := child.ChildByFieldName("name")
			if name == nil || name.Type() != "identifier" {
				// Destructuring patterns are not indexed.
				continue
			}
			exports = append(exports, Export{
				Name:    content(name, src),
				Pos:     int(name.StartByte()),
				Default: isDefault,
			})
		}
		return exports

	default:
		return nil
	}
}

// hasToken reports whether node has a direct child token of the given type.
func hasToken(node *sitter.Node, token string) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == token {
			return true
		}
	}
	return false
}

func content(node *sitter.Node, src []byte) string {
	return node.Content(src)
}
