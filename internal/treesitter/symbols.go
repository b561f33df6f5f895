// Package treesitter provides tree-sitter based parsing of TypeScript source
// for export extraction. The index answers "what can another file import from
// here".
package treesitter

// Export is one exported name declared by a file.
type Export struct {
	Name string
	// Pos is the byte offset of the exported name within the file.
	Pos int
	// Default reports whether this is the module's default export.
	Default bool
}

// FileIndex maps an exported symbol name to its most recent definition within
// one file. A later declaration of the same name wins.
type FileIndex map[string]Export

// Definition is an Export qualified with the file it was declared in.
// Identity for indexing purposes is the (Name, File) pair; the same name may
// be defined in many files.
type Definition struct {
	Name    string
	File    string
	Pos     int
	Default bool
}
