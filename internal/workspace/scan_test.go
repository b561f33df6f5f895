package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okiba/tstap/internal/config"
)

func mkFile(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("export {};"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	mkFile(t, root, "src/a.ts")
	mkFile(t, root, "src/ui/b.tsx")
	mkFile(t, root, "src/readme.md")
	mkFile(t, root, "node_modules/dep/index.ts")
	mkFile(t, root, ".git/hooks/x.ts")
	mkFile(t, root, "typings/global.d.ts")

	files, err := Scan(config.ProjectConfig{Root: root, Files: []string{"typings/global.d.ts"}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	var rels []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f)
		rels = append(rels, filepath.ToSlash(rel))
	}
	got := strings.Join(rels, " ")

	for _, want := range []string{"src/a.ts", "src/ui/b.tsx", "typings/global.d.ts"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %s in %s", want, got)
		}
	}
	for _, reject := range []string{"node_modules", ".git", "readme.md"} {
		if strings.Contains(got, reject) {
			t.Errorf("scan picked up %s: %s", reject, got)
		}
	}

	// global.d.ts is both scanned (.ts ext) and listed explicitly; no dupes.
	count := 0
	for _, r := range rels {
		if r == "typings/global.d.ts" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("duplicate entries for explicit file: %d", count)
	}
}

func TestScanSkipsOversizeFiles(t *testing.T) {
	root := t.TempDir()
	big := make([]byte, maxFileSize+1)
	if err := os.WriteFile(filepath.Join(root, "big.ts"), big, 0o644); err != nil {
		t.Fatal(err)
	}
	mkFile(t, root, "small.ts")

	files, err := Scan(config.ProjectConfig{Root: root})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "small.ts" {
		t.Errorf("files = %v, want only small.ts", files)
	}
}
