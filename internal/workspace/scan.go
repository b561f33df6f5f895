// Package workspace establishes the project file set: the source files the
// interposer tracks and indexes.
package workspace

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/okiba/tstap/internal/config"
)

// maxFileSize caps indexed files; anything bigger is skipped during the scan.
const maxFileSize = 1 << 20

// Scan walks the project root and returns the initial file set: every file
// whose extension is configured, outside excluded directories, plus the
// explicitly configured extra files. Paths are absolute and sorted.
func Scan(cfg config.ProjectConfig) ([]string, error) {
	root, err := filepath.Abs(cfg.RootOrDefault())
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve root: %w", err)
	}

	exts := make(map[string]bool)
	for _, e := range cfg.ExtensionsOrDefault() {
		exts[strings.ToLower(e)] = true
	}
	exclude := make(map[string]bool)
	for _, d := range cfg.ExcludeOrDefault() {
		exclude[d] = true
	}

	seen := make(map[string]bool)
	var files []string

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			log.Warn().Err(walkErr).Str("path", path).Msg("workspace: scan error, skipping")
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || exclude[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxFileSize {
			return nil
		}
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("workspace: scan %s: %w", root, err)
	}

	for _, extra := range cfg.Files {
		p := extra
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	sort.Strings(files)
	log.Info().Int("files", len(files)).Str("root", root).Msg("workspace: project file set established")
	return files, nil
}
