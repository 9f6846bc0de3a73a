package watcher

import (
	"path/filepath"
	"strings"
)

// DefaultIgnore lists directory names whose contents never trigger a run.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	"target",
	"dist",
	"build",
	"__pycache__",
	".idea",
	".vscode",
}

var tempSuffixes = []string{".swp", ".swo", "~"}

// matcher decides whether a path relative to the watch root is ignored.
type matcher struct {
	root  string
	names map[string]struct{}
	files map[string]struct{}
}

func newMatcher(root string, names, files []string) matcher {
	m := matcher{
		root:  root,
		names: make(map[string]struct{}, len(names)),
		files: make(map[string]struct{}, len(files)),
	}
	for _, n := range names {
		n = strings.Trim(strings.TrimSpace(n), "/")
		if n != "" {
			m.names[n] = struct{}{}
		}
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		m.files[filepath.Clean(f)] = struct{}{}
	}
	return m
}

// ignoredDir reports whether a directory should not be watched at all.
func (m matcher) ignoredDir(path string) bool {
	if path == m.root {
		return false
	}
	_, ok := m.names[filepath.Base(path)]
	return ok
}

// ignored reports whether a changed file should be dropped: it is one of the
// ignored files, lives under an ignored directory or looks like an editor
// temp file.
func (m matcher) ignored(path string) bool {
	if _, ok := m.files[filepath.Clean(path)]; ok {
		return true
	}

	base := filepath.Base(path)
	for _, s := range tempSuffixes {
		if strings.HasSuffix(base, s) {
			return true
		}
	}

	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		rel = path
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if _, ok := m.names[part]; ok {
			return true
		}
	}
	return false
}
