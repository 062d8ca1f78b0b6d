package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/mamaar/rsrefactor/pkg/syntax/rust"
)

var skipDirs = map[string]struct{}{
	"target":       {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	"node_modules": {},
}

// discovered lists the manifests and Rust sources under a root.
type discovered struct {
	manifests []string
	sources   []string
}

// discover walks root collecting Cargo.toml files and .rs sources. Paths
// matched by the root .gitignore or by exclude are skipped.
func discover(root string, exclude []string) (*discovered, error) {
	gi := loadIgnore(root, exclude)
	out := &discovered{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 || (gi != nil && gi.MatchesPath(rel)) {
			return nil
		}
		switch {
		case name == ManifestName:
			out.manifests = append(out.manifests, path)
		case filepath.Ext(name) == rust.Extension:
			out.sources = append(out.sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out.manifests)
	sort.Strings(out.sources)
	return out, nil
}

// IgnoreMatcher reports whether a path under root is hidden from the
// workspace by the root .gitignore, exclude, a dot directory or target.
func IgnoreMatcher(root string, exclude []string) func(path string, dir bool) bool {
	gi := loadIgnore(root, exclude)
	return func(path string, dir bool) bool {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			return false
		}
		for _, part := range strings.Split(filepath.Dir(rel), string(filepath.Separator)) {
			if _, skip := skipDirs[part]; skip || (part != "." && strings.HasPrefix(part, ".")) {
				return true
			}
		}
		if dir {
			name := filepath.Base(rel)
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return true
			}
			rel += "/"
		}
		return gi != nil && gi.MatchesPath(rel)
	}
}

func loadIgnore(root string, exclude []string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFileAndLines(filepath.Join(root, ".gitignore"), exclude...)
	if err == nil {
		return gi
	}
	if len(exclude) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(exclude...)
}
