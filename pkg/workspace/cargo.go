package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/mamaar/rsrefactor/pkg/types"
)

// ManifestName is the file name of a crate manifest.
const ManifestName = "Cargo.toml"

// manifest is the subset of Cargo.toml the workspace needs.
type manifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
	Lib struct {
		Name string `toml:"name"`
		Path string `toml:"path"`
	} `toml:"lib"`
	Dependencies map[string]any `toml:"dependencies"`
}

// pathDep is a dependency declared with `path = "..."`. Registry and git
// dependencies have no source in the workspace and are not represented.
type pathDep struct {
	name    string
	dir     string
	renamed string
}

type cargoCrate struct {
	name     string
	dir      string
	root     string
	manifest string
	deps     []pathDep
}

func readManifest(path string) (*cargoCrate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.RefactorError{Type: types.FileSystemError, Message: "read manifest", File: path, Cause: err}
	}
	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, &types.RefactorError{Type: types.ConfigError, Message: fmt.Sprintf("parse manifest: %v", err), File: path, Cause: err}
	}
	if m.Package.Name == "" {
		return nil, nil
	}

	dir := filepath.Dir(path)
	c := &cargoCrate{
		name:     crateIdent(m.Package.Name),
		dir:      dir,
		manifest: path,
	}
	if m.Lib.Name != "" {
		c.name = crateIdent(m.Lib.Name)
	}
	c.root = crateRoot(dir, m.Lib.Path)

	for key, v := range m.Dependencies {
		table, ok := v.(map[string]any)
		if !ok {
			continue
		}
		p, _ := table["path"].(string)
		if p == "" {
			continue
		}
		d := pathDep{name: crateIdent(key), dir: filepath.Clean(filepath.Join(dir, p))}
		if pkg, _ := table["package"].(string); pkg != "" {
			d.renamed = crateIdent(pkg)
		}
		c.deps = append(c.deps, d)
	}
	return c, nil
}

// crateRoot picks the root source file: an explicit [lib] path, then
// src/lib.rs, then src/main.rs.
func crateRoot(dir, libPath string) string {
	if libPath != "" {
		return filepath.Join(dir, libPath)
	}
	lib := filepath.Join(dir, "src", "lib.rs")
	if _, err := os.Stat(lib); err == nil {
		return lib
	}
	return filepath.Join(dir, "src", "main.rs")
}

// crateIdent turns a package name into the identifier Rust code uses.
func crateIdent(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}
