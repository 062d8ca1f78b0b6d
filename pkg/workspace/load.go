package workspace

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/mamaar/rsrefactor/pkg/types"
)

// WithExclude adds gitignore-style patterns of paths Load skips.
func WithExclude(patterns ...string) Option {
	return func(o *options) { o.exclude = append(o.exclude, patterns...) }
}

// Load discovers the crates under root and builds a snapshot of them. Every
// Cargo.toml with a [package] table is a crate owning the sources below its
// directory that no nested crate claims.
func Load(ctx context.Context, root string, opts ...Option) (*Snapshot, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &types.RefactorError{Type: types.FileSystemError, Message: "resolve workspace root", File: root, Cause: err}
	}
	found, err := discover(abs, o.exclude)
	if err != nil {
		return nil, &types.RefactorError{Type: types.FileSystemError, Message: "walk workspace", File: abs, Cause: err}
	}

	var crates []*cargoCrate
	byDir := make(map[string]*cargoCrate)
	for _, path := range found.manifests {
		c, err := readManifest(path)
		if err != nil {
			return nil, err
		}
		if c == nil {
			o.logger.Debug("skipping manifest without package", "path", path)
			continue
		}
		crates = append(crates, c)
		byDir[c.dir] = c
	}
	if len(crates) == 0 {
		return nil, &types.RefactorError{Type: types.ConfigError, Message: "no crates found", File: abs}
	}

	inputs := make([]CrateInput, len(crates))
	index := make(map[*cargoCrate]int, len(crates))
	for i, c := range crates {
		index[c] = i
		inputs[i] = CrateInput{Name: c.name, Dir: c.dir, Root: c.root}
		for _, d := range c.deps {
			target, ok := byDir[d.dir]
			if !ok {
				o.logger.Debug("path dependency outside workspace", "crate", c.name, "dep", d.name, "dir", d.dir)
				continue
			}
			inputs[i].Deps = append(inputs[i].Deps, Dep{Name: d.name, Crate: target.name})
		}
	}

	owners := make([]int, len(found.sources))
	for i, src := range found.sources {
		owners[i] = -1
		best := -1
		for _, c := range crates {
			if InDir(src, c.dir) && len(c.dir) > best {
				owners[i], best = index[c], len(c.dir)
			}
		}
	}

	texts := make([]string, len(found.sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parseLimit)
	for i, src := range found.sources {
		if owners[i] < 0 {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(src)
			if err != nil {
				return &types.RefactorError{Type: types.FileSystemError, Message: "read source", File: src, Cause: err}
			}
			texts[i] = string(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, src := range found.sources {
		if owners[i] >= 0 {
			inputs[owners[i]].Files = append(inputs[owners[i]].Files, FileInput{Path: src, Text: texts[i]})
		}
	}

	o.logger.Info("workspace discovered", "root", abs, "crates", len(crates), "files", len(found.sources))
	return Build(ctx, inputs, opts...)
}
