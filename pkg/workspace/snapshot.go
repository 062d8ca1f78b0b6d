// Package workspace is the semantic database: an immutable snapshot of a set
// of Rust crates with their module trees, resolved imports, import maps and
// symbol indexes. A Snapshot implements semantic.Model and is safe for
// concurrent use; edits produce a new Snapshot with a higher version.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mamaar/rsrefactor/pkg/importmap"
	"github.com/mamaar/rsrefactor/pkg/semantic"
	"github.com/mamaar/rsrefactor/pkg/symbolindex"
	"github.com/mamaar/rsrefactor/pkg/syntax"
	"github.com/mamaar/rsrefactor/pkg/syntax/rust"
	"github.com/mamaar/rsrefactor/pkg/types"
)

// FileInput is the text of one source file.
type FileInput struct {
	Path string
	Text string
}

// Dep is a dependency edge. Name is how the dependent refers to the crate,
// which differs from Crate when the dependency is renamed.
type Dep struct {
	Name  string
	Crate string
}

// CrateInput describes one crate. Dir is the directory owning the crate's
// files and defaults to the directory of Root.
type CrateInput struct {
	Name  string
	Dir   string
	Root  string
	Deps  []Dep
	Files []FileInput
}

// FileChange replaces, adds or removes one file.
type FileChange struct {
	Path    string
	Text    string
	Deleted bool
}

type options struct {
	logger     *slog.Logger
	parseLimit int
	exclude    []string
}

func defaultOptions() options {
	return options{logger: slog.New(slog.DiscardHandler), parseLimit: runtime.GOMAXPROCS(0)}
}

type Option func(*options)

// WithLogger sets the logger used while building snapshots.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithParseLimit bounds the number of files parsed concurrently.
func WithParseLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parseLimit = n
		}
	}
}

type file struct {
	id     syntax.FileID
	path   string
	crate  semantic.CrateID
	tree   *syntax.Tree
	module semantic.DefID
}

type crate struct {
	id    semantic.CrateID
	name  string
	dir   string
	root  string
	input []Dep
	deps  map[string]semantic.CrateID
	// extern holds the extern prelude: dependency names and `extern crate`
	// aliases declared at the crate root.
	extern   map[string]semantic.CrateID
	rootMod  semantic.DefID
	rootFile syntax.FileID
}

// Snapshot is an immutable view of the workspace at one version.
type Snapshot struct {
	version uint64
	opts    options

	files  map[syntax.FileID]*file
	byPath map[string]syntax.FileID
	nextID syntax.FileID
	crates []*crate
	byName map[string]semantic.CrateID

	defs        []*def
	byNode      map[nodeKey]semantic.DefID
	impls       []*impl
	implByNode  map[*syntax.Node]*impl
	implsBySelf map[semantic.DefID][]*impl
	blocks      map[*syntax.Node]*scope
	uses        []*useImport
	useByNode   map[*syntax.Node]*useImport

	importMaps  []*importmap.Map[semantic.DefID]
	importPaths []map[semantic.DefID][]string
	symbols     []*symbolindex.Index
}

type nodeKey struct {
	file syntax.FileID
	ptr  syntax.NodePtr
}

var _ semantic.Model = (*Snapshot)(nil)

// Build parses every file of the given crates and assembles the first
// snapshot.
func Build(ctx context.Context, inputs []CrateInput, opts ...Option) (*Snapshot, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Snapshot{
		version: 1,
		opts:    o,
		files:   make(map[syntax.FileID]*file),
		byPath:  make(map[string]syntax.FileID),
		byName:  make(map[string]semantic.CrateID),
	}
	texts := make(map[syntax.FileID]string)
	for _, in := range inputs {
		if _, dup := s.byName[in.Name]; dup {
			return nil, &types.RefactorError{
				Type:    types.ConfigError,
				Message: fmt.Sprintf("duplicate crate %q", in.Name),
			}
		}
		c := &crate{
			id:    semantic.CrateID(len(s.crates)),
			name:  in.Name,
			dir:   filepath.Clean(in.Dir),
			root:  filepath.Clean(in.Root),
			input: in.Deps,
		}
		if in.Dir == "" {
			c.dir = filepath.Dir(c.root)
		}
		s.crates = append(s.crates, c)
		s.byName[in.Name] = c.id
		for _, f := range in.Files {
			path := filepath.Clean(f.Path)
			if _, dup := s.byPath[path]; dup {
				return nil, &types.RefactorError{
					Type:    types.ConfigError,
					Message: "file belongs to more than one crate",
					File:    path,
				}
			}
			s.nextID++
			s.files[s.nextID] = &file{id: s.nextID, path: path, crate: c.id}
			s.byPath[path] = s.nextID
			texts[s.nextID] = f.Text
		}
	}

	if err := s.parse(ctx, texts); err != nil {
		return nil, err
	}
	if err := s.assemble(ctx); err != nil {
		return nil, err
	}
	o.logger.Info("workspace snapshot built", "version", s.version, "crates", len(s.crates), "files", len(s.files), "defs", len(s.defs)-1)
	return s, nil
}

// parse parses the given files concurrently and stores their trees.
func (s *Snapshot) parse(ctx context.Context, texts map[syntax.FileID]string) error {
	ids := slices.Sorted(maps.Keys(texts))
	trees := make([]*syntax.Tree, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.parseLimit)
	for i, id := range ids {
		g.Go(func() error {
			tree, err := rust.Parse(gctx, id, s.files[id].path, texts[id])
			if err != nil {
				return err
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, id := range ids {
		s.files[id].tree = trees[i]
	}
	s.opts.logger.Debug("parsed files", "count", len(ids))
	return nil
}

// WithFiles returns the next snapshot with changes applied. Trees of files
// that did not change are shared with s.
func (s *Snapshot) WithFiles(ctx context.Context, changes []FileChange) (*Snapshot, error) {
	next := &Snapshot{
		version: s.version + 1,
		opts:    s.opts,
		files:   make(map[syntax.FileID]*file, len(s.files)),
		byPath:  maps.Clone(s.byPath),
		nextID:  s.nextID,
		byName:  s.byName,
	}
	for _, c := range s.crates {
		next.crates = append(next.crates, &crate{id: c.id, name: c.name, dir: c.dir, root: c.root, input: c.input})
	}
	for id, f := range s.files {
		next.files[id] = &file{id: id, path: f.path, crate: f.crate, tree: f.tree}
	}

	texts := make(map[syntax.FileID]string)
	for _, ch := range changes {
		path := filepath.Clean(ch.Path)
		id, known := next.byPath[path]
		switch {
		case ch.Deleted && known:
			delete(next.files, id)
			delete(next.byPath, path)
			delete(texts, id)
		case ch.Deleted:
		case known:
			texts[id] = ch.Text
		default:
			c, ok := next.crateForPath(path)
			if !ok {
				s.opts.logger.Debug("ignoring file outside every crate", "path", path)
				continue
			}
			next.nextID++
			next.files[next.nextID] = &file{id: next.nextID, path: path, crate: c}
			next.byPath[path] = next.nextID
			texts[next.nextID] = ch.Text
		}
	}

	if err := next.parse(ctx, texts); err != nil {
		return nil, err
	}
	if err := next.assemble(ctx); err != nil {
		return nil, err
	}
	s.opts.logger.Info("workspace snapshot updated", "version", next.version, "changed", len(changes), "reparsed", len(texts))
	return next, nil
}

// crateForPath picks the crate whose directory most closely contains path.
func (s *Snapshot) crateForPath(path string) (semantic.CrateID, bool) {
	best, bestLen := semantic.CrateID(0), -1
	for _, c := range s.crates {
		if InDir(path, c.dir) && len(c.dir) > bestLen {
			best, bestLen = c.id, len(c.dir)
		}
	}
	return best, bestLen >= 0
}

// assemble derives every semantic table from the parsed trees.
func (s *Snapshot) assemble(ctx context.Context) error {
	s.defs = []*def{nil}
	s.byNode = make(map[nodeKey]semantic.DefID)
	s.implByNode = make(map[*syntax.Node]*impl)
	s.blocks = make(map[*syntax.Node]*scope)
	s.useByNode = make(map[*syntax.Node]*useImport)
	s.impls = nil
	s.uses = nil

	for _, c := range s.crates {
		c.deps = make(map[string]semantic.CrateID)
		c.extern = make(map[string]semantic.CrateID)
		for _, d := range c.input {
			target, ok := s.byName[d.Crate]
			if !ok {
				s.opts.logger.Debug("dependency outside workspace", "crate", c.name, "dep", d.Crate)
				continue
			}
			c.deps[d.Name] = target
			c.extern[d.Name] = target
		}
	}
	for _, c := range s.crates {
		s.declareRoot(c)
	}
	for _, c := range s.crates {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.collectCrate(c)
	}
	s.resolveImports()
	s.resolveImpls()
	s.resolveBlockImports()
	return s.buildIndexes(ctx)
}

// InDir reports whether path is dir or lies below it.
func InDir(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}

// Version increases by one with every edit.
func (s *Snapshot) Version() uint64 { return s.version }

// FileID returns the id of the file at path.
func (s *Snapshot) FileID(path string) (syntax.FileID, bool) {
	id, ok := s.byPath[filepath.Clean(path)]
	return id, ok
}

// FilePath returns the path of file.
func (s *Snapshot) FilePath(id syntax.FileID) (string, bool) {
	f, ok := s.files[id]
	if !ok {
		return "", false
	}
	return f.path, true
}

// Files returns the paths of every file in the snapshot, sorted.
func (s *Snapshot) Files() []string {
	return slices.Sorted(maps.Keys(s.byPath))
}

// CrateOf returns the crate owning file.
func (s *Snapshot) CrateOf(id syntax.FileID) (semantic.CrateID, bool) {
	f, ok := s.files[id]
	if !ok {
		return 0, false
	}
	return f.crate, true
}

// CrateByName looks a crate up by its package name.
func (s *Snapshot) CrateByName(name string) (semantic.CrateID, bool) {
	id, ok := s.byName[name]
	return id, ok
}

// CrateName returns the package name of krate.
func (s *Snapshot) CrateName(krate semantic.CrateID) string {
	if int(krate) >= len(s.crates) {
		return ""
	}
	return s.crates[krate].name
}

// Crates returns the names of every crate in input order.
func (s *Snapshot) Crates() []string {
	out := make([]string, len(s.crates))
	for i, c := range s.crates {
		out[i] = c.name
	}
	return out
}

// LocalSymbols returns the symbol index of krate.
func (s *Snapshot) LocalSymbols(krate semantic.CrateID) *symbolindex.Index {
	if int(krate) >= len(s.symbols) {
		return symbolindex.New(nil)
	}
	return s.symbols[krate]
}

func (s *Snapshot) ParseFile(id syntax.FileID) (*syntax.Tree, bool) {
	f, ok := s.files[id]
	if !ok || f.tree == nil {
		return nil, false
	}
	return f.tree, true
}
