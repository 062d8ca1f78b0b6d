// Package imports finds the definitions a name could be imported from: items
// of the current crate and the public items of its dependencies.
package imports

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mamaar/rsrefactor/pkg/importmap"
	"github.com/mamaar/rsrefactor/pkg/semantic"
	"github.com/mamaar/rsrefactor/pkg/symbolindex"
	"github.com/mamaar/rsrefactor/pkg/syntax"
)

// DefaultExactLimit bounds both backends of an exact search.
const DefaultExactLimit = 40

// cancelCheckInterval is how many local hits are re-resolved between
// context checks.
const cancelCheckInterval = 256

// Database is the snapshot a search reads: the semantic model plus the local
// symbol index of each crate.
type Database interface {
	semantic.Model
	LocalSymbols(krate semantic.CrateID) *symbolindex.Index
}

// SimilarQuery is a fuzzy search. The zero Limit uses the engine default.
type SimilarQuery struct {
	Text              string
	Limit             int
	ExcludeAssocItems bool
	NameOnly          bool
	CaseSensitive     bool
}

// Engine runs import searches. It holds configuration only; every search
// reads the Database snapshot it is given.
type Engine struct {
	logger       *slog.Logger
	tracer       trace.Tracer
	exactLimit   int
	similarLimit int
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracerProvider sets where search spans are recorded. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// WithExactLimit overrides DefaultExactLimit.
func WithExactLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.exactLimit = n
		}
	}
}

// WithSimilarLimit sets the limit of fuzzy searches that do not set one.
// Zero means unlimited.
func WithSimilarLimit(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.similarLimit = n
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:     slog.New(slog.DiscardHandler),
		tracer:     otel.Tracer(tracerName),
		exactLimit: DefaultExactLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FindExactImports finds definitions named exactly name, case-sensitively,
// in krate and the import maps of its dependencies.
func (e *Engine) FindExactImports(ctx context.Context, db Database, krate semantic.CrateID, name string) (*CandidateSet, error) {
	ctx, span := e.tracer.Start(ctx, "find_exact_imports", trace.WithAttributes(
		attribute.String("name", name),
		attribute.Int("crate", int(krate)),
	))
	defer span.End()

	local := symbolindex.Query{Text: name, Exact: true, CaseSensitive: true, Limit: e.exactLimit}
	external := importmap.Query{Text: name, Mode: importmap.Equals, NameOnly: true, CaseSensitive: true, Limit: e.exactLimit}
	set, err := e.findImports(ctx, db, krate, local, external, false)
	recordSearch("exact", setLen(set), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("candidates", set.Len()))
	return set, nil
}

// FindSimilarImports finds definitions whose name fuzzily matches q.Text.
// Matching is case-insensitive unless q.CaseSensitive is set.
func (e *Engine) FindSimilarImports(ctx context.Context, db Database, krate semantic.CrateID, q SimilarQuery) (*CandidateSet, error) {
	ctx, span := e.tracer.Start(ctx, "find_similar_imports", trace.WithAttributes(
		attribute.String("query", q.Text),
		attribute.Int("crate", int(krate)),
		attribute.Bool("exclude_assoc_items", q.ExcludeAssocItems),
	))
	defer span.End()

	limit := q.Limit
	if limit <= 0 {
		limit = e.similarLimit
	}
	local := symbolindex.Query{Text: q.Text, CaseSensitive: q.CaseSensitive, Limit: limit}
	external := importmap.Query{
		Text:              q.Text,
		Mode:              importmap.Fuzzy,
		NameOnly:          q.NameOnly,
		CaseSensitive:     q.CaseSensitive,
		Limit:             limit,
		ExcludeAssocItems: q.ExcludeAssocItems,
	}
	set, err := e.findImports(ctx, db, krate, local, external, q.ExcludeAssocItems)
	recordSearch("similar", setLen(set), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("candidates", set.Len()))
	return set, nil
}

// findImports merges both backends. Dependency hits are already semantic
// definitions; local hits name syntax locations and are re-resolved first.
func (e *Engine) findImports(ctx context.Context, db Database, krate semantic.CrateID,
	local symbolindex.Query, external importmap.Query, excludeAssoc bool) (*CandidateSet, error) {
	ctx, span := e.tracer.Start(ctx, "find_imports")
	defer span.End()

	set := newCandidateSet()
	for def := range db.QueryExternalImportables(ctx, krate, external) {
		set.add(def)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fromDeps := set.Len()

	hits, err := db.LocalSymbols(krate).Search(ctx, local)
	if err != nil {
		return nil, err
	}
	stale := 0
	for i, sym := range hits {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		def, ok := e.nameDefinition(ctx, db, sym)
		if !ok {
			stale++
			continue
		}
		if !def.IsModuleDef() {
			continue
		}
		set.add(def)
	}
	if stale > 0 {
		staleEntriesTotal.Add(float64(stale))
	}

	if excludeAssoc {
		set.retain(func(d semantic.Definition) bool { return !isAssocItem(db, d) })
	}
	span.SetAttributes(
		attribute.Int("dependency_hits", fromDeps),
		attribute.Int("local_hits", len(hits)),
		attribute.Int("stale", stale),
	)
	e.logger.Debug("import search",
		"text", local.Text, "dependency_hits", fromDeps, "local_hits", len(hits), "stale", stale, "candidates", set.Len())
	return set, nil
}

// nameDefinition re-resolves a local index hit: the recorded item must still
// exist with its name at the recorded range.
func (e *Engine) nameDefinition(ctx context.Context, db Database, sym symbolindex.FileSymbol) (semantic.Definition, bool) {
	_, span := e.tracer.Start(ctx, "get_name_definition", trace.WithAttributes(attribute.String("name", sym.Name)))
	defer span.End()

	tree, ok := db.ParseFile(sym.File)
	if !ok {
		return semantic.Definition{}, false
	}
	item, ok := tree.Resolve(sym.Ptr)
	if !ok {
		return semantic.Definition{}, false
	}
	name := syntax.NameOf(item)
	if name == nil || name.Range() != sym.NameRange || name.Text() != sym.Name {
		return semantic.Definition{}, false
	}
	return db.ClassifyName(sym.File, name)
}

// isAssocItem reports whether d is declared in an impl or trait. Only
// functions, consts and type aliases can be associated items.
func isAssocItem(db semantic.Model, d semantic.Definition) bool {
	switch d.Kind {
	case semantic.Function, semantic.Const, semantic.TypeAlias:
		_, ok := db.AssocContainer(d)
		return ok
	case semantic.Static, semantic.Struct, semantic.Enum, semantic.Union, semantic.Variant,
		semantic.Trait, semantic.ModuleKind, semantic.Macro, semantic.Local:
		return false
	}
	return false
}

func setLen(s *CandidateSet) int {
	if s == nil {
		return 0
	}
	return s.Len()
}
