package importmap

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testMap() *Map[string] {
	return New([]Entry[string]{
		{Item: "fmt_display", Path: []string{"dep", "fmt", "Display"}},
		{Item: "hashmap", Path: []string{"dep", "collections", "HashMap"}},
		{Item: "hashmap_new", Path: []string{"dep", "collections", "HashMap", "new"}, Assoc: true},
		{Item: "hash", Path: []string{"dep", "hash"}},
		{Item: "hasher", Path: []string{"dep", "hash", "Hasher"}},
	})
}

func items(seq iter.Seq[Entry[string]]) []string {
	var out []string
	for e := range seq {
		out = append(out, e.Item)
	}
	return out
}

func TestSearch(t *testing.T) {
	m := testMap()
	ctx := context.Background()

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{
			name: "equals name only is case sensitive when asked",
			q:    Query{Text: "HashMap", Mode: Equals, NameOnly: true, CaseSensitive: true},
			want: []string{"hashmap"},
		},
		{
			name: "equals case sensitive rejects case difference",
			q:    Query{Text: "hashmap", Mode: Equals, NameOnly: true, CaseSensitive: true},
			want: nil,
		},
		{
			name: "equals case insensitive",
			q:    Query{Text: "hashmap", Mode: Equals, NameOnly: true},
			want: []string{"hashmap"},
		},
		{
			name: "fuzzy over names",
			q:    Query{Text: "hsh", Mode: Fuzzy, NameOnly: true},
			want: []string{"hash", "hashmap", "hasher"},
		},
		{
			name: "fuzzy over full paths",
			q:    Query{Text: "collnew", Mode: Fuzzy},
			want: []string{"hashmap_new"},
		},
		{
			name: "contains",
			q:    Query{Text: "Hash", Mode: Contains, NameOnly: true, CaseSensitive: true},
			want: []string{"hashmap", "hasher"},
		},
		{
			name: "exclude associated items",
			q:    Query{Text: "new", Mode: Fuzzy, NameOnly: true, ExcludeAssocItems: true},
			want: nil,
		},
		{
			name: "limit",
			q:    Query{Text: "h", Mode: Fuzzy, NameOnly: true, Limit: 2},
			want: []string{"hash", "hashmap"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, items(m.Search(ctx, tt.q)))
		})
	}
}

func TestSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, items(testMap().Search(ctx, Query{Text: "h", Mode: Fuzzy})))
}

func TestEntriesOrderedByPath(t *testing.T) {
	var paths []string
	for e := range testMap().Entries() {
		paths = append(paths, e.PathString())
	}
	assert.Equal(t, []string{
		"dep::hash",
		"dep::collections::HashMap",
		"dep::fmt::Display",
		"dep::hash::Hasher",
		"dep::collections::HashMap::new",
	}, paths)
}
