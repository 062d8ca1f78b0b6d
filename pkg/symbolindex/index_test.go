package symbolindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/rsrefactor/pkg/syntax"
	"github.com/mamaar/rsrefactor/pkg/syntax/rust"
)

const src = `mod shapes {
    pub struct Circle;
    impl Circle {
        pub fn area(&self) -> f64 { 0.0 }
        const SIDES: u32 = 0;
    }
}
pub trait Area {
    fn area(&self) -> f64;
}
fn main() {
    fn helper() {}
    let circle = 1;
}
`

func collect(t *testing.T) *Index {
	t.Helper()
	tree, err := rust.Parse(context.Background(), 7, "src/lib.rs", src)
	require.NoError(t, err)
	return New(Collect(tree))
}

func TestCollect(t *testing.T) {
	tree, err := rust.Parse(context.Background(), 7, "src/lib.rs", src)
	require.NoError(t, err)

	byName := map[string][]FileSymbol{}
	for _, s := range Collect(tree) {
		byName[s.Name] = append(byName[s.Name], s)
	}

	require.Len(t, byName["Circle"], 1)
	circle := byName["Circle"][0]
	assert.Equal(t, syntax.KindStruct, circle.Kind)
	assert.Equal(t, "shapes", circle.Container)
	assert.Equal(t, syntax.FileID(7), circle.File)

	node, ok := tree.Resolve(circle.Ptr)
	require.True(t, ok)
	assert.Equal(t, "pub struct Circle;", node.Text())
	assert.Equal(t, "Circle", src[circle.NameRange.Start:circle.NameRange.End])

	require.Len(t, byName["area"], 2)
	containers := []string{byName["area"][0].Container, byName["area"][1].Container}
	assert.ElementsMatch(t, []string{"Circle", "Area"}, containers)

	assert.Equal(t, "Circle", byName["SIDES"][0].Container)
	assert.Equal(t, "main", byName["helper"][0].Container)
	assert.Empty(t, byName["circle"], "locals are not indexed")
}

func TestSearch(t *testing.T) {
	ix := collect(t)
	ctx := context.Background()

	names := func(q Query) []string {
		t.Helper()
		res, err := ix.Search(ctx, q)
		require.NoError(t, err)
		var out []string
		for _, s := range res {
			out = append(out, s.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Circle"}, names(Query{Text: "Circle", Exact: true, CaseSensitive: true}))
	assert.Empty(t, names(Query{Text: "circle", Exact: true, CaseSensitive: true}))
	assert.Equal(t, []string{"Circle"}, names(Query{Text: "circle", Exact: true}))
	assert.Equal(t, []string{"area", "Area", "area"}, names(Query{Text: "ar"}), "ties keep source order")
	assert.Equal(t, []string{"Area"}, names(Query{Text: "ar", OnlyTypes: true}))
	assert.Equal(t, []string{"Area"}, names(Query{Text: "Ar", CaseSensitive: true, Limit: 1}))
	assert.Len(t, names(Query{Text: "a", Limit: 2}), 2)
}

func TestSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := collect(t).Search(ctx, Query{Text: "a"})
	assert.ErrorIs(t, err, context.Canceled)
}
