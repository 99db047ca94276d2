package kb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kberrors "github.com/locchh/dkb/internal/errors"
	"github.com/locchh/dkb/internal/index"
)

func mustAdd(t *testing.T, e *Engine, path, content string, tags ...string) {
	t.Helper()
	_, err := e.Add(context.Background(), path, content, AddOptions{Tags: tags})
	require.NoError(t, err)
}

func paths(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document.Path
	}
	return out
}

func TestSearch_TextRanking(t *testing.T) {
	e := newTestEngine(t)

	// d1 matches both query terms once; d2 repeats one term heavily.
	mustAdd(t, e, "d1.md", "alpha beta filler filler filler")
	mustAdd(t, e, "d2.md", "alpha alpha alpha alpha alpha")
	mustAdd(t, e, "d3.md", "unrelated words only")

	res, err := e.Search(context.Background(), Query{Text: "alpha beta"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, []string{"d1.md", "d2.md"}, paths(res))
	assert.Greater(t, res[0].Score, res[1].Score)
}

func TestSearch_NoMatchesIsEmptyNotError(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e, "d1.md", "some content")

	res, err := e.Search(context.Background(), Query{Text: "absent"})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearch_FilterOnlyReturnsAll(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e, "b.md", "two")
	mustAdd(t, e, "a.md", "one")

	res, err := e.Search(context.Background(), Query{OrderBy: OrderPath})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.md"}, paths(res))
}

func TestSearch_TagFilters(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e, "go.md", "content", "lang", "compiled")
	mustAdd(t, e, "py.md", "content", "lang", "interpreted")
	mustAdd(t, e, "misc.md", "content")

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"all of two tags", Query{Tags: []string{"lang", "compiled"}, TagMode: index.MatchAll}, []string{"go.md"}},
		{"any of two tags", Query{Tags: []string{"compiled", "interpreted"}, TagMode: index.MatchAny}, []string{"go.md", "py.md"}},
		{"exclude tag", Query{Tags: []string{"lang"}, ExcludeTags: []string{"interpreted"}}, []string{"go.md"}},
		{"exclude without include", Query{ExcludeTags: []string{"lang"}}, []string{"misc.md"}},
		{"unknown tag", Query{Tags: []string{"nope"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.q.OrderBy = OrderPath
			res, err := e.Search(context.Background(), tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, func() []string {
				if len(res) == 0 {
					return nil
				}
				return paths(res)
			}())
		})
	}
}

func TestSearch_PathGlob(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e, "docs/api/auth.md", "x")
	mustAdd(t, e, "docs/guide.md", "x")
	mustAdd(t, e, "readme.md", "x")

	res, err := e.Search(context.Background(), Query{PathGlob: "docs/*", OrderBy: OrderPath})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/api/auth.md", "docs/guide.md"}, paths(res))

	_, err = e.Search(context.Background(), Query{PathGlob: "docs/[bad"})
	require.Error(t, err)
	assert.Equal(t, kberrors.ErrCodeInvalidQuery, kberrors.GetCode(err))
}

func TestSearch_DateRange(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	mustAdd(t, e, "old.md", "x")
	cut := time.Now()
	time.Sleep(5 * time.Millisecond)
	mustAdd(t, e, "new.md", "x")

	res, err := e.Search(ctx, Query{After: cut})
	require.NoError(t, err)
	assert.Equal(t, []string{"new.md"}, paths(res))

	res, err = e.Search(ctx, Query{Before: cut})
	require.NoError(t, err)
	assert.Equal(t, []string{"old.md"}, paths(res))
}

func TestSearch_FiltersIntersect(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e, "docs/go.md", "needle here", "lang")
	mustAdd(t, e, "docs/py.md", "needle here")
	mustAdd(t, e, "other/go.md", "needle here", "lang")

	res, err := e.Search(context.Background(), Query{
		Text:     "needle",
		Tags:     []string{"lang"},
		PathGlob: "docs/*",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/go.md"}, paths(res))
}

func TestSearch_OrderDate(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e, "first.md", "x")
	time.Sleep(5 * time.Millisecond)
	mustAdd(t, e, "second.md", "x")

	res, err := e.Search(context.Background(), Query{OrderBy: OrderDate})
	require.NoError(t, err)
	assert.Equal(t, []string{"second.md", "first.md"}, paths(res))
}

func TestSearch_Limit(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 5; i++ {
		mustAdd(t, e, fmt.Sprintf("d%d.md", i), "x")
	}

	res, err := e.Search(context.Background(), Query{OrderBy: OrderPath, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"d0.md", "d1.md"}, paths(res))
}

func TestSearch_MaxTokensBudget(t *testing.T) {
	e := newTestEngine(t)

	// Five documents of 600 tokens each, budget 2000: exactly three fit,
	// and the fourth is not truncated to squeeze it in.
	for i := 0; i < 5; i++ {
		mustAdd(t, e, fmt.Sprintf("d%d.md", i), words("tok", 600))
	}

	res, err := e.Search(context.Background(), Query{OrderBy: OrderPath, MaxTokens: 2000})
	require.NoError(t, err)
	require.Len(t, res, 3)
	for _, r := range res {
		assert.Equal(t, 600, r.Document.TokenCount)
	}
}

func TestSearch_MaxTokensSkipsNothingAfterOverflow(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e, "a.md", words("a", 100))
	mustAdd(t, e, "b.md", words("b", 500))
	mustAdd(t, e, "c.md", words("c", 100))

	// b overflows the budget; c would fit but comes after the cut.
	res, err := e.Search(context.Background(), Query{OrderBy: OrderPath, MaxTokens: 300})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md"}, paths(res))
}

func TestSearch_UnknownOrder(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Search(context.Background(), Query{OrderBy: "shuffled"})
	require.Error(t, err)
	assert.Equal(t, kberrors.ErrCodeInvalidQuery, kberrors.GetCode(err))
}

func TestSearch_RelevanceTieBreaksByPath(t *testing.T) {
	e := newTestEngine(t)
	mustAdd(t, e, "z.md", "needle")
	mustAdd(t, e, "a.md", "needle")

	res, err := e.Search(context.Background(), Query{Text: "needle"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, []string{"a.md", "z.md"}, paths(res))
}
