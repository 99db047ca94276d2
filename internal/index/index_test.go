package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyword_ScoreBasics(t *testing.T) {
	k := NewKeyword()
	k.Index("d1", "the quick brown fox")
	k.Index("d2", "lazy dog sleeps")

	scores := k.ScoreQuery("quick fox")
	assert.Contains(t, scores, "d1")
	assert.NotContains(t, scores, "d2")
}

func TestKeyword_DistinctTermsOutrankRepetition(t *testing.T) {
	// Given: one doc matching both query terms once, one matching a single
	// term five times
	k := NewKeyword()
	k.Index("both", "alpha beta")
	k.Index("repeat", "alpha alpha alpha alpha alpha")

	// When: scoring a two-term query
	scores := k.ScoreQuery("alpha beta")

	// Then: broader coverage wins
	require.Contains(t, scores, "both")
	require.Contains(t, scores, "repeat")
	assert.Greater(t, scores["both"], scores["repeat"])
}

func TestKeyword_RareTermsWeighMore(t *testing.T) {
	k := NewKeyword()
	k.Index("d1", "common rare")
	k.Index("d2", "common")
	k.Index("d3", "common")

	scores := k.ScoreQuery("rare")
	rareOnly := scores["d1"]

	scores = k.ScoreQuery("common")
	commonOnly := scores["d1"]

	assert.Greater(t, rareOnly, commonOnly)
}

func TestKeyword_Deterministic(t *testing.T) {
	k := NewKeyword()
	k.Index("a", "one two three one")
	k.Index("b", "two three four")

	first := k.ScoreQuery("one two three")
	second := k.ScoreQuery("one two three")
	assert.Equal(t, first, second)
}

func TestKeyword_RemoveDropsPostings(t *testing.T) {
	k := NewKeyword()
	k.Index("d1", "hello world")
	k.Remove("d1")

	assert.Empty(t, k.ScoreQuery("hello"))
	assert.Zero(t, k.TermCount())
}

func TestKeyword_ReindexReplaces(t *testing.T) {
	k := NewKeyword()
	k.Index("d1", "old content")
	k.Index("d1", "new words")

	assert.Empty(t, k.ScoreQuery("old"))
	assert.Contains(t, k.ScoreQuery("new"), "d1")
}

func TestKeyword_DuplicateQueryTermsCountOnce(t *testing.T) {
	k := NewKeyword()
	k.Index("d1", "alpha beta")

	single := k.ScoreQuery("alpha")
	doubled := k.ScoreQuery("alpha alpha")
	assert.Equal(t, single["d1"], doubled["d1"])
}

func TestTags_FindAllAndAny(t *testing.T) {
	tags := NewTags()
	tags.Add("d1", "go")
	tags.Add("d1", "db")
	tags.Add("d2", "go")
	tags.Add("d3", "db")

	all := tags.Find([]string{"go", "db"}, MatchAll)
	assert.Equal(t, map[string]struct{}{"d1": {}}, all)

	any := tags.Find([]string{"go", "db"}, MatchAny)
	assert.Len(t, any, 3)

	// ALL result is always a subset of ANY
	for id := range all {
		assert.Contains(t, any, id)
	}
}

func TestTags_EmptySetReturnsEmpty(t *testing.T) {
	tags := NewTags()
	tags.Add("d1", "go")

	assert.Empty(t, tags.Find(nil, MatchAll))
	assert.Empty(t, tags.Find(nil, MatchAny))
	assert.Empty(t, tags.Find([]string{}, MatchAll))
}

func TestTags_UnknownTag(t *testing.T) {
	tags := NewTags()
	tags.Add("d1", "go")

	assert.Empty(t, tags.Find([]string{"go", "nope"}, MatchAll))
	assert.Len(t, tags.Find([]string{"go", "nope"}, MatchAny), 1)
}

func TestTags_RemoveAllDropsEmptyTags(t *testing.T) {
	tags := NewTags()
	tags.Add("d1", "solo")
	tags.Add("d2", "shared")
	tags.Add("d1", "shared")

	tags.RemoveAll("d1")

	assert.Equal(t, 1, tags.Distinct())
	assert.Empty(t, tags.Find([]string{"solo"}, MatchAny))
	assert.Len(t, tags.Find([]string{"shared"}, MatchAny), 1)
}

func TestPaths_GlobAcrossSegments(t *testing.T) {
	p := NewPaths()
	p.Add("d1", "docs/api/auth.md")
	p.Add("d2", "docs/api/users.md")
	p.Add("d3", "docs/guide.md")
	p.Add("d4", "src/main.go")

	ids, err := p.Find("docs/api/*")
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	// `*` crosses `/`
	ids, err = p.Find("docs/*")
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	ids, err = p.Find("*.md")
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	ids, err = p.Find("src/main.go")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"d4": {}}, ids)
}

func TestPaths_QuestionMarkAndClass(t *testing.T) {
	p := NewPaths()
	p.Add("d1", "note1.md")
	p.Add("d2", "note2.md")
	p.Add("d3", "note10.md")

	ids, err := p.Find("note?.md")
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	ids, err = p.Find("note[12].md")
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestPaths_InvalidPattern(t *testing.T) {
	p := NewPaths()
	_, err := p.Find("broken[class")
	require.Error(t, err)
}

func TestPaths_RemoveAndReplace(t *testing.T) {
	p := NewPaths()
	p.Add("d1", "a.md")
	p.Add("d1", "b.md") // re-add moves the id

	ids, err := p.Find("a.md")
	require.NoError(t, err)
	assert.Empty(t, ids)

	path, ok := p.PathOf("d1")
	require.True(t, ok)
	assert.Equal(t, "b.md", path)

	p.Remove("d1")

	_, ok = p.PathOf("d1")
	assert.False(t, ok)
	ids, err = p.Find("*")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
