package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func match(t *testing.T, e Expr, fields map[string]any) bool {
	t.Helper()
	prog, err := Parse(Compile(e))
	require.NoError(t, err)
	ok, err := prog.Match("rec1", fields)
	require.NoError(t, err)
	return ok
}

func TestTagMembership(t *testing.T) {
	q := map[string]any{"Tags": []any{"golang", "channels"}}

	assert.False(t, match(t, HasMember("Tags", "go"), q), "substring of a tag must not match")
	assert.True(t, match(t, HasMember("Tags", "golang"), q))
	assert.True(t, match(t, HasMember("Tags", "channels"), q))
	assert.False(t, match(t, HasMember("Tags", "go"), map[string]any{}))
}

func TestSearchIsCaseInsensitiveOverTitleOrBody(t *testing.T) {
	search := ContainsFold("MuTeX", "Title", "Body")

	assert.True(t, match(t, search, map[string]any{"Title": "When to use a Mutex", "Body": ""}))
	assert.True(t, match(t, search, map[string]any{"Title": "Locks", "Body": "sync.mutex vs channels"}))
	assert.False(t, match(t, search, map[string]any{"Title": "Locks", "Body": "channels"}))
}

func TestTagAndSearchCombine(t *testing.T) {
	both := And(HasMember("Tags", "go"), ContainsFold("mutex", "Title", "Body"))

	assert.True(t, match(t, both, map[string]any{"Tags": []string{"go"}, "Title": "mutex"}))
	assert.False(t, match(t, both, map[string]any{"Tags": []string{"rust"}, "Title": "mutex"}))
	assert.False(t, match(t, both, map[string]any{"Tags": []string{"go"}, "Title": "channels"}))
}

func TestEqualityAndNumbers(t *testing.T) {
	assert.True(t, match(t, EqualFold("Email", "ADA@example.com"), map[string]any{"Email": "Ada@Example.com"}))
	assert.True(t, match(t, Gte(Field("Points"), Number(100)), map[string]any{"Points": 100}))
	assert.False(t, match(t, Gte(Field("Points"), Number(100)), map[string]any{"Points": float64(99)}))
	assert.True(t, match(t, Eq(Field("Missing"), String("")), map[string]any{}))
	assert.True(t, match(t, Neq(Field("Name"), String("x")), map[string]any{"Name": "y"}))
}

func TestParseHandwritten(t *testing.T) {
	prog, err := Parse(`OR(RECORD_ID() = 'rec1', {Upvotes} > 3, TRUE)`)
	require.NoError(t, err)
	ok, err := prog.Match("rec2", map[string]any{"Upvotes": 1})
	require.NoError(t, err)
	assert.True(t, ok)

	prog, err = Parse(`AND(RECORD_ID() = "rec1", FALSE())`)
	require.NoError(t, err)
	ok, err = prog.Match("rec1", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	empty, err := Parse("  ")
	require.NoError(t, err)
	ok, err = empty.Match("x", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		`FIND("a"`,
		`{Title`,
		`"open`,
		`AND(1,,2)`,
		`{A} = `,
		`FIND "a"`,
		`1 ! 2`,
		`{A} {B}`,
	} {
		_, err := Parse(src)
		var syn *SyntaxError
		assert.ErrorAs(t, err, &syn, src)
	}
}

func TestUnknownFunctionFailsAtMatch(t *testing.T) {
	prog, err := Parse(`NOPE({A})`)
	require.NoError(t, err)
	_, err = prog.Match("r", nil)
	assert.ErrorContains(t, err, "unknown function NOPE")
}
