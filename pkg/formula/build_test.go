package formula

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func TestCompileGolden(t *testing.T) {
	cases := map[string]Expr{
		"feed_tag_and_search": And(HasMember("Tags", "go"), ContainsFold("  Chan ", "Title", "Body")),
		"vote_lookup": And(
			Eq(Field("VoterID"), String("recA")),
			Eq(Field("TargetType"), String("Question")),
			Eq(Field("TargetID"), String("recQ")),
		),
		"user_by_email": EqualFold("Email", "Ada@Example.com"),
	}

	g := goldie.New(t)
	for name, expr := range cases {
		t.Run(name, func(t *testing.T) {
			g.Assert(t, name, []byte(Compile(expr)+"\n"))
		})
	}
}

func TestCompileEdges(t *testing.T) {
	assert.Equal(t, "", Compile(nil))
	assert.Equal(t, "", Compile(And()))
	assert.Nil(t, ContainsFold("   ", "Title"))
	assert.Equal(t, `{Title} = "x"`, Compile(And(nil, Eq(Field("Title"), String("x")), nil)))
	assert.Equal(t, `"say \"hi\" \\ now"`, Compile(String(`say "hi" \ now`)))
	assert.Equal(t, `{Points} >= 100`, Compile(Gte(Field("Points"), Number(100))))
	assert.Equal(t, `NOT({Done})`, Compile(Not(Field("Done"))))
}
