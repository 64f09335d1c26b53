package profile

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devqa/devqa.go/internal/testenv"
	"github.com/devqa/devqa.go/pkg/badges"
	"github.com/devqa/devqa.go/pkg/constants"
)

func setup(t *testing.T) (*testenv.Store, *Loader, string) {
	t.Helper()
	env := testenv.NewStore(t)
	user := env.Insert(constants.TableUsers, map[string]any{"Name": "Ada", "Email": "ada@example.com", "Points": 150})
	other := env.Insert(constants.TableUsers, map[string]any{"Name": "Bob"})
	env.Insert(constants.TableQuestions, map[string]any{"Title": "mine", "AuthorID": user})
	env.Insert(constants.TableQuestions, map[string]any{"Title": "theirs", "AuthorID": other})
	env.Insert(constants.TableAnswers, map[string]any{"Text": "a1", "AuthorID": user})
	env.Insert(constants.TableBadges, map[string]any{"Name": constants.BadgeCenturion, "EarnedBy": []string{other, user}})
	env.Insert(constants.TableBadges, map[string]any{"Name": constants.BadgeFirstAnswer, "EarnedBy": []string{other}})

	awarder := badges.New(env.Conn, badges.Config{Logger: testenv.Logger()})
	return env, NewLoader(env.Conn, Tables{}, awarder, 100, testenv.Logger()), user
}

func TestLoad(t *testing.T) {
	_, l, user := setup(t)

	p, err := l.Load(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.User.Name)
	assert.Equal(t, 2, p.Level.Level)
	assert.Equal(t, 0.5, p.Level.Progress)
	require.Len(t, p.Questions, 1)
	assert.Equal(t, "mine", p.Questions[0].Title)
	require.Len(t, p.Answers, 1)
	require.Len(t, p.Badges, 1)
	assert.Equal(t, constants.BadgeCenturion, p.Badges[0].Name)
	assert.Empty(t, p.Warnings)
}

func TestSectionFailureIsIsolated(t *testing.T) {
	env, l, user := setup(t)
	env.FailNext(constants.TableAnswers, "list", 1, http.StatusServiceUnavailable)

	p, err := l.Load(context.Background(), user)
	require.NoError(t, err)
	assert.Empty(t, p.Answers)
	assert.Len(t, p.Questions, 1)
	assert.Len(t, p.Badges, 1)
	assert.Equal(t, []string{"Could not load answers."}, p.Warnings)
}

func TestMissingUserIsFatal(t *testing.T) {
	_, l, _ := setup(t)
	_, err := l.Load(context.Background(), "recNobody")
	assert.ErrorIs(t, err, constants.ErrNotFound)
}
