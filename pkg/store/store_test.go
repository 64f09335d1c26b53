package store_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devqa/devqa.go/internal/testenv"
	"github.com/devqa/devqa.go/pkg/connection"
	"github.com/devqa/devqa.go/pkg/constants"
	"github.com/devqa/devqa.go/pkg/formula"
	"github.com/devqa/devqa.go/pkg/models"
	"github.com/devqa/devqa.go/pkg/store"
)

func TestCreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	env := testenv.NewStore(t)

	created, err := store.Create[models.UserFields](ctx, env.Conn, constants.TableUsers, models.UserFields{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedTime.IsZero())

	updated, err := store.Update[models.UserFields](ctx, env.Conn, constants.TableUsers, created.ID, models.Fields{"Points": 10})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Fields.Points)
	assert.Equal(t, "Ada", updated.Fields.Name)

	got, err := store.Get[models.UserFields](ctx, env.Conn, constants.TableUsers, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserFromRecord(*updated), models.UserFromRecord(*got))
}

func TestGetMissing(t *testing.T) {
	env := testenv.NewStore(t)
	_, err := store.Get[models.UserFields](context.Background(), env.Conn, constants.TableUsers, "recNope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, constants.ErrNotFound))
}

func TestListAllFollowsOffsets(t *testing.T) {
	ctx := context.Background()
	env := testenv.NewStore(t)
	for i := 0; i < 7; i++ {
		env.Insert(constants.TableVotes, map[string]any{"VoterID": "recA", "TargetType": "Question", "TargetID": "recQ"})
	}
	env.Insert(constants.TableVotes, map[string]any{"VoterID": "recB", "TargetType": "Question", "TargetID": "recQ"})

	all, err := store.ListAll[models.VoteFields](ctx, env.Conn, constants.TableVotes, connection.ListQuery{
		Filter:   formula.Compile(formula.Eq(formula.Field("VoterID"), formula.String("recA"))),
		PageSize: 3,
	})
	require.NoError(t, err)
	assert.Len(t, all, 7)
	assert.Equal(t, 3, env.Requests(constants.TableVotes, "list"))
}

func TestFirst(t *testing.T) {
	ctx := context.Background()
	env := testenv.NewStore(t)
	env.Insert(constants.TableUsers, map[string]any{"Email": "Ada@Example.com", "Name": "Ada"})

	rec, err := store.First[models.UserFields](ctx, env.Conn, constants.TableUsers, connection.ListQuery{
		Filter: formula.Compile(formula.EqualFold("Email", "ada@example.com")),
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Ada", rec.Fields.Name)

	rec, err = store.First[models.UserFields](ctx, env.Conn, constants.TableUsers, connection.ListQuery{
		Filter: formula.Compile(formula.EqualFold("Email", "bob@example.com")),
	})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestTransientFailureSurfaces(t *testing.T) {
	env := testenv.NewStore(t)
	env.FailNext(constants.TableQuestions, "list", 1, http.StatusBadGateway)

	_, err := store.List[models.QuestionFields](context.Background(), env.Conn, constants.TableQuestions, connection.ListQuery{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, constants.ErrTransientNetwork))
}
