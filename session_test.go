package devqa_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	devqa "github.com/devqa/devqa.go"
	"github.com/devqa/devqa.go/internal/fakestore"
	"github.com/devqa/devqa.go/internal/testenv"
	"github.com/devqa/devqa.go/pkg/auth"
	"github.com/devqa/devqa.go/pkg/config"
	"github.com/devqa/devqa.go/pkg/constants"
	"github.com/devqa/devqa.go/pkg/models"
	"github.com/devqa/devqa.go/pkg/retry"
	"github.com/devqa/devqa.go/pkg/votes"
)

var (
	ada = auth.Claims{Subject: "google|ada", Email: "ada@example.com", Name: "Ada"}
	bob = auth.Claims{Subject: "google|bob", Email: "bob@example.com", Name: "Bob"}
)

func newSession(t *testing.T) (*testenv.Store, *devqa.Session) {
	t.Helper()
	env := testenv.NewStore(t)
	for _, name := range []string{
		constants.BadgeFirstQuestion, constants.BadgeQuestionMaster,
		constants.BadgeFirstAnswer, constants.BadgeAnswerGuru, constants.BadgeCenturion,
	} {
		env.Insert(constants.TableBadges, map[string]any{"Name": name})
	}
	sess := devqa.NewSession(env.Conn, devqa.Options{
		NotificationTTL: time.Minute,
		Retry:           retry.Policy{Retryer: retry.NewExponentialBackoffRetryer(), Sleep: testenv.NoSleep},
		Logger:          testenv.Logger(),
	})
	t.Cleanup(func() { _ = sess.Close(context.Background()) })
	return env, sess
}

func TestQuestionUpvoteLifecycle(t *testing.T) {
	ctx := context.Background()
	env, sess := newSession(t)

	// The new question is not listable for one list call.
	env.SetIndexLag(constants.TableQuestions, 1)
	sess.Auth.SignIn(ada)
	q, err := sess.PostQuestion(ctx, models.QuestionDraft{
		Title: "How do I close a channel twice?",
		Body:  "It panics.",
		Tags:  []string{"go"},
	})
	require.NoError(t, err)
	assert.Equal(t, q.ID, sess.Feed.Snapshot().Items[0].ID)
	sess.Jobs.Wait()

	adaID, err := sess.UserID(ctx)
	require.NoError(t, err)
	total, err := sess.Points.Total(ctx, adaID)
	require.NoError(t, err)
	assert.Equal(t, constants.PointsQuestion, total)

	n, ok := sess.Notifications.Current()
	require.True(t, ok)
	assert.Equal(t, constants.BadgeFirstQuestion, n.Badge)
	assert.Equal(t, adaID, n.UserID)

	sess.Auth.SignOut()
	_, err = sess.UserID(ctx)
	assert.ErrorIs(t, err, constants.ErrIdentityUnavailable)

	sess.Auth.SignIn(bob)
	require.NoError(t, sess.Feed.Load(ctx, true))
	outcome, err := sess.Feed.Upvote(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, votes.Voted, outcome)
	sess.Jobs.Wait()

	snap := sess.Feed.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 1, snap.Items[0].Upvotes)
	assert.True(t, snap.Items[0].HasVoted)

	total, err = sess.Points.Total(ctx, adaID)
	require.NoError(t, err)
	assert.Equal(t, constants.PointsQuestion+constants.PointsUpvoteReceived, total)

	outcome, err = sess.Feed.Upvote(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, votes.AlreadyVoted, outcome)
	count, err := env.Count(constants.TableVotes, "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, env.Requests(constants.TableVotes, fakestore.OpCreate))
}

func TestSignedOutSessionCannotPost(t *testing.T) {
	env, sess := newSession(t)
	_, err := sess.PostQuestion(context.Background(), models.QuestionDraft{Title: "t", Body: "b"})
	assert.ErrorIs(t, err, constants.ErrIdentityUnavailable)
	assert.Zero(t, env.Requests(constants.TableQuestions, fakestore.OpCreate))
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	_, sess := newSession(t)
	sess.Auth.SignIn(ada)
	q, err := sess.PostQuestion(ctx, models.QuestionDraft{Title: "Generics?", Body: "When?"})
	require.NoError(t, err)
	_, err = sess.PostAnswer(ctx, models.AnswerDraft{QuestionID: q.ID, Text: "Since 1.18."})
	require.NoError(t, err)
	sess.Jobs.Wait()

	p, err := sess.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, p.User.Points)
	assert.Len(t, p.Questions, 1)
	assert.Len(t, p.Answers, 1)
	names := make([]string, len(p.Badges))
	for i, b := range p.Badges {
		names[i] = b.Name
	}
	assert.ElementsMatch(t, []string{constants.BadgeFirstAnswer, constants.BadgeFirstQuestion}, names)
	assert.Empty(t, p.Warnings)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.PageSize = 25
	opts := devqa.OptionsFromConfig(&cfg)
	assert.Equal(t, 25, opts.PageSize)
	assert.Equal(t, constants.TableVotes, opts.Tables.Votes)
	assert.Equal(t, 3*time.Second, opts.NotificationTTL)
}
