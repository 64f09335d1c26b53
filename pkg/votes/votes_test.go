package votes

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/devqa/devqa.go/internal/testenv"
	"github.com/devqa/devqa.go/pkg/constants"
	"github.com/devqa/devqa.go/pkg/jobs"
	"github.com/devqa/devqa.go/pkg/metrics"
	"github.com/devqa/devqa.go/pkg/models"
	"github.com/devqa/devqa.go/pkg/points"
)

type LedgerTestSuite struct {
	suite.Suite
	env      *testenv.Store
	queue    *jobs.Queue
	metrics  *metrics.Metrics
	ledger   *Ledger
	author   string
	question string
}

func TestLedgerTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (s *LedgerTestSuite) SetupTest() {
	s.env = testenv.NewStore(s.T())
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.queue = jobs.New(jobs.Config{Workers: 2, Logger: testenv.Logger(), Metrics: s.metrics})
	s.author = s.env.Insert(constants.TableUsers, map[string]any{"Email": "ada@example.com", "Points": 10})
	s.question = s.env.Insert(constants.TableQuestions, map[string]any{"Title": "Why?", "AuthorID": s.author, "Upvotes": 0})
	s.ledger = New(s.env.Conn, Config{
		Points:  points.NewLedger(s.env.Conn, "", nil, testenv.Logger()),
		Jobs:    s.queue,
		Logger:  testenv.Logger(),
		Metrics: s.metrics,
	})
}

func (s *LedgerTestSuite) TearDownTest() {
	s.NoError(s.queue.Close(context.Background()))
}

func (s *LedgerTestSuite) votes() int {
	n, err := s.env.Count(constants.TableVotes, "")
	s.Require().NoError(err)
	return n
}

func (s *LedgerTestSuite) TestCastVoteOnce() {
	ctx := context.Background()

	voted, err := s.ledger.HasVoted(ctx, "recB", models.TargetQuestion, s.question)
	s.Require().NoError(err)
	s.False(voted)

	out, err := s.ledger.CastVote(ctx, "recB", models.TargetQuestion, s.question)
	s.Require().NoError(err)
	s.Equal(Voted, out)
	s.queue.Wait()

	s.Equal(1.0, s.env.Fields(constants.TableQuestions, s.question)["Upvotes"])
	s.Equal(11.0, s.env.Fields(constants.TableUsers, s.author)["Points"])

	voted, err = s.ledger.HasVoted(ctx, "recB", models.TargetQuestion, s.question)
	s.Require().NoError(err)
	s.True(voted)

	writesBefore := s.env.Requests(constants.TableVotes, "create") + s.env.Requests(constants.TableQuestions, "update")
	out, err = s.ledger.CastVote(ctx, "recB", models.TargetQuestion, s.question)
	s.Require().NoError(err)
	s.Equal(AlreadyVoted, out)
	s.queue.Wait()

	writesAfter := s.env.Requests(constants.TableVotes, "create") + s.env.Requests(constants.TableQuestions, "update")
	s.Equal(writesBefore, writesAfter)
	s.Equal(1, s.votes())
	s.Equal(1.0, s.env.Fields(constants.TableQuestions, s.question)["Upvotes"])
	s.Equal(11.0, s.env.Fields(constants.TableUsers, s.author)["Points"])
	s.InDelta(1, testutil.ToFloat64(s.metrics.Votes.WithLabelValues("already_voted")), 0)
}

func (s *LedgerTestSuite) TestConcurrentCastsFromOneClient() {
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ledger.CastVote(context.Background(), "recB", models.TargetQuestion, s.question)
			s.NoError(err)
		}()
	}
	wg.Wait()
	s.queue.Wait()

	s.Equal(1, s.votes())
	s.Equal(1.0, s.env.Fields(constants.TableQuestions, s.question)["Upvotes"])
}

func (s *LedgerTestSuite) TestRepeatCastDuringIndexLag() {
	ctx := context.Background()
	s.env.SetIndexLag(constants.TableVotes, 2)

	first, err := s.ledger.CastVote(ctx, "recB", models.TargetQuestion, s.question)
	s.Require().NoError(err)
	s.Equal(Voted, first)

	second, err := s.ledger.CastVote(ctx, "recB", models.TargetQuestion, s.question)
	s.Require().NoError(err)
	s.Equal(AlreadyVoted, second)
	s.queue.Wait()

	voted, err := s.ledger.HasVoted(ctx, "recB", models.TargetQuestion, s.question)
	s.Require().NoError(err)
	s.True(voted)

	s.Equal(1, s.votes())
	s.Equal(1, s.env.Requests(constants.TableVotes, "create"))
	s.Equal(1.0, s.env.Fields(constants.TableQuestions, s.question)["Upvotes"])
	s.Equal(11.0, s.env.Fields(constants.TableUsers, s.author)["Points"])
}

func (s *LedgerTestSuite) TestVoteSeenInStoreIsRemembered() {
	ctx := context.Background()
	s.env.Insert(constants.TableVotes, map[string]any{"VoterID": "recB", "TargetType": "Question", "TargetID": s.question})

	voted, err := s.ledger.HasVoted(ctx, "recB", models.TargetQuestion, s.question)
	s.Require().NoError(err)
	s.True(voted)
	lists := s.env.Requests(constants.TableVotes, "list")

	out, err := s.ledger.CastVote(ctx, "recB", models.TargetQuestion, s.question)
	s.Require().NoError(err)
	s.Equal(AlreadyVoted, out)
	s.Equal(lists, s.env.Requests(constants.TableVotes, "list"))
}

func (s *LedgerTestSuite) TestDistinctTargetsAreIndependent() {
	ctx := context.Background()
	answer := s.env.Insert(constants.TableAnswers, map[string]any{"QuestionID": s.question, "AuthorID": s.author, "Upvotes": 3})

	_, err := s.ledger.CastVote(ctx, "recB", models.TargetQuestion, s.question)
	s.Require().NoError(err)
	out, err := s.ledger.CastVote(ctx, "recB", models.TargetAnswer, answer)
	s.Require().NoError(err)
	s.Equal(Voted, out)
	out, err = s.ledger.CastVote(ctx, "recC", models.TargetQuestion, s.question)
	s.Require().NoError(err)
	s.Equal(Voted, out)
	s.queue.Wait()

	s.Equal(4.0, s.env.Fields(constants.TableAnswers, answer)["Upvotes"])
	s.Equal(2.0, s.env.Fields(constants.TableQuestions, s.question)["Upvotes"])
	s.Equal(13.0, s.env.Fields(constants.TableUsers, s.author)["Points"])
}

func (s *LedgerTestSuite) TestStoreFailureIsVoteFailed() {
	s.env.FailNext(constants.TableVotes, "create", 1, http.StatusInternalServerError)

	_, err := s.ledger.CastVote(context.Background(), "recB", models.TargetQuestion, s.question)
	s.Require().Error(err)
	s.True(errors.Is(err, constants.ErrVoteFailed))
	s.True(errors.Is(err, constants.ErrTransientNetwork))
	s.Equal(0, s.votes())
}

func (s *LedgerTestSuite) TestCounterFailureLeavesFact() {
	s.env.FailNext(constants.TableQuestions, "update", 1, http.StatusBadGateway)

	_, err := s.ledger.CastVote(context.Background(), "recB", models.TargetQuestion, s.question)
	s.Require().ErrorIs(err, constants.ErrVoteFailed)
	s.Equal(1, s.votes())

	out, err := s.ledger.CastVote(context.Background(), "recB", models.TargetQuestion, s.question)
	s.Require().NoError(err)
	s.Equal(AlreadyVoted, out)
}

func (s *LedgerTestSuite) TestPointFailureDoesNotFailVote() {
	s.env.FailNext(constants.TableUsers, "update", 1, http.StatusServiceUnavailable)

	out, err := s.ledger.CastVote(context.Background(), "recB", models.TargetQuestion, s.question)
	s.Require().NoError(err)
	s.Equal(Voted, out)
	s.queue.Wait()

	s.InDelta(1, testutil.ToFloat64(s.metrics.JobsFailed.WithLabelValues("grant_upvote_points")), 0)
}

func (s *LedgerTestSuite) TestValidation() {
	ctx := context.Background()
	_, err := s.ledger.CastVote(ctx, "", models.TargetQuestion, s.question)
	s.ErrorIs(err, constants.ErrIdentityUnavailable)
	_, err = s.ledger.CastVote(ctx, "recB", "Comment", s.question)
	s.ErrorIs(err, constants.ErrInvalidInput)
	_, err = s.ledger.HasVoted(ctx, "recB", models.TargetAnswer, "")
	s.ErrorIs(err, constants.ErrInvalidInput)
}
