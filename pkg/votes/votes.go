// Package votes enforces at most one vote per (voter, target) from this
// client and applies a vote's side effects.
//
// Casting a vote is a sequence of independent store writes: the vote fact,
// a read-modify-write of the target's counter, then a detached point grant
// to the target's author. None of it is atomic. The store's index lags
// behind writes, so the ledger also remembers every tuple this client has
// cast or seen voted and never asks the store about it again. A failure after the fact
// is written leaves the counter behind by one until the next authoritative
// read; that skew is accepted.
package votes

import (
	"context"
	"fmt"
	"sync"

	"github.com/devqa/devqa.go/pkg/connection"
	"github.com/devqa/devqa.go/pkg/constants"
	"github.com/devqa/devqa.go/pkg/formula"
	"github.com/devqa/devqa.go/pkg/jobs"
	"github.com/devqa/devqa.go/pkg/logger"
	"github.com/devqa/devqa.go/pkg/metrics"
	"github.com/devqa/devqa.go/pkg/models"
	"github.com/devqa/devqa.go/pkg/store"
)

// Outcome is the result of [Ledger.CastVote].
type Outcome int

const (
	Voted Outcome = iota
	AlreadyVoted
)

func (o Outcome) String() string {
	if o == AlreadyVoted {
		return "already_voted"
	}
	return "voted"
}

// PointsAdder grants points to a user.
type PointsAdder interface {
	Add(ctx context.Context, userID string, delta int) (int, error)
}

// Dispatcher runs detached work.
type Dispatcher interface {
	Submit(jobs.Task) error
}

// Tables names the tables a vote touches.
type Tables struct {
	Votes     string
	Questions string
	Answers   string
}

// Config configures a [Ledger]. Zero tables fall back to the defaults.
type Config struct {
	Tables  Tables
	Points  PointsAdder
	Jobs    Dispatcher
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

// Ledger casts votes for one client session.
type Ledger struct {
	con     connection.Connection
	tables  Tables
	points  PointsAdder
	jobs    Dispatcher
	logger  logger.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	seen  map[string]struct{}
}

// New returns a Ledger over con.
func New(con connection.Connection, cfg Config) *Ledger {
	if cfg.Tables.Votes == "" {
		cfg.Tables.Votes = constants.TableVotes
	}
	if cfg.Tables.Questions == "" {
		cfg.Tables.Questions = constants.TableQuestions
	}
	if cfg.Tables.Answers == "" {
		cfg.Tables.Answers = constants.TableAnswers
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	return &Ledger{
		con:     con,
		tables:  cfg.Tables,
		points:  cfg.Points,
		jobs:    cfg.Jobs,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		locks:   make(map[string]*sync.Mutex),
		seen:    make(map[string]struct{}),
	}
}

func tupleKey(voterID string, t models.TargetType, targetID string) string {
	return voterID + "\x00" + string(t) + "\x00" + targetID
}

func (l *Ledger) known(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[key]
	return ok
}

func (l *Ledger) remember(key string) {
	l.mu.Lock()
	l.seen[key] = struct{}{}
	l.mu.Unlock()
}

func (l *Ledger) lock(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (l *Ledger) targetTable(t models.TargetType) string {
	if t == models.TargetAnswer {
		return l.tables.Answers
	}
	return l.tables.Questions
}

func validate(voterID string, t models.TargetType, targetID string) error {
	if voterID == "" {
		return constants.ErrIdentityUnavailable
	}
	if !t.Valid() || targetID == "" {
		return fmt.Errorf("%w: vote target %q %q", constants.ErrInvalidInput, t, targetID)
	}
	return nil
}

// HasVoted reports whether a vote fact exists for the tuple, or this client
// has already cast one the store may not list yet.
func (l *Ledger) HasVoted(ctx context.Context, voterID string, t models.TargetType, targetID string) (bool, error) {
	if err := validate(voterID, t, targetID); err != nil {
		return false, err
	}
	key := tupleKey(voterID, t, targetID)
	if l.known(key) {
		return true, nil
	}
	rec, err := store.First[models.VoteFields](ctx, l.con, l.tables.Votes, connection.ListQuery{
		Filter: formula.Compile(formula.And(
			formula.Eq(formula.Field("VoterID"), formula.String(voterID)),
			formula.Eq(formula.Field("TargetType"), formula.String(t.String())),
			formula.Eq(formula.Field("TargetID"), formula.String(targetID)),
		)),
	})
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	l.remember(key)
	return true, nil
}

// CastVote records a vote unless one already exists. After Voted the caller
// may show count+1 and a voted flag; AlreadyVoted performs no writes. Store
// failures are reported as [constants.ErrVoteFailed].
func (l *Ledger) CastVote(ctx context.Context, voterID string, t models.TargetType, targetID string) (Outcome, error) {
	if err := validate(voterID, t, targetID); err != nil {
		return 0, err
	}
	key := tupleKey(voterID, t, targetID)
	defer l.lock(key)()

	voted, err := l.HasVoted(ctx, voterID, t, targetID)
	if err != nil {
		return 0, l.failed("check existing vote", err)
	}
	if voted {
		l.metrics.Vote(AlreadyVoted.String())
		return AlreadyVoted, nil
	}

	if _, err := store.Create[models.VoteFields](ctx, l.con, l.tables.Votes, models.VoteFields{
		VoterID:    voterID,
		TargetType: t,
		TargetID:   targetID,
	}); err != nil {
		return 0, l.failed("create vote", err)
	}
	l.remember(key)

	table := l.targetTable(t)
	target, err := store.Get[models.Fields](ctx, l.con, table, targetID)
	if err != nil {
		return 0, l.failed("read target", err)
	}
	upvotes := intField(target.Fields, "Upvotes") + 1
	if _, err := store.Update[models.Fields](ctx, l.con, table, targetID, models.Fields{"Upvotes": upvotes}); err != nil {
		return 0, l.failed("increment upvotes", err)
	}

	l.metrics.Vote(Voted.String())
	l.logger.Info("vote cast", "voter", voterID, "target_type", t, "target", targetID, "upvotes", upvotes)

	if author, _ := target.Fields["AuthorID"].(string); author != "" {
		l.grantPoints(author, targetID)
	}
	return Voted, nil
}

func (l *Ledger) grantPoints(author, targetID string) {
	if l.points == nil {
		return
	}
	task := jobs.Task{
		Name: "grant_upvote_points",
		Run: func(ctx context.Context) error {
			_, err := l.points.Add(ctx, author, constants.PointsUpvoteReceived)
			return err
		},
	}
	if l.jobs == nil {
		if err := task.Run(context.Background()); err != nil {
			l.logger.Warn("upvote points failed", "author", author, "target", targetID, "error", err)
		}
		return
	}
	if err := l.jobs.Submit(task); err != nil {
		l.logger.Warn("upvote points not scheduled", "author", author, "target", targetID, "error", err)
	}
}

func (l *Ledger) failed(step string, err error) error {
	l.metrics.Vote("failed")
	l.logger.Warn("vote failed", "step", step, "error", err)
	return fmt.Errorf("%w: %s: %w", constants.ErrVoteFailed, step, err)
}

func intField(f models.Fields, name string) int {
	switch v := f[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
