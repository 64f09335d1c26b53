// Package badges awards milestone badges at most once per user.
//
// The store has no uniqueness constraint and no read-after-write guarantee,
// so every grant is a check-then-act: the badge record is located by name,
// membership in EarnedBy is checked, re-checked on a fresh read, and only
// then is the user appended. Grants from this process for the same
// (user, badge) pair are serialized; concurrent clients can still race.
package badges

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/devqa/devqa.go/pkg/connection"
	"github.com/devqa/devqa.go/pkg/constants"
	"github.com/devqa/devqa.go/pkg/formula"
	"github.com/devqa/devqa.go/pkg/logger"
	"github.com/devqa/devqa.go/pkg/metrics"
	"github.com/devqa/devqa.go/pkg/models"
	"github.com/devqa/devqa.go/pkg/notify"
	"github.com/devqa/devqa.go/pkg/retry"
	"github.com/devqa/devqa.go/pkg/store"
)

// Outcome is the result of [Awarder.AwardIfMissing].
type Outcome int

const (
	Awarded Outcome = iota
	AlreadyHeld
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Awarded:
		return "awarded"
	case AlreadyHeld:
		return "already_held"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

// Tables names the badge and user tables.
type Tables struct {
	Badges    string
	Questions string
	Answers   string
}

// Config configures an [Awarder].
type Config struct {
	Tables    Tables
	Publisher notify.Publisher
	Logger    logger.Logger
	Metrics   *metrics.Metrics
	// Poll governs question-count polling after a new question. The first
	// observation is immediate.
	Poll retry.Policy
	Now  func() time.Time
}

// Awarder grants badges and announces new ones.
type Awarder struct {
	con     connection.Connection
	tables  Tables
	pub     notify.Publisher
	logger  logger.Logger
	metrics *metrics.Metrics
	poll    retry.Policy
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns an Awarder over con.
func New(con connection.Connection, cfg Config) *Awarder {
	if cfg.Tables.Badges == "" {
		cfg.Tables.Badges = constants.TableBadges
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
	if cfg.Poll.Retryer == nil {
		cfg.Poll = retry.MilestonePolicy(cfg.Poll.Sleep)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Awarder{
		con:     con,
		tables:  cfg.Tables,
		pub:     cfg.Publisher,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		poll:    cfg.Poll,
		now:     cfg.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (a *Awarder) lock(userID, badge string) func() {
	key := userID + "\x00" + badge
	a.mu.Lock()
	l, ok := a.locks[key]
	if !ok {
		l = &sync.Mutex{}
		a.locks[key] = l
	}
	a.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// AwardIfMissing grants badge to userID unless it is already held. A badge
// missing from the catalog is reported as NotFound, not as an error.
func (a *Awarder) AwardIfMissing(ctx context.Context, userID, badge string) (Outcome, error) {
	defer a.lock(userID, badge)()

	rec, err := store.First[models.BadgeFields](ctx, a.con, a.tables.Badges, connection.ListQuery{
		Filter: formula.Compile(formula.Eq(formula.Field("Name"), formula.String(badge))),
	})
	if err != nil {
		return 0, fmt.Errorf("find badge %q: %w", badge, err)
	}
	if rec == nil {
		a.logger.Warn("badge missing from catalog", "badge", badge, "user", userID)
		a.metrics.Badge(NotFound.String())
		return NotFound, nil
	}
	if slices.Contains(rec.Fields.EarnedBy, userID) {
		a.metrics.Badge(AlreadyHeld.String())
		return AlreadyHeld, nil
	}

	fresh, err := store.Get[models.BadgeFields](ctx, a.con, a.tables.Badges, rec.ID)
	if err != nil {
		return 0, fmt.Errorf("re-read badge %q: %w", badge, err)
	}
	if slices.Contains(fresh.Fields.EarnedBy, userID) {
		a.metrics.Badge(AlreadyHeld.String())
		return AlreadyHeld, nil
	}

	earnedBy := append(slices.Clone(fresh.Fields.EarnedBy), userID)
	if _, err := store.Update[models.BadgeFields](ctx, a.con, a.tables.Badges, fresh.ID, models.Fields{"EarnedBy": earnedBy}); err != nil {
		return 0, fmt.Errorf("award badge %q: %w", badge, err)
	}

	a.metrics.Badge(Awarded.String())
	a.logger.Info("badge awarded", "badge", badge, "user", userID)
	if a.pub != nil {
		a.pub.Publish(notify.Event{UserID: userID, Badge: badge, At: a.now()})
	}
	return Awarded, nil
}

// EarnedBy lists the badges userID holds.
func (a *Awarder) EarnedBy(ctx context.Context, userID string) ([]models.Badge, error) {
	recs, err := store.ListAll[models.BadgeFields](ctx, a.con, a.tables.Badges, connection.ListQuery{
		Filter: formula.Compile(formula.HasMember("EarnedBy", userID)),
		Sort:   []connection.Sort{{Field: "Name", Direction: connection.Asc}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Badge, len(recs))
	for i, r := range recs {
		out[i] = models.BadgeFromRecord(r)
	}
	return out, nil
}
