// Package points keeps user point totals and projects them onto levels.
package points

import (
	"context"
	"fmt"
	"sync"

	"github.com/devqa/devqa.go/pkg/badges"
	"github.com/devqa/devqa.go/pkg/connection"
	"github.com/devqa/devqa.go/pkg/constants"
	"github.com/devqa/devqa.go/pkg/logger"
	"github.com/devqa/devqa.go/pkg/models"
	"github.com/devqa/devqa.go/pkg/store"
)

// Awarder is the part of the badge awarder the ledger needs.
type Awarder interface {
	AwardIfMissing(ctx context.Context, userID, badge string) (badges.Outcome, error)
}

// Ledger adds points with a read-modify-write on the user record. Writes
// for one user are serialized within the process; last writer wins across
// processes.
type Ledger struct {
	con     connection.Connection
	table   string
	awarder Awarder
	logger  logger.Logger

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

func NewLedger(con connection.Connection, table string, awarder Awarder, log logger.Logger) *Ledger {
	if table == "" {
		table = constants.TableUsers
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Ledger{con: con, table: table, awarder: awarder, logger: log, users: make(map[string]*sync.Mutex)}
}

func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.users[userID]
	if !ok {
		m = &sync.Mutex{}
		l.users[userID] = m
	}
	return m
}

// Add increases the user's total by delta and returns the new total. The
// point-threshold badge is checked against that total right away; a failed
// badge grant is logged and does not fail Add.
func (l *Ledger) Add(ctx context.Context, userID string, delta int) (int, error) {
	if userID == "" {
		return 0, constants.ErrIdentityUnavailable
	}
	if delta <= 0 {
		return 0, fmt.Errorf("%w: point delta must be positive, got %d", constants.ErrInvalidInput, delta)
	}

	m := l.userLock(userID)
	m.Lock()
	rec, err := store.Get[models.UserFields](ctx, l.con, l.table, userID)
	if err != nil {
		m.Unlock()
		return 0, fmt.Errorf("read points of %s: %w", userID, err)
	}
	total := rec.Fields.Points + delta
	_, err = store.Update[models.UserFields](ctx, l.con, l.table, userID, models.Fields{"Points": total})
	m.Unlock()
	if err != nil {
		return 0, fmt.Errorf("write points of %s: %w", userID, err)
	}
	l.logger.Debug("points added", "user", userID, "delta", delta, "total", total)

	if badge, ok := badges.PointsBadge(total); ok && l.awarder != nil {
		if _, err := l.awarder.AwardIfMissing(ctx, userID, badge); err != nil {
			l.logger.Warn("points badge award failed", "user", userID, "badge", badge, "error", err)
		}
	}
	return total, nil
}

// Total reads the user's current point total.
func (l *Ledger) Total(ctx context.Context, userID string) (int, error) {
	rec, err := store.Get[models.UserFields](ctx, l.con, l.table, userID)
	if err != nil {
		return 0, err
	}
	return rec.Fields.Points, nil
}
