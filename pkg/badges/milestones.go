package badges

import (
	"context"
	"fmt"
	"time"

	"github.com/devqa/devqa.go/pkg/connection"
	"github.com/devqa/devqa.go/pkg/constants"
	"github.com/devqa/devqa.go/pkg/formula"
	"github.com/devqa/devqa.go/pkg/models"
	"github.com/devqa/devqa.go/pkg/retry"
	"github.com/devqa/devqa.go/pkg/store"
)

type Milestone string

const (
	MilestoneQuestion Milestone = "question"
	MilestoneAnswer   Milestone = "answer"
)

// QuestionBadge maps an exact question count to its badge.
func QuestionBadge(count int) (string, bool) {
	switch count {
	case 1:
		return constants.BadgeFirstQuestion, true
	case 5:
		return constants.BadgeQuestionMaster, true
	}
	return "", false
}

// AnswerBadge maps an exact answer count to its badge.
func AnswerBadge(count int) (string, bool) {
	switch count {
	case 1:
		return constants.BadgeFirstAnswer, true
	case 10:
		return constants.BadgeAnswerGuru, true
	}
	return "", false
}

// PointsBadge reports the badge earned at a point total.
func PointsBadge(total int) (string, bool) {
	if total >= 100 {
		return constants.BadgeCenturion, true
	}
	return "", false
}

// CheckMilestones recounts the user's artifacts of the given kind and
// awards the matching badge.
//
// A question recount right after the write may still miss it, so questions
// are polled until a nonzero count shows up or the poll policy gives up;
// giving up is not an error. Answers are counted once.
func (a *Awarder) CheckMilestones(ctx context.Context, userID string, kind Milestone) error {
	var (
		count int
		err   error
		badge string
		ok    bool
	)
	switch kind {
	case MilestoneQuestion:
		policy := a.poll
		policy.OnRetry = func(int, time.Duration, error) {
			a.metrics.Retry("badge_poll")
		}
		var attempts int
		count, attempts, err = retry.Do(ctx, policy,
			func(ctx context.Context, _ int) (int, error) {
				return a.countByAuthor(ctx, a.tables.Questions, userID)
			},
			func(n int, err error) bool {
				if err != nil {
					return !retry.Retryable(err)
				}
				return n >= 1
			})
		if err != nil {
			return fmt.Errorf("count questions of %s: %w", userID, err)
		}
		if count == 0 {
			a.logger.Info("question count still zero, giving up", "user", userID, "attempts", attempts,
				"reason", constants.ErrReadAfterWriteLag)
			return nil
		}
		badge, ok = QuestionBadge(count)
	case MilestoneAnswer:
		count, err = a.countByAuthor(ctx, a.tables.Answers, userID)
		if err != nil {
			return fmt.Errorf("count answers of %s: %w", userID, err)
		}
		badge, ok = AnswerBadge(count)
	default:
		return fmt.Errorf("%w: unknown milestone %q", constants.ErrInvalidInput, kind)
	}
	if !ok {
		return nil
	}
	_, err = a.AwardIfMissing(ctx, userID, badge)
	return err
}

func (a *Awarder) countByAuthor(ctx context.Context, table, userID string) (int, error) {
	recs, err := store.ListAll[models.Fields](ctx, a.con, table, connection.ListQuery{
		Filter:   formula.Compile(formula.Eq(formula.Field("AuthorID"), formula.String(userID))),
		Fields:   []string{"AuthorID"},
		PageSize: constants.MaxPageSize,
	})
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}
