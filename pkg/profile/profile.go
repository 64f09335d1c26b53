// Package profile assembles a user's profile from independent fetches.
package profile

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/devqa/devqa.go/pkg/connection"
	"github.com/devqa/devqa.go/pkg/constants"
	"github.com/devqa/devqa.go/pkg/formula"
	"github.com/devqa/devqa.go/pkg/logger"
	"github.com/devqa/devqa.go/pkg/models"
	"github.com/devqa/devqa.go/pkg/points"
	"github.com/devqa/devqa.go/pkg/store"
)

// BadgeLister lists the badges a user holds.
type BadgeLister interface {
	EarnedBy(ctx context.Context, userID string) ([]models.Badge, error)
}

type Tables struct {
	Users     string
	Questions string
	Answers   string
}

type Profile struct {
	User      models.User       `json:"user" cbor:"user"`
	Level     points.LevelInfo  `json:"level" cbor:"level"`
	Questions []models.Question `json:"questions" cbor:"questions"`
	Answers   []models.Answer   `json:"answers" cbor:"answers"`
	Badges    []models.Badge    `json:"badges" cbor:"badges"`
	// Warnings has one message per section that could not be loaded.
	Warnings []string `json:"warnings,omitempty" cbor:"warnings,omitempty"`
}

type Loader struct {
	con        connection.Connection
	tables     Tables
	badges     BadgeLister
	xpPerLevel int
	logger     logger.Logger
}

func NewLoader(con connection.Connection, tables Tables, badges BadgeLister, xpPerLevel int, log logger.Logger) *Loader {
	if tables.Users == "" {
		tables.Users = constants.TableUsers
	}
	if tables.Questions == "" {
		tables.Questions = constants.TableQuestions
	}
	if tables.Answers == "" {
		tables.Answers = constants.TableAnswers
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Loader{con: con, tables: tables, badges: badges, xpPerLevel: xpPerLevel, logger: log}
}

// Load reads the user record, then the user's questions, answers and
// badges concurrently. Only a failure to read the user record fails Load;
// a failed section is left empty and reported in Warnings.
func (l *Loader) Load(ctx context.Context, userID string) (*Profile, error) {
	rec, err := store.Get[models.UserFields](ctx, l.con, l.tables.Users, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	p := &Profile{
		User:      models.UserFromRecord(*rec),
		Level:     points.Level(rec.Fields.Points, l.xpPerLevel),
		Questions: []models.Question{},
		Answers:   []models.Answer{},
		Badges:    []models.Badge{},
	}

	var mu sync.Mutex
	warn := func(section string, err error) {
		l.logger.Warn("profile section failed", "user", userID, "section", section, "error", err)
		mu.Lock()
		p.Warnings = append(p.Warnings, fmt.Sprintf("Could not load %s.", section))
		mu.Unlock()
	}
	byAuthor := connection.ListQuery{
		Filter:   formula.Compile(formula.Eq(formula.Field("AuthorID"), formula.String(userID))),
		Sort:     []connection.Sort{{Field: "Created", Direction: connection.Desc}},
		PageSize: constants.MaxPageSize,
	}

	// Sections never return an error to the group so one failure cannot
	// cancel the others.
	var g errgroup.Group
	g.Go(func() error {
		recs, err := store.ListAll[models.QuestionFields](ctx, l.con, l.tables.Questions, byAuthor)
		if err != nil {
			warn("questions", err)
			return nil
		}
		qs := make([]models.Question, len(recs))
		for i, r := range recs {
			qs[i] = models.QuestionFromRecord(r)
		}
		p.Questions = qs
		return nil
	})
	g.Go(func() error {
		recs, err := store.ListAll[models.AnswerFields](ctx, l.con, l.tables.Answers, byAuthor)
		if err != nil {
			warn("answers", err)
			return nil
		}
		as := make([]models.Answer, len(recs))
		for i, r := range recs {
			as[i] = models.AnswerFromRecord(r)
		}
		p.Answers = as
		return nil
	})
	if l.badges != nil {
		g.Go(func() error {
			bs, err := l.badges.EarnedBy(ctx, userID)
			if err != nil {
				warn("badges", err)
				return nil
			}
			p.Badges = bs
			return nil
		})
	}
	_ = g.Wait()
	return p, nil
}
