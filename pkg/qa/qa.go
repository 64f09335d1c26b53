// Package qa posts questions and answers and lists a question's answers.
//
// A post returns as soon as its own record is written. Points and badge
// milestones for the author are scheduled as detached jobs and never fail
// the post.
package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/devqa/devqa.go/pkg/auth"
	"github.com/devqa/devqa.go/pkg/badges"
	"github.com/devqa/devqa.go/pkg/connection"
	"github.com/devqa/devqa.go/pkg/constants"
	"github.com/devqa/devqa.go/pkg/formula"
	"github.com/devqa/devqa.go/pkg/jobs"
	"github.com/devqa/devqa.go/pkg/logger"
	"github.com/devqa/devqa.go/pkg/models"
	"github.com/devqa/devqa.go/pkg/store"
	"github.com/devqa/devqa.go/pkg/votes"
)

// Resolver maps claims to a user id.
type Resolver interface {
	Resolve(ctx context.Context, c auth.Claims) (string, error)
}

type PointsAdder interface {
	Add(ctx context.Context, userID string, delta int) (int, error)
}

type MilestoneChecker interface {
	CheckMilestones(ctx context.Context, userID string, kind badges.Milestone) error
}

// Voter is the vote ledger.
type Voter interface {
	HasVoted(ctx context.Context, voterID string, t models.TargetType, targetID string) (bool, error)
	CastVote(ctx context.Context, voterID string, t models.TargetType, targetID string) (votes.Outcome, error)
}

type Dispatcher interface {
	Submit(jobs.Task) error
}

// Tables names the question and answer tables.
type Tables struct {
	Questions string
	Answers   string
}

// Config configures a [Service].
type Config struct {
	Tables     Tables
	Identity   Resolver
	Points     PointsAdder
	Milestones MilestoneChecker
	Votes      Voter
	Jobs       Dispatcher
	Logger     logger.Logger
}

// Service posts and lists content for the signed-in user.
type Service struct {
	con      connection.Connection
	tables   Tables
	identity Resolver
	points   PointsAdder
	badges   MilestoneChecker
	votes    Voter
	jobs     Dispatcher
	logger   logger.Logger
	validate *validator.Validate
}

// New returns a Service over con.
func New(con connection.Connection, cfg Config) *Service {
	if cfg.Tables.Questions == "" {
		cfg.Tables.Questions = constants.TableQuestions
	}
	if cfg.Tables.Answers == "" {
		cfg.Tables.Answers = constants.TableAnswers
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	return &Service{
		con:      con,
		tables:   cfg.Tables,
		identity: cfg.Identity,
		points:   cfg.Points,
		badges:   cfg.Milestones,
		votes:    cfg.Votes,
		jobs:     cfg.Jobs,
		logger:   cfg.Logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fe.Namespace() + " " + fe.Tag()
			}
			return fmt.Errorf("%w: %s", constants.ErrInvalidInput, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %w", constants.ErrInvalidInput, err)
	}
	return nil
}

// PostQuestion creates a question by the signed-in author.
func (s *Service) PostQuestion(ctx context.Context, c auth.Claims, d models.QuestionDraft) (models.Question, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.Body = strings.TrimSpace(d.Body)
	for i, t := range d.Tags {
		d.Tags[i] = strings.TrimSpace(t)
	}
	if err := s.check(d); err != nil {
		return models.Question{}, err
	}
	authorID, err := s.identity.Resolve(ctx, c)
	if err != nil {
		return models.Question{}, err
	}

	rec, err := store.Create[models.QuestionFields](ctx, s.con, s.tables.Questions, models.QuestionFields{
		Title:    d.Title,
		Body:     d.Body,
		Tags:     d.Tags,
		AuthorID: authorID,
		Upvotes:  0,
	})
	if err != nil {
		return models.Question{}, fmt.Errorf("create question: %w", err)
	}
	s.logger.Info("question posted", "question", rec.ID, "author", authorID)

	if s.points != nil {
		s.detach("grant_question_points", func(ctx context.Context) error {
			_, err := s.points.Add(ctx, authorID, constants.PointsQuestion)
			return err
		})
	}
	if s.badges != nil {
		s.detach("question_milestones", func(ctx context.Context) error {
			return s.badges.CheckMilestones(ctx, authorID, badges.MilestoneQuestion)
		})
	}

	q := models.QuestionFromRecord(*rec)
	q.Author = models.AuthorProfile{Name: c.DisplayName(), Picture: c.Picture, Level: models.DefaultAuthorProfile.Level}
	return q, nil
}

// PostAnswer creates an answer to an existing question.
func (s *Service) PostAnswer(ctx context.Context, c auth.Claims, d models.AnswerDraft) (models.Answer, error) {
	d.Text = strings.TrimSpace(d.Text)
	if err := s.check(d); err != nil {
		return models.Answer{}, err
	}
	authorID, err := s.identity.Resolve(ctx, c)
	if err != nil {
		return models.Answer{}, err
	}
	if _, err := store.Get[models.QuestionFields](ctx, s.con, s.tables.Questions, d.QuestionID); err != nil {
		return models.Answer{}, fmt.Errorf("question %s: %w", d.QuestionID, err)
	}

	rec, err := store.Create[models.AnswerFields](ctx, s.con, s.tables.Answers, models.AnswerFields{
		QuestionID: d.QuestionID,
		AuthorID:   authorID,
		Text:       d.Text,
		Upvotes:    0,
	})
	if err != nil {
		return models.Answer{}, fmt.Errorf("create answer: %w", err)
	}
	s.logger.Info("answer posted", "answer", rec.ID, "question", d.QuestionID, "author", authorID)

	if s.points != nil {
		s.detach("grant_answer_points", func(ctx context.Context) error {
			_, err := s.points.Add(ctx, authorID, constants.PointsAnswer)
			return err
		})
	}
	if s.badges != nil {
		s.detach("answer_milestones", func(ctx context.Context) error {
			return s.badges.CheckMilestones(ctx, authorID, badges.MilestoneAnswer)
		})
	}
	return models.AnswerFromRecord(*rec), nil
}

// Answers lists a question's answers, most upvoted first, with the voter's
// flags when voterID is set.
func (s *Service) Answers(ctx context.Context, questionID, voterID string) ([]models.Answer, error) {
	recs, err := store.ListAll[models.AnswerFields](ctx, s.con, s.tables.Answers, connection.ListQuery{
		Filter: formula.Compile(formula.Eq(formula.Field("QuestionID"), formula.String(questionID))),
		Sort: []connection.Sort{
			{Field: "Upvotes", Direction: connection.Desc},
			{Field: "Created", Direction: connection.Desc},
		},
		PageSize: constants.MaxPageSize,
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Answer, len(recs))
	for i, r := range recs {
		out[i] = models.AnswerFromRecord(r)
		if voterID == "" || s.votes == nil {
			continue
		}
		voted, err := s.votes.HasVoted(ctx, voterID, models.TargetAnswer, r.ID)
		if err != nil {
			s.logger.Warn("answer vote flag lookup failed", "answer", r.ID, "error", err)
			continue
		}
		out[i].HasVoted = voted
	}
	return out, nil
}

// UpvoteAnswer casts the signed-in user's vote on an answer.
func (s *Service) UpvoteAnswer(ctx context.Context, c auth.Claims, answerID string) (votes.Outcome, error) {
	voterID, err := s.identity.Resolve(ctx, c)
	if err != nil {
		return 0, err
	}
	return s.votes.CastVote(ctx, voterID, models.TargetAnswer, answerID)
}

func (s *Service) detach(name string, run func(ctx context.Context) error) {
	task := jobs.Task{Name: name, Run: run}
	if s.jobs == nil {
		if err := run(context.Background()); err != nil {
			s.logger.Warn("follow-up failed", "job", name, "error", err)
		}
		return
	}
	if err := s.jobs.Submit(task); err != nil {
		s.logger.Warn("follow-up not scheduled", "job", name, "error", err)
	}
}
