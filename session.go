package devqa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/devqa/devqa.go/pkg/auth"
	"github.com/devqa/devqa.go/pkg/badges"
	"github.com/devqa/devqa.go/pkg/config"
	"github.com/devqa/devqa.go/pkg/connection"
	"github.com/devqa/devqa.go/pkg/constants"
	"github.com/devqa/devqa.go/pkg/feed"
	"github.com/devqa/devqa.go/pkg/identity"
	"github.com/devqa/devqa.go/pkg/jobs"
	"github.com/devqa/devqa.go/pkg/logger"
	"github.com/devqa/devqa.go/pkg/metrics"
	"github.com/devqa/devqa.go/pkg/models"
	"github.com/devqa/devqa.go/pkg/notify"
	"github.com/devqa/devqa.go/pkg/points"
	"github.com/devqa/devqa.go/pkg/profile"
	"github.com/devqa/devqa.go/pkg/qa"
	"github.com/devqa/devqa.go/pkg/retry"
	"github.com/devqa/devqa.go/pkg/votes"
)

// Dial opens an HTTP connection to the store described by cfg. m may be nil.
func Dial(cfg *config.Config, log logger.Logger, m *metrics.Metrics) (*connection.HTTPConnection, error) {
	u, err := url.Parse(cfg.StoreURL)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	cc := connection.NewConfig(u, cfg.APIKey)
	if log != nil {
		cc.Logger = log
	}
	cc.Metrics = m
	cc.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	cc.Limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, int(cfg.RequestsPerSecond)))
	return connection.New(cc)
}

// Options tune a [Session]. Zero values fall back to package defaults.
type Options struct {
	Tables            config.Tables
	PageSize          int
	SearchQuietPeriod time.Duration
	XPPerLevel        int
	NotificationTTL   time.Duration
	Workers           int

	// Retry is used for feed loads. Its Sleep also paces badge milestone
	// polling, which follows [retry.MilestoneDelays].
	Retry   retry.Policy
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Tables:            cfg.Tables,
		PageSize:          cfg.PageSize,
		SearchQuietPeriod: cfg.SearchQuietPeriod,
		XPPerLevel:        cfg.XPPerLevel,
		NotificationTTL:   cfg.NotificationTTL,
		Workers:           cfg.Workers,
	}
}

// Session is one client's engine: every component bound to one store and
// one auth signal.
type Session struct {
	Auth          *auth.StaticProvider
	Identity      *identity.Resolver
	Notifications *notify.Sink
	Badges        *badges.Awarder
	Points        *points.Ledger
	Votes         *votes.Ledger
	Feed          *feed.Synchronizer
	QA            *qa.Service
	Profiles      *profile.Loader
	Jobs          *jobs.Queue

	opts   Options
	logger logger.Logger
}

func NewSession(con connection.Connection, opts Options) *Session {
	if opts.Tables == (config.Tables{}) {
		opts.Tables = config.Default().Tables
	}
	if opts.NotificationTTL <= 0 {
		opts.NotificationTTL = constants.DefaultNotificationTTL
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	t := opts.Tables
	s := &Session{
		Auth:          auth.NewStaticProvider(),
		Notifications: notify.NewSink(opts.NotificationTTL),
		opts:          opts,
		logger:        opts.Logger,
	}
	s.Jobs = jobs.New(jobs.Config{Workers: opts.Workers, Logger: opts.Logger, Metrics: opts.Metrics})
	s.Identity = identity.New(con, t.Users, opts.Logger)
	s.Identity.Watch(s.Auth)
	s.Badges = badges.New(con, badges.Config{
		Tables:    badges.Tables{Badges: t.Badges, Questions: t.Questions, Answers: t.Answers},
		Publisher: s.Notifications,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
		Poll:      retry.MilestonePolicy(opts.Retry.Sleep),
	})
	s.Points = points.NewLedger(con, t.Users, s.Badges, opts.Logger)
	s.Votes = votes.New(con, votes.Config{
		Tables:  votes.Tables{Votes: t.Votes, Questions: t.Questions, Answers: t.Answers},
		Points:  s.Points,
		Jobs:    s.Jobs,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	s.Feed = feed.New(con, s.Votes, s.UserID, feed.Config{
		Tables:      feed.Tables{Questions: t.Questions, Users: t.Users},
		PageSize:    opts.PageSize,
		QuietPeriod: opts.SearchQuietPeriod,
		XPPerLevel:  opts.XPPerLevel,
		Retry:       opts.Retry,
		Logger:      opts.Logger,
		Metrics:     opts.Metrics,
	})
	s.QA = qa.New(con, qa.Config{
		Tables:     qa.Tables{Questions: t.Questions, Answers: t.Answers},
		Identity:   s.Identity,
		Points:     s.Points,
		Milestones: s.Badges,
		Votes:      s.Votes,
		Jobs:       s.Jobs,
		Logger:     opts.Logger,
	})
	s.Profiles = profile.NewLoader(con, profile.Tables{Users: t.Users, Questions: t.Questions, Answers: t.Answers},
		s.Badges, opts.XPPerLevel, opts.Logger)
	return s
}

// Principal returns the signed-in claims.
func (s *Session) Principal() (auth.Claims, error) {
	st := s.Auth.Status()
	if st.State != auth.StateSignedIn {
		return auth.Claims{}, fmt.Errorf("%w: %s", constants.ErrIdentityUnavailable, st.State)
	}
	return st.Claims, nil
}

// UserID resolves the signed-in principal to its user record id.
func (s *Session) UserID(ctx context.Context) (string, error) {
	c, err := s.Principal()
	if err != nil {
		return "", err
	}
	return s.Identity.Resolve(ctx, c)
}

// PostQuestion posts as the signed-in principal and shows the question at
// the top of the feed.
func (s *Session) PostQuestion(ctx context.Context, d models.QuestionDraft) (models.Question, error) {
	c, err := s.Principal()
	if err != nil {
		return models.Question{}, err
	}
	q, err := s.QA.PostQuestion(ctx, c, d)
	if err != nil {
		return models.Question{}, err
	}
	s.Feed.Prepend(q)
	return q, nil
}

func (s *Session) PostAnswer(ctx context.Context, d models.AnswerDraft) (models.Answer, error) {
	c, err := s.Principal()
	if err != nil {
		return models.Answer{}, err
	}
	return s.QA.PostAnswer(ctx, c, d)
}

// Profile loads the signed-in user's profile.
func (s *Session) Profile(ctx context.Context) (*profile.Profile, error) {
	id, err := s.UserID(ctx)
	if err != nil {
		return nil, err
	}
	return s.Profiles.Load(ctx, id)
}

// Level projects points with the session's level size.
func (s *Session) Level(total int) points.LevelInfo {
	return points.Level(total, s.opts.XPPerLevel)
}

// Close stops the feed and drains background jobs.
func (s *Session) Close(ctx context.Context) error {
	s.Feed.Close()
	err := s.Jobs.Close(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
