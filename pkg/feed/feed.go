// Package feed keeps one session's view of the question feed consistent
// with an eventually consistent store.
//
// The accumulated items, the pagination cursor and the vote overlay are
// owned by a [Synchronizer]. Every reset load bumps a generation number;
// a response that arrives for an older generation is dropped, so a slow
// request for a superseded search never overwrites a newer one.
//
// Votes cast in this session are kept in an overlay. The displayed count
// is the larger of the server count and the overlay, and the overlay never
// decreases, so the view cannot flicker back while the store catches up.
package feed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/devqa/devqa.go/pkg/connection"
	"github.com/devqa/devqa.go/pkg/constants"
	"github.com/devqa/devqa.go/pkg/logger"
	"github.com/devqa/devqa.go/pkg/metrics"
	"github.com/devqa/devqa.go/pkg/models"
	"github.com/devqa/devqa.go/pkg/retry"
	"github.com/devqa/devqa.go/pkg/votes"
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoadingMore
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoadingMore:
		return "loading_more"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := StateIdle; st <= StateError; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown feed state %q", b)
}

// LoadErrorMessage is shown when a load fails after all retries.
const LoadErrorMessage = "Could not load questions. Check your connection and try again."

// Voter is the part of the vote ledger the feed uses.
type Voter interface {
	HasVoted(ctx context.Context, voterID string, t models.TargetType, targetID string) (bool, error)
	CastVote(ctx context.Context, voterID string, t models.TargetType, targetID string) (votes.Outcome, error)
}

// Identify resolves the session's voter. It fails while nobody is signed in.
type Identify func(ctx context.Context) (string, error)

type Tables struct {
	Questions string
	Users     string
}

type Config struct {
	Tables      Tables
	PageSize    int
	QuietPeriod time.Duration
	XPPerLevel  int
	// Retry governs transient load failures. The first attempt is immediate.
	Retry   retry.Policy
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

// Snapshot is the published, read-only state of the feed.
type Snapshot struct {
	State   State              `json:"state" cbor:"state"`
	Error   string             `json:"error,omitempty" cbor:"error,omitempty"`
	Items   []models.Question  `json:"items" cbor:"items"`
	HasMore bool               `json:"hasMore" cbor:"hasMore"`
	Search  string             `json:"search" cbor:"search"`
	Tag     string             `json:"tag" cbor:"tag"`
	Overlay map[string]Overlay `json:"overlay" cbor:"overlay"`
}

// Overlay is the locally observed vote state of one item.
type Overlay struct {
	Upvotes  int  `json:"upvotes" cbor:"upvotes"`
	HasVoted bool `json:"hasVoted" cbor:"hasVoted"`
}

type Synchronizer struct {
	con      connection.Connection
	voter    Voter
	identify Identify
	cfg      Config
	logger   logger.Logger
	metrics  *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	errMsg    string
	items     []models.Question
	cursor    string
	hasMore   bool
	search    string
	tag       string
	gen       uint64
	lastReset bool
	overlay   map[string]Overlay

	debounce    *time.Timer
	debounceGen uint64
}

func New(con connection.Connection, voter Voter, identify Identify, cfg Config) *Synchronizer {
	if cfg.Tables.Questions == "" {
		cfg.Tables.Questions = constants.TableQuestions
	}
	if cfg.Tables.Users == "" {
		cfg.Tables.Users = constants.TableUsers
	}
	if cfg.PageSize <= 0 || cfg.PageSize > constants.MaxPageSize {
		cfg.PageSize = constants.DefaultPageSize
	}
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = constants.DefaultSearchQuietPeriod
	}
	if cfg.XPPerLevel <= 0 {
		cfg.XPPerLevel = constants.DefaultXPPerLevel
	}
	if cfg.Retry.Retryer == nil {
		cfg.Retry = retry.DefaultPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	if identify == nil {
		identify = func(context.Context) (string, error) { return "", constants.ErrIdentityUnavailable }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Synchronizer{
		con:      con,
		voter:    voter,
		identify: identify,
		cfg:      cfg,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		ctx:      ctx,
		cancel:   cancel,
		state:    StateIdle,
		hasMore:  true,
		overlay:  make(map[string]Overlay),
	}
}

// Close cancels a pending debounced search and any load it started.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounceGen++
	s.mu.Unlock()
	s.cancel()
}

// Snapshot returns a copy of the current state with the overlay applied.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]models.Question, len(s.items))
	for i, q := range s.items {
		items[i] = s.applyOverlay(q)
	}
	overlay := make(map[string]Overlay, len(s.overlay))
	for k, v := range s.overlay {
		overlay[k] = v
	}
	return Snapshot{
		State:   s.state,
		Error:   s.errMsg,
		Items:   items,
		HasMore: s.hasMore,
		Search:  s.search,
		Tag:     s.tag,
		Overlay: overlay,
	}
}

func (s *Synchronizer) applyOverlay(q models.Question) models.Question {
	o, ok := s.overlay[q.ID]
	if !ok {
		return q
	}
	q.Upvotes = max(q.Upvotes, o.Upvotes)
	q.HasVoted = q.HasVoted || o.HasVoted
	return q
}

// SetSearchText schedules a reset load after the quiet period. A call
// within the quiet period replaces the pending one.
func (s *Synchronizer) SetSearchText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = text
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounceGen++
	gen := s.debounceGen
	s.debounce = time.AfterFunc(s.cfg.QuietPeriod, func() {
		s.mu.Lock()
		current := gen == s.debounceGen
		s.mu.Unlock()
		if !current {
			return
		}
		if err := s.Load(s.ctx, true); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("search load failed", "search", text, "error", err)
		}
	})
}

// Search sets the search text and reloads at once, dropping any pending
// debounced search.
func (s *Synchronizer) Search(ctx context.Context, text string) error {
	s.mu.Lock()
	s.search = text
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounceGen++
	s.mu.Unlock()
	return s.Load(ctx, true)
}

// SelectTag toggles the single-select tag filter and reloads. Selecting
// the current tag or [constants.TagAll] clears it.
func (s *Synchronizer) SelectTag(ctx context.Context, tag string) error {
	s.mu.Lock()
	if tag == "" || tag == constants.TagAll || tag == s.tag {
		s.tag = ""
	} else {
		s.tag = tag
	}
	s.mu.Unlock()
	return s.Load(ctx, true)
}

// LoadMore fetches the next page unless a load is running or the end of
// the results was reached.
func (s *Synchronizer) LoadMore(ctx context.Context) error {
	return s.Load(ctx, false)
}

// Retry repeats the last kind of load after an error.
func (s *Synchronizer) Retry(ctx context.Context) error {
	s.mu.Lock()
	reset := s.lastReset || len(s.items) == 0
	s.mu.Unlock()
	return s.Load(ctx, reset)
}

// Prepend shows a newly created question at the top right away.
func (s *Synchronizer) Prepend(q models.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = slices.DeleteFunc(s.items, func(it models.Question) bool { return it.ID == q.ID })
	s.items = append([]models.Question{q}, s.items...)
}

// Upvote casts the session voter's vote on a feed item. It does nothing
// when the item is already marked as voted. After a successful vote the
// overlay shows the new count immediately and the feed is reloaded to pick
// up authoritative counts; a failed vote leaves the overlay untouched.
func (s *Synchronizer) Upvote(ctx context.Context, questionID string) (votes.Outcome, error) {
	s.mu.Lock()
	idx := slices.IndexFunc(s.items, func(q models.Question) bool { return q.ID == questionID })
	var current models.Question
	if idx >= 0 {
		current = s.applyOverlay(s.items[idx])
	} else if o, ok := s.overlay[questionID]; ok {
		current = models.Question{ID: questionID, Upvotes: o.Upvotes, HasVoted: o.HasVoted}
	}
	s.mu.Unlock()
	if current.HasVoted {
		return votes.AlreadyVoted, nil
	}

	voterID, err := s.identify(ctx)
	if err != nil {
		return 0, err
	}
	outcome, err := s.voter.CastVote(ctx, voterID, models.TargetQuestion, questionID)
	if err != nil {
		s.logger.Warn("upvote abandoned", "question", questionID, "error", err)
		return 0, err
	}

	s.mu.Lock()
	o := s.overlay[questionID]
	if outcome == votes.Voted {
		o.Upvotes = max(o.Upvotes, current.Upvotes) + 1
	}
	o.HasVoted = true
	s.overlay[questionID] = o
	s.mu.Unlock()

	if err := s.Load(ctx, true); err != nil {
		s.logger.Warn("reload after upvote failed", "question", questionID, "error", err)
	}
	return outcome, nil
}
