package feed

import (
	"context"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devqa/devqa.go/pkg/connection"
	"github.com/devqa/devqa.go/pkg/formula"
	"github.com/devqa/devqa.go/pkg/models"
	"github.com/devqa/devqa.go/pkg/points"
	"github.com/devqa/devqa.go/pkg/retry"
	"github.com/devqa/devqa.go/pkg/store"
)

// hydrateFanOut bounds concurrent author lookups for one page.
const hydrateFanOut = 4

// Filter compiles the tag and search state into a store formula: the tag
// must be a member of the item's tags and the search text must appear in
// the title or body, ignoring case.
func Filter(search, tag string) string {
	var tagExpr formula.Expr
	if tag != "" {
		tagExpr = formula.HasMember("Tags", tag)
	}
	return formula.Compile(formula.And(tagExpr, formula.ContainsFold(search, "Title", "Body")))
}

// Load fetches one page. With reset the cursor and items are cleared first
// and any load still in flight is superseded. Without reset it behaves as
// LoadMore.
func (s *Synchronizer) Load(ctx context.Context, reset bool) error {
	s.mu.Lock()
	if reset {
		s.gen++
		s.cursor = ""
		s.items = nil
		s.hasMore = true
		s.state = StateLoading
	} else {
		if s.state == StateLoading || s.state == StateLoadingMore || !s.hasMore {
			s.mu.Unlock()
			return nil
		}
		if s.cursor == "" {
			s.state = StateLoading
		} else {
			s.state = StateLoadingMore
		}
	}
	s.lastReset = reset
	s.errMsg = ""
	gen, cursor := s.gen, s.cursor
	query := connection.ListQuery{
		Filter:   Filter(s.search, s.tag),
		Sort:     []connection.Sort{{Field: "Created", Direction: connection.Desc}},
		PageSize: s.cfg.PageSize,
		Offset:   cursor,
	}
	s.mu.Unlock()

	policy := s.cfg.Retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		s.metrics.Retry("feed_load")
		s.logger.Warn("feed load failed, retrying", "retry", attempt+1, "delay", delay, "error", err)
	}
	page, attempts, err := retry.Do(ctx, policy,
		func(ctx context.Context, _ int) (*models.RecordPage[models.QuestionFields], error) {
			return store.List[models.QuestionFields](ctx, s.con, s.cfg.Tables.Questions, query)
		},
		retry.UntilSettled[*models.RecordPage[models.QuestionFields]])

	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen {
			s.metrics.FeedLoad("stale")
			return nil
		}
		s.state = StateError
		s.errMsg = LoadErrorMessage
		s.metrics.FeedLoad("error")
		s.logger.Error("feed load failed", "attempts", attempts, "error", err)
		return err
	}

	fetched := make([]models.Question, len(page.Records))
	for i, r := range page.Records {
		fetched[i] = models.QuestionFromRecord(r)
	}
	slices.SortStableFunc(fetched, func(a, b models.Question) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.metrics.FeedLoad("stale")
		return nil
	}
	if reset {
		s.items = fetched
	} else {
		for _, q := range fetched {
			if !slices.ContainsFunc(s.items, func(it models.Question) bool { return it.ID == q.ID }) {
				s.items = append(s.items, q)
			}
		}
	}
	s.cursor = page.Offset
	s.hasMore = page.Offset != ""
	s.state = StateReady
	s.mu.Unlock()
	s.metrics.FeedLoad("ok")

	s.hydrate(ctx, gen, fetched)
	return nil
}

// hydrate fills author profiles in parallel and the voter's flags one by
// one. A failed lookup degrades only its own item.
func (s *Synchronizer) hydrate(ctx context.Context, gen uint64, page []models.Question) {
	if len(page) == 0 {
		return
	}

	var authorIDs []string
	for _, q := range page {
		if q.AuthorID != "" && !slices.Contains(authorIDs, q.AuthorID) {
			authorIDs = append(authorIDs, q.AuthorID)
		}
	}
	profiles := make([]models.AuthorProfile, len(authorIDs))
	var g errgroup.Group
	g.SetLimit(hydrateFanOut)
	for i, id := range authorIDs {
		i, id := i, id
		g.Go(func() error {
			profiles[i] = s.authorProfile(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	byAuthor := make(map[string]models.AuthorProfile, len(authorIDs))
	for i, id := range authorIDs {
		byAuthor[id] = profiles[i]
	}

	voted := make(map[string]bool, len(page))
	if voterID, err := s.identify(ctx); err == nil {
		for _, q := range page {
			ok, err := s.voter.HasVoted(ctx, voterID, models.TargetQuestion, q.ID)
			if err != nil {
				s.logger.Warn("vote flag lookup failed", "question", q.ID, "error", err)
				continue
			}
			voted[q.ID] = ok
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	for i := range s.items {
		q := &s.items[i]
		if !slices.ContainsFunc(page, func(p models.Question) bool { return p.ID == q.ID }) {
			continue
		}
		if p, ok := byAuthor[q.AuthorID]; ok {
			q.Author = p
		}
		if voted[q.ID] {
			q.HasVoted = true
		}
	}
}

func (s *Synchronizer) authorProfile(ctx context.Context, userID string) models.AuthorProfile {
	rec, err := store.Get[models.UserFields](ctx, s.con, s.cfg.Tables.Users, userID)
	if err != nil {
		s.logger.Warn("author lookup failed", "author", userID, "error", err)
		return models.DefaultAuthorProfile
	}
	name := rec.Fields.Name
	if name == "" {
		name = models.DefaultAuthorProfile.Name
	}
	return models.AuthorProfile{
		Name:    name,
		Picture: rec.Fields.Picture,
		Level:   points.Level(rec.Fields.Points, s.cfg.XPPerLevel).Level,
	}
}
