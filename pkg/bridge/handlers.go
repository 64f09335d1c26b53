package bridge

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/devqa/devqa.go/pkg/auth"
	"github.com/devqa/devqa.go/pkg/constants"
	"github.com/devqa/devqa.go/pkg/feed"
	"github.com/devqa/devqa.go/pkg/models"
)

type sessionBody struct {
	State   string       `json:"state" cbor:"state"`
	Claims  *auth.Claims `json:"claims,omitempty" cbor:"claims,omitempty"`
	Message string       `json:"message,omitempty" cbor:"message,omitempty"`
}

type signInRequest struct {
	IDToken string `json:"idToken" cbor:"idToken"`
}

type searchRequest struct {
	Text string `json:"text" cbor:"text"`
}

type tagRequest struct {
	Tag string `json:"tag" cbor:"tag"`
}

type answerRequest struct {
	Text string `json:"text" cbor:"text"`
}

type upvoteResponse struct {
	Outcome string         `json:"outcome" cbor:"outcome"`
	Feed    *feed.Snapshot `json:"feed,omitempty" cbor:"feed,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, sessionOf(s.sess.Auth.Status()))
}

func sessionOf(st auth.Status) sessionBody {
	b := sessionBody{State: st.State.String(), Message: st.Message}
	if st.State == auth.StateSignedIn {
		c := st.Claims
		b.Claims = &c
	}
	return b
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.sess.Auth.SigningIn()
	claims, err := auth.ClaimsFromIDToken(req.IDToken, s.secret)
	if err != nil {
		s.sess.Auth.Fail(err.Error())
		s.fail(w, r, err)
		return
	}
	s.sess.Auth.SignIn(claims)
	s.respond(w, r, http.StatusOK, sessionOf(s.sess.Auth.Status()))
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.sess.Auth.SignOut()
	s.respond(w, r, http.StatusNoContent, nil)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.sess.Profile(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, p)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, s.sess.Feed.Snapshot())
}

// feedResult answers with the snapshot after a load. A failed load is
// reported through the snapshot's state, not the status code.
func (s *Server) feedResult(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.logger.Warn("feed load failed", "path", r.URL.Path, "error", err)
	}
	s.respond(w, r, http.StatusOK, s.sess.Feed.Snapshot())
}

func (s *Server) handleFeedLoad(w http.ResponseWriter, r *http.Request) {
	reset := true
	if v := r.URL.Query().Get("reset"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: reset=%q", constants.ErrInvalidInput, v))
			return
		}
		reset = b
	}
	s.feedResult(w, r, s.sess.Feed.Load(r.Context(), reset))
}

func (s *Server) handleFeedMore(w http.ResponseWriter, r *http.Request) {
	s.feedResult(w, r, s.sess.Feed.LoadMore(r.Context()))
}

func (s *Server) handleFeedSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.sess.Feed.SetSearchText(req.Text)
	s.respond(w, r, http.StatusAccepted, s.sess.Feed.Snapshot())
}

func (s *Server) handleFeedTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.feedResult(w, r, s.sess.Feed.SelectTag(r.Context(), req.Tag))
}

func (s *Server) handlePostQuestion(w http.ResponseWriter, r *http.Request) {
	var d models.QuestionDraft
	if err := s.decode(w, r, &d); err != nil {
		s.fail(w, r, err)
		return
	}
	q, err := s.sess.PostQuestion(r.Context(), d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, q)
}

func (s *Server) handleUpvoteQuestion(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.sess.Feed.Upvote(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	snap := s.sess.Feed.Snapshot()
	s.respond(w, r, http.StatusOK, upvoteResponse{Outcome: outcome.String(), Feed: &snap})
}

func (s *Server) handleAnswers(w http.ResponseWriter, r *http.Request) {
	// Anonymous readers see answers without vote flags.
	voterID, err := s.sess.UserID(r.Context())
	if err != nil && !errors.Is(err, constants.ErrIdentityUnavailable) {
		s.fail(w, r, err)
		return
	}
	answers, err := s.sess.QA.Answers(r.Context(), mux.Vars(r)["id"], voterID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, answers)
}

func (s *Server) handlePostAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	a, err := s.sess.PostAnswer(r.Context(), models.AnswerDraft{QuestionID: mux.Vars(r)["id"], Text: req.Text})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, a)
}

func (s *Server) handleUpvoteAnswer(w http.ResponseWriter, r *http.Request) {
	c, err := s.sess.Principal()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	outcome, err := s.sess.QA.UpvoteAnswer(r.Context(), c, mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, upvoteResponse{Outcome: outcome.String()})
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query().Get("points")
	total, err := strconv.Atoi(v)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: points=%q", constants.ErrInvalidInput, v))
		return
	}
	s.respond(w, r, http.StatusOK, s.sess.Level(total))
}

func (s *Server) handleNotification(w http.ResponseWriter, r *http.Request) {
	n, ok := s.sess.Notifications.Current()
	if !ok {
		s.respond(w, r, http.StatusNoContent, nil)
		return
	}
	s.respond(w, r, http.StatusOK, n)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s.sess.Notifications.Dismiss()
	s.respond(w, r, http.StatusNoContent, nil)
}
