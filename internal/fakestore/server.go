// Package fakestore is an in-memory stand-in for the hosted record store.
//
// It serves the same REST surface the engine talks to (list with formula
// filter, sort and offset pagination, get, create and patch) and evaluates
// filterByFormula with [formula.Parse], so queries built by the engine are
// checked end to end.
//
// Two hooks make the store's weaker guarantees reproducible in tests:
// [Server.SetIndexLag] hides freshly created records from the next few list
// calls, the way a lagging search index would, and [Server.FailNext] makes
// the next requests of a table and operation fail with a chosen status.
// [Server.SetGlobalFailures] adds random failures to every request.
package fakestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/devqa/devqa.go/internal/codec"
	"github.com/devqa/devqa.go/pkg/formula"
)

// CreatedField is filled in on every created record with its creation time.
const CreatedField = "Created"

// createdLayout has fixed width so that the string form sorts in time order.
const createdLayout = "2006-01-02T15:04:05.000000000Z"

// Op names a store operation for failure injection and request counting.
type Op string

const (
	OpList   Op = "list"
	OpGet    Op = "get"
	OpCreate Op = "create"
	OpUpdate Op = "update"
)

type record struct {
	id      string
	created time.Time
	seq     int
	fields  map[string]any
	// hiddenFor is the number of list calls this record is still missing from.
	hiddenFor int
}

type failure struct {
	table     string
	op        Op
	remaining int
	status    int
}

type cursor struct {
	table string
	pos   int
	ids   []string
}

// Server is a fake record store.
type Server struct {
	// APIKey, when set, must be presented as a bearer token.
	APIKey string
	// Now is the clock used for creation times.
	Now func() time.Time

	addr     string
	listener net.Listener
	http     *http.Server
	router   *mux.Router
	codec    codec.Codec

	mu       sync.Mutex
	tables   map[string][]*record
	seq      int
	last     time.Time
	lag      map[string]int
	failures []*failure
	// globalFailures are random failures applied to every request.
	globalFailures []FailureConfig
	cursors        map[string]*cursor
	requests       map[string]int
}

// NewServer creates a fake store. Use "127.0.0.1:0" to bind to a random
// available port.
func NewServer(addr string) *Server {
	s := &Server{
		Now:      time.Now,
		addr:     addr,
		codec:    codec.JSON(),
		tables:   make(map[string][]*record),
		lag:      make(map[string]int),
		cursors:  make(map[string]*cursor),
		requests: make(map[string]int),
	}
	r := mux.NewRouter()
	r.Use(s.authenticate, s.injectFailures)
	r.HandleFunc("/{table}", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/{table}", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/{table}/{id}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/{table}/{id}", s.handleUpdate).Methods(http.MethodPatch)
	s.router = r
	return s
}

// Handler exposes the store for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts serving on the configured address.
func (s *Server) Start() error {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.http = &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("fakestore: %v\n", err)
		}
	}()
	return nil
}

func (s *Server) Stop() error {
	if s.http == nil {
		return nil
	}
	return s.http.Close()
}

// Address returns the actual address the server is listening on.
func (s *Server) Address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL is the base URL to configure a connection with.
func (s *Server) URL() string {
	return "http://" + s.Address()
}

// SetIndexLag makes records created in table from now on invisible to the
// next n list calls on that table. Get still finds them immediately.
func (s *Server) SetIndexLag(table string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lag[table] = n
}

// FailNext makes the next n requests of op on table answer with status.
func (s *Server) FailNext(table string, op Op, n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, &failure{table: table, op: op, remaining: n, status: status})
}

// Requests returns how many requests of op reached table.
func (s *Server) Requests(table string, op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[table+"/"+string(op)]
}

// Insert seeds a record directly, bypassing lag and failure injection.
func (s *Server) Insert(table string, fields map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(table, normalizeFields(fields), 0).id
}

// Fields returns a copy of the stored fields of a record, or nil.
func (s *Server) Fields(table, id string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.findLocked(table, id)
	if rec == nil {
		return nil
	}
	return copyFields(rec.fields)
}

// Count returns the number of records in table matching the formula.
func (s *Server) Count(table, filter string) (int, error) {
	prog, err := formula.Parse(filter)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.tables[table] {
		ok, err := prog.Match(rec.id, rec.fields)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (s *Server) insertLocked(table string, fields map[string]any, hidden int) *record {
	s.seq++
	created := s.Now().UTC()
	if !created.After(s.last) {
		created = s.last.Add(time.Microsecond)
	}
	s.last = created
	if fields == nil {
		fields = make(map[string]any)
	}
	fields[CreatedField] = created.Format(createdLayout)
	rec := &record{
		id:        "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		created:   created,
		seq:       s.seq,
		fields:    fields,
		hiddenFor: hidden,
	}
	s.tables[table] = append(s.tables[table], rec)
	return rec
}

func (s *Server) findLocked(table, id string) *record {
	for _, rec := range s.tables[table] {
		if rec.id == id {
			return rec
		}
	}
	return nil
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.APIKey != "" && r.Header.Get("Authorization") != "Bearer "+s.APIKey {
			s.writeError(w, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// begin counts the request and reports an injected failure status, or 0.
func (s *Server) begin(table string, op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[table+"/"+string(op)]++
	for i, f := range s.failures {
		if f.table != table || f.op != op {
			continue
		}
		f.remaining--
		if f.remaining <= 0 {
			s.failures = append(s.failures[:i], s.failures[i+1:]...)
		}
		return f.status
	}
	return 0
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	if status := s.begin(table, OpList); status != 0 {
		s.writeError(w, status, "INJECTED_FAILURE", "")
		return
	}
	q := r.URL.Query()

	pageSize := 100
	if v := q.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			s.writeError(w, http.StatusUnprocessableEntity, "INVALID_REQUEST_UNKNOWN", "pageSize must be between 1 and 100")
			return
		}
		pageSize = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var cur *cursor
	if token := q.Get("offset"); token != "" {
		cur = s.cursors[token]
		if cur == nil || cur.table != table {
			s.writeError(w, http.StatusUnprocessableEntity, "LIST_RECORDS_ITERATOR_NOT_AVAILABLE", "")
			return
		}
		delete(s.cursors, token)
	} else {
		ids, err := s.selectLocked(table, q)
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, "INVALID_FILTER_BY_FORMULA", err.Error())
			return
		}
		cur = &cursor{table: table, ids: ids}
	}

	end := min(cur.pos+pageSize, len(cur.ids))
	page := make([]map[string]any, 0, end-cur.pos)
	for _, id := range cur.ids[cur.pos:end] {
		if rec := s.findLocked(table, id); rec != nil {
			page = append(page, s.render(rec))
		}
	}
	body := map[string]any{"records": page}
	if end < len(cur.ids) {
		token := "itr" + uuid.NewString()
		s.cursors[token] = &cursor{table: table, pos: end, ids: cur.ids}
		body["offset"] = token
	}
	s.write(w, http.StatusOK, body)
}

// selectLocked evaluates the filter and sort of a first-page list request
// and ages lagging records by one list call.
func (s *Server) selectLocked(table string, q map[string][]string) ([]string, error) {
	prog, err := formula.Parse(first(q["filterByFormula"]))
	if err != nil {
		return nil, err
	}
	var matched []*record
	for _, rec := range s.tables[table] {
		if rec.hiddenFor > 0 {
			rec.hiddenFor--
			continue
		}
		ok, err := prog.Match(rec.id, rec.fields)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, rec)
		}
	}

	sorts := parseSorts(q)
	sort.SliceStable(matched, func(i, j int) bool {
		for _, srt := range sorts {
			c := compareValues(matched[i].fields[srt.field], matched[j].fields[srt.field])
			if c == 0 {
				continue
			}
			if srt.desc {
				return c > 0
			}
			return c < 0
		}
		return matched[i].seq < matched[j].seq
	})

	ids := make([]string, len(matched))
	for i, rec := range matched {
		ids[i] = rec.id
	}
	return ids, nil
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if status := s.begin(vars["table"], OpGet); status != 0 {
		s.writeError(w, status, "INJECTED_FAILURE", "")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.findLocked(vars["table"], vars["id"])
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", "")
		return
	}
	s.write(w, http.StatusOK, s.render(rec))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	if status := s.begin(table, OpCreate); status != 0 {
		s.writeError(w, status, "INJECTED_FAILURE", "")
		return
	}
	fields, ok := s.readFields(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.insertLocked(table, fields, s.lag[table])
	s.write(w, http.StatusOK, s.render(rec))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if status := s.begin(vars["table"], OpUpdate); status != 0 {
		s.writeError(w, status, "INJECTED_FAILURE", "")
		return
	}
	fields, ok := s.readFields(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.findLocked(vars["table"], vars["id"])
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", "")
		return
	}
	for k, v := range fields {
		if k == CreatedField {
			continue
		}
		rec.fields[k] = v
	}
	s.write(w, http.StatusOK, s.render(rec))
}

func (s *Server) readFields(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST_BODY", err.Error())
		return nil, false
	}
	var body struct {
		Fields map[string]any `json:"fields"`
	}
	if err := s.codec.Unmarshal(data, &body); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "INVALID_REQUEST_BODY", err.Error())
		return nil, false
	}
	return body.Fields, true
}

func (s *Server) render(rec *record) map[string]any {
	return map[string]any{
		"id":          rec.id,
		"createdTime": rec.created.Format(createdLayout),
		"fields":      copyFields(rec.fields),
	}
}

func (s *Server) write(w http.ResponseWriter, status int, body any) {
	data, err := s.codec.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", codec.ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, typ, message string) {
	if message == "" {
		s.write(w, status, map[string]any{"error": typ})
		return
	}
	s.write(w, status, map[string]any{"error": map[string]any{"type": typ, "message": message}})
}
