package fakestore

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devqa/devqa.go/internal/codec"
)

type listBody struct {
	Records []struct {
		ID     string         `json:"id"`
		Fields map[string]any `json:"fields"`
	} `json:"records"`
	Offset string `json:"offset"`
}

func do(t *testing.T, h http.Handler, method, target, body string) (int, []byte) {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Authorization", "Bearer k")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes()
}

func list(t *testing.T, h http.Handler, table string, q url.Values) listBody {
	t.Helper()
	status, data := do(t, h, http.MethodGet, "/"+table+"?"+q.Encode(), "")
	require.Equal(t, http.StatusOK, status, string(data))
	var out listBody
	require.NoError(t, codec.JSON().Unmarshal(data, &out))
	return out
}

func newServer() *Server {
	s := NewServer("127.0.0.1:0")
	s.APIKey = "k"
	return s
}

func TestServer(t *testing.T) {
	s := newServer()
	require.NoError(t, s.Start())
	assert.NotEmpty(t, s.Address())

	req, err := http.NewRequest(http.MethodGet, s.URL()+"/Users", http.NoBody)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	require.NoError(t, s.Stop())
}

func TestFilterSortAndPaginate(t *testing.T) {
	s := newServer()
	for i := 1; i <= 5; i++ {
		s.Insert("Questions", map[string]any{"Title": "q", "Upvotes": i, "Tags": []string{"go"}})
	}
	s.Insert("Questions", map[string]any{"Title": "other", "Upvotes": 9, "Tags": []string{"rust"}})

	q := url.Values{}
	q.Set("filterByFormula", `FIND(",go,", "," & ARRAYJOIN({Tags}, ",") & ",")`)
	q.Set("sort[0][field]", "Upvotes")
	q.Set("sort[0][direction]", "desc")
	q.Set("pageSize", "2")

	var upvotes []float64
	for {
		page := list(t, s.Handler(), "Questions", q)
		for _, r := range page.Records {
			upvotes = append(upvotes, r.Fields["Upvotes"].(float64))
		}
		if page.Offset == "" {
			break
		}
		q.Set("offset", page.Offset)
	}
	assert.Equal(t, []float64{5, 4, 3, 2, 1}, upvotes)
}

func TestNewestFirstByCreated(t *testing.T) {
	s := newServer()
	a := s.Insert("Questions", map[string]any{"Title": "a"})
	b := s.Insert("Questions", map[string]any{"Title": "b"})

	q := url.Values{}
	q.Set("sort[0][field]", CreatedField)
	q.Set("sort[0][direction]", "desc")
	page := list(t, s.Handler(), "Questions", q)
	require.Len(t, page.Records, 2)
	assert.Equal(t, b, page.Records[0].ID)
	assert.Equal(t, a, page.Records[1].ID)
}

func TestCreateUpdateGet(t *testing.T) {
	s := newServer()
	status, data := do(t, s.Handler(), http.MethodPost, "/Users", `{"fields":{"Name":"Ada","Points":0}}`)
	require.Equal(t, http.StatusOK, status)
	var rec struct {
		ID     string         `json:"id"`
		Fields map[string]any `json:"fields"`
	}
	require.NoError(t, codec.JSON().Unmarshal(data, &rec))
	require.NotEmpty(t, rec.ID)
	assert.Contains(t, rec.Fields, CreatedField)

	status, _ = do(t, s.Handler(), http.MethodPatch, "/Users/"+rec.ID, `{"fields":{"Points":10}}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 10.0, s.Fields("Users", rec.ID)["Points"])
	assert.Equal(t, "Ada", s.Fields("Users", rec.ID)["Name"])

	status, _ = do(t, s.Handler(), http.MethodGet, "/Users/recMissing", "")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = do(t, s.Handler(), http.MethodPatch, "/Users/recMissing", `{"fields":{}}`)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestIndexLag(t *testing.T) {
	s := newServer()
	s.SetIndexLag("Questions", 2)
	status, _ := do(t, s.Handler(), http.MethodPost, "/Questions", `{"fields":{"AuthorID":"recA"}}`)
	require.Equal(t, http.StatusOK, status)

	q := url.Values{}
	q.Set("filterByFormula", `{AuthorID} = "recA"`)
	assert.Empty(t, list(t, s.Handler(), "Questions", q).Records)
	assert.Empty(t, list(t, s.Handler(), "Questions", q).Records)
	assert.Len(t, list(t, s.Handler(), "Questions", q).Records, 1)

	n, err := s.Count("Questions", `{AuthorID} = "recA"`)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFailNext(t *testing.T) {
	s := newServer()
	s.FailNext("Votes", OpCreate, 2, http.StatusServiceUnavailable)

	status, _ := do(t, s.Handler(), http.MethodPost, "/Votes", `{"fields":{}}`)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	status, _ = do(t, s.Handler(), http.MethodGet, "/Votes", "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = do(t, s.Handler(), http.MethodPost, "/Votes", `{"fields":{}}`)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	status, _ = do(t, s.Handler(), http.MethodPost, "/Votes", `{"fields":{}}`)
	assert.Equal(t, http.StatusOK, status)

	assert.Equal(t, 3, s.Requests("Votes", OpCreate))
	assert.Equal(t, 1, s.Requests("Votes", OpList))
}

func TestInvalidFormula(t *testing.T) {
	s := newServer()
	q := url.Values{}
	q.Set("filterByFormula", `AND({A} = `)
	status, data := do(t, s.Handler(), http.MethodGet, "/Questions?"+q.Encode(), "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, string(data), "INVALID_FILTER_BY_FORMULA")
}

func TestGlobalFailures(t *testing.T) {
	s := newServer()
	s.SetGlobalFailures([]FailureConfig{{Type: FailureStatus, Probability: 1, Status: http.StatusBadGateway}})
	status, data := do(t, s.Handler(), http.MethodGet, "/Questions", "")
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Contains(t, string(data), "INJECTED_FAILURE")

	s.SetGlobalFailures([]FailureConfig{{Type: FailureDelay, Probability: 1, MinDelay: 20 * time.Millisecond}})
	start := time.Now()
	status, _ = do(t, s.Handler(), http.MethodGet, "/Questions", "")
	assert.Equal(t, http.StatusOK, status)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	s.SetGlobalFailures([]FailureConfig{{Type: FailureStatus, Probability: 0, Status: http.StatusBadGateway}})
	status, _ = do(t, s.Handler(), http.MethodGet, "/Questions", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestDropConnection(t *testing.T) {
	s := newServer()
	s.SetGlobalFailures([]FailureConfig{{Type: FailureDropConnection, Probability: 1}})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/Questions", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer k")
	resp, err := http.DefaultClient.Do(req)
	if err == nil {
		resp.Body.Close()
	}
	assert.Error(t, err)
}
