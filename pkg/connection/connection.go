// Package connection is the HTTP binding to the record store.
//
// It knows four calls: list (filter formula, sort, page size, cursor), get,
// create and update, all against a named table. It carries no business
// logic; typed access lives in [github.com/devqa/devqa.go/pkg/store].
package connection

import (
	"context"
	"net/url"
	"strconv"

	"github.com/devqa/devqa.go/internal/codec"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type Sort struct {
	Field     string
	Direction Direction
}

// ListQuery is one list request. Offset is the opaque cursor returned by
// the previous page and is passed back verbatim.
type ListQuery struct {
	Filter   string
	Sort     []Sort
	PageSize int
	Offset   string
	Fields   []string
}

// Values encodes the query the way the store expects it.
func (q ListQuery) Values() url.Values {
	v := url.Values{}
	if q.Filter != "" {
		v.Set("filterByFormula", q.Filter)
	}
	for i, s := range q.Sort {
		prefix := "sort[" + strconv.Itoa(i) + "]"
		v.Set(prefix+"[field]", s.Field)
		dir := s.Direction
		if dir == "" {
			dir = Asc
		}
		v.Set(prefix+"[direction]", string(dir))
	}
	if q.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.Offset != "" {
		v.Set("offset", q.Offset)
	}
	for _, f := range q.Fields {
		v.Add("fields[]", f)
	}
	return v
}

// Connection is implemented by [HTTPConnection]. Each call returns the raw
// response body for the caller to decode with [Connection.GetUnmarshaler].
type Connection interface {
	List(ctx context.Context, table string, q ListQuery) ([]byte, error)
	Get(ctx context.Context, table, id string) ([]byte, error)
	Create(ctx context.Context, table string, fields any) ([]byte, error)
	Update(ctx context.Context, table, id string, fields any) ([]byte, error)
	GetUnmarshaler() codec.Unmarshaler
}
