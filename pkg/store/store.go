// Package store provides typed access to the record store on top of a
// [connection.Connection].
package store

import (
	"context"
	"fmt"

	"github.com/devqa/devqa.go/pkg/connection"
	"github.com/devqa/devqa.go/pkg/constants"
	"github.com/devqa/devqa.go/pkg/models"
)

// List fetches one page of table.
func List[T any](ctx context.Context, con connection.Connection, table string, q connection.ListQuery) (*models.RecordPage[T], error) {
	data, err := con.List(ctx, table, q)
	if err != nil {
		return nil, err
	}
	var page models.RecordPage[T]
	if err := con.GetUnmarshaler().Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", constants.ErrDecoding, table, err)
	}
	return &page, nil
}

// ListAll follows the offset cursor until the store reports no more pages.
func ListAll[T any](ctx context.Context, con connection.Connection, table string, q connection.ListQuery) ([]models.Record[T], error) {
	var all []models.Record[T]
	for {
		page, err := List[T](ctx, con, table, q)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Records...)
		if page.Offset == "" {
			return all, nil
		}
		q.Offset = page.Offset
	}
}

// First returns the first record matching q, or nil when nothing matches.
func First[T any](ctx context.Context, con connection.Connection, table string, q connection.ListQuery) (*models.Record[T], error) {
	q.PageSize = 1
	q.Offset = ""
	page, err := List[T](ctx, con, table, q)
	if err != nil {
		return nil, err
	}
	if len(page.Records) == 0 {
		return nil, nil
	}
	return &page.Records[0], nil
}

func Get[T any](ctx context.Context, con connection.Connection, table, id string) (*models.Record[T], error) {
	data, err := con.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}
	return decodeRecord[T](con, table, data)
}

func Create[T any](ctx context.Context, con connection.Connection, table string, fields any) (*models.Record[T], error) {
	data, err := con.Create(ctx, table, fields)
	if err != nil {
		return nil, err
	}
	return decodeRecord[T](con, table, data)
}

// Update patches only the given fields and returns the full record.
func Update[T any](ctx context.Context, con connection.Connection, table, id string, fields models.Fields) (*models.Record[T], error) {
	data, err := con.Update(ctx, table, id, fields)
	if err != nil {
		return nil, err
	}
	return decodeRecord[T](con, table, data)
}

func decodeRecord[T any](con connection.Connection, table string, data []byte) (*models.Record[T], error) {
	var rec models.Record[T]
	if err := con.GetUnmarshaler().Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s record: %w", constants.ErrDecoding, table, err)
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("%w: %s record without id", constants.ErrDecoding, table)
	}
	return &rec, nil
}
