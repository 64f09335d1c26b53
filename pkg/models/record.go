package models

import (
	"fmt"
	"time"
)

// Record is the store's envelope around a row. Fields is decoded into T.
type Record[T any] struct {
	ID          string    `json:"id"`
	CreatedTime time.Time `json:"createdTime"`
	Fields      T         `json:"fields"`
}

// RecordPage is one page of a list call. An empty Offset means the end
// of the results.
type RecordPage[T any] struct {
	Records []Record[T] `json:"records"`
	Offset  string      `json:"offset,omitempty"`
}

// Fields is an untyped, partial set of record fields. It is what update
// calls send so that only the named fields are touched.
type Fields map[string]any

// TargetType is what a vote points at.
type TargetType string

const (
	TargetQuestion TargetType = "Question"
	TargetAnswer   TargetType = "Answer"
)

func (t TargetType) Valid() bool {
	return t == TargetQuestion || t == TargetAnswer
}

func (t TargetType) String() string {
	return string(t)
}

// ParseTargetType accepts the stored spelling and lower-case aliases.
func ParseTargetType(s string) (TargetType, error) {
	switch s {
	case "Question", "question":
		return TargetQuestion, nil
	case "Answer", "answer":
		return TargetAnswer, nil
	}
	return "", fmt.Errorf("unknown target type %q", s)
}
