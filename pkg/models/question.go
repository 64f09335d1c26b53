package models

import "time"

// QuestionFields is the stored shape of a question.
type QuestionFields struct {
	Title    string   `json:"Title"`
	Body     string   `json:"Body"`
	Tags     []string `json:"Tags,omitempty"`
	AuthorID string   `json:"AuthorID"`
	Upvotes  int      `json:"Upvotes"`
}

// AuthorProfile is denormalized author data hydrated per question.
type AuthorProfile struct {
	Name    string `json:"name" cbor:"name"`
	Picture string `json:"picture" cbor:"picture"`
	Level   int    `json:"level" cbor:"level"`
}

// DefaultAuthorProfile is shown when the author lookup fails.
var DefaultAuthorProfile = AuthorProfile{Name: "Anonymous", Level: 1}

type Question struct {
	ID        string        `json:"id" cbor:"id"`
	Title     string        `json:"title" cbor:"title"`
	Body      string        `json:"body" cbor:"body"`
	Tags      []string      `json:"tags" cbor:"tags"`
	AuthorID  string        `json:"authorId" cbor:"authorId"`
	CreatedAt time.Time     `json:"createdAt" cbor:"createdAt"`
	Upvotes   int           `json:"upvotes" cbor:"upvotes"`
	Author    AuthorProfile `json:"author" cbor:"author"`
	HasVoted  bool          `json:"hasVoted" cbor:"hasVoted"`
}

func QuestionFromRecord(r Record[QuestionFields]) Question {
	return Question{
		ID:        r.ID,
		Title:     r.Fields.Title,
		Body:      r.Fields.Body,
		Tags:      r.Fields.Tags,
		AuthorID:  r.Fields.AuthorID,
		CreatedAt: r.CreatedTime,
		Upvotes:   r.Fields.Upvotes,
		Author:    DefaultAuthorProfile,
	}
}

// QuestionDraft is what a user submits.
type QuestionDraft struct {
	Title string   `json:"title" cbor:"title" validate:"required,min=1,max=200"`
	Body  string   `json:"body" cbor:"body" validate:"required"`
	Tags  []string `json:"tags" cbor:"tags" validate:"max=5,unique,dive,required,max=32"`
}
