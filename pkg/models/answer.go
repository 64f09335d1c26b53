package models

import "time"

type AnswerFields struct {
	QuestionID string `json:"QuestionID"`
	AuthorID   string `json:"AuthorID"`
	Text       string `json:"Text"`
	Upvotes    int    `json:"Upvotes"`
}

type Answer struct {
	ID         string    `json:"id" cbor:"id"`
	QuestionID string    `json:"questionId" cbor:"questionId"`
	AuthorID   string    `json:"authorId" cbor:"authorId"`
	Text       string    `json:"text" cbor:"text"`
	CreatedAt  time.Time `json:"createdAt" cbor:"createdAt"`
	Upvotes    int       `json:"upvotes" cbor:"upvotes"`
	HasVoted   bool      `json:"hasVoted" cbor:"hasVoted"`
}

func AnswerFromRecord(r Record[AnswerFields]) Answer {
	return Answer{
		ID:         r.ID,
		QuestionID: r.Fields.QuestionID,
		AuthorID:   r.Fields.AuthorID,
		Text:       r.Fields.Text,
		CreatedAt:  r.CreatedTime,
		Upvotes:    r.Fields.Upvotes,
	}
}

type AnswerDraft struct {
	QuestionID string `json:"questionId" cbor:"questionId" validate:"required"`
	Text       string `json:"text" cbor:"text" validate:"required,max=10000"`
}
