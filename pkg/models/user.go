package models

import "time"

type UserFields struct {
	Name    string `json:"Name"`
	Email   string `json:"Email"`
	Picture string `json:"Picture,omitempty"`
	Points  int    `json:"Points"`
}

type User struct {
	ID        string    `json:"id" cbor:"id"`
	Name      string    `json:"name" cbor:"name"`
	Email     string    `json:"email" cbor:"email"`
	Picture   string    `json:"picture" cbor:"picture"`
	Points    int       `json:"points" cbor:"points"`
	CreatedAt time.Time `json:"createdAt" cbor:"createdAt"`
}

func UserFromRecord(r Record[UserFields]) User {
	return User{
		ID:        r.ID,
		Name:      r.Fields.Name,
		Email:     r.Fields.Email,
		Picture:   r.Fields.Picture,
		Points:    r.Fields.Points,
		CreatedAt: r.CreatedTime,
	}
}
