package models

import "time"

// VoteFields is the stored shape of a vote. Votes are append-only facts.
type VoteFields struct {
	VoterID    string     `json:"VoterID"`
	TargetType TargetType `json:"TargetType"`
	TargetID   string     `json:"TargetID"`
}

type Vote struct {
	ID         string
	VoterID    string
	TargetType TargetType
	TargetID   string
	CreatedAt  time.Time
}

func VoteFromRecord(r Record[VoteFields]) Vote {
	return Vote{
		ID:         r.ID,
		VoterID:    r.Fields.VoterID,
		TargetType: r.Fields.TargetType,
		TargetID:   r.Fields.TargetID,
		CreatedAt:  r.CreatedTime,
	}
}
