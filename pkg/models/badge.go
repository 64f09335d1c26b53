package models

import "slices"

type BadgeFields struct {
	Name        string   `json:"Name"`
	Description string   `json:"Description,omitempty"`
	Icon        string   `json:"Icon,omitempty"`
	EarnedBy    []string `json:"EarnedBy,omitempty"`
}

type Badge struct {
	ID          string   `json:"id" cbor:"id"`
	Name        string   `json:"name" cbor:"name"`
	Description string   `json:"description" cbor:"description"`
	Icon        string   `json:"icon" cbor:"icon"`
	EarnedBy    []string `json:"-" cbor:"-"`
}

func BadgeFromRecord(r Record[BadgeFields]) Badge {
	return Badge{
		ID:          r.ID,
		Name:        r.Fields.Name,
		Description: r.Fields.Description,
		Icon:        r.Fields.Icon,
		EarnedBy:    r.Fields.EarnedBy,
	}
}

// HeldBy reports whether userID is in the EarnedBy set.
func (b Badge) HeldBy(userID string) bool {
	return slices.Contains(b.EarnedBy, userID)
}
