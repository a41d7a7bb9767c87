package models

import "github.com/google/uuid"

// Session is the authenticated caller. It is resolved once per request from
// a fresh account read and handed explicitly to every ledger operation.
type Session struct {
	AccountID   uuid.UUID `json:"account_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	Coins       int64     `json:"coins"`
}

func NewSession(a *Account) *Session {
	return &Session{
		AccountID:   a.ID,
		Email:       a.Email,
		DisplayName: a.FullName,
		Role:        a.Role,
		Coins:       a.Coins,
	}
}

// HasRole reports whether the session holds any of the given roles.
func (s *Session) HasRole(roles ...Role) bool {
	if s == nil {
		return false
	}
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}
