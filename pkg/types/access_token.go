package types

import "time"

// TokenClaims is the authenticated identity attached to every request.
type TokenClaims struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
}

type AccessToken struct {
	ID        int64  `json:"id" db:"id"`
	UserID    string `json:"user_id" db:"user_id"`
	DeviceID  string `json:"device_id" db:"device_id"`
	Token     string `json:"token" db:"token"`
	Info      string `json:"info" db:"info"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
	ExpiresAt int64  `json:"expires_at" db:"expires_at"`
}

func (t AccessToken) Expired() bool {
	return t.ExpiresAt > 0 && t.ExpiresAt < time.Now().Unix()
}

func (t AccessToken) Claims() TokenClaims {
	return TokenClaims{
		UserID:   t.UserID,
		DeviceID: t.DeviceID,
	}
}
