package domain

import "time"

// Session represents one logged-in device/browser grant. The session id is
// the refresh-token binding key: a refresh token is only usable while the
// session it references is active and unexpired.
type Session struct {
	ID           string    `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       string    `gorm:"type:uuid;index;not null" json:"user_id"`
	DeviceName   string    `gorm:"type:text;not null" json:"device_name"`
	DeviceType   string    `gorm:"type:text;not null" json:"device_type"`
	IPAddress    *string   `json:"ip_address"`
	UserAgent    *string   `gorm:"type:text" json:"-"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	LastActiveAt time.Time `gorm:"not null" json:"last_active_at"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Session) TableName() string { return "user_session" }

// Valid reports whether the session may authorize a token refresh.
func (s *Session) Valid(now time.Time) bool {
	return s.Active && s.ExpiresAt.After(now)
}
