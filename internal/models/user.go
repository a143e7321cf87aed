package models

import "time"

// User is the local profile of an identity issued by the external identity provider.
// Role is copied from the token on first sight and never changes afterwards.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255" json:"email"`
	Role      string    `gorm:"size:32;not null;index" json:"role"`
	AvatarURL string    `gorm:"size:512" json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
