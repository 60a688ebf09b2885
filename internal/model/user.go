package model

import "time"

// User owns projects and usage logs. Authentication is handled upstream;
// the backend only needs the owner reference for scoping and cascades.
type User struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Email     *string   `json:"email,omitempty" gorm:"size:255;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
}
