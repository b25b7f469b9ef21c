// internal/model/recipient.go
package model

// Recipient is a portal user an audience can resolve to.
type Recipient struct {
	ID       int    `db:"id" json:"id"`
	Email    string `db:"email" json:"email"`
	FullName string `db:"full_name" json:"full_name"`
	Language string `db:"language" json:"language"`
	IsActive bool   `db:"is_active" json:"is_active"`
}
