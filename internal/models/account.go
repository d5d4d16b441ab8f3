package models

import (
	"strings"
	"time"
)

// Profile roles.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Coin transaction types.
const (
	CoinCredit = "credit"
	CoinDebit  = "debit"
)

// User is an account able to authenticate against the API.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	IsStaff      bool      `gorm:"not null;default:false" json:"is_staff"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Profile      *Profile  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"profile,omitempty"`
}

// Profile carries the role and coin balance of a user. Every user owns exactly one.
type Profile struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	UserID       uint              `gorm:"uniqueIndex;not null" json:"user_id"`
	Role         string            `gorm:"size:16;not null;default:student" json:"role"`
	CoinsBalance int               `gorm:"not null;default:0;check:coins_balance >= 0" json:"coins_balance"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Transactions []CoinTransaction `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// CoinTransaction records a single change of a profile balance.
type CoinTransaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProfileID   uint      `gorm:"index;not null" json:"profile_id"`
	Type        string    `gorm:"size:8;not null" json:"type"`
	Amount      int       `gorm:"not null;check:amount > 0" json:"amount"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Delta returns the signed balance change represented by the transaction.
func (t CoinTransaction) Delta() int {
	if t.Type == CoinDebit {
		return -t.Amount
	}
	return t.Amount
}

// IsStaffRole reports whether the role may manage themes.
func IsStaffRole(role string) bool {
	return role == RoleTeacher || role == RoleAdmin
}

// NormalizeRole lowercases a role name and reports whether it is a known role.
func NormalizeRole(role string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(role))
	switch normalized {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return normalized, true
	default:
		return normalized, false
	}
}
