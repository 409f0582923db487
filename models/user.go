package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RiskLevel is the risk tier assigned to a player
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "Low"
	RiskLevelMedium RiskLevel = "Medium"
	RiskLevelHigh   RiskLevel = "High"
	RiskLevelVIP    RiskLevel = "VIP"
)

// RiskLevels lists every tier in display order
var RiskLevels = []RiskLevel{RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelVIP}

// Valid reports whether r is a known risk tier
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelVIP:
		return true
	}
	return false
}

// UserStatus is the account state of a player
type UserStatus string

const (
	UserStatusActive       UserStatus = "Active"
	UserStatusBlocked      UserStatus = "Blocked"
	UserStatusSelfExcluded UserStatus = "Self-Excluded"
)

// Valid reports whether s is a known account state
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusBlocked, UserStatusSelfExcluded:
		return true
	}
	return false
}

// User represents a player account. Balance, TotalDeposited, TotalWithdrawn
// and LastActive are cached projections of the ledger, updated on every append.
type User struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	Username       string          `db:"username" json:"username"`
	Email          string          `db:"email" json:"email"`
	JoinDate       time.Time       `db:"join_date" json:"joinDate"`
	Balance        decimal.Decimal `db:"balance" json:"balance"`
	TotalDeposited decimal.Decimal `db:"total_deposited" json:"totalDeposited"`
	TotalWithdrawn decimal.Decimal `db:"total_withdrawn" json:"totalWithdrawn"`
	RiskLevel      RiskLevel       `db:"risk_level" json:"riskLevel"`
	AffiliateID    *uuid.UUID      `db:"affiliate_id" json:"affiliateId,omitempty"`
	Status         UserStatus      `db:"status" json:"status"`
	LastActive     time.Time       `db:"last_active" json:"lastActive"`
}

// DisplayBalance returns the balance clamped at zero. The stored balance may
// go negative; only presentation clamps it.
func (u *User) DisplayBalance() decimal.Decimal {
	if u.Balance.IsNegative() {
		return decimal.Zero
	}
	return u.Balance
}

// NewUser holds the caller-supplied fields of a signup
type NewUser struct {
	Username    string
	Email       string
	RiskLevel   RiskLevel
	AffiliateID *uuid.UUID
	Status      UserStatus
}
