package models

import (
	"time"

	"github.com/google/uuid"
)

// AffiliateStatus is the partnership state of an affiliate
type AffiliateStatus string

const (
	AffiliateStatusActive   AffiliateStatus = "Active"
	AffiliateStatusInactive AffiliateStatus = "Inactive"
)

// Affiliate is a marketing partner that refers players
type Affiliate struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Code      string          `db:"code" json:"code"`
	Status    AffiliateStatus `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}
