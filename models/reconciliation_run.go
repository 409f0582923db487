package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationRun records one pass of the cache audit over every user
type ReconciliationRun struct {
	ID           int64           `db:"id" json:"id"`
	RunAt        time.Time       `db:"run_at" json:"runAt"`
	UsersChecked int             `db:"users_checked" json:"usersChecked"`
	UsersDrifted int             `db:"users_drifted" json:"usersDrifted"`
	Applied      bool            `db:"applied" json:"applied"`
	BalanceDrift decimal.Decimal `db:"balance_drift" json:"balanceDrift"` // sum of |ledger - cached| balance
	Drifted      []*DriftReport  `db:"drifted" json:"drifted"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}
