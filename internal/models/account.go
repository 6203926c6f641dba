package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	RoleStudent = "student"
	RoleShop    = "shop"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
)

// Account is a user identity plus its current balance.
// For students and shops the balance is spendable credit.
// For staff and admins it is cash on hand: physical money collected
// from the world and not spendable inside the system.
type Account struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	Username     string
	PasswordHash string
	Role         string
	FullName     string
	ExternalID   string
	Balance      decimal.Decimal
}

func ValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleShop, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// Stats is the admin dashboard aggregate: headcounts per role,
// outstanding student credit and shop balances awaiting payout.
type Stats struct {
	TotalStudents  int64
	TotalShops     int64
	TotalStaff     int64
	StudentCredit  decimal.Decimal
	PendingPayouts decimal.Decimal
}
