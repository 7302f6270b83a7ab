package account

import (
	"time"

	"github.com/shopspring/decimal"
)

type Profile struct {
	ID        string          `gorm:"primaryKey;column:id"`
	Email     string          `gorm:"column:email;uniqueIndex:idx_profiles_email,where:email <> ''"`
	FullName  string          `gorm:"column:full_name"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric(14,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}
