package account

import (
	"context"
	"errors"
	"time"

	accountDatamodel "github.com/frahmantamala/smm-storefront/internal/core/datamodel/account"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("account not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type Account struct {
	ID        string
	Email     string
	FullName  string
	Balance   decimal.Decimal
	UpdatedAt time.Time
}

func (a *Account) ToResponse() AccountResponse {
	return AccountResponse{
		ID:       a.ID,
		Email:    a.Email,
		FullName: a.FullName,
		Balance:  a.Balance.StringFixed(2),
	}
}

func FromDataModel(p *accountDatamodel.Profile) *Account {
	return &Account{
		ID:        p.ID,
		Email:     p.Email,
		FullName:  p.FullName,
		Balance:   p.Balance,
		UpdatedAt: p.UpdatedAt,
	}
}

type RepositoryAPI interface {
	GetByID(ctx context.Context, id string) (*accountDatamodel.Profile, error)
	Credit(ctx context.Context, id string, amount decimal.Decimal) error
	Debit(ctx context.Context, id string, amount decimal.Decimal) error
}
