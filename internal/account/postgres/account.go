package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/smm-storefront/internal/account"
	accountDatamodel "github.com/frahmantamala/smm-storefront/internal/core/datamodel/account"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) account.RepositoryAPI {
	return &AccountRepository{
		db: db,
	}
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*accountDatamodel.Profile, error) {
	var p accountDatamodel.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, account.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *AccountRepository) Credit(ctx context.Context, id string, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureProfile(tx, &accountDatamodel.Profile{ID: id}); err != nil {
			return err
		}
		return CreditTx(tx, id, amount)
	})
}

func (r *AccountRepository) Debit(ctx context.Context, id string, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&accountDatamodel.Profile{}).
		Where("id = ? AND balance >= ?", id, amount).
		UpdateColumns(map[string]interface{}{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&accountDatamodel.Profile{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return account.ErrNotFound
	}
	return account.ErrInsufficientBalance
}

// CreditTx adds amount to an existing profile using the caller's transaction.
func CreditTx(tx *gorm.DB, profileID string, amount decimal.Decimal) error {
	res := tx.Model(&accountDatamodel.Profile{}).
		Where("id = ?", profileID).
		UpdateColumns(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", account.ErrNotFound, profileID)
	}
	return nil
}

// ResolveProfileTx finds or creates the profile a payment should be credited
// to. A known user id wins; guests are matched by email and get a fresh
// profile on their first purchase. It returns "" when there is nobody to
// credit.
func ResolveProfileTx(tx *gorm.DB, userID *string, email, fullName string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if userID != nil && *userID != "" {
		profile := &accountDatamodel.Profile{ID: *userID, FullName: fullName}
		if email != "" {
			owner, err := profileIDByEmail(tx, email)
			if err != nil {
				return "", err
			}
			if owner == "" {
				profile.Email = email
			}
		}
		if err := ensureProfile(tx, profile); err != nil {
			return "", err
		}
		return *userID, nil
	}

	if email == "" {
		return "", nil
	}

	id, err := profileIDByEmail(tx, email)
	if err != nil || id != "" {
		return id, err
	}

	profile := &accountDatamodel.Profile{ID: uuid.NewString(), Email: email, FullName: fullName}
	if err := ensureProfile(tx, profile); err != nil {
		return "", err
	}
	return profile.ID, nil
}

func ensureProfile(tx *gorm.DB, profile *accountDatamodel.Profile) error {
	profile.Balance = decimal.Zero
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(profile).Error
}

func profileIDByEmail(tx *gorm.DB, email string) (string, error) {
	var p accountDatamodel.Profile
	err := tx.Select("id").Where("email = ?", email).Take(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return p.ID, nil
}
