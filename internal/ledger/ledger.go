package ledger

import (
	"context"
	"errors"
	"time"

	paymentgatewaytypes "github.com/frahmantamala/smm-storefront/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/smm-storefront/internal/core/datamodel/transaction"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound         = errors.New("transaction not found")
	ErrDuplicateOrderID = errors.New("order id already recorded")
)

// TransitionResult tells a caller whether a conditional status change
// actually happened or the record had already left pending.
type TransitionResult int

const (
	TransitionSkipped TransitionResult = iota
	TransitionApplied
)

func (r TransitionResult) String() string {
	if r == TransitionApplied {
		return "applied"
	}
	return "skipped"
}

// Settlement is the outcome of completing a record and crediting its owner.
type Settlement struct {
	Record *transaction.Record
	Result TransitionResult
	// ProfileID is empty when the record had no user and no email, in which
	// case the record completes uncredited.
	ProfileID string
}

type RepositoryAPI interface {
	RecordAttempt(ctx context.Context, req *paymentgatewaytypes.PaymentRequest, provider paymentgatewaytypes.ProviderID) (*transaction.Record, error)
	GetByOrderID(ctx context.Context, orderID string) (*transaction.Record, error)
	AttachGatewayReference(ctx context.Context, orderID, transactionID string, chargedAmount decimal.Decimal, chargedCurrency string) error
	MarkCompleted(ctx context.Context, orderID, transactionID string) (TransitionResult, error)
	MarkFailed(ctx context.Context, orderID, transactionID, reason string) (TransitionResult, error)
	CompleteAndCredit(ctx context.Context, orderID, transactionID string) (*Settlement, error)
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*transaction.Record, error)
}

type StatusStats struct {
	Status   string          `db:"status" json:"status"`
	Count    int64           `db:"count" json:"count"`
	Total    decimal.Decimal `db:"total" json:"total"`
	Credited int64           `db:"credited" json:"credited"`
}

type ReportAPI interface {
	Stats(ctx context.Context) ([]StatusStats, error)
}
