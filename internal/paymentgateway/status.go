package paymentgateway

import (
	"strings"

	paymentgatewaytypes "github.com/frahmantamala/smm-storefront/internal/core/datamodel/paymentgateway"
)

var statusVocabulary = map[string]paymentgatewaytypes.PaymentStatus{
	"paid":      paymentgatewaytypes.PaymentStatusSuccess,
	"completed": paymentgatewaytypes.PaymentStatusSuccess,
	"success":   paymentgatewaytypes.PaymentStatusSuccess,
	"approved":  paymentgatewaytypes.PaymentStatusSuccess,
	"done":      paymentgatewaytypes.PaymentStatusSuccess,

	"declined":     paymentgatewaytypes.PaymentStatusFailed,
	"error":        paymentgatewaytypes.PaymentStatusFailed,
	"failed":       paymentgatewaytypes.PaymentStatusFailed,
	"rejected":     paymentgatewaytypes.PaymentStatusFailed,
	"server_error": paymentgatewaytypes.PaymentStatusFailed,

	"cancelled": paymentgatewaytypes.PaymentStatusCancelled,
	"canceled":  paymentgatewaytypes.PaymentStatusCancelled,
	"returned":  paymentgatewaytypes.PaymentStatusCancelled,
	"reversed":  paymentgatewaytypes.PaymentStatusCancelled,

	"pending":    paymentgatewaytypes.PaymentStatusPending,
	"new":        paymentgatewaytypes.PaymentStatusPending,
	"created":    paymentgatewaytypes.PaymentStatusPending,
	"processing": paymentgatewaytypes.PaymentStatusPending,
}

// NormalizeStatus maps a gateway status word onto the shared enum. Anything
// not in the vocabulary stays pending so a later poll can resolve it.
func NormalizeStatus(raw string) paymentgatewaytypes.PaymentStatus {
	if status, ok := statusVocabulary[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return paymentgatewaytypes.PaymentStatusPending
}
