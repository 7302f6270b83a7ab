package payment_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/go-chi/chi"
	"gorm.io/gorm"

	accountDatamodel "github.com/frahmantamala/smm-storefront/internal/core/datamodel/account"
	paymentgatewaytypes "github.com/frahmantamala/smm-storefront/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/smm-storefront/internal/core/datamodel/transaction"
	"github.com/frahmantamala/smm-storefront/internal/core/events"
	"github.com/frahmantamala/smm-storefront/internal/ledger"
	ledgerPostgres "github.com/frahmantamala/smm-storefront/internal/ledger/postgres"
	"github.com/frahmantamala/smm-storefront/internal/payment"
	"github.com/frahmantamala/smm-storefront/internal/paymentgateway"
	"github.com/frahmantamala/smm-storefront/internal/transport"
	"github.com/frahmantamala/smm-storefront/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// brokenLedger fails every lookup to simulate a storage outage.
type brokenLedger struct {
	ledger.RepositoryAPI
}

func (brokenLedger) GetByOrderID(ctx context.Context, orderID string) (*transaction.Record, error) {
	return nil, context.DeadlineExceeded
}

var _ = Describe("WebhookHandler", func() {
	var (
		db         *gorm.DB
		ledgerRepo ledger.RepositoryAPI
		epoint     *fakeProvider
		payriff    *fakeProvider
		registry   *payment.Registry
		observer   *countingObserver
		router     chi.Router
	)

	newRouter := func(reconciler *payment.Reconciler) chi.Router {
		h := payment.NewWebhookHandler(transport.NewBaseHandler(logger.Discard()), registry, reconciler, observer)
		r := chi.NewRouter()
		r.Post("/api/v1/payments/callback", h.HandleCallback)
		r.Post("/api/v1/payments/callback/{provider}", h.HandleCallback)
		return r
	}

	send := func(path string, form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	approved := func(orderID string) url.Values {
		return url.Values{
			"status":         {"approved"},
			"order_id":       {orderID},
			"transaction_id": {"tx-1"},
		}
	}

	BeforeEach(func() {
		db = newTestDB()
		ledgerRepo = ledgerPostgres.NewLedgerRepository(db)
		epoint = newFakeProvider(paymentgatewaytypes.ProviderEpoint)
		payriff = newFakeProvider(paymentgatewaytypes.ProviderPayriff)

		var err error
		registry, err = payment.NewRegistry(paymentgatewaytypes.ProviderEpoint, epoint, payriff)
		Expect(err).NotTo(HaveOccurred())

		observer = newCountingObserver()
		router = newRouter(payment.NewReconciler(ledgerRepo, events.NewEventBus(logger.Discard()), logger.Discard()))

		userID := "user-1"
		_, err = ledgerRepo.RecordAttempt(context.Background(), paymentRequest("balance-1", &userID), paymentgatewaytypes.ProviderEpoint)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should answer OK and credit the account on the default route", func() {
		w := send("/api/v1/payments/callback", approved("balance-1"))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("OK"))
		Expect(w.Header().Get("Content-Type")).To(HavePrefix("text/plain"))
		Expect(balanceOf(db, "user-1").StringFixed(2)).To(Equal("20.00"))
	})

	It("should answer OK to a repeated delivery without crediting again", func() {
		Expect(send("/api/v1/payments/callback/epoint", approved("balance-1")).Code).To(Equal(http.StatusOK))

		w := send("/api/v1/payments/callback/epoint", approved("balance-1"))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("OK"))
		Expect(balanceOf(db, "user-1").StringFixed(2)).To(Equal("20.00"))
	})

	It("should answer 404 for an unknown order", func() {
		w := send("/api/v1/payments/callback/epoint", approved("balance-missing"))

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("should answer 404 for an unknown provider", func() {
		w := send("/api/v1/payments/callback/paypal", approved("balance-1"))

		Expect(w.Code).To(Equal(http.StatusNotFound))
		rec, err := ledgerRepo.GetByOrderID(context.Background(), "balance-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Status).To(Equal(transaction.StatusPending))
	})

	It("should acknowledge but not apply an unverified callback", func() {
		epoint.verified = false

		w := send("/api/v1/payments/callback/epoint", approved("balance-1"))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("unverified"))
		rec, err := ledgerRepo.GetByOrderID(context.Background(), "balance-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Status).To(Equal(transaction.StatusPending))
	})

	It("should read the callback token from the header", func() {
		var seen string
		payriffCallback := &tokenProvider{fakeProvider: payriff, seen: &seen}
		var err error
		registry, err = payment.NewRegistry(paymentgatewaytypes.ProviderEpoint, epoint, payriffCallback)
		Expect(err).NotTo(HaveOccurred())
		router = newRouter(payment.NewReconciler(ledgerRepo, nil, logger.Discard()))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback/payriff?token=from-query",
			strings.NewReader(approved("balance-1").Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Callback-Token", "from-header")
		router.ServeHTTP(httptest.NewRecorder(), req)

		Expect(seen).To(Equal("from-header"))
	})

	It("should ask the gateway to retry when storage fails", func() {
		router = newRouter(payment.NewReconciler(brokenLedger{}, nil, logger.Discard()))

		w := send("/api/v1/payments/callback/epoint", approved("balance-1"))

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(observer.callbacks["epoint/error"]).To(Equal(1))
	})
})

var _ = Describe("WebhookHandler with signed Epoint callbacks", func() {
	const privateKey = "epoint-private"

	var (
		db         *gorm.DB
		ledgerRepo ledger.RepositoryAPI
		router     chi.Router
	)

	send := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback/epoint", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	signed := func(key, payload string) url.Values {
		data, signature := paymentgateway.SignPayload(key, []byte(payload))
		return url.Values{"data": {data}, "signature": {signature}}
	}

	statusOf := func(orderID string) string {
		rec, err := ledgerRepo.GetByOrderID(context.Background(), orderID)
		Expect(err).NotTo(HaveOccurred())
		return rec.Status
	}

	profileCount := func() int64 {
		var n int64
		Expect(db.Model(&accountDatamodel.Profile{}).Count(&n).Error).To(Succeed())
		return n
	}

	BeforeEach(func() {
		db = newTestDB()
		ledgerRepo = ledgerPostgres.NewLedgerRepository(db)

		converter, err := paymentgateway.NewCurrencyConverter("AZN", map[string]string{"USD": "1.70"})
		Expect(err).NotTo(HaveOccurred())
		ep := paymentgateway.NewEpoint(paymentgateway.EpointConfig{
			APIURL:                 "https://epoint.invalid",
			PublicKey:              "i000000001",
			PrivateKey:             privateKey,
			RequireSignedCallbacks: true,
		}, converter, logger.Discard())

		registry, err := payment.NewRegistry(paymentgatewaytypes.ProviderEpoint, ep)
		Expect(err).NotTo(HaveOccurred())

		reconciler := payment.NewReconciler(ledgerRepo, nil, logger.Discard())
		h := payment.NewWebhookHandler(transport.NewBaseHandler(logger.Discard()), registry, reconciler, nil)
		r := chi.NewRouter()
		r.Post("/api/v1/payments/callback/{provider}", h.HandleCallback)
		router = r

		userID := "user-1"
		for _, orderID := range []string{"balance-big", "balance-cheap"} {
			_, err = ledgerRepo.RecordAttempt(context.Background(), paymentRequest(orderID, &userID), paymentgatewaytypes.ProviderEpoint)
			Expect(err).NotTo(HaveOccurred())
		}
	})

	It("should credit the order named in the signed data", func() {
		w := send(signed(privateKey, `{"order_id":"balance-big","status":"success","transaction":"te0001","amount":34}`))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("OK"))
		Expect(statusOf("balance-big")).To(Equal(transaction.StatusCompleted))
		Expect(balanceOf(db, "user-1").StringFixed(2)).To(Equal("20.00"))
	})

	It("should not let form fields redirect a signed notification to another order", func() {
		form := signed(privateKey, `{"order_id":"balance-cheap","status":"failed"}`)
		form.Set("order_id", "balance-big")
		form.Set("status", "approved")

		w := send(form)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("unverified"))
		Expect(statusOf("balance-big")).To(Equal(transaction.StatusPending))
		Expect(statusOf("balance-cheap")).To(Equal(transaction.StatusPending))
		Expect(profileCount()).To(BeZero())
	})

	It("should not let a form status override the signed one", func() {
		form := signed(privateKey, `{"order_id":"balance-big","status":"failed"}`)
		form.Set("status", "approved")

		w := send(form)

		Expect(w.Body.String()).To(Equal("unverified"))
		Expect(statusOf("balance-big")).To(Equal(transaction.StatusPending))
	})

	It("should reject data signed with another key", func() {
		w := send(signed("attacker", `{"order_id":"balance-big","status":"success"}`))

		Expect(w.Body.String()).To(Equal("unverified"))
		Expect(statusOf("balance-big")).To(Equal(transaction.StatusPending))
		Expect(profileCount()).To(BeZero())
	})

	It("should reject unsigned callbacks when signatures are required", func() {
		w := send(url.Values{"order_id": {"balance-big"}, "status": {"approved"}})

		Expect(w.Body.String()).To(Equal("unverified"))
		Expect(statusOf("balance-big")).To(Equal(transaction.StatusPending))
	})
})

// tokenProvider records the token a callback arrived with.
type tokenProvider struct {
	*fakeProvider
	seen *string
}

func (p *tokenProvider) VerifyCallback(ctx context.Context, cb *paymentgatewaytypes.Callback) bool {
	*p.seen = cb.Token
	return true
}
