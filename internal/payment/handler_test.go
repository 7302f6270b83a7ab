package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/smm-storefront/api"
	errors "github.com/frahmantamala/smm-storefront/internal"
	paymentgatewaytypes "github.com/frahmantamala/smm-storefront/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/smm-storefront/internal/core/datamodel/transaction"
	"github.com/frahmantamala/smm-storefront/internal/ledger"
	"github.com/frahmantamala/smm-storefront/internal/payment"
	"github.com/frahmantamala/smm-storefront/internal/transport"
	"github.com/frahmantamala/smm-storefront/internal/transport/openapi"
	"github.com/frahmantamala/smm-storefront/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// MockService implements payment.ServiceAPI for testing
type MockService struct {
	CreatePaymentFunc func(ctx context.Context, req *paymentgatewaytypes.PaymentRequest, providerID paymentgatewaytypes.ProviderID) (*paymentgatewaytypes.PaymentResponse, error)
	GetPaymentFunc    func(ctx context.Context, orderID string) (*transaction.Record, error)
	PollStatusFunc    func(ctx context.Context, orderID string) (*transaction.Record, error)
}

func (m *MockService) CreatePayment(ctx context.Context, req *paymentgatewaytypes.PaymentRequest, providerID paymentgatewaytypes.ProviderID) (*paymentgatewaytypes.PaymentResponse, error) {
	return m.CreatePaymentFunc(ctx, req, providerID)
}

func (m *MockService) GetPayment(ctx context.Context, orderID string) (*transaction.Record, error) {
	return m.GetPaymentFunc(ctx, orderID)
}

func (m *MockService) PollStatus(ctx context.Context, orderID string) (*transaction.Record, error) {
	return m.PollStatusFunc(ctx, orderID)
}

type stubReports struct {
	stats []ledger.StatusStats
	err   error
}

func (s *stubReports) Stats(ctx context.Context) ([]ledger.StatusStats, error) {
	return s.stats, s.err
}

var _ = Describe("Handler", func() {
	var (
		service  *MockService
		reports  *stubReports
		handler  *payment.Handler
		router   chi.Router
		captured *paymentgatewaytypes.PaymentRequest
		provider paymentgatewaytypes.ProviderID
	)

	BeforeEach(func() {
		captured = nil
		provider = ""
		service = &MockService{
			CreatePaymentFunc: func(ctx context.Context, req *paymentgatewaytypes.PaymentRequest, providerID paymentgatewaytypes.ProviderID) (*paymentgatewaytypes.PaymentResponse, error) {
				captured = req
				provider = providerID
				return &paymentgatewaytypes.PaymentResponse{
					Success:       true,
					PaymentURL:    "https://gateway.example.com/pay/1",
					TransactionID: "tx-1",
				}, nil
			},
		}
		reports = &stubReports{}

		validator, err := openapi.NewValidator(api.OpenAPISpec)
		Expect(err).NotTo(HaveOccurred())

		handler = payment.NewHandler(transport.NewBaseHandler(logger.Discard()), service, validator, reports)
		router = chi.NewRouter()
		router.Post("/api/v1/payments", handler.CreatePayment)
		router.Get("/api/v1/payments/{order_id}", handler.GetPayment)
		router.Post("/api/v1/payments/{order_id}/refresh", handler.RefreshPayment)
		router.Get("/api/v1/admin/payments/stats", handler.GetStats)
	})

	post := func(body string, ctx context.Context) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body)).WithContext(ctx)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	Describe("CreatePayment", func() {
		It("should return the payment URL and a generated order id", func() {
			w := post(`{"amount":"20.00","currency":"USD","provider":"epoint"}`, context.Background())

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp payment.CreatePaymentResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Success).To(BeTrue())
			Expect(resp.PaymentURL).To(Equal("https://gateway.example.com/pay/1"))
			Expect(resp.OrderID).To(HavePrefix("balance-"))
			Expect(resp.OrderID).To(Equal(captured.OrderID))

			Expect(provider).To(Equal(paymentgatewaytypes.ProviderEpoint))
			Expect(captured.Amount.Equal(decimal.NewFromInt(20))).To(BeTrue())
			Expect(captured.Description).To(Equal("Balance top-up"))
			Expect(captured.UserID).To(BeNil())
		})

		It("should attach the authenticated user", func() {
			w := post(`{"amount":"5","currency":"AZN"}`, errors.ContextWithUserID(context.Background(), "user-1"))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(captured.UserID).NotTo(BeNil())
			Expect(*captured.UserID).To(Equal("user-1"))
			Expect(provider).To(BeEmpty())
		})

		It("should answer 402 when the gateway rejects the payment", func() {
			service.CreatePaymentFunc = func(ctx context.Context, req *paymentgatewaytypes.PaymentRequest, providerID paymentgatewaytypes.ProviderID) (*paymentgatewaytypes.PaymentResponse, error) {
				return paymentgatewaytypes.Rejected("card declined"), nil
			}

			w := post(`{"amount":"20.00","currency":"USD"}`, context.Background())

			Expect(w.Code).To(Equal(http.StatusPaymentRequired))
			Expect(w.Body.String()).To(ContainSubstring("card declined"))
		})

		It("should answer 502 when the gateway cannot be reached", func() {
			service.CreatePaymentFunc = func(ctx context.Context, req *paymentgatewaytypes.PaymentRequest, providerID paymentgatewaytypes.ProviderID) (*paymentgatewaytypes.PaymentResponse, error) {
				return paymentgatewaytypes.Unreachable("gateway unavailable"), nil
			}

			w := post(`{"amount":"20.00","currency":"USD"}`, context.Background())

			Expect(w.Code).To(Equal(http.StatusBadGateway))
		})

		It("should reject bodies that do not match the schema", func() {
			w := post(`{"amount":"-3","currency":"usd"}`, context.Background())

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(captured).To(BeNil())
			Expect(w.Body.String()).To(ContainSubstring("VALIDATION_FAILED"))
		})

		It("should reject an unknown provider before calling the service", func() {
			w := post(`{"amount":"20.00","currency":"USD","provider":"paypal"}`, context.Background())

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(captured).To(BeNil())
		})

		It("should pass service errors through", func() {
			service.CreatePaymentFunc = func(ctx context.Context, req *paymentgatewaytypes.PaymentRequest, providerID paymentgatewaytypes.ProviderID) (*paymentgatewaytypes.PaymentResponse, error) {
				return nil, errors.NewConflictError("order already exists", errors.ErrCodeDuplicateOrder)
			}

			w := post(`{"amount":"20.00","currency":"USD","order_id":"balance-1"}`, context.Background())

			Expect(w.Code).To(Equal(http.StatusConflict))
			Expect(w.Body.String()).To(ContainSubstring("DUPLICATE_ORDER"))
		})
	})

	Describe("GetPayment", func() {
		It("should render the transaction", func() {
			txID := "tx-9"
			service.GetPaymentFunc = func(ctx context.Context, orderID string) (*transaction.Record, error) {
				Expect(orderID).To(Equal("balance-9"))
				return &transaction.Record{
					OrderID:         "balance-9",
					Provider:        "epoint",
					Status:          transaction.StatusCompleted,
					Amount:          decimal.NewFromInt(20),
					Currency:        "USD",
					ChargedAmount:   decimal.NewFromInt(34),
					ChargedCurrency: "AZN",
					TransactionID:   &txID,
					Credited:        true,
				}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/balance-9", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp payment.PaymentStatusResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Status).To(Equal(transaction.StatusCompleted))
			Expect(resp.Amount).To(Equal("20.00"))
			Expect(resp.ChargedAmount).To(Equal("34.00"))
			Expect(resp.TransactionID).To(Equal("tx-9"))
			Expect(resp.Credited).To(BeTrue())
		})

		It("should answer 404 for an unknown order", func() {
			service.GetPaymentFunc = func(ctx context.Context, orderID string) (*transaction.Record, error) {
				return nil, errors.NewNotFoundError("payment not found", errors.ErrCodeTransactionNotFound)
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/missing", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("RefreshPayment", func() {
		It("should answer 502 when the gateway status check fails", func() {
			service.PollStatusFunc = func(ctx context.Context, orderID string) (*transaction.Record, error) {
				return nil, errors.NewExternalError("failed to check payment status", errors.ErrCodePaymentFailed)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/balance-1/refresh", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadGateway))
		})
	})

	Describe("GetStats", func() {
		It("should require an authenticated caller", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/payments/stats", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("should return the stats", func() {
			reports.stats = []ledger.StatusStats{
				{Status: transaction.StatusCompleted, Count: 2, Total: decimal.NewFromInt(40), Credited: 2},
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/payments/stats", nil).
				WithContext(errors.ContextWithUserID(context.Background(), "admin"))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"status":"completed"`))
		})
	})
})
