package account_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	apperrors "github.com/frahmantamala/smm-storefront/internal"
	"github.com/frahmantamala/smm-storefront/internal/account"
	accountDatamodel "github.com/frahmantamala/smm-storefront/internal/core/datamodel/account"
	"github.com/frahmantamala/smm-storefront/internal/transport"
	"github.com/frahmantamala/smm-storefront/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("Account Handler", func() {
	var (
		repo    *MockRepository
		handler *account.Handler
	)

	BeforeEach(func() {
		repo = NewMockRepository()
		repo.profiles["user-1"] = &accountDatamodel.Profile{
			ID:       "user-1",
			Email:    "buyer@example.com",
			FullName: "Buyer",
			Balance:  decimal.RequireFromString("34.5"),
		}
		service := account.NewService(repo, logger.Discard())
		handler = account.NewHandler(transport.NewBaseHandler(logger.Discard()), service)
	})

	It("should return the caller's balance", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/me", nil)
		req = req.WithContext(apperrors.ContextWithUserID(req.Context(), "user-1"))
		w := httptest.NewRecorder()

		handler.GetMe(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp account.AccountResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.ID).To(Equal("user-1"))
		Expect(resp.Balance).To(Equal("34.50"))
	})

	It("should require an authenticated caller", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/me", nil)
		w := httptest.NewRecorder()

		handler.GetMe(w, req)

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("should return 404 for a caller without a profile", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/me", nil)
		req = req.WithContext(apperrors.ContextWithUserID(req.Context(), "user-2"))
		w := httptest.NewRecorder()

		handler.GetMe(w, req)

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})
})
