package paymentgateway_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	paymentgatewaytypes "github.com/frahmantamala/smm-storefront/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/smm-storefront/internal/paymentgateway"
	"github.com/frahmantamala/smm-storefront/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

const epointPrivateKey = "epoint-private"

func newEpoint(apiURL string, requireSigned bool) *paymentgateway.Epoint {
	converter, err := paymentgateway.NewCurrencyConverter("AZN", map[string]string{"USD": "1.70"})
	Expect(err).NotTo(HaveOccurred())

	return paymentgateway.NewEpoint(paymentgateway.EpointConfig{
		APIURL:                 apiURL,
		PublicKey:              "i000000001",
		PrivateKey:             epointPrivateKey,
		Currency:               "AZN",
		CallbackURL:            "https://shop.example.com/api/v1/payments/callback/epoint",
		RequireSignedCallbacks: requireSigned,
		Timeout:                2 * time.Second,
	}, converter, logger.Discard())
}

func usdRequest() *paymentgatewaytypes.PaymentRequest {
	return &paymentgatewaytypes.PaymentRequest{
		Amount:      decimal.NewFromInt(20),
		Currency:    "USD",
		OrderID:     "balance-123",
		Description: "Balance top-up",
		SuccessURL:  "https://shop.example.com/payment/success",
		ErrorURL:    "https://shop.example.com/payment/error",
	}
}

var _ = Describe("Epoint", func() {
	var (
		server   *httptest.Server
		handler  http.HandlerFunc
		provider *paymentgateway.Epoint
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		provider = newEpoint(server.URL, false)
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("CreatePayment", func() {
		It("should convert, sign and send the payment in the settlement currency", func() {
			var received map[string]string
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Path).To(Equal("/api/1/request"))
				Expect(r.ParseForm()).To(Succeed())

				data := r.PostForm.Get("data")
				signature := r.PostForm.Get("signature")
				Expect(paymentgateway.VerifySignature(epointPrivateKey, data, signature)).To(BeTrue())

				raw, err := base64.StdEncoding.DecodeString(data)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(raw, &received)).To(Succeed())

				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"status":"success","redirect_url":"https://epoint.az/pay/abc","transaction":"te0001"}`))
			}

			resp, err := provider.CreatePayment(ctx, usdRequest())

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Success).To(BeTrue())
			Expect(resp.PaymentURL).To(Equal("https://epoint.az/pay/abc"))
			Expect(resp.TransactionID).To(Equal("te0001"))
			Expect(resp.ChargedCurrency).To(Equal("AZN"))
			Expect(resp.ChargedAmount.StringFixed(2)).To(Equal("34.00"))

			Expect(received["amount"]).To(Equal("34.00"))
			Expect(received["currency"]).To(Equal("AZN"))
			Expect(received["order_id"]).To(Equal("balance-123"))
			Expect(received["public_key"]).To(Equal("i000000001"))
			Expect(received["description"]).To(ContainSubstring("original: 20.00 USD"))
			Expect(received["success_redirect_url"]).To(Equal("https://shop.example.com/payment/success"))
		})

		It("should report a gateway rejection as a business failure", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"error","message":"Merchant is not active"}`))
			}

			resp, err := provider.CreatePayment(ctx, usdRequest())

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Success).To(BeFalse())
			Expect(resp.Failure).To(Equal(paymentgatewaytypes.FailureBusiness))
			Expect(resp.Error).To(Equal("Merchant is not active"))
		})

		It("should report an unreachable gateway as a transport failure", func() {
			server.Close()

			resp, err := provider.CreatePayment(ctx, usdRequest())

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Success).To(BeFalse())
			Expect(resp.Failure).To(Equal(paymentgatewaytypes.FailureTransport))
		})

		It("should return a configuration error when no exchange rate exists", func() {
			req := usdRequest()
			req.Currency = "GBP"

			resp, err := provider.CreatePayment(ctx, req)

			Expect(resp).To(BeNil())
			Expect(err).To(MatchError(ContainSubstring("no exchange rate")))
		})
	})

	Describe("CheckStatus", func() {
		It("should send a signed status request and normalize the answer", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Path).To(Equal("/api/1/get-status"))
				Expect(r.ParseForm()).To(Succeed())
				data := r.PostForm.Get("data")
				Expect(paymentgateway.VerifySignature(epointPrivateKey, data, r.PostForm.Get("signature"))).To(BeTrue())

				raw, _ := base64.StdEncoding.DecodeString(data)
				Expect(string(raw)).To(ContainSubstring(`"transaction":"te0001"`))

				_, _ = w.Write([]byte(`{"status":"returned"}`))
			}

			status, err := provider.CheckStatus(ctx, "te0001")

			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(paymentgatewaytypes.PaymentStatusCancelled))
		})

		It("should keep an unrecognized status pending", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"pending_review"}`))
			}

			status, err := provider.CheckStatus(ctx, "te0001")

			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(paymentgatewaytypes.PaymentStatusPending))
		})

		It("should return an error when the gateway cannot be reached", func() {
			server.Close()

			status, err := provider.CheckStatus(ctx, "te0001")

			Expect(err).To(HaveOccurred())
			Expect(status).To(Equal(paymentgatewaytypes.PaymentStatusPending))
		})

		It("should keep the payment pending when the gateway answers with an error status", func() {
			for _, code := range []int{http.StatusInternalServerError, http.StatusBadRequest} {
				code := code
				handler = func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(code)
					_, _ = w.Write([]byte(`{"status":"error","message":"internal server error"}`))
				}

				status, err := provider.CheckStatus(ctx, "te123")

				Expect(err).To(MatchError(ContainSubstring("status %d", code)))
				Expect(status).To(Equal(paymentgatewaytypes.PaymentStatusPending))
			}
		})
	})

	Describe("VerifyCallback", func() {
		It("should accept a correctly signed callback", func() {
			data, sig := paymentgateway.SignPayload(epointPrivateKey, []byte(`{"order_id":"balance-123","status":"success"}`))

			Expect(provider.VerifyCallback(ctx, &paymentgatewaytypes.Callback{Data: data, Signature: sig})).To(BeTrue())
		})

		It("should reject a forged signature", func() {
			data, _ := paymentgateway.SignPayload(epointPrivateKey, []byte(`{"order_id":"balance-123","status":"success"}`))
			_, forged := paymentgateway.SignPayload("attacker", []byte(`{"order_id":"balance-123","status":"success"}`))

			Expect(provider.VerifyCallback(ctx, &paymentgatewaytypes.Callback{Data: data, Signature: forged})).To(BeFalse())
		})

		It("should accept unsigned callbacks unless signatures are required", func() {
			cb := &paymentgatewaytypes.Callback{OrderID: "balance-123", Status: "approved"}

			Expect(provider.VerifyCallback(ctx, cb)).To(BeTrue())
			Expect(newEpoint(server.URL, true).VerifyCallback(ctx, cb)).To(BeFalse())
		})
	})

	Describe("DecodeCallback", func() {
		It("should fill callback fields from the signed data", func() {
			data, sig := paymentgateway.SignPayload(epointPrivateKey,
				[]byte(`{"order_id":"balance-123","status":"success","transaction":"te0001","amount":34}`))
			cb := &paymentgatewaytypes.Callback{Data: data, Signature: sig}

			Expect(provider.DecodeCallback(cb)).To(Succeed())
			Expect(cb.OrderID).To(Equal("balance-123"))
			Expect(cb.Status).To(Equal("success"))
			Expect(cb.TransactionID).To(Equal("te0001"))
			Expect(cb.Amount).To(Equal("34"))
		})

		It("should take every field from the signed data", func() {
			data, sig := paymentgateway.SignPayload(epointPrivateKey,
				[]byte(`{"order_id":"balance-123","status":"success","transaction":"te0001","amount":34}`))
			cb := &paymentgatewaytypes.Callback{Data: data, Signature: sig, OrderID: "balance-123", Amount: "34.00"}

			Expect(provider.DecodeCallback(cb)).To(Succeed())
			Expect(cb.Status).To(Equal("success"))
			Expect(cb.Amount).To(Equal("34"))
		})

		It("should reject form fields that contradict the signed data", func() {
			data, sig := paymentgateway.SignPayload(epointPrivateKey, []byte(`{"order_id":"balance-cheap","status":"failed"}`))

			tampered := []*paymentgatewaytypes.Callback{
				{Data: data, Signature: sig, OrderID: "balance-big"},
				{Data: data, Signature: sig, Status: "approved"},
				{Data: data, Signature: sig, TransactionID: "te9999"},
			}
			for _, cb := range tampered {
				Expect(provider.DecodeCallback(cb)).To(MatchError(paymentgateway.ErrCallbackMismatch))
			}
		})

		It("should only fill blanks for unsigned data", func() {
			data := base64.StdEncoding.EncodeToString([]byte(`{"order_id":"balance-123","status":"success"}`))
			cb := &paymentgatewaytypes.Callback{Data: data, Status: "failed"}

			Expect(provider.DecodeCallback(cb)).To(Succeed())
			Expect(cb.OrderID).To(Equal("balance-123"))
			Expect(cb.Status).To(Equal("failed"))
		})

		It("should fail on data that is not base64", func() {
			cb := &paymentgatewaytypes.Callback{Data: "%%%"}
			Expect(provider.DecodeCallback(cb)).NotTo(Succeed())
		})
	})
})
