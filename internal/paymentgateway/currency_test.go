package paymentgateway_test

import (
	"errors"

	"github.com/frahmantamala/smm-storefront/internal/paymentgateway"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("CurrencyConverter", func() {
	var converter *paymentgateway.CurrencyConverter

	BeforeEach(func() {
		var err error
		// keys arrive lower-cased from viper
		converter, err = paymentgateway.NewCurrencyConverter("AZN", map[string]string{
			"usd": "1.70",
			"EUR": "1.85",
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should convert into the settlement currency", func() {
		amount, err := converter.Convert(decimal.NewFromInt(20), "USD", "AZN")
		Expect(err).NotTo(HaveOccurred())
		Expect(amount.StringFixed(2)).To(Equal("34.00"))
	})

	It("should return the amount unchanged for the same currency", func() {
		amount, err := converter.Convert(decimal.RequireFromString("12.345"), "azn", "AZN")
		Expect(err).NotTo(HaveOccurred())
		Expect(amount.StringFixed(2)).To(Equal("12.35"))
	})

	It("should convert between two configured currencies through the settlement currency", func() {
		amount, err := converter.Convert(decimal.NewFromInt(37), "EUR", "USD")
		Expect(err).NotTo(HaveOccurred())
		Expect(amount.StringFixed(2)).To(Equal("40.26"))
	})

	It("should fail for a currency without a rate", func() {
		_, err := converter.Convert(decimal.NewFromInt(10), "GBP", "AZN")
		Expect(errors.Is(err, paymentgateway.ErrNoExchangeRate)).To(BeTrue())
	})

	It("should reject non-positive rates", func() {
		_, err := paymentgateway.NewCurrencyConverter("AZN", map[string]string{"USD": "0"})
		Expect(err).To(HaveOccurred())
	})
})
