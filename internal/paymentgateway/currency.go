package paymentgateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrNoExchangeRate = errors.New("no exchange rate configured")

// CurrencyConverter converts amounts into a single settlement currency.
// A rate of 1.70 for USD means 1 USD = 1.70 units of the settlement currency.
type CurrencyConverter struct {
	settlement string
	rates      map[string]decimal.Decimal
}

func NewCurrencyConverter(settlement string, rates map[string]string) (*CurrencyConverter, error) {
	c := &CurrencyConverter{
		settlement: strings.ToUpper(settlement),
		rates:      make(map[string]decimal.Decimal, len(rates)),
	}
	for code, raw := range rates {
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid exchange rate for %s: %w", code, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("exchange rate for %s must be positive", code)
		}
		// viper lower-cases map keys
		c.rates[strings.ToUpper(code)] = rate
	}
	return c, nil
}

func (c *CurrencyConverter) Settlement() string {
	return c.settlement
}

// Convert returns amount expressed in currency to, rounded to two decimals.
// Cross rates between two non-settlement currencies go through the
// settlement currency.
func (c *CurrencyConverter) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return amount.Round(2), nil
	}
	fromRate, err := c.rate(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := c.rate(to, from)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(fromRate).Div(toRate).Round(2), nil
}

func (c *CurrencyConverter) rate(code, counter string) (decimal.Decimal, error) {
	if code == c.settlement {
		return decimal.NewFromInt(1), nil
	}
	rate, ok := c.rates[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s to %s", ErrNoExchangeRate, code, counter)
	}
	return rate, nil
}
