package money

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrRateUnavailable = errors.New("exchange rate unavailable")

// RateProvider 汇率提供者
type RateProvider interface {
	USDRate(ctx context.Context, c Currency) (decimal.Decimal, error)
}

// StaticRates 配置文件中的固定汇率
type StaticRates struct {
	rates map[Currency]decimal.Decimal
}

// NewStaticRates 解析 币种 -> USD 汇率
func NewStaticRates(raw map[string]string) (*StaticRates, error) {
	rates := make(map[Currency]decimal.Decimal, len(raw))
	if err := fillAmounts(rates, raw); err != nil {
		return nil, fmt.Errorf("invalid usd rates: %w", err)
	}
	return &StaticRates{rates: rates}, nil
}

func (s *StaticRates) USDRate(_ context.Context, c Currency) (decimal.Decimal, error) {
	rate, ok := s.rates[c]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrRateUnavailable, c)
	}
	return rate, nil
}

// USDValue 读取时计算的美元价值，不落库
func USDValue(ctx context.Context, rates RateProvider, m Money) (decimal.Decimal, error) {
	if rates == nil {
		return decimal.Zero, ErrRateUnavailable
	}
	rate, err := rates.USDRate(ctx, m.Currency)
	if err != nil {
		return decimal.Zero, err
	}
	return m.Amount.Mul(rate).Round(2), nil
}
