package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Policy 最小捐赠额与开票门槛
type Policy struct {
	minimums          map[Currency]decimal.Decimal
	networkMinimums   map[string]map[Currency]decimal.Decimal
	receiptThresholds map[Currency]decimal.Decimal
}

// NewPolicy 从配置字符串构建规则；viper 会把 map 键转为小写，这里统一转回大写
func NewPolicy(minimums map[string]string, networkMinimums map[string]map[string]string, receiptThresholds map[string]string) (*Policy, error) {
	p := &Policy{
		minimums:          make(map[Currency]decimal.Decimal),
		networkMinimums:   make(map[string]map[Currency]decimal.Decimal),
		receiptThresholds: make(map[Currency]decimal.Decimal),
	}

	if err := fillAmounts(p.minimums, minimums); err != nil {
		return nil, fmt.Errorf("invalid minimums: %w", err)
	}
	for network, values := range networkMinimums {
		m := make(map[Currency]decimal.Decimal)
		if err := fillAmounts(m, values); err != nil {
			return nil, fmt.Errorf("invalid minimums for network %s: %w", network, err)
		}
		p.networkMinimums[strings.ToLower(network)] = m
	}
	if err := fillAmounts(p.receiptThresholds, receiptThresholds); err != nil {
		return nil, fmt.Errorf("invalid receipt thresholds: %w", err)
	}

	return p, nil
}

func fillAmounts(dst map[Currency]decimal.Decimal, src map[string]string) error {
	for code, raw := range src {
		c, err := ParseCurrency(code)
		if err != nil {
			return err
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrMalformedAmount, code, raw)
		}
		if d.IsNegative() {
			return fmt.Errorf("%w: %s=%q is negative", ErrMalformedAmount, code, raw)
		}
		dst[c] = d
	}
	return nil
}

// Minimum 某网络某币种的最小捐赠额，网络级配置优先
func (p *Policy) Minimum(network string, c Currency) decimal.Decimal {
	if m, ok := p.networkMinimums[strings.ToLower(network)]; ok {
		if v, ok := m[c]; ok {
			return v
		}
	}
	return p.minimums[c]
}

// MeetsMinimum 金额必须为正且不低于最小额
func (p *Policy) MeetsMinimum(network string, m Money) bool {
	if !m.IsPositive() {
		return false
	}
	return m.Amount.GreaterThanOrEqual(p.Minimum(network, m.Currency))
}

// QualifiesForReceipt 是否达到开票门槛；未配置门槛的币种不开票
func (p *Policy) QualifiesForReceipt(m Money) bool {
	threshold, ok := p.receiptThresholds[m.Currency]
	if !ok {
		return false
	}
	return m.Amount.GreaterThanOrEqual(threshold)
}

// ReceiptThresholds 各币种开票门槛的副本
func (p *Policy) ReceiptThresholds() map[Currency]decimal.Decimal {
	out := make(map[Currency]decimal.Decimal, len(p.receiptThresholds))
	for c, v := range p.receiptThresholds {
		out[c] = v
	}
	return out
}
