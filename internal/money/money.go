package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency 币种
type Currency string

const (
	ETH   Currency = "ETH"
	MATIC Currency = "MATIC"
	USDC  Currency = "USDC"
	DAI   Currency = "DAI"
	WETH  Currency = "WETH"
)

// Scale 金额保留的小数位，与数据库 decimal(36,18) 一致
const Scale = 18

var (
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrMalformedAmount     = errors.New("malformed amount")
)

var supported = map[Currency]struct{}{
	ETH:   {},
	MATIC: {},
	USDC:  {},
	DAI:   {},
	WETH:  {},
}

// Currencies 返回全部支持的币种
func Currencies() []Currency {
	return []Currency{ETH, MATIC, USDC, DAI, WETH}
}

// ParseCurrency 解析币种代码，大小写不敏感
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := supported[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, code)
	}
	return c, nil
}

// Valid 是否为支持的币种
func (c Currency) Valid() bool {
	_, ok := supported[c]
	return ok
}

func (c Currency) String() string {
	return string(c)
}

// Money 定点金额 + 币种
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

// New 构造金额，超出精度的部分截断
func New(amount decimal.Decimal, currency Currency) (Money, error) {
	if !currency.Valid() {
		return Money{}, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}
	return Money{Amount: amount.Truncate(Scale), Currency: currency}, nil
}

// Parse 从十进制字符串解析金额
func Parse(amount, currency string) (Money, error) {
	c, err := ParseCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrMalformedAmount, amount)
	}
	return New(d, c)
}

// MustParse 解析失败直接 panic，仅用于常量和测试
func MustParse(amount, currency string) Money {
	m, err := Parse(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// IsPositive 金额是否大于0
func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

// Add 同币种相加
func (m Money) Add(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s + %s", m.Currency, o.Currency)
	}
	return Money{Amount: m.Amount.Add(o.Amount), Currency: m.Currency}, nil
}

func (m Money) String() string {
	return m.Amount.String() + " " + string(m.Currency)
}

// FromWei 将链上最小单位（18位精度）换算为原生单位
func FromWei(wei decimal.Decimal) decimal.Decimal {
	return wei.Shift(-Scale)
}
