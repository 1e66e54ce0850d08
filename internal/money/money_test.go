package money

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     string
		wantErr  error
	}{
		{name: "ETH", amount: "0.5", currency: "ETH", want: "0.5 ETH"},
		{name: "lowercase currency", amount: "12", currency: "usdc", want: "12 USDC"},
		{name: "excess precision truncated", amount: "1.0000000000000000019", currency: "DAI", want: "1.000000000000000001 DAI"},
		{name: "unknown currency", amount: "1", currency: "BTC", wantErr: ErrUnsupportedCurrency},
		{name: "garbage amount", amount: "1,5", currency: "ETH", wantErr: ErrMalformedAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse(tt.amount, tt.currency)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.String())
		})
	}
}

func TestAddRejectsMixedCurrencies(t *testing.T) {
	_, err := MustParse("1", "ETH").Add(MustParse("1", "DAI"))
	assert.Error(t, err)

	sum, err := MustParse("0.1", "ETH").Add(MustParse("0.2", "ETH"))
	require.NoError(t, err)
	assert.True(t, sum.Amount.Equal(decimal.RequireFromString("0.3")))
}

func TestPolicyMinimum(t *testing.T) {
	p, err := NewPolicy(
		map[string]string{"eth": "0.001", "usdc": "1"},
		map[string]map[string]string{"Polygon": {"matic": "0.5"}},
		map[string]string{"eth": "0.01"},
	)
	require.NoError(t, err)

	assert.False(t, p.MeetsMinimum("ethereum", MustParse("0.0005", "ETH")))
	assert.True(t, p.MeetsMinimum("ethereum", MustParse("0.001", "ETH")))
	assert.False(t, p.MeetsMinimum("ethereum", MustParse("0", "MATIC")), "zero is never a donation")
	assert.True(t, p.MeetsMinimum("ethereum", MustParse("0.0001", "MATIC")))
	assert.False(t, p.MeetsMinimum("polygon", MustParse("0.4", "MATIC")))
	assert.True(t, p.MeetsMinimum("POLYGON", MustParse("0.5", "MATIC")))
}

func TestPolicyReceiptThreshold(t *testing.T) {
	p, err := NewPolicy(nil, nil, map[string]string{"ETH": "0.01"})
	require.NoError(t, err)

	assert.True(t, p.QualifiesForReceipt(MustParse("0.01", "ETH")))
	assert.False(t, p.QualifiesForReceipt(MustParse("0.009", "ETH")))
	assert.False(t, p.QualifiesForReceipt(MustParse("100", "DAI")))
}

func TestNewPolicyRejectsBadConfig(t *testing.T) {
	_, err := NewPolicy(map[string]string{"ETH": "-1"}, nil, nil)
	assert.ErrorIs(t, err, ErrMalformedAmount)

	_, err = NewPolicy(map[string]string{"DOGE": "1"}, nil, nil)
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestUSDValue(t *testing.T) {
	rates, err := NewStaticRates(map[string]string{"eth": "2500.5"})
	require.NoError(t, err)

	v, err := USDValue(context.Background(), rates, MustParse("0.2", "ETH"))
	require.NoError(t, err)
	assert.Equal(t, "500.1", v.String())

	_, err = USDValue(context.Background(), rates, MustParse("1", "DAI"))
	assert.ErrorIs(t, err, ErrRateUnavailable)
}

func TestFromWei(t *testing.T) {
	assert.Equal(t, "0.000021", FromWei(decimal.NewFromInt(21_000_000_000_000)).String())
}
