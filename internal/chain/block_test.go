package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	receipt *types.Receipt
	head    uint64
}

func (f *fakeSource) TransactionReceipt(_ context.Context, _ common.Hash) (*types.Receipt, error) {
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

func (f *fakeSource) BlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	receipt := &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		BlockNumber:       big.NewInt(100),
		GasUsed:           21000,
		EffectiveGasPrice: big.NewInt(1_000_000_000),
	}

	tests := []struct {
		name    string
		source  *fakeSource
		want    ReceiptState
		success bool
	}{
		{"未打包", &fakeSource{head: 100}, ReceiptNotFound, false},
		{"确认数不足", &fakeSource{receipt: receipt, head: 110}, ReceiptUnconfirmed, true},
		{"确认数已满足", &fakeSource{receipt: receipt, head: 111}, ReceiptFinal, true},
		{"执行失败", &fakeSource{receipt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(100)}, head: 200}, ReceiptFinal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Manager{}
			m.Register("Ethereum", 1, 12, tt.source)
			n, ok := m.Network("ethereum")
			require.True(t, ok)

			out, err := n.Lookup(ctx, "0xabc")
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.State)
			assert.Equal(t, tt.success, out.Succeeded)
		})
	}
}

func TestGasFee(t *testing.T) {
	fee := GasFee(&types.Receipt{GasUsed: 21000, EffectiveGasPrice: big.NewInt(1_000_000_000)})
	assert.Equal(t, "0.000021", fee.String())

	assert.True(t, GasFee(&types.Receipt{GasUsed: 21000}).IsZero())
}
