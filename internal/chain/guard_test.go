package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySource struct {
	calls int
	err   error
}

func (f *flakySource) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &types.Receipt{BlockNumber: big.NewInt(1)}, nil
}

func (f *flakySource) BlockNumber(context.Context) (uint64, error) {
	f.calls++
	return 10, f.err
}

func TestGuardedSourceOpensAfterFailures(t *testing.T) {
	src := &flakySource{err: errors.New("connection refused")}
	g := NewGuardedSource("ethereum", src, GuardOptions{ConsecutiveFailures: 3, OpenTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := g.BlockNumber(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrRPCUnavailable)
	}

	_, err := g.BlockNumber(context.Background())
	assert.ErrorIs(t, err, ErrRPCUnavailable)
	assert.Equal(t, 3, src.calls)
	assert.Equal(t, "open", g.State())
}

func TestGuardedSourceIgnoresNotFound(t *testing.T) {
	src := &flakySource{err: ethereum.NotFound}
	g := NewGuardedSource("ethereum", src, GuardOptions{ConsecutiveFailures: 2})

	for i := 0; i < 5; i++ {
		_, err := g.TransactionReceipt(context.Background(), common.Hash{})
		assert.ErrorIs(t, err, ethereum.NotFound)
	}
	assert.Equal(t, "closed", g.State())

	n := &Network{Name: "ethereum", Confirmations: 1, Source: g}
	outcome, err := n.Lookup(context.Background(), "0x01")
	require.NoError(t, err)
	assert.Equal(t, ReceiptNotFound, outcome.State)
}

func TestGuardedSourceRateLimitHonoursContext(t *testing.T) {
	src := &flakySource{}
	g := NewGuardedSource("ethereum", src, GuardOptions{RatePerSecond: 0.001, Burst: 1})

	_, err := g.BlockNumber(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.BlockNumber(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, src.calls)
}
