package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/blues/donation/internal/money"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

// ReceiptState 交易在链上的状态
type ReceiptState int

const (
	ReceiptNotFound    ReceiptState = iota // 未打包或已被丢弃
	ReceiptUnconfirmed                     // 已打包，确认数不足
	ReceiptFinal                           // 确认数已满足
)

// Outcome 终局交易的执行结果
type Outcome struct {
	State       ReceiptState
	Succeeded   bool
	BlockNumber uint64
	GasUsed     uint64
	GasFee      decimal.Decimal // 原生币单位
}

// Lookup 查询收据并判断是否达到确认数
func (n *Network) Lookup(ctx context.Context, txHash string) (*Outcome, error) {
	receipt, err := n.Source.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return &Outcome{State: ReceiptNotFound}, nil
		}
		return nil, err
	}

	head, err := n.Source.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		State:       ReceiptUnconfirmed,
		Succeeded:   receipt.Status == types.ReceiptStatusSuccessful,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		GasFee:      GasFee(receipt),
	}
	if head >= outcome.BlockNumber && head-outcome.BlockNumber+1 >= n.Confirmations {
		outcome.State = ReceiptFinal
	}
	return outcome, nil
}

// GasFee gasUsed * effectiveGasPrice，换算为原生币
func GasFee(receipt *types.Receipt) decimal.Decimal {
	if receipt.EffectiveGasPrice == nil {
		return decimal.Zero
	}
	wei := new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), receipt.EffectiveGasPrice)
	return money.FromWei(decimal.NewFromBigInt(wei, 0))
}
