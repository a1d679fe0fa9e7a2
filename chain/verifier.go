package chain

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// TxStatus is the verified outcome of a referenced transaction.
type TxStatus uint8

const (
	TxPending TxStatus = iota
	TxSucceeded
	TxFailed
)

// String returns the string of the transaction status.
func (t TxStatus) String() string {
	switch t {
	case TxPending:
		return "pending"
	case TxSucceeded:
		return "succeeded"
	case TxFailed:
		return "failed"
	}

	return "unknown"
}

type receiptReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Verifier resolves whether a referenced transaction made it into a block
// and whether it succeeded there. Confirmation events can race actual
// block inclusion, so a missing receipt means pending, not failure.
type Verifier struct {
	node receiptReader
}

// NewVerifier returns a verifier reading receipts from the given node.
func NewVerifier(node receiptReader) *Verifier {
	return &Verifier{node: node}
}

// Verify resolves the status of the transaction with the given hash.
func (v *Verifier) Verify(ctx context.Context, txHash string) (TxStatus, error) {
	receipt, err := v.node.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return TxPending, nil
	}
	if err != nil {
		return TxPending, err
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		return TxSucceeded, nil
	}

	return TxFailed, nil
}
