package chain

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type fakeNode struct {
	receipts map[common.Hash]*types.Receipt
}

func (f *fakeNode) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func TestVerify(t *testing.T) {
	mined := common.HexToHash("0x01")
	reverted := common.HexToHash("0x02")
	missing := common.HexToHash("0x03")

	v := NewVerifier(&fakeNode{
		receipts: map[common.Hash]*types.Receipt{
			mined:    {Status: types.ReceiptStatusSuccessful},
			reverted: {Status: types.ReceiptStatusFailed},
		},
	})

	testCases := []struct {
		name string
		hash common.Hash
		want TxStatus
	}{
		{
			name: "mined transaction succeeded",
			hash: mined,
			want: TxSucceeded,
		},
		{
			name: "reverted transaction failed",
			hash: reverted,
			want: TxFailed,
		},
		{
			name: "missing receipt means pending",
			hash: missing,
			want: TxPending,
		},
	}
	for _, c := range testCases {
		got, err := v.Verify(context.Background(), c.hash.Hex())
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if got != c.want {
			t.Errorf("%s: status is %s but want %s", c.name, got, c.want)
		}
	}
}
