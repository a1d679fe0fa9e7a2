package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

const rpcTimeout = 5 * time.Second

// Client talks to one network's RPC node. It only exposes the calls the
// deployment engine needs to build, submit and observe transactions.
type Client struct {
	eth *ethclient.Client
}

// Dial connects the RPC endpoint of a network.
func Dial(endpoint string) (*Client, error) {
	eth, err := ethclient.Dial(endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "dial rpc endpoint")
	}

	return &Client{eth: eth}, nil
}

// PendingNonce requests the next nonce of the given address including
// pending transactions.
func (c *Client) PendingNonce(ctx context.Context, address string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	return c.eth.PendingNonceAt(ctx, common.HexToAddress(address))
}

// Balance requests the current balance of the given address.
func (c *Client) Balance(ctx context.Context, address string) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	return c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
}

// SendTransaction submits a signed transaction and returns its hash.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	if err := c.eth.SendTransaction(ctx, tx); err != nil {
		return "", err
	}

	return tx.Hash().Hex(), nil
}

// Call executes a read-only contract call.
func (c *Client) Call(ctx context.Context, to string, data []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	addr := common.HexToAddress(to)
	return c.eth.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
}

// TransactionReceipt requests the receipt of a mined transaction.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	return c.eth.TransactionReceipt(ctx, hash)
}

// Close shuts the underlying RPC connection down.
func (c *Client) Close() {
	c.eth.Close()
}
