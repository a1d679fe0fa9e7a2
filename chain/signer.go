package chain

import (
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Signer holds the signing key of one network address. Key material never
// leaves this type; callers hand over transaction descriptors and get
// signed transactions back.
type Signer struct {
	key     *ecdsa.PrivateKey
	signer  types.Signer
	address common.Address
}

// NewSigner builds a signer from a hex-encoded private key and the
// network's chain id.
func NewSigner(hexKey string, chainID int64) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "parse signing key")
	}

	return &Signer{
		key:     key,
		signer:  types.LatestSignerForChainID(big.NewInt(chainID)),
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the signing address in hex form.
func (s *Signer) Address() string {
	return s.address.Hex()
}

// SignDeploy signs a contract creation transaction carrying the given
// init code.
func (s *Signer) SignDeploy(nonce, gasLimit, gasPrice uint64, data []byte) (*types.Transaction, error) {
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		Gas:      gasLimit,
		GasPrice: new(big.Int).SetUint64(gasPrice),
		Data:     data,
	})

	return types.SignTx(tx, s.signer, s.key)
}

// SignCall signs a transaction invoking a deployed contract.
func (s *Signer) SignCall(
	nonce uint64,
	to string,
	value *big.Int,
	gasLimit uint64,
	gasPrice uint64,
	data []byte,
) (*types.Transaction, error) {
	if value == nil {
		value = new(big.Int)
	}

	dest := common.HexToAddress(to)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &dest,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: new(big.Int).SetUint64(gasPrice),
		Data:     data,
	})

	return types.SignTx(tx, s.signer, s.key)
}
