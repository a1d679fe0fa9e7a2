package chain

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/pkg/errors"
)

// PackConstructor appends ABI-encoded constructor arguments to the
// compiled bytecode, producing the init code of a deployment transaction.
func PackConstructor(abiJSON, bytecode string, args ...interface{}) ([]byte, error) {
	code, err := hex.DecodeString(strings.TrimPrefix(bytecode, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "decode bytecode")
	}

	if len(args) == 0 {
		return code, nil
	}

	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, errors.Wrap(err, "parse contract abi")
	}

	packed, err := parsed.Pack("", args...)
	if err != nil {
		return nil, errors.Wrap(err, "pack constructor arguments")
	}

	return append(code, packed...), nil
}

// PackCall ABI-encodes a method invocation on a deployed contract.
func PackCall(abiJSON, method string, args ...interface{}) ([]byte, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, errors.Wrap(err, "parse contract abi")
	}

	packed, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s call", method)
	}

	return packed, nil
}
