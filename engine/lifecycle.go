package engine

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/photon-storage/go-common/log"
	"github.com/pkg/errors"

	"github.com/wishlabs/deployer/chain"
	"github.com/wishlabs/deployer/compiler"
	"github.com/wishlabs/deployer/database/orm"
)

// deployArtifact builds, signs and submits the creation transaction for
// one artifact. The caller must hold the network's deploy address lock;
// the lock stays held until the confirmation event releases it.
func (e *Engine) deployArtifact(
	ctx context.Context,
	c *orm.Contract,
	dc *orm.DeployedContract,
	args ...interface{},
) error {
	data, err := chain.PackConstructor(dc.ABI, dc.Bytecode, args...)
	if err != nil {
		return err
	}

	nonce, err := e.chain.PendingNonce(ctx, e.signer.Address())
	if err != nil {
		return errors.Wrap(err, "request deploy nonce")
	}

	tx, err := e.signer.SignDeploy(nonce, e.cfg.DeployGasLimit, e.cfg.GasPrice, data)
	if err != nil {
		return errors.Wrap(err, "sign deploy transaction")
	}

	hash, err := e.chain.SendTransaction(ctx, tx)
	if err != nil {
		return errors.Wrap(err, "send deploy transaction")
	}

	log.Info("deploy transaction submitted",
		"network", c.Network,
		"contract", c.ID,
		"artifact", dc.ID,
		"tx", hash,
	)

	dc.TxHash = hash
	return e.store.SaveDeployedContract(dc)
}

// callArtifact submits a state-changing method call on a deployed
// artifact, recording the pending transaction hash on the artifact row.
func (e *Engine) callArtifact(
	ctx context.Context,
	c *orm.Contract,
	dc *orm.DeployedContract,
	value *big.Int,
	method string,
	args ...interface{},
) error {
	var data []byte
	if method != "" {
		var err error
		data, err = chain.PackCall(dc.ABI, method, args...)
		if err != nil {
			return err
		}
	}

	nonce, err := e.chain.PendingNonce(ctx, e.signer.Address())
	if err != nil {
		return errors.Wrap(err, "request call nonce")
	}

	tx, err := e.signer.SignCall(
		nonce,
		dc.Address,
		value,
		e.cfg.CallGasLimit,
		e.cfg.GasPrice,
		data,
	)
	if err != nil {
		return errors.Wrap(err, "sign call transaction")
	}

	hash, err := e.chain.SendTransaction(ctx, tx)
	if err != nil {
		return errors.Wrap(err, "send call transaction")
	}

	log.Info("call transaction submitted",
		"network", c.Network,
		"contract", c.ID,
		"method", method,
		"tx", hash,
	)

	dc.TxHash = hash
	return e.store.SaveDeployedContract(dc)
}

// compileArtifacts invokes the compiler service once for a contract and
// persists one artifact row per deployable.
func (e *Engine) compileArtifacts(
	ctx context.Context,
	c *orm.Contract,
	params map[string]interface{},
) ([]*orm.DeployedContract, error) {
	artifacts, err := e.compiler.Compile(ctx, &compiler.Request{
		ContractID: c.ID,
		Type:       c.Type.String(),
		Params:     params,
	})
	if err != nil {
		return nil, errors.Wrap(err, "compile contract")
	}
	if len(artifacts) == 0 {
		return nil, errors.New("compiler returned no artifacts")
	}

	rows := make([]*orm.DeployedContract, 0, len(artifacts))
	for _, a := range artifacts {
		dc := &orm.DeployedContract{
			ContractID:      c.ID,
			ABI:             a.ABI,
			Bytecode:        a.Bytecode,
			CompilerVersion: a.CompilerVersion,
			Source:          a.Source,
		}
		if err := e.store.CreateDeployedContract(dc); err != nil {
			return nil, err
		}
		rows = append(rows, dc)
	}

	return rows, nil
}

// publish enqueues an internally generated event on the network queue.
func (e *Engine) publish(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return e.queue.Publish(ctx, body)
}

// setState transitions a contract and logs the transition.
func (e *Engine) setState(c *orm.Contract, state orm.State) error {
	if err := e.store.UpdateContractState(c.ID, state); err != nil {
		return errors.Wrapf(err, "transition contract %d to %s", c.ID, state)
	}

	log.Info("contract state changed",
		"contract", c.ID,
		"network", c.Network,
		"from", string(c.State),
		"to", string(state),
	)
	c.State = state
	return nil
}
