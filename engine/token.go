package engine

import (
	"context"

	"github.com/wishlabs/deployer/database/orm"
)

// tokenLifecycle drives standalone token contracts. A token without
// future minting is complete the moment it lands on chain; one with
// future minting stays active until a finalize closes the mint.
type tokenLifecycle struct {
	e *Engine
}

func (t *tokenLifecycle) handlers() map[string]*handlerSpec {
	return map[string]*handlerSpec{
		"launch":               {fn: t.deploy, blocking: true, postponable: true},
		"deployed":             {fn: t.msgDeployed, postponable: true, checkTx: true},
		"ownershipTransferred": {fn: t.ownershipTransferred},
		"finalized":            {fn: t.finalized},
		"killed":               {fn: t.killed},
	}
}

func (t *tokenLifecycle) deploy(ctx context.Context, c *orm.Contract, _ *Message) error {
	if c.State.Terminal() || c.State == orm.StateActive {
		t.e.release(c.Network, c.ID)
		return nil
	}

	d, err := t.e.store.TokenDetails(c.ID)
	if err != nil {
		return err
	}

	dc, err := t.artifact(ctx, c, d)
	if err != nil {
		return err
	}

	if dc.Address != "" {
		t.e.release(c.Network, c.ID)
		return nil
	}
	if dc.TxHash != "" {
		return nil
	}

	if err := t.e.setState(c, orm.StateWaitingForDeployment); err != nil {
		return err
	}

	return t.e.deployArtifact(ctx, c, dc)
}

func (t *tokenLifecycle) artifact(
	ctx context.Context,
	c *orm.Contract,
	d *orm.TokenDetails,
) (*orm.DeployedContract, error) {
	if d.DeployedID != 0 {
		return t.e.store.DeployedContract(d.DeployedID)
	}

	rows, err := t.e.compileArtifacts(ctx, c, map[string]interface{}{
		"token_name":     d.TokenName,
		"token_symbol":   d.TokenSymbol,
		"decimals":       d.Decimals,
		"admin_address":  d.AdminAddress,
		"future_minting": d.FutureMinting,
	})
	if err != nil {
		return nil, err
	}

	d.DeployedID = rows[0].ID
	if err := t.e.store.SaveTokenDetails(d); err != nil {
		return nil, err
	}

	return rows[0], nil
}

func (t *tokenLifecycle) msgDeployed(_ context.Context, c *orm.Contract, msg *Message) error {
	if c.State != orm.StateWaitingForDeployment {
		t.e.release(c.Network, c.ID)
		return nil
	}

	d, err := t.e.store.TokenDetails(c.ID)
	if err != nil {
		return err
	}

	dc, err := t.e.store.DeployedContract(d.DeployedID)
	if err != nil {
		return err
	}

	dc.Address = msg.Address
	if err := t.e.store.SaveDeployedContract(dc); err != nil {
		return err
	}

	state := orm.StateEnded
	if d.FutureMinting {
		state = orm.StateActive
	}
	if err := t.e.setState(c, state); err != nil {
		return err
	}

	t.e.release(c.Network, c.ID)
	t.e.notifier.Notify(c.UserID, "tokenDeployed", map[string]interface{}{
		"address": msg.Address,
		"tx":      msg.TxHash,
	})
	return nil
}

// ownershipTransferred marks a standalone token as owned by a crowdsale.
// Repeat transfers between crowdsales keep the state as is.
func (t *tokenLifecycle) ownershipTransferred(_ context.Context, c *orm.Contract, _ *Message) error {
	if c.State == orm.StateUnderCrowdsale || c.State == orm.StateEnded {
		return nil
	}

	return t.e.setState(c, orm.StateUnderCrowdsale)
}

func (t *tokenLifecycle) finalized(_ context.Context, c *orm.Contract, _ *Message) error {
	if c.State == orm.StateEnded {
		return nil
	}

	return t.e.setState(c, orm.StateEnded)
}

func (t *tokenLifecycle) killed(_ context.Context, c *orm.Contract, _ *Message) error {
	if err := t.e.setState(c, orm.StateKilled); err != nil {
		return err
	}

	t.e.release(c.Network, c.ID)
	return nil
}
