package engine

import (
	"context"

	"github.com/wishlabs/deployer/database/orm"
)

// airdropLifecycle drives airdrop contracts. The deploy path mirrors the
// token one; the distinctive part is the batch report reconciliation in
// reconcile.go.
type airdropLifecycle struct {
	e *Engine
}

func (a *airdropLifecycle) handlers() map[string]*handlerSpec {
	return map[string]*handlerSpec{
		"launch":   {fn: a.deploy, blocking: true, postponable: true},
		"deployed": {fn: a.msgDeployed, postponable: true, checkTx: true},
		"airdrop":  {fn: a.reconcile},
		"killed":   {fn: a.killed},
	}
}

func (a *airdropLifecycle) deploy(ctx context.Context, c *orm.Contract, _ *Message) error {
	if c.State.Terminal() || c.State == orm.StateActive {
		a.e.release(c.Network, c.ID)
		return nil
	}

	d, err := a.e.store.AirdropDetails(c.ID)
	if err != nil {
		return err
	}

	dc, err := a.artifact(ctx, c, d)
	if err != nil {
		return err
	}

	if dc.Address != "" {
		a.e.release(c.Network, c.ID)
		return nil
	}
	if dc.TxHash != "" {
		return nil
	}

	if err := a.e.setState(c, orm.StateWaitingForDeployment); err != nil {
		return err
	}

	return a.e.deployArtifact(ctx, c, dc)
}

func (a *airdropLifecycle) artifact(
	ctx context.Context,
	c *orm.Contract,
	d *orm.AirdropDetails,
) (*orm.DeployedContract, error) {
	if d.DeployedID != 0 {
		return a.e.store.DeployedContract(d.DeployedID)
	}

	rows, err := a.e.compileArtifacts(ctx, c, map[string]interface{}{
		"admin_address": d.AdminAddress,
		"token_address": d.TokenAddress,
	})
	if err != nil {
		return nil, err
	}

	d.DeployedID = rows[0].ID
	if err := a.e.store.SaveAirdropDetails(d); err != nil {
		return nil, err
	}

	return rows[0], nil
}

func (a *airdropLifecycle) msgDeployed(_ context.Context, c *orm.Contract, msg *Message) error {
	if c.State != orm.StateWaitingForDeployment {
		a.e.release(c.Network, c.ID)
		return nil
	}

	d, err := a.e.store.AirdropDetails(c.ID)
	if err != nil {
		return err
	}

	dc, err := a.e.store.DeployedContract(d.DeployedID)
	if err != nil {
		return err
	}

	dc.Address = msg.Address
	if err := a.e.store.SaveDeployedContract(dc); err != nil {
		return err
	}

	if err := a.e.setState(c, orm.StateActive); err != nil {
		return err
	}

	a.e.release(c.Network, c.ID)
	a.e.notifier.Notify(c.UserID, "airdropDeployed", map[string]interface{}{
		"address": msg.Address,
		"tx":      msg.TxHash,
	})
	return nil
}

func (a *airdropLifecycle) killed(_ context.Context, c *orm.Contract, _ *Message) error {
	if err := a.e.setState(c, orm.StateKilled); err != nil {
		return err
	}

	a.e.release(c.Network, c.ID)
	return nil
}
