package engine

import (
	"context"

	"github.com/wishlabs/deployer/database/orm"
)

// investPoolLifecycle drives investment pool contracts. The pool's
// target addresses may only become known after deployment, delivered by
// a setup event from the watcher.
type investPoolLifecycle struct {
	e *Engine
}

func (p *investPoolLifecycle) handlers() map[string]*handlerSpec {
	return map[string]*handlerSpec{
		"launch":              {fn: p.deploy, blocking: true, postponable: true},
		"deployed":            {fn: p.msgDeployed, postponable: true, checkTx: true},
		"investmentPoolSetup": {fn: p.setup},
		"cancelled":           {fn: p.cancelled},
		"finalized":           {fn: p.finalized},
		"killed":              {fn: p.killed},
	}
}

func (p *investPoolLifecycle) deploy(ctx context.Context, c *orm.Contract, _ *Message) error {
	if c.State.Terminal() || c.State == orm.StateActive {
		p.e.release(c.Network, c.ID)
		return nil
	}

	d, err := p.e.store.InvestmentPoolDetails(c.ID)
	if err != nil {
		return err
	}

	dc, err := p.artifact(ctx, c, d)
	if err != nil {
		return err
	}

	if dc.Address != "" {
		p.e.release(c.Network, c.ID)
		return nil
	}
	if dc.TxHash != "" {
		return nil
	}

	if err := p.e.setState(c, orm.StateWaitingForDeployment); err != nil {
		return err
	}

	return p.e.deployArtifact(ctx, c, dc)
}

func (p *investPoolLifecycle) artifact(
	ctx context.Context,
	c *orm.Contract,
	d *orm.InvestmentPoolDetails,
) (*orm.DeployedContract, error) {
	if d.DeployedID != 0 {
		return p.e.store.DeployedContract(d.DeployedID)
	}

	rows, err := p.e.compileArtifacts(ctx, c, map[string]interface{}{
		"soft_cap":           d.SoftCap,
		"hard_cap":           d.HardCap,
		"admin_address":      d.AdminAddress,
		"investment_address": d.InvestmentAddress,
		"token_address":      d.TokenAddress,
	})
	if err != nil {
		return nil, err
	}

	d.DeployedID = rows[0].ID
	if err := p.e.store.SaveInvestmentPoolDetails(d); err != nil {
		return nil, err
	}

	return rows[0], nil
}

func (p *investPoolLifecycle) msgDeployed(_ context.Context, c *orm.Contract, msg *Message) error {
	if c.State != orm.StateWaitingForDeployment {
		p.e.release(c.Network, c.ID)
		return nil
	}

	d, err := p.e.store.InvestmentPoolDetails(c.ID)
	if err != nil {
		return err
	}

	dc, err := p.e.store.DeployedContract(d.DeployedID)
	if err != nil {
		return err
	}

	dc.Address = msg.Address
	if err := p.e.store.SaveDeployedContract(dc); err != nil {
		return err
	}

	if err := p.e.setState(c, orm.StateActive); err != nil {
		return err
	}

	p.e.release(c.Network, c.ID)
	p.e.notifier.Notify(c.UserID, "investmentPoolDeployed", map[string]interface{}{
		"address": msg.Address,
		"tx":      msg.TxHash,
	})
	return nil
}

func (p *investPoolLifecycle) setup(_ context.Context, c *orm.Contract, msg *Message) error {
	d, err := p.e.store.InvestmentPoolDetails(c.ID)
	if err != nil {
		return err
	}

	if msg.InvestmentAddress != "" {
		d.InvestmentAddress = msg.InvestmentAddress
	}
	if msg.TokenAddress != "" {
		d.TokenAddress = msg.TokenAddress
	}

	return p.e.store.SaveInvestmentPoolDetails(d)
}

func (p *investPoolLifecycle) cancelled(_ context.Context, c *orm.Contract, _ *Message) error {
	if c.State == orm.StateCancelled {
		return nil
	}

	if err := p.e.setState(c, orm.StateCancelled); err != nil {
		return err
	}

	p.e.release(c.Network, c.ID)
	return nil
}

func (p *investPoolLifecycle) finalized(_ context.Context, c *orm.Contract, _ *Message) error {
	if c.State == orm.StateEnded {
		return nil
	}

	return p.e.setState(c, orm.StateEnded)
}

func (p *investPoolLifecycle) killed(_ context.Context, c *orm.Contract, _ *Message) error {
	if err := p.e.setState(c, orm.StateKilled); err != nil {
		return err
	}

	p.e.release(c.Network, c.ID)
	return nil
}
