package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/photon-storage/go-common/log"
	"github.com/pkg/errors"

	"github.com/wishlabs/deployer/database/orm"
)

// icoLifecycle drives crowdsale contracts. The crowdsale artifact needs
// the token's on-chain address in its constructor, so the token deploys
// first and the crowdsale chains off its confirmation; a reused token
// skips straight to the crowdsale.
type icoLifecycle struct {
	e *Engine
}

func (i *icoLifecycle) handlers() map[string]*handlerSpec {
	return map[string]*handlerSpec{
		"launch":               {fn: i.deploy, blocking: true, postponable: true},
		"deployed":             {fn: i.msgDeployed, blocking: true, postponable: true, checkTx: true},
		"ownershipTransferred": {fn: i.ownershipTransferred, blocking: true, postponable: true},
		"initialized":          {fn: i.initialized, postponable: true, checkTx: true},
		"finalized":            {fn: i.finalized},
		"finish":               {fn: i.finalized},
		"timesChanged":         {fn: i.timesChanged},
		"whitelistAdded":       {fn: i.whitelistAdded},
		"whitelistRemoved":     {fn: i.whitelistRemoved},
		"killed":               {fn: i.killed},
	}
}

func (i *icoLifecycle) deploy(ctx context.Context, c *orm.Contract, _ *Message) error {
	if c.State.Terminal() || c.State == orm.StateActive {
		i.e.release(c.Network, c.ID)
		return nil
	}

	d, err := i.e.store.ICODetails(c.ID)
	if err != nil {
		return err
	}

	if err := i.compile(ctx, c, d); err != nil {
		return err
	}

	first, args, err := i.firstArtifact(d)
	if err != nil {
		return err
	}

	if first.Address != "" {
		i.e.release(c.Network, c.ID)
		return nil
	}
	if first.TxHash != "" {
		return nil
	}

	if err := i.e.setState(c, orm.StateWaitingForDeployment); err != nil {
		return err
	}

	return i.e.deployArtifact(ctx, c, first, args...)
}

// firstArtifact picks the artifact that opens the deployment sequence.
func (i *icoLifecycle) firstArtifact(d *orm.ICODetails) (*orm.DeployedContract, []interface{}, error) {
	if d.ReusedToken {
		token, err := i.e.store.DeployedContract(d.TokenID)
		if err != nil {
			return nil, nil, err
		}
		if token.Address == "" {
			return nil, nil, errors.New("reused token has no deployed address")
		}

		crowdsale, err := i.e.store.DeployedContract(d.CrowdsaleID)
		if err != nil {
			return nil, nil, err
		}
		return crowdsale, []interface{}{common.HexToAddress(token.Address)}, nil
	}

	token, err := i.e.store.DeployedContract(d.TokenID)
	if err != nil {
		return nil, nil, err
	}
	return token, nil, nil
}

func (i *icoLifecycle) compile(ctx context.Context, c *orm.Contract, d *orm.ICODetails) error {
	if d.CrowdsaleID != 0 {
		return nil
	}

	rows, err := i.e.compileArtifacts(ctx, c, map[string]interface{}{
		"token_name":   d.TokenName,
		"token_symbol": d.TokenSymbol,
		"decimals":     d.Decimals,
		"soft_cap":     d.SoftCap,
		"hard_cap":     d.HardCap,
		"rate":         d.Rate,
		"start_date":   d.StartDate,
		"stop_date":    d.StopDate,
		"reused_token": d.ReusedToken,
		"whitelist":    d.Whitelist,
	})
	if err != nil {
		return err
	}

	if d.ReusedToken {
		d.CrowdsaleID = rows[0].ID
	} else {
		if len(rows) < 2 {
			return errors.New("compiler returned no crowdsale artifact")
		}
		d.TokenID = rows[0].ID
		d.CrowdsaleID = rows[1].ID
	}

	return i.e.store.SaveICODetails(d)
}

func (i *icoLifecycle) msgDeployed(ctx context.Context, c *orm.Contract, msg *Message) error {
	if c.State != orm.StateWaitingForDeployment {
		i.e.releaseNetwork(c.Network)
		return nil
	}

	d, err := i.e.store.ICODetails(c.ID)
	if err != nil {
		return err
	}

	if d.ReusedToken {
		crowdsale, err := i.e.store.DeployedContract(d.CrowdsaleID)
		if err != nil {
			return err
		}

		crowdsale.Address = msg.Address
		if err := i.e.store.SaveDeployedContract(crowdsale); err != nil {
			return err
		}

		if err := i.e.setState(c, orm.StateWaitingActivation); err != nil {
			return err
		}

		i.e.releaseNetwork(c.Network)
		return nil
	}

	if msg.ContractID == d.TokenID {
		token, err := i.e.store.DeployedContract(d.TokenID)
		if err != nil {
			return err
		}

		token.Address = msg.Address
		if err := i.e.store.SaveDeployedContract(token); err != nil {
			return err
		}

		// token confirmed, chain the crowdsale deployment referencing it;
		// the lock carries over to the second submission
		crowdsale, err := i.e.store.DeployedContract(d.CrowdsaleID)
		if err != nil {
			return err
		}

		return i.e.deployArtifact(ctx, c, crowdsale, common.HexToAddress(token.Address))
	}

	crowdsale, err := i.e.store.DeployedContract(d.CrowdsaleID)
	if err != nil {
		return err
	}

	crowdsale.Address = msg.Address
	if err := i.e.store.SaveDeployedContract(crowdsale); err != nil {
		return err
	}

	// the crowdsale must own the token before it can be initialized
	token, err := i.e.store.DeployedContract(d.TokenID)
	if err != nil {
		return err
	}

	return i.e.callArtifact(
		ctx,
		c,
		token,
		nil,
		"transferOwnership",
		common.HexToAddress(crowdsale.Address),
	)
}

func (i *icoLifecycle) ownershipTransferred(ctx context.Context, c *orm.Contract, _ *Message) error {
	if c.State == orm.StateActive || c.State == orm.StateEnded {
		i.e.releaseNetwork(c.Network)
		return nil
	}

	if c.State == orm.StateWaitingActivation {
		// reused token activation resumes the deployment sequence
		if err := i.e.setState(c, orm.StateWaitingForDeployment); err != nil {
			return err
		}
	}

	d, err := i.e.store.ICODetails(c.ID)
	if err != nil {
		return err
	}

	crowdsale, err := i.e.store.DeployedContract(d.CrowdsaleID)
	if err != nil {
		return err
	}

	return i.e.callArtifact(ctx, c, crowdsale, nil, "init")
}

func (i *icoLifecycle) initialized(_ context.Context, c *orm.Contract, msg *Message) error {
	if c.State != orm.StateWaitingForDeployment {
		return nil
	}

	i.e.releaseNetwork(c.Network)

	d, err := i.e.store.ICODetails(c.ID)
	if err != nil {
		return err
	}

	if msg.ContractID != d.CrowdsaleID {
		log.Warn("initialized event for unexpected artifact",
			"contract", c.ID,
			"artifact", msg.ContractID,
		)
		return nil
	}

	if err := i.e.setState(c, orm.StateActive); err != nil {
		return err
	}

	token, err := i.e.store.DeployedContract(d.TokenID)
	if err != nil {
		return err
	}

	// a reused standalone token goes under crowdsale control
	if token.ContractID != c.ID {
		owner, err := i.e.store.Contract(token.ContractID)
		if err != nil {
			return err
		}
		if owner.State != orm.StateUnderCrowdsale && owner.State != orm.StateEnded {
			if err := i.e.store.UpdateContractState(owner.ID, orm.StateUnderCrowdsale); err != nil {
				return err
			}
		}
	}

	crowdsale, err := i.e.store.DeployedContract(d.CrowdsaleID)
	if err != nil {
		return err
	}

	i.e.notifier.Notify(c.UserID, "icoActive", map[string]interface{}{
		"token_address":     token.Address,
		"crowdsale_address": crowdsale.Address,
	})
	return nil
}

func (i *icoLifecycle) finalized(_ context.Context, c *orm.Contract, _ *Message) error {
	d, err := i.e.store.ICODetails(c.ID)
	if err != nil {
		return err
	}

	if !d.ContinueMinting && d.TokenID != 0 {
		token, err := i.e.store.DeployedContract(d.TokenID)
		if err != nil {
			return err
		}

		owner, err := i.e.store.Contract(token.ContractID)
		if err != nil {
			return err
		}
		if owner.ID != c.ID && owner.State != orm.StateEnded {
			if err := i.e.store.UpdateContractState(owner.ID, orm.StateEnded); err != nil {
				return err
			}
		}
	}

	if c.State != orm.StateEnded {
		return i.e.setState(c, orm.StateEnded)
	}

	return nil
}

func (i *icoLifecycle) timesChanged(_ context.Context, c *orm.Contract, msg *Message) error {
	d, err := i.e.store.ICODetails(c.ID)
	if err != nil {
		return err
	}

	if !d.AllowChangeDates {
		return nil
	}

	if msg.StartTime != 0 {
		d.StartDate = msg.StartTime
	}
	if msg.EndTime != 0 {
		d.StopDate = msg.EndTime
	}

	return i.e.store.SaveICODetails(d)
}

func (i *icoLifecycle) whitelistAdded(_ context.Context, c *orm.Contract, msg *Message) error {
	return i.e.store.UpsertWhitelistAddress(c.ID, msg.Address, true)
}

func (i *icoLifecycle) whitelistRemoved(_ context.Context, c *orm.Contract, msg *Message) error {
	return i.e.store.UpsertWhitelistAddress(c.ID, msg.Address, false)
}

func (i *icoLifecycle) killed(_ context.Context, c *orm.Contract, _ *Message) error {
	if err := i.e.setState(c, orm.StateKilled); err != nil {
		return err
	}

	i.e.release(c.Network, c.ID)
	return nil
}
