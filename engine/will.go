package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/photon-storage/go-common/log"

	"github.com/wishlabs/deployer/database/orm"
)

// willLifecycle drives will contracts: deploy, periodic aliveness
// checks, heir payout on trigger, and collateral duty accounting on
// networks that bill a separate currency.
type willLifecycle struct {
	e *Engine
}

func (w *willLifecycle) handlers() map[string]*handlerSpec {
	return map[string]*handlerSpec{
		"launch":          {fn: w.deploy, blocking: true, postponable: true},
		"deployed":        {fn: w.msgDeployed, postponable: true, checkTx: true},
		"checked":         {fn: w.checked, checkTx: true},
		"check_contract":  {fn: w.checkContract, blocking: true},
		"triggered":       {fn: w.triggered, checkTx: true},
		"confirm_alive":   {fn: w.iAmAlive, blocking: true},
		"cancel":          {fn: w.cancel, blocking: true},
		"killed":          {fn: w.killed},
		"notified":        {fn: w.notified},
		"contractPayment": {fn: w.contractPayment},
		"make_payment":    {fn: w.makePayment, blocking: true},
		"fundsAdded":      {fn: w.fundsAdded},
	}
}

func (w *willLifecycle) deploy(ctx context.Context, c *orm.Contract, _ *Message) error {
	if c.State.Terminal() || c.State == orm.StateActive {
		w.e.release(c.Network, c.ID)
		return nil
	}

	d, err := w.e.store.WillDetails(c.ID)
	if err != nil {
		return err
	}

	dc, err := w.artifact(ctx, c, d)
	if err != nil {
		return err
	}

	if dc.Address != "" {
		// confirmed already, late duplicate launch
		w.e.release(c.Network, c.ID)
		return nil
	}
	if dc.TxHash != "" {
		// submission in flight, confirmation event will finish the job
		return nil
	}

	if err := w.e.setState(c, orm.StateWaitingForDeployment); err != nil {
		return err
	}

	heirs, err := w.e.store.Heirs(c.ID)
	if err != nil {
		return err
	}

	addresses := make([]common.Address, 0, len(heirs))
	percentages := make([]*big.Int, 0, len(heirs))
	for _, h := range heirs {
		addresses = append(addresses, common.HexToAddress(h.Address))
		percentages = append(percentages, new(big.Int).SetUint64(uint64(h.Percentage)))
	}

	return w.e.deployArtifact(
		ctx,
		c,
		dc,
		common.HexToAddress(d.UserAddress),
		addresses,
		percentages,
		big.NewInt(d.CheckInterval),
		true,
	)
}

func (w *willLifecycle) artifact(
	ctx context.Context,
	c *orm.Contract,
	d *orm.WillDetails,
) (*orm.DeployedContract, error) {
	if d.DeployedID != 0 {
		return w.e.store.DeployedContract(d.DeployedID)
	}

	rows, err := w.e.compileArtifacts(ctx, c, map[string]interface{}{
		"check_interval": d.CheckInterval,
		"user_address":   d.UserAddress,
	})
	if err != nil {
		return nil, err
	}

	d.DeployedID = rows[0].ID
	if err := w.e.store.SaveWillDetails(d); err != nil {
		return nil, err
	}

	return rows[0], nil
}

func (w *willLifecycle) msgDeployed(ctx context.Context, c *orm.Contract, msg *Message) error {
	if c.State != orm.StateWaitingForDeployment {
		// duplicate delivery, the address is already recorded
		w.e.release(c.Network, c.ID)
		return nil
	}

	d, err := w.e.store.WillDetails(c.ID)
	if err != nil {
		return err
	}

	dc, err := w.e.store.DeployedContract(d.DeployedID)
	if err != nil {
		return err
	}

	dc.Address = msg.Address
	if err := w.e.store.SaveDeployedContract(dc); err != nil {
		return err
	}

	next := w.e.now().Add(time.Duration(d.CheckInterval) * time.Second)
	d.NextCheck = &next
	if err := w.e.store.SaveWillDetails(d); err != nil {
		return err
	}

	if err := w.e.setState(c, orm.StateActive); err != nil {
		return err
	}

	w.e.release(c.Network, c.ID)
	w.e.notifier.Notify(c.UserID, "willDeployed", map[string]interface{}{
		"address": msg.Address,
		"tx":      msg.TxHash,
	})
	return nil
}

func (w *willLifecycle) checked(_ context.Context, c *orm.Contract, _ *Message) error {
	d, err := w.e.store.WillDetails(c.ID)
	if err != nil {
		return err
	}

	now := w.e.now()
	d.LastCheck = &now
	next := now.Add(time.Duration(d.CheckInterval) * time.Second)
	if next.Before(d.ActiveTo) {
		d.NextCheck = &next
	} else {
		// past active_to only a trigger can close the will
		d.NextCheck = nil
	}
	if err := w.e.store.SaveWillDetails(d); err != nil {
		return err
	}

	w.e.release(c.Network, c.ID)
	return nil
}

func (w *willLifecycle) checkContract(ctx context.Context, c *orm.Contract, _ *Message) error {
	if c.State != orm.StateActive {
		w.e.release(c.Network, c.ID)
		return nil
	}

	d, err := w.e.store.WillDetails(c.ID)
	if err != nil {
		return err
	}

	dc, err := w.e.store.DeployedContract(d.DeployedID)
	if err != nil {
		return err
	}

	// lock stays held until the checked confirmation arrives
	if err := w.e.callArtifact(ctx, c, dc, nil, "check"); err != nil {
		return err
	}

	// the checked confirmation reschedules; clearing next_check here
	// keeps the scheduler from re-enqueueing the in-flight check
	d.NextCheck = nil
	return w.e.store.SaveWillDetails(d)
}

func (w *willLifecycle) triggered(_ context.Context, c *orm.Contract, msg *Message) error {
	if c.State == orm.StateTriggered {
		return nil
	}

	d, err := w.e.store.WillDetails(c.ID)
	if err != nil {
		return err
	}

	now := w.e.now()
	d.LastCheck = &now
	d.NextCheck = nil
	if err := w.e.store.SaveWillDetails(d); err != nil {
		return err
	}

	if err := w.e.setState(c, orm.StateTriggered); err != nil {
		return err
	}

	heirs, err := w.e.store.Heirs(c.ID)
	if err != nil {
		return err
	}
	for _, h := range heirs {
		if h.Email == "" {
			continue
		}
		w.e.notifier.Notify(0, "heirPayout", map[string]interface{}{
			"email":   h.Email,
			"address": h.Address,
			"tx":      msg.TxHash,
		})
	}

	w.e.notifier.Notify(c.UserID, "willTriggered", map[string]interface{}{
		"tx": msg.TxHash,
	})
	return nil
}

// iAmAlive resubmits the heartbeat unless the previous one is still
// fresh; spamming the chain with heartbeats burns gas for nothing.
func (w *willLifecycle) iAmAlive(ctx context.Context, c *orm.Contract, _ *Message) error {
	d, err := w.e.store.WillDetails(c.ID)
	if err != nil {
		return err
	}

	timeout := time.Duration(w.e.cfg.AliveTimeoutSeconds) * time.Second
	if d.LastPressAlive != nil && w.e.now().Sub(*d.LastPressAlive) < timeout {
		w.e.release(c.Network, c.ID)
		return nil
	}

	dc, err := w.e.store.DeployedContract(d.DeployedID)
	if err != nil {
		return err
	}

	if err := w.e.callArtifact(ctx, c, dc, nil, "imAvailable"); err != nil {
		return err
	}

	now := w.e.now()
	d.LastPressAlive = &now
	return w.e.store.SaveWillDetails(d)
}

func (w *willLifecycle) cancel(ctx context.Context, c *orm.Contract, _ *Message) error {
	if c.State.Terminal() {
		w.e.release(c.Network, c.ID)
		return nil
	}

	d, err := w.e.store.WillDetails(c.ID)
	if err != nil {
		return err
	}

	dc, err := w.e.store.DeployedContract(d.DeployedID)
	if err != nil {
		return err
	}

	// the killed confirmation flips the state and releases the lock
	return w.e.callArtifact(ctx, c, dc, nil, "kill")
}

func (w *willLifecycle) killed(_ context.Context, c *orm.Contract, _ *Message) error {
	if err := w.e.setState(c, orm.StateKilled); err != nil {
		return err
	}

	w.e.release(c.Network, c.ID)
	return nil
}

func (w *willLifecycle) notified(_ context.Context, c *orm.Contract, _ *Message) error {
	d, err := w.e.store.WillDetails(c.ID)
	if err != nil {
		return err
	}

	now := w.e.now()
	d.LastReset = &now
	return w.e.store.SaveWillDetails(d)
}

// contractPayment accrues collateral duty. The increment is a single
// conditional update in the store; concurrent deliveries must not lose
// updates to a read-then-write race.
func (w *willLifecycle) contractPayment(ctx context.Context, c *orm.Contract, msg *Message) error {
	if !w.e.cfg.CollateralBilling {
		return nil
	}

	if err := w.e.store.AddDuty(c.ID, int64(msg.Value)); err != nil {
		return err
	}

	return w.e.publish(ctx, &Message{Type: "make_payment", ContractID: c.ID})
}

func (w *willLifecycle) makePayment(ctx context.Context, c *orm.Contract, _ *Message) error {
	d, err := w.e.store.WillDetails(c.ID)
	if err != nil {
		return err
	}

	if d.Duty == 0 {
		w.e.release(c.Network, c.ID)
		return nil
	}

	balance, err := w.e.chain.Balance(ctx, w.e.signer.Address())
	if err != nil {
		return err
	}

	need := new(big.Int).SetUint64(d.Duty)
	need.Add(need, new(big.Int).SetUint64(w.e.cfg.CallGasLimit*w.e.cfg.GasPrice))
	if balance.Cmp(need) < 0 {
		log.Warn("insufficient funds for duty sweep",
			"network", c.Network,
			"contract", c.ID,
			"balance", balance.String(),
			"need", need.String(),
		)
		w.e.release(c.Network, c.ID)
		return nil
	}

	dc, err := w.e.store.DeployedContract(d.DeployedID)
	if err != nil {
		return err
	}

	// plain value transfer of the accrued duty to the will contract
	return w.e.callArtifact(ctx, c, dc, new(big.Int).SetUint64(d.Duty), "")
}

func (w *willLifecycle) fundsAdded(_ context.Context, c *orm.Contract, msg *Message) error {
	if !w.e.cfg.CollateralBilling {
		return nil
	}

	if err := w.e.store.AddDuty(c.ID, -int64(msg.Value)); err != nil {
		return err
	}

	w.e.releaseNetwork(c.Network)
	return nil
}
