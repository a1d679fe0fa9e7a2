package engine

import (
	"math/big"

	"github.com/wishlabs/deployer/database/orm"
)

// Cost estimates are upper bounds computed from the network's configured
// gas limits; the chain refunds whatever a transaction leaves unused.

func (e *Engine) deployCost() *big.Int {
	return new(big.Int).SetUint64(e.cfg.DeployGasLimit * e.cfg.GasPrice)
}

func (e *Engine) callCost() *big.Int {
	return new(big.Int).SetUint64(e.cfg.CallGasLimit * e.cfg.GasPrice)
}

// calcCost covers the deployment plus one aliveness check per interval
// until the will expires; every check is a paid on-chain call.
func (w *willLifecycle) calcCost(c *orm.Contract) (*big.Int, error) {
	d, err := w.e.store.WillDetails(c.ID)
	if err != nil {
		return nil, err
	}

	checks := int64(1)
	if d.CheckInterval > 0 {
		if window := int64(d.ActiveTo.Sub(w.e.now()).Seconds()); window > 0 {
			checks += window / d.CheckInterval
		}
	}

	cost := w.e.deployCost()
	cost.Add(cost, new(big.Int).Mul(w.e.callCost(), big.NewInt(checks)))
	return cost, nil
}

func (w *willLifecycle) minCost() *big.Int {
	return new(big.Int).Add(w.e.deployCost(), w.e.callCost())
}

// calcCost covers both creation transactions plus the ownership hand-off
// and the init call; a reused token saves its creation.
func (i *icoLifecycle) calcCost(c *orm.Contract) (*big.Int, error) {
	d, err := i.e.store.ICODetails(c.ID)
	if err != nil {
		return nil, err
	}

	cost := i.e.deployCost()
	if !d.ReusedToken {
		cost.Add(cost, i.e.deployCost())
	}
	cost.Add(cost, new(big.Int).Mul(i.e.callCost(), big.NewInt(2)))
	return cost, nil
}

func (i *icoLifecycle) minCost() *big.Int {
	cost := i.e.deployCost()
	return cost.Add(cost, new(big.Int).Mul(i.e.callCost(), big.NewInt(2)))
}

func (t *tokenLifecycle) calcCost(_ *orm.Contract) (*big.Int, error) {
	return t.e.deployCost(), nil
}

func (t *tokenLifecycle) minCost() *big.Int {
	return t.e.deployCost()
}

// calcCost covers the creation only; the batch sends are submitted by
// the admin address outside the engine and funded there.
func (a *airdropLifecycle) calcCost(_ *orm.Contract) (*big.Int, error) {
	return a.e.deployCost(), nil
}

func (a *airdropLifecycle) minCost() *big.Int {
	return a.e.deployCost()
}

// calcCost covers the creation only; investments and the cancel/finalize
// calls are sent by the pool's admin, not the engine's signing address.
func (p *investPoolLifecycle) calcCost(_ *orm.Contract) (*big.Int, error) {
	return p.e.deployCost(), nil
}

func (p *investPoolLifecycle) minCost() *big.Int {
	return p.e.deployCost()
}
