package engine

import (
	"context"
	"testing"

	"github.com/wishlabs/deployer/compiler"
	"github.com/wishlabs/deployer/database/orm"
)

func (env *testEnv) setupInvestPool() (*orm.Contract, *orm.InvestmentPoolDetails) {
	c := env.addContract(orm.InvestmentPool, orm.StateWaitingForPayment)
	d := &orm.InvestmentPoolDetails{
		ContractID: c.ID,
		SoftCap:    1000,
		HardCap:    100000,
	}
	env.store.pools[c.ID] = d
	env.compiler.artifacts = []*compiler.Artifact{
		{Name: "investment_pool", ABI: testTokenABI, Bytecode: testBytecode},
	}
	return c, d
}

func TestInvestPoolDeploy(t *testing.T) {
	env := newTestEnv()
	env.store.addDeployAddress("mainnet")
	c, d := env.setupInvestPool()
	ctx := context.Background()

	if err := env.engine.handle(ctx, &Message{
		Type:       "launch",
		ContractID: c.ID,
	}); err != nil {
		t.Fatalf("launch failed: %v", err)
	}

	if err := env.engine.handle(ctx, &Message{
		Type:       "deployed",
		ContractID: d.DeployedID,
		Address:    "0x6666666666666666666666666666666666666666",
		TxHash:     "0xtx01",
	}); err != nil {
		t.Fatalf("deployed failed: %v", err)
	}

	if c.State != orm.StateActive {
		t.Errorf("state is %s but want %s", c.State, orm.StateActive)
	}
	if got := env.store.lockHolder("mainnet"); got != 0 {
		t.Errorf("lock still held by %d", got)
	}
}

func TestInvestPoolSetup(t *testing.T) {
	env := newTestEnv()
	c, d := env.setupInvestPool()
	c.State = orm.StateActive
	dc := &orm.DeployedContract{ContractID: c.ID}
	env.store.CreateDeployedContract(dc)
	d.DeployedID = dc.ID

	err := env.engine.handle(context.Background(), &Message{
		Type:              "investmentPoolSetup",
		ContractID:        dc.ID,
		InvestmentAddress: "0x7777777777777777777777777777777777777777",
		TokenAddress:      "0x8888888888888888888888888888888888888888",
	})
	if err != nil {
		t.Fatalf("investmentPoolSetup failed: %v", err)
	}

	if d.InvestmentAddress != "0x7777777777777777777777777777777777777777" {
		t.Errorf("investment address is %s", d.InvestmentAddress)
	}
	if d.TokenAddress != "0x8888888888888888888888888888888888888888" {
		t.Errorf("token address is %s", d.TokenAddress)
	}
}

func TestInvestPoolCancelled(t *testing.T) {
	env := newTestEnv()
	env.store.addDeployAddress("mainnet")
	c, d := env.setupInvestPool()
	c.State = orm.StateActive
	dc := &orm.DeployedContract{ContractID: c.ID}
	env.store.CreateDeployedContract(dc)
	d.DeployedID = dc.ID
	env.store.TryLock("mainnet", c.ID)

	err := env.engine.handle(context.Background(), &Message{
		Type:       "cancelled",
		ContractID: dc.ID,
	})
	if err != nil {
		t.Fatalf("cancelled failed: %v", err)
	}

	if c.State != orm.StateCancelled {
		t.Errorf("state is %s but want %s", c.State, orm.StateCancelled)
	}
	if got := env.store.lockHolder("mainnet"); got != 0 {
		t.Errorf("lock still held by %d", got)
	}
}
