package engine

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/wishlabs/deployer/chain"
	"github.com/wishlabs/deployer/compiler"
	"github.com/wishlabs/deployer/config"
	"github.com/wishlabs/deployer/database/orm"
	"github.com/wishlabs/deployer/queue"
)

const (
	testWillABI = `[{"type":"constructor","inputs":[` +
		`{"name":"user","type":"address"},` +
		`{"name":"heirs","type":"address[]"},` +
		`{"name":"percents","type":"uint256[]"},` +
		`{"name":"interval","type":"uint256"},` +
		`{"name":"platform","type":"bool"}]},` +
		`{"type":"function","name":"check","inputs":[]},` +
		`{"type":"function","name":"imAvailable","inputs":[]},` +
		`{"type":"function","name":"kill","inputs":[]}]`

	testTokenABI = `[{"type":"function","name":"transferOwnership",` +
		`"inputs":[{"name":"newOwner","type":"address"}]}]`

	testCrowdsaleABI = `[{"type":"constructor","inputs":[` +
		`{"name":"token","type":"address"}]},` +
		`{"type":"function","name":"init","inputs":[]}]`

	testBytecode = "6080604052"
)

type memStore struct {
	contracts map[uint64]*orm.Contract
	deployed  map[uint64]*orm.DeployedContract
	wills     map[uint64]*orm.WillDetails
	icos      map[uint64]*orm.ICODetails
	tokens    map[uint64]*orm.TokenDetails
	airdrops  map[uint64]*orm.AirdropDetails
	pools     map[uint64]*orm.InvestmentPoolDetails
	heirs     map[uint64][]*orm.Heir
	items     []*orm.AirdropItem
	whitelist map[string]bool
	addrs     []*orm.DeployAddress
	nextID    uint64
}

func newMemStore() *memStore {
	return &memStore{
		contracts: make(map[uint64]*orm.Contract),
		deployed:  make(map[uint64]*orm.DeployedContract),
		wills:     make(map[uint64]*orm.WillDetails),
		icos:      make(map[uint64]*orm.ICODetails),
		tokens:    make(map[uint64]*orm.TokenDetails),
		airdrops:  make(map[uint64]*orm.AirdropDetails),
		pools:     make(map[uint64]*orm.InvestmentPoolDetails),
		heirs:     make(map[uint64][]*orm.Heir),
		whitelist: make(map[string]bool),
		nextID:    1000,
	}
}

func (m *memStore) Contract(id uint64) (*orm.Contract, error) {
	c, ok := m.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *memStore) UpdateContractState(id uint64, state orm.State) error {
	c, ok := m.contracts[id]
	if !ok {
		return ErrNotFound
	}
	c.State = state
	return nil
}

func (m *memStore) DeployedContract(id uint64) (*orm.DeployedContract, error) {
	dc, ok := m.deployed[id]
	if !ok {
		return nil, ErrNotFound
	}
	return dc, nil
}

func (m *memStore) DeployedContractByTxHash(hash string) (*orm.DeployedContract, error) {
	for _, dc := range m.deployed {
		if dc.TxHash == hash {
			return dc, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) CreateDeployedContract(dc *orm.DeployedContract) error {
	m.nextID++
	dc.ID = m.nextID
	m.deployed[dc.ID] = dc
	return nil
}

func (m *memStore) SaveDeployedContract(dc *orm.DeployedContract) error {
	m.deployed[dc.ID] = dc
	return nil
}

func (m *memStore) WillDetails(contractID uint64) (*orm.WillDetails, error) {
	d, ok := m.wills[contractID]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *memStore) SaveWillDetails(d *orm.WillDetails) error {
	m.wills[d.ContractID] = d
	return nil
}

func (m *memStore) AddDuty(contractID uint64, delta int64) error {
	d, ok := m.wills[contractID]
	if !ok {
		return ErrNotFound
	}
	d.Duty = uint64(int64(d.Duty) + delta)
	return nil
}

func (m *memStore) WillsDueForCheck(network string, now time.Time) ([]*orm.Contract, error) {
	var due []*orm.Contract
	for id, d := range m.wills {
		c, ok := m.contracts[id]
		if !ok || c.Network != network || c.State != orm.StateActive {
			continue
		}
		if d.NextCheck != nil && !d.NextCheck.After(now) {
			due = append(due, c)
		}
	}
	return due, nil
}

func (m *memStore) ICODetails(contractID uint64) (*orm.ICODetails, error) {
	d, ok := m.icos[contractID]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *memStore) SaveICODetails(d *orm.ICODetails) error {
	m.icos[d.ContractID] = d
	return nil
}

func (m *memStore) TokenDetails(contractID uint64) (*orm.TokenDetails, error) {
	d, ok := m.tokens[contractID]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *memStore) SaveTokenDetails(d *orm.TokenDetails) error {
	m.tokens[d.ContractID] = d
	return nil
}

func (m *memStore) AirdropDetails(contractID uint64) (*orm.AirdropDetails, error) {
	d, ok := m.airdrops[contractID]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *memStore) SaveAirdropDetails(d *orm.AirdropDetails) error {
	m.airdrops[d.ContractID] = d
	return nil
}

func (m *memStore) InvestmentPoolDetails(contractID uint64) (*orm.InvestmentPoolDetails, error) {
	d, ok := m.pools[contractID]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *memStore) SaveInvestmentPoolDetails(d *orm.InvestmentPoolDetails) error {
	m.pools[d.ContractID] = d
	return nil
}

func (m *memStore) Heirs(contractID uint64) ([]*orm.Heir, error) {
	return m.heirs[contractID], nil
}

func (m *memStore) ActiveAirdropItems(contractID uint64) ([]*orm.AirdropItem, error) {
	var items []*orm.AirdropItem
	for _, it := range m.items {
		if it.ContractID == contractID && it.Active {
			items = append(items, it)
		}
	}
	return items, nil
}

func (m *memStore) UpdateAirdropItems(ids []uint64, state orm.ItemState) error {
	want := make(map[uint64]bool)
	for _, id := range ids {
		want[id] = true
	}
	for _, it := range m.items {
		if want[it.ID] {
			it.State = state
		}
	}
	return nil
}

func (m *memStore) CountPendingAirdropItems(contractID uint64) (int64, error) {
	var count int64
	for _, it := range m.items {
		if it.ContractID == contractID && it.Active && it.State != orm.ItemSent {
			count++
		}
	}
	return count, nil
}

func keyOf(contractID uint64, address string) string {
	return fmt.Sprintf("%d/%s", contractID, address)
}

func (m *memStore) UpsertWhitelistAddress(contractID uint64, address string, active bool) error {
	m.whitelist[keyOf(contractID, address)] = active
	return nil
}

func (m *memStore) TryLock(network string, contractID uint64) (bool, error) {
	for _, a := range m.addrs {
		if a.Network == network && a.LockedBy != nil && *a.LockedBy == contractID {
			return true, nil
		}
	}
	for _, a := range m.addrs {
		if a.Network == network && a.LockedBy == nil {
			id := contractID
			a.LockedBy = &id
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) Unlock(network string, contractID uint64) error {
	for _, a := range m.addrs {
		if a.Network != network || a.LockedBy == nil {
			continue
		}
		if contractID == 0 || *a.LockedBy == contractID {
			a.LockedBy = nil
		}
	}
	return nil
}

func (m *memStore) lockHolder(network string) uint64 {
	for _, a := range m.addrs {
		if a.Network == network && a.LockedBy != nil {
			return *a.LockedBy
		}
	}
	return 0
}

func (m *memStore) addDeployAddress(network string) {
	m.addrs = append(m.addrs, &orm.DeployAddress{
		ID:      uint64(len(m.addrs) + 1),
		Network: network,
		Address: fmt.Sprintf("0xdeploy%02d", len(m.addrs)+1),
	})
}

type fakeChain struct {
	nonce   uint64
	balance *big.Int
	sent    []*types.Transaction
}

func (f *fakeChain) PendingNonce(_ context.Context, _ string) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeChain) Balance(_ context.Context, _ string) (*big.Int, error) {
	if f.balance == nil {
		return big.NewInt(0), nil
	}
	return f.balance, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) (string, error) {
	f.sent = append(f.sent, tx)
	f.nonce++
	return fmt.Sprintf("0xtx%02d", len(f.sent)), nil
}

type fakeSigner struct{}

func (fakeSigner) Address() string {
	return "0x00000000000000000000000000000000000000aa"
}

func (fakeSigner) SignDeploy(nonce, gasLimit, gasPrice uint64, data []byte) (*types.Transaction, error) {
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		Gas:      gasLimit,
		GasPrice: new(big.Int).SetUint64(gasPrice),
		Data:     data,
	}), nil
}

func (fakeSigner) SignCall(
	nonce uint64,
	to string,
	value *big.Int,
	gasLimit, gasPrice uint64,
	data []byte,
) (*types.Transaction, error) {
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		Gas:      gasLimit,
		GasPrice: new(big.Int).SetUint64(gasPrice),
		Value:    value,
		Data:     data,
	}), nil
}

type fakeVerifier struct {
	statuses map[string]chain.TxStatus
}

func (f *fakeVerifier) Verify(_ context.Context, txHash string) (chain.TxStatus, error) {
	if s, ok := f.statuses[txHash]; ok {
		return s, nil
	}
	return chain.TxSucceeded, nil
}

type fakeCompiler struct {
	artifacts []*compiler.Artifact
}

func (f *fakeCompiler) Compile(_ context.Context, _ *compiler.Request) ([]*compiler.Artifact, error) {
	return f.artifacts, nil
}

type fakeNotifier struct {
	events []string
}

func (f *fakeNotifier) Notify(_ uint64, event string, _ map[string]interface{}) {
	f.events = append(f.events, event)
}

type fakeQueue struct {
	published [][]byte
	acks      int
	nacks     int
}

func (f *fakeQueue) Consume(_ context.Context, _ time.Duration) (*queue.Delivery, error) {
	return nil, queue.ErrEmpty
}

func (f *fakeQueue) Ack(_ context.Context, _ *queue.Delivery) error {
	f.acks++
	return nil
}

func (f *fakeQueue) Nack(_ context.Context, _ *queue.Delivery) error {
	f.nacks++
	return nil
}

func (f *fakeQueue) Publish(_ context.Context, body []byte) error {
	f.published = append(f.published, body)
	return nil
}

type testEnv struct {
	engine   *Engine
	store    *memStore
	chain    *fakeChain
	verifier *fakeVerifier
	compiler *fakeCompiler
	notifier *fakeNotifier
	queue    *fakeQueue
	now      time.Time
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:    newMemStore(),
		chain:    &fakeChain{balance: big.NewInt(1e18)},
		verifier: &fakeVerifier{statuses: make(map[string]chain.TxStatus)},
		compiler: &fakeCompiler{},
		notifier: &fakeNotifier{},
		queue:    &fakeQueue{},
		now:      time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	env.engine = New(
		config.Network{
			Name:                "mainnet",
			ChainID:             1,
			GasPrice:            20,
			DeployGasLimit:      4000000,
			CallGasLimit:        200000,
			CollateralBilling:   true,
			AliveTimeoutSeconds: 600,
		},
		1,
		Deps{
			Store:    env.store,
			Chain:    env.chain,
			Signer:   fakeSigner{},
			Verifier: env.verifier,
			Compiler: env.compiler,
			Notifier: env.notifier,
			Queue:    env.queue,
		},
	)
	env.engine.now = func() time.Time { return env.now }
	return env
}

func (env *testEnv) addContract(typ orm.ContractType, state orm.State) *orm.Contract {
	env.store.nextID++
	c := &orm.Contract{
		ID:      env.store.nextID,
		UserID:  7,
		Network: "mainnet",
		Type:    typ,
		State:   state,
	}
	env.store.contracts[c.ID] = c
	return c
}
