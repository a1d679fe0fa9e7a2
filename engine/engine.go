package engine

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/photon-storage/go-common/log"
	"github.com/pkg/errors"

	"github.com/wishlabs/deployer/chain"
	"github.com/wishlabs/deployer/compiler"
	"github.com/wishlabs/deployer/config"
	"github.com/wishlabs/deployer/database/orm"
	"github.com/wishlabs/deployer/queue"
)

const consumeWait = 5 * time.Second

// ErrNotFound is returned by Store lookups when the referenced record
// does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the persistence surface of the engine. Implementations must
// provide the two atomic conditional updates the engine relies on:
// TryLock (compare-and-set on a deploy address row) and AddDuty
// (server-side increment, never read-then-write).
type Store interface {
	Contract(id uint64) (*orm.Contract, error)
	UpdateContractState(id uint64, state orm.State) error

	DeployedContract(id uint64) (*orm.DeployedContract, error)
	DeployedContractByTxHash(hash string) (*orm.DeployedContract, error)
	CreateDeployedContract(dc *orm.DeployedContract) error
	SaveDeployedContract(dc *orm.DeployedContract) error

	WillDetails(contractID uint64) (*orm.WillDetails, error)
	SaveWillDetails(d *orm.WillDetails) error
	AddDuty(contractID uint64, delta int64) error
	WillsDueForCheck(network string, now time.Time) ([]*orm.Contract, error)

	ICODetails(contractID uint64) (*orm.ICODetails, error)
	SaveICODetails(d *orm.ICODetails) error

	TokenDetails(contractID uint64) (*orm.TokenDetails, error)
	SaveTokenDetails(d *orm.TokenDetails) error

	AirdropDetails(contractID uint64) (*orm.AirdropDetails, error)
	SaveAirdropDetails(d *orm.AirdropDetails) error

	InvestmentPoolDetails(contractID uint64) (*orm.InvestmentPoolDetails, error)
	SaveInvestmentPoolDetails(d *orm.InvestmentPoolDetails) error

	Heirs(contractID uint64) ([]*orm.Heir, error)

	ActiveAirdropItems(contractID uint64) ([]*orm.AirdropItem, error)
	UpdateAirdropItems(ids []uint64, state orm.ItemState) error
	CountPendingAirdropItems(contractID uint64) (int64, error)

	UpsertWhitelistAddress(contractID uint64, address string, active bool) error

	TryLock(network string, contractID uint64) (bool, error)
	Unlock(network string, contractID uint64) error
}

// Chain is the outbound RPC surface used to build and submit
// transactions.
type Chain interface {
	PendingNonce(ctx context.Context, address string) (uint64, error)
	Balance(ctx context.Context, address string) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) (string, error)
}

// Signer signs transactions with the network's configured deploy key.
type Signer interface {
	Address() string
	SignDeploy(nonce, gasLimit, gasPrice uint64, data []byte) (*types.Transaction, error)
	SignCall(nonce uint64, to string, value *big.Int, gasLimit, gasPrice uint64, data []byte) (*types.Transaction, error)
}

// Verifier resolves the on-chain status of a referenced transaction.
type Verifier interface {
	Verify(ctx context.Context, txHash string) (chain.TxStatus, error)
}

// Compiler produces deployable artifacts for a contract configuration.
type Compiler interface {
	Compile(ctx context.Context, req *compiler.Request) ([]*compiler.Artifact, error)
}

// Notifier delivers fire-and-forget user notifications.
type Notifier interface {
	Notify(userID uint64, event string, data map[string]interface{})
}

// EventQueue is the durable at-least-once channel the engine consumes.
type EventQueue interface {
	Consume(ctx context.Context, wait time.Duration) (*queue.Delivery, error)
	Ack(ctx context.Context, d *queue.Delivery) error
	Nack(ctx context.Context, d *queue.Delivery) error
	Publish(ctx context.Context, body []byte) error
}

// Deps bundles the engine's external collaborators.
type Deps struct {
	Store    Store
	Chain    Chain
	Signer   Signer
	Verifier Verifier
	Compiler Compiler
	Notifier Notifier
	Queue    EventQueue
}

// lifecycle is one contract type variant: its event handler table and
// its deployment cost estimates.
type lifecycle interface {
	handlers() map[string]*handlerSpec
	calcCost(c *orm.Contract) (*big.Int, error)
	minCost() *big.Int
}

// Engine drives contract deployments for one network. A pool of workers
// pulls events off the network queue and runs lifecycle handlers to
// completion; the deploy address lock is the only cross-worker
// coordination point.
type Engine struct {
	cfg      config.Network
	workers  int
	store    Store
	chain    Chain
	signer   Signer
	verifier Verifier
	compiler Compiler
	notifier Notifier
	queue    EventQueue

	lifecycles map[orm.ContractType]lifecycle
	handlers   map[orm.ContractType]map[string]*handlerSpec

	now  func() time.Time
	quit chan struct{}
}

// New returns an engine for the given network. The handler tables of all
// contract types are resolved once here.
func New(cfg config.Network, workers int, deps Deps) *Engine {
	if workers <= 0 {
		workers = 1
	}

	e := &Engine{
		cfg:      cfg,
		workers:  workers,
		store:    deps.Store,
		chain:    deps.Chain,
		signer:   deps.Signer,
		verifier: deps.Verifier,
		compiler: deps.Compiler,
		notifier: deps.Notifier,
		queue:    deps.Queue,
		now:      time.Now,
		quit:     make(chan struct{}),
	}

	e.lifecycles = map[orm.ContractType]lifecycle{
		orm.Will:           &willLifecycle{e: e},
		orm.ICO:            &icoLifecycle{e: e},
		orm.Token:          &tokenLifecycle{e: e},
		orm.Airdrop:        &airdropLifecycle{e: e},
		orm.InvestmentPool: &investPoolLifecycle{e: e},
	}

	e.handlers = make(map[orm.ContractType]map[string]*handlerSpec, len(e.lifecycles))
	for t, lc := range e.lifecycles {
		e.handlers[t] = lc.handlers()
	}

	return e
}

// CalcCost estimates the funds the signing address needs to carry a
// contract through its full lifecycle on this network.
func (e *Engine) CalcCost(contractID uint64) (*big.Int, error) {
	c, err := e.store.Contract(contractID)
	if err != nil {
		return nil, err
	}

	lc := e.lifecycles[c.Type]
	if lc == nil {
		return nil, errors.Errorf("unknown contract type %d", c.Type)
	}

	return lc.calcCost(c)
}

// MinCost returns the lower bound of CalcCost for a contract type,
// independent of any concrete configuration.
func (e *Engine) MinCost(t orm.ContractType) (*big.Int, error) {
	lc := e.lifecycles[t]
	if lc == nil {
		return nil, errors.Errorf("unknown contract type %d", t)
	}

	return lc.minCost(), nil
}

// Run starts the worker pool and blocks until Stop is called or the
// context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	log.Info("deployment engine start", "network", e.cfg.Name, "workers", e.workers)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.consumeLoop(ctx)
		}()
	}

	wg.Wait()
}

// Stop exits all workers.
func (e *Engine) Stop() {
	close(e.quit)
}

func (e *Engine) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-e.quit:
			return

		case <-ctx.Done():
			return

		default:
		}

		d, err := e.queue.Consume(ctx, consumeWait)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			log.Error("fail consume event queue",
				"network", e.cfg.Name,
				"error", err,
			)

			select {
			case <-e.quit:
				return
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		e.dispatch(ctx, d)
	}
}
