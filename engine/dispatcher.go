package engine

import (
	"context"
	"encoding/json"

	"github.com/photon-storage/go-common/log"
	"github.com/pkg/errors"

	"github.com/wishlabs/deployer/database/orm"
	"github.com/wishlabs/deployer/queue"
)

// maxRequeues caps how often one event goes back to the tail before the
// dispatcher gives up on it. A contract stuck this long needs operator
// attention; dropping keeps the queue moving for everyone else.
const maxRequeues = 500

// artifactEvents lists the event types whose contractId references a
// deployed artifact row instead of the contract itself. The watcher only
// knows on-chain identities, so its events carry artifact ids; internal
// commands carry contract ids.
var artifactEvents = map[string]bool{
	"deployed":             true,
	"killed":               true,
	"checked":              true,
	"triggered":            true,
	"ownershipTransferred": true,
	"initialized":          true,
	"finalized":            true,
	"finish":               true,
	"notified":             true,
	"fundsAdded":           true,
	"timesChanged":         true,
	"airdrop":              true,
	"whitelistAdded":       true,
	"whitelistRemoved":     true,
	"cancelled":            true,
	"investmentPoolSetup":  true,
}

// dispatch routes one delivery through the matching lifecycle handler
// and settles it against the queue. The policy deliberately favors queue
// availability: only a resource-busy outcome earns a redelivery, every
// other failure is logged and consumed.
func (e *Engine) dispatch(ctx context.Context, d *queue.Delivery) {
	msg := &Message{}
	if err := json.Unmarshal(d.Body, msg); err != nil {
		log.Error("fail decode event", "network", e.cfg.Name, "error", err)
		e.settle(ctx, d, true)
		return
	}

	err := e.handle(ctx, msg)
	switch {
	case errors.Is(err, errNeedRequeue):
		if d.Requeues >= maxRequeues {
			log.Warn("dropping event after redelivery limit",
				"type", msg.Type,
				"contract", msg.ContractID,
				"requeues", d.Requeues,
			)
			e.settle(ctx, d, true)
			return
		}
		e.settle(ctx, d, false)

	case errors.Is(err, errTxFailed):
		// terminal for this deployment attempt, nothing to retry
		e.settle(ctx, d, true)

	case err != nil:
		log.Error("event handler failed",
			"type", msg.Type,
			"contract", msg.ContractID,
			"error", err,
		)
		e.settle(ctx, d, true)

	default:
		e.settle(ctx, d, true)
	}
}

func (e *Engine) settle(ctx context.Context, d *queue.Delivery, ack bool) {
	var err error
	if ack {
		err = e.queue.Ack(ctx, d)
	} else {
		err = e.queue.Nack(ctx, d)
	}
	if err != nil {
		log.Error("fail settle delivery", "network", e.cfg.Name, "error", err)
	}
}

func (e *Engine) handle(ctx context.Context, msg *Message) error {
	if msg.Type == "transactionCompleted" {
		return e.transactionCompleted(ctx, msg)
	}

	c, err := e.resolveContract(msg)
	if errors.Is(err, ErrNotFound) {
		// contract removed between event publish and processing
		log.Warn("event references missing contract",
			"type", msg.Type,
			"contract", msg.ContractID,
		)
		return nil
	}
	if err != nil {
		return err
	}

	spec := e.handlers[c.Type][msg.Type]
	if spec == nil {
		log.Warn("no handler for event",
			"type", msg.Type,
			"contract_type", c.Type.String(),
			"contract", c.ID,
		)
		return nil
	}

	return e.invoke(ctx, spec, c, msg)
}

func (e *Engine) resolveContract(msg *Message) (*orm.Contract, error) {
	id := msg.ContractID
	if msg.Type == "ownershipTransferred" && msg.CrowdsaleID != 0 {
		id = msg.CrowdsaleID
	}

	if artifactEvents[msg.Type] {
		dc, err := e.store.DeployedContract(id)
		if err != nil {
			return nil, err
		}
		return e.store.Contract(dc.ContractID)
	}

	return e.store.Contract(id)
}

// transactionCompleted is routed by transaction hash rather than by
// contract id. A successful completion is already covered by the
// event that announced it; only failures need compensation here.
func (e *Engine) transactionCompleted(ctx context.Context, msg *Message) error {
	if msg.TxSuccess {
		return nil
	}

	dc, err := e.store.DeployedContractByTxHash(msg.TxHash)
	if errors.Is(err, ErrNotFound) {
		log.Warn("failed transaction unknown to engine", "tx", msg.TxHash)
		return nil
	}
	if err != nil {
		return err
	}

	c, err := e.store.Contract(dc.ContractID)
	if err != nil {
		return err
	}

	// The contract keeps its state for operator follow-up; resubmission
	// needs fresh nonce and gas decisions outside the engine.
	log.Warn("deployment transaction failed",
		"contract", c.ID,
		"network", c.Network,
		"tx", msg.TxHash,
	)

	return e.store.Unlock(c.Network, c.ID)
}
