package engine

import (
	"context"

	"github.com/photon-storage/go-common/log"
	"github.com/pkg/errors"

	"github.com/wishlabs/deployer/chain"
	"github.com/wishlabs/deployer/database/orm"
)

var (
	// errNeedRequeue signals a resource-busy condition: the event must be
	// offered again later. Expected steady-state, never logged as error.
	errNeedRequeue = errors.New("resource busy, retry later")

	// errTxFailed signals that the referenced transaction failed on
	// chain. Terminal for this event, consumed without redelivery.
	errTxFailed = errors.New("referenced transaction failed")
)

type handlerFunc func(ctx context.Context, c *orm.Contract, msg *Message) error

// handlerSpec is one entry of a contract type's handler table. The
// markers compose around the handler body in a fixed order: blocking
// first, then transaction verification, then the body.
type handlerSpec struct {
	fn          handlerFunc
	blocking    bool
	postponable bool
	checkTx     bool
}

// invoke runs the middleware pipeline around a handler. Each stage can
// short-circuit: a denied lock or a pending verification postpones the
// event before the handler body sees it, so a postponed event leaves no
// side effects behind.
func (e *Engine) invoke(ctx context.Context, spec *handlerSpec, c *orm.Contract, msg *Message) error {
	if spec.blocking {
		held, err := e.store.TryLock(c.Network, c.ID)
		if err != nil {
			return errors.Wrap(err, "acquire deploy address")
		}
		if !held {
			log.Debug("deploy address busy",
				"network", c.Network,
				"contract", c.ID,
				"event", msg.Type,
			)
			return errNeedRequeue
		}
	}

	if spec.checkTx && msg.TxHash != "" {
		status, err := e.verifier.Verify(ctx, msg.TxHash)
		if err != nil {
			return errors.Wrap(err, "verify transaction")
		}

		switch status {
		case chain.TxPending:
			if spec.postponable {
				return errNeedRequeue
			}
			return errors.Errorf("transaction %s still pending", msg.TxHash)

		case chain.TxFailed:
			// the deploy address may still be held from the submission
			// that produced this transaction
			e.release(c.Network, c.ID)
			log.Warn("event references failed transaction",
				"contract", c.ID,
				"event", msg.Type,
				"tx", msg.TxHash,
			)
			return errTxFailed
		}
	}

	return spec.fn(ctx, c, msg)
}

// release clears the deploy address lock held by the given contract.
// Releasing an already-released lock is a no-op.
func (e *Engine) release(network string, contractID uint64) {
	if err := e.store.Unlock(network, contractID); err != nil {
		log.Error("fail release deploy address",
			"network", network,
			"contract", contractID,
			"error", err,
		)
	}
}

// releaseNetwork clears the network's deploy address lock regardless of
// the recorded holder.
func (e *Engine) releaseNetwork(network string) {
	if err := e.store.Unlock(network, 0); err != nil {
		log.Error("fail release deploy address", "network", network, "error", err)
	}
}
