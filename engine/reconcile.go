package engine

import (
	"context"

	"github.com/photon-storage/go-common/log"

	"github.com/wishlabs/deployer/database/orm"
)

// airdropTransitions maps a batch report status to the item state
// transition it confirms. A COMMITTED entry with no processing item to
// match falls back to consuming an added item; the on-chain send is
// authoritative even when the processing marker was lost.
var airdropTransitions = map[string]struct {
	prior    orm.ItemState
	next     orm.ItemState
	fallback orm.ItemState
}{
	"PENDING":   {prior: orm.ItemAdded, next: orm.ItemProcessing},
	"COMMITTED": {prior: orm.ItemProcessing, next: orm.ItemSent, fallback: orm.ItemAdded},
	"REJECTED":  {prior: orm.ItemProcessing, next: orm.ItemAdded},
}

// reconcile matches one batch report against the contract's active
// recipient items. Items match by address, amount and prior state, each
// item consumed at most once per report so duplicate recipients map to
// distinct rows. Unmatched report entries are logged and skipped, never
// failing the whole report.
func (a *airdropLifecycle) reconcile(_ context.Context, c *orm.Contract, msg *Message) error {
	tr, ok := airdropTransitions[msg.Status]
	if !ok {
		log.Warn("airdrop report with unknown status",
			"contract", c.ID,
			"status", msg.Status,
		)
		return nil
	}

	items, err := a.e.store.ActiveAirdropItems(c.ID)
	if err != nil {
		return err
	}

	matched := make(map[uint64]bool)
	var ids []uint64
	for _, entry := range msg.Items {
		id, ok := matchItem(items, matched, &entry, tr.prior)
		if !ok && tr.fallback != "" {
			id, ok = matchItem(items, matched, &entry, tr.fallback)
		}
		if !ok {
			log.Warn("airdrop report entry matches no item",
				"contract", c.ID,
				"address", entry.Address,
				"amount", entry.Amount,
				"status", msg.Status,
			)
			continue
		}

		matched[id] = true
		ids = append(ids, id)
	}

	if len(ids) < len(msg.Items) {
		log.Warn("airdrop report partially matched",
			"contract", c.ID,
			"entries", len(msg.Items),
			"matched", len(ids),
			"status", msg.Status,
		)
	}

	if len(ids) > 0 {
		if err := a.e.store.UpdateAirdropItems(ids, tr.next); err != nil {
			return err
		}
	}

	if msg.Status != "COMMITTED" || c.State != orm.StateActive {
		return nil
	}

	pending, err := a.e.store.CountPendingAirdropItems(c.ID)
	if err != nil {
		return err
	}
	if pending == 0 {
		return a.e.setState(c, orm.StateEnded)
	}

	return nil
}

// matchItem finds the first unconsumed active item matching the report
// entry in the wanted state.
func matchItem(
	items []*orm.AirdropItem,
	matched map[uint64]bool,
	entry *ReportItem,
	state orm.ItemState,
) (uint64, bool) {
	for _, it := range items {
		if matched[it.ID] {
			continue
		}
		if it.State != state {
			continue
		}
		if it.Address != entry.Address || it.Amount != entry.Amount {
			continue
		}
		return it.ID, true
	}

	return 0, false
}
