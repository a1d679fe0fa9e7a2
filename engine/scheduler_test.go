package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/wishlabs/deployer/database/orm"
)

func TestSchedulerEnqueuesDueChecks(t *testing.T) {
	env := newTestEnv()

	due, _, _ := env.deployedWill(orm.StateActive)
	past := env.now.Add(-time.Minute)
	env.store.wills[due.ID].NextCheck = &past

	notYet, _ := env.setupWill(orm.StateActive)
	future := env.now.Add(time.Hour)
	env.store.wills[notYet.ID].NextCheck = &future

	inactive, _ := env.setupWill(orm.StateWaitingForDeployment)
	env.store.wills[inactive.ID].NextCheck = &past

	q := &fakeQueue{}
	s := NewScheduler(env.store, map[string]EventQueue{"mainnet": q}, time.Minute)
	s.now = func() time.Time { return env.now }

	s.tick(context.Background())

	if len(q.published) != 1 {
		t.Fatalf("published %d commands but want 1", len(q.published))
	}

	msg := &Message{}
	if err := json.Unmarshal(q.published[0], msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "check_contract" || msg.ContractID != due.ID {
		t.Errorf("command is %s/%d but want check_contract/%d",
			msg.Type, msg.ContractID, due.ID)
	}
}

// TestSchedulerSkipsInFlightCheck covers a tick firing while the
// previous check transaction is still unconfirmed: the will must not be
// selected again, and no second paid check may go out.
func TestSchedulerSkipsInFlightCheck(t *testing.T) {
	env := newTestEnv()
	env.store.addDeployAddress("mainnet")
	ctx := context.Background()

	c, d, _ := env.deployedWill(orm.StateActive)
	past := env.now.Add(-time.Minute)
	d.NextCheck = &past

	q := env.queue
	s := NewScheduler(env.store, map[string]EventQueue{"mainnet": env.queue}, time.Minute)
	s.now = func() time.Time { return env.now }

	s.tick(ctx)
	if len(q.published) != 1 {
		t.Fatalf("published %d commands but want 1", len(q.published))
	}

	if err := env.engine.handle(ctx, &Message{
		Type:       "check_contract",
		ContractID: c.ID,
	}); err != nil {
		t.Fatalf("check_contract failed: %v", err)
	}
	if len(env.chain.sent) != 1 {
		t.Fatalf("sent %d transactions but want 1", len(env.chain.sent))
	}
	if d.NextCheck != nil {
		t.Fatalf("next check is %v but want none while the check is in flight", d.NextCheck)
	}

	// second tick before the checked confirmation
	env.now = env.now.Add(time.Minute)
	s.tick(ctx)
	if len(q.published) != 1 {
		t.Errorf("published %d commands but want 1", len(q.published))
	}
	if len(env.chain.sent) != 1 {
		t.Errorf("duplicate check transaction submitted: %d sent", len(env.chain.sent))
	}

	// the confirmation reschedules the cycle
	dc := env.store.deployed[d.DeployedID]
	if err := env.engine.handle(ctx, &Message{
		Type:       "checked",
		ContractID: dc.ID,
		TxHash:     dc.TxHash,
	}); err != nil {
		t.Fatalf("checked failed: %v", err)
	}
	if d.NextCheck == nil {
		t.Error("next check not rescheduled by the confirmation")
	}
}
