package queue

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	lists map[string][]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{lists: map[string][]string{}}
}

func (f *fakeRedis) BLMove(
	_ context.Context,
	source string,
	destination string,
	_ string,
	_ string,
	_ time.Duration,
) *redis.StringCmd {
	l := f.lists[source]
	if len(l) == 0 {
		return redis.NewStringResult("", redis.Nil)
	}

	v := l[0]
	f.lists[source] = l[1:]
	f.lists[destination] = append(f.lists[destination], v)
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) LRem(_ context.Context, key string, _ int64, value interface{}) *redis.IntCmd {
	removed := int64(0)
	kept := f.lists[key][:0]
	for _, v := range f.lists[key] {
		if removed == 0 && v == value.(string) {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	f.lists[key] = kept
	return redis.NewIntResult(removed, nil)
}

func (f *fakeRedis) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	for _, v := range values {
		f.lists[key] = append(f.lists[key], v.(string))
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func TestConsumeAck(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	q := New(rdb, "events")

	if err := q.Publish(ctx, []byte(`{"type":"launch","contractId":1}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	d, err := q.Consume(ctx, time.Second)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if string(d.Body) != `{"type":"launch","contractId":1}` {
		t.Errorf("unexpected body %s", d.Body)
	}
	if d.Requeues != 0 {
		t.Errorf("fresh delivery has requeues %d", d.Requeues)
	}
	if got := len(rdb.lists["events:processing"]); got != 1 {
		t.Fatalf("processing list length = %d, want 1", got)
	}

	if err := q.Ack(ctx, d); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if got := len(rdb.lists["events:processing"]); got != 0 {
		t.Errorf("processing list length after ack = %d, want 0", got)
	}
}

func TestConsumeEmpty(t *testing.T) {
	q := New(newFakeRedis(), "events")
	if _, err := q.Consume(context.Background(), time.Millisecond); err != ErrEmpty {
		t.Errorf("consume on empty queue returned %v, want ErrEmpty", err)
	}
}

func TestNackRequeuesToTail(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	q := New(rdb, "events")

	if err := q.Publish(ctx, []byte(`{"type":"launch","contractId":1}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := q.Publish(ctx, []byte(`{"type":"checked","contractId":2}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	first, err := q.Consume(ctx, time.Second)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := q.Nack(ctx, first); err != nil {
		t.Fatalf("nack: %v", err)
	}
	if got := len(rdb.lists["events:processing"]); got != 0 {
		t.Errorf("processing list length after nack = %d, want 0", got)
	}

	// The untouched message comes first, the requeued one went to the tail.
	second, err := q.Consume(ctx, time.Second)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if string(second.Body) != `{"type":"checked","contractId":2}` {
		t.Errorf("expected the untouched message first, got %s", second.Body)
	}

	redelivered, err := q.Consume(ctx, time.Second)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if string(redelivered.Body) != `{"type":"launch","contractId":1}` {
		t.Errorf("redelivered body = %s", redelivered.Body)
	}
	if redelivered.Requeues != 1 {
		t.Errorf("redelivered requeues = %d, want 1", redelivered.Requeues)
	}

	// A second nack keeps counting.
	if err := q.Nack(ctx, redelivered); err != nil {
		t.Fatalf("nack: %v", err)
	}
	again, err := q.Consume(ctx, time.Second)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if again.Requeues != 2 {
		t.Errorf("requeues = %d, want 2", again.Requeues)
	}
}
