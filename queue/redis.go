package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ErrEmpty is returned by Consume when no message arrived within the
// wait window.
var ErrEmpty = errors.New("no message available")

// redisLists is the subset of go-redis the queue uses. *redis.Client
// satisfies it; tests plug in a fake.
type redisLists interface {
	BLMove(ctx context.Context, source, destination, srcpos, destpos string, timeout time.Duration) *redis.StringCmd
	LRem(ctx context.Context, key string, count int64, value interface{}) *redis.IntCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Delivery is one consumed message. The same physical message may be
// delivered more than once; Requeues counts how often it went back to
// the tail after a negative acknowledgement.
type Delivery struct {
	Body     []byte
	Requeues int

	raw string
}

// envelope wraps a requeued message so redelivery attempts survive the
// round trip through the list. Messages fresh from producers are plain
// event bodies without the wrapper.
type envelope struct {
	Requeues int             `json:"requeues"`
	Event    json.RawMessage `json:"event"`
}

// Queue is a durable at-least-once message queue over a redis list.
// Consumed entries are parked on a processing list until acknowledged,
// so a crashed worker leaves its message recoverable. A negative
// acknowledgement pushes the message back to the tail, which spaces
// redeliveries out behind the rest of the queue instead of spinning on
// the same contended message.
type Queue struct {
	rdb        redisLists
	name       string
	processing string
}

// New returns a queue consuming the named redis list.
func New(rdb redisLists, name string) *Queue {
	return &Queue{
		rdb:        rdb,
		name:       name,
		processing: name + ":processing",
	}
}

// Consume blocks up to wait for the next message.
func (q *Queue) Consume(ctx context.Context, wait time.Duration) (*Delivery, error) {
	raw, err := q.rdb.BLMove(ctx, q.name, q.processing, "LEFT", "RIGHT", wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, errors.Wrap(err, "consume queue")
	}

	d := &Delivery{Body: []byte(raw), raw: raw}
	env := &envelope{}
	if err := json.Unmarshal([]byte(raw), env); err == nil && env.Event != nil {
		d.Body = env.Event
		d.Requeues = env.Requeues
	}

	return d, nil
}

// Ack removes the delivery from the processing list for good.
func (q *Queue) Ack(ctx context.Context, d *Delivery) error {
	return q.rdb.LRem(ctx, q.processing, 1, d.raw).Err()
}

// Nack requeues the delivery at the tail of the queue for another
// attempt and removes it from the processing list.
func (q *Queue) Nack(ctx context.Context, d *Delivery) error {
	wrapped, err := json.Marshal(&envelope{
		Requeues: d.Requeues + 1,
		Event:    json.RawMessage(d.Body),
	})
	if err != nil {
		return errors.Wrap(err, "wrap requeued message")
	}

	if err := q.rdb.RPush(ctx, q.name, string(wrapped)).Err(); err != nil {
		return errors.Wrap(err, "requeue message")
	}

	return q.rdb.LRem(ctx, q.processing, 1, d.raw).Err()
}

// Publish appends a message to the tail of the queue.
func (q *Queue) Publish(ctx context.Context, body []byte) error {
	return q.rdb.RPush(ctx, q.name, string(body)).Err()
}
