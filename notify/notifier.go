package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/photon-storage/go-common/log"
	"github.com/redis/go-redis/v9"
)

const notifyTimeout = 2 * time.Second

type redisPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Notification is one outbound user-facing message. The websocket and
// mail gateways consume the stream downstream.
type Notification struct {
	UserID uint64                 `json:"user_id"`
	Event  string                 `json:"event"`
	Data   map[string]interface{} `json:"data"`
}

// Notifier publishes notifications onto a redis stream list. Delivery is
// fire and forget; the engine never waits for or reacts to the outcome.
type Notifier struct {
	rdb redisPusher
	key string
}

// New returns a notifier publishing to the given list.
func New(rdb redisPusher, key string) *Notifier {
	return &Notifier{rdb: rdb, key: key}
}

// Notify enqueues one notification. Failures are logged and dropped.
func (n *Notifier) Notify(userID uint64, event string, data map[string]interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	body, err := json.Marshal(&Notification{
		UserID: userID,
		Event:  event,
		Data:   data,
	})
	if err != nil {
		log.Error("fail marshal notification", "event", event, "error", err)
		return
	}

	if err := n.rdb.RPush(ctx, n.key, string(body)).Err(); err != nil {
		log.Error("fail publish notification", "event", event, "error", err)
	}
}
