package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/photon-storage/go-common/log"
)

// Scheduler periodically scans for will contracts whose next check is
// due and enqueues a check command on the owning network's queue. The
// command goes through the same pipeline as watcher events, so the
// deploy address lock and state guards apply unchanged.
type Scheduler struct {
	store    Store
	queues   map[string]EventQueue
	interval time.Duration
	now      func() time.Time
	quit     chan struct{}
}

func NewScheduler(store Store, queues map[string]EventQueue, interval time.Duration) *Scheduler {
	return &Scheduler{
		store:    store,
		queues:   queues,
		interval: interval,
		now:      time.Now,
		quit:     make(chan struct{}),
	}
}

// Run blocks until Stop is called or the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info("check scheduler start", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Stop exits the scheduler loop.
func (s *Scheduler) Stop() {
	close(s.quit)
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	for network, q := range s.queues {
		due, err := s.store.WillsDueForCheck(network, now)
		if err != nil {
			log.Error("fail scan due checks", "network", network, "error", err)
			continue
		}

		for _, c := range due {
			body, err := json.Marshal(&Message{
				Type:       "check_contract",
				ContractID: c.ID,
			})
			if err != nil {
				log.Error("fail encode check command", "contract", c.ID, "error", err)
				continue
			}

			if err := q.Publish(ctx, body); err != nil {
				log.Error("fail enqueue check command",
					"network", network,
					"contract", c.ID,
					"error", err,
				)
				continue
			}

			log.Debug("check command enqueued", "network", network, "contract", c.ID)
		}
	}
}
