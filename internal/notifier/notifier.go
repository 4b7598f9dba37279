// Package notifier implements the supplemental Web Push notifier
// (SPEC_FULL.md §4.13): it counts PipelineFinished events and, every
// cooldown_time, sends one digest push notification to each registered
// subscription. Completions are counted across all users; digests are not
// split or addressed per user.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/robfig/cron/v3"

	"github.com/devzbysiu/dox-sub000/internal/eventbus"
)

// Subscription is one registered browser push endpoint.
type Subscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// SubscriptionStore returns every subscription that receives the digest; it
// is not scoped by user. The pipeline has no user-subscription domain model
// of its own, so this is the narrowest seam a caller needs to provide one.
type SubscriptionStore interface {
	Subscriptions() []Subscription
}

// VAPIDKeys are the notifier's own identity when talking to a push service.
type VAPIDKeys struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
}

// Notifier subscribes to PipelineFinished and flushes a digest push
// notification per cooldown tick, matching this stack's own
// loan/repair-reminder digest pattern generalized from a daily cron slot to
// a configurable cooldown.
type Notifier struct {
	bus    *eventbus.Bus
	store  SubscriptionStore
	vapid  VAPIDKeys
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	pending int
}

// New builds a Notifier. cooldown controls how often the cron schedule
// flushes pending completions; it is expressed as a duration rather than a
// cron spec because the spec's `cooldown_time` config field is itself a
// duration (SPEC_FULL.md §6).
func New(bus *eventbus.Bus, store SubscriptionStore, vapid VAPIDKeys, cooldown time.Duration, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New()
	n := &Notifier{
		bus:    bus,
		store:  store,
		vapid:  vapid,
		cron:   c,
		logger: logger.With("component", "notifier"),
	}
	spec := "@every " + cooldown.String()
	if _, err := c.AddFunc(spec, n.flush); err != nil {
		n.logger.Error("failed to register digest schedule", "spec", spec, "error", err)
	}
	return n
}

// Run subscribes to the bus and starts the digest cron until ctx is
// cancelled.
func (n *Notifier) Run(ctx context.Context) {
	sub := n.bus.Subscriber()
	defer sub.Close()

	n.cron.Start()
	defer n.cron.Stop()

	for {
		event, err := sub.Recv(ctx)
		if err != nil {
			return
		}
		if event.Kind == eventbus.PipelineFinished {
			n.mu.Lock()
			n.pending++
			n.mu.Unlock()
		}
	}
}

// flush sends one digest notification per registered subscription if any
// PipelineFinished events have accumulated since the last tick, then resets
// the counter.
func (n *Notifier) flush() {
	n.mu.Lock()
	count := n.pending
	n.pending = 0
	n.mu.Unlock()

	if count == 0 {
		return
	}

	message := digestMessage(count)
	for _, sub := range n.store.Subscriptions() {
		if err := n.send(sub, message); err != nil {
			n.logger.Error("failed to send push digest", "endpoint", sub.Endpoint, "error", err)
		}
	}
}

func (n *Notifier) send(sub Subscription, payload []byte) error {
	resp, err := webpush.SendNotification(payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      n.vapid.Subscriber,
		VAPIDPublicKey:  n.vapid.PublicKey,
		VAPIDPrivateKey: n.vapid.PrivateKey,
		TTL:             86400,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func digestMessage(count int) []byte {
	plural := "documents"
	if count == 1 {
		plural = "document"
	}
	body := struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}{
		Title: "dox",
		Body:  fmt.Sprintf("%d new %s ready", count, plural),
	}
	data, _ := json.Marshal(body)
	return data
}
