// Package service wires the feed client, the monitoring session, and the
// dashboard-facing fan-out together into one running monitor.
//
// The dispatcher component implements a fan-out distribution system that
// delivers live monitor updates to every connected dashboard viewer while
// handling slow clients gracefully.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"fraudmonitor/internal/model"
)

// Update is one live push to dashboard viewers: the event that just arrived,
// the facts derived from it, and the counters as of that event.
type Update struct {
	Event          model.TransactionEvent `json:"event"`
	Classification model.Classification   `json:"classification"`
	Stats          model.SessionStats     `json:"stats"`
}

// Subscriber represents one connected dashboard viewer.
//
// Each subscriber has its own buffered channel; every update is broadcast to
// all of them (viewers see the same feed, mirroring the monitor itself).
type Subscriber struct {
	id int64       // unique identifier for the subscriber
	ch chan Update // buffered channel for update delivery
}

// Updates returns the subscriber's delivery channel. It is closed when the
// subscriber is removed or the dispatcher shuts down.
func (s *Subscriber) Updates() <-chan Update {
	return s.ch
}

// DispatcherConfig holds configuration parameters for the Dispatcher.
type DispatcherConfig struct {
	// MaxSubscribers caps concurrent viewers to prevent resource abuse.
	MaxSubscribers int

	// SubscriberBuffer is the per-viewer channel depth.
	SubscriberBuffer int
}

const (
	defaultMaxSubscribers   = 64
	defaultSubscriberBuffer = 100
)

// Dispatcher implements fan-out distribution of monitor updates.
//
// It uses the actor model pattern: a single goroutine owns the subscribers
// map, so no mutex is needed. Subscription changes and updates all arrive
// through channels.
type Dispatcher struct {
	cfg              DispatcherConfig
	subscribers      map[int64]*Subscriber // owned by the dispatch goroutine
	subscriptionCh   chan *Subscriber
	unsubscriptionCh chan *Subscriber
	started          atomic.Bool
	randIDGen        *rand.Rand
}

// NewDispatcher creates a new Dispatcher instance with the provided configuration.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.MaxSubscribers <= 0 {
		cfg.MaxSubscribers = defaultMaxSubscribers
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = defaultSubscriberBuffer
	}

	return &Dispatcher{
		cfg:              cfg,
		subscribers:      make(map[int64]*Subscriber),
		subscriptionCh:   make(chan *Subscriber, 10), // buffered to prevent blocking
		unsubscriptionCh: make(chan *Subscriber, 10), // buffered to prevent blocking
		randIDGen:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Subscribe registers a new viewer. The request is handed to the dispatch
// goroutine via a channel so the subscribers map is only ever touched there.
func (d *Dispatcher) Subscribe() (*Subscriber, error) {
	if !d.started.Load() {
		return nil, errors.New("dispatcher not started")
	}

	sub := &Subscriber{
		id: d.randIDGen.Int63(),
		ch: make(chan Update, d.cfg.SubscriberBuffer),
	}

	select {
	case d.subscriptionCh <- sub:
	default:
		return nil, fmt.Errorf("subscription channel is full")
	}

	return sub, nil
}

// Unsubscribe removes a viewer from the dispatcher.
func (d *Dispatcher) Unsubscribe(sub *Subscriber) error {
	select {
	case d.unsubscriptionCh <- sub:
		return nil
	default:
		return fmt.Errorf("unsubscription channel is full")
	}
}

// subscribe is the dispatch-goroutine side of Subscribe.
func (d *Dispatcher) subscribe(sub *Subscriber) {
	if len(d.subscribers) >= d.cfg.MaxSubscribers {
		log.Warn().Int("max", d.cfg.MaxSubscribers).Msg("subscriber limit reached, rejecting viewer")
		close(sub.ch)
		return
	}
	d.subscribers[sub.id] = sub
}

// unsubscribe is the dispatch-goroutine side of Unsubscribe.
func (d *Dispatcher) unsubscribe(sub *Subscriber) {
	if _, ok := d.subscribers[sub.id]; ok {
		delete(d.subscribers, sub.id)
		close(sub.ch)
	}
}

// StartDispatching starts the dispatch goroutine, which processes
// subscription changes and incoming updates until the context is cancelled.
func (d *Dispatcher) StartDispatching(ctx context.Context, updates <-chan Update) error {
	if !d.started.CompareAndSwap(false, true) {
		return errors.New("dispatcher already started")
	}

	go func() {
		defer func() {
			for _, sub := range d.subscribers {
				close(sub.ch)
			}
			d.subscribers = make(map[int64]*Subscriber)
		}()

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("dispatcher stopped")
				return
			case sub := <-d.subscriptionCh:
				d.subscribe(sub)
			case sub := <-d.unsubscriptionCh:
				d.unsubscribe(sub)
			case update := <-updates:
				d.dispatch(update)
			}
		}
	}()
	return nil
}

// dispatch broadcasts an update to every viewer. Only ever called from the
// dispatch goroutine.
//
// Behavior for slow clients: if a viewer's channel is full, the oldest
// buffered update is dropped so the newest is always delivered.
func (d *Dispatcher) dispatch(update Update) {
	for _, sub := range d.subscribers {
		select {
		case sub.ch <- update:
			// delivered without blocking
		default:
			log.Debug().Int64("subscriber", sub.id).Msg("viewer too slow, dropping oldest buffered update")
			<-sub.ch
			sub.ch <- update
		}
	}
}
