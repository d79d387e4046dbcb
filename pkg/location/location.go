// Package location supplies the caller's current position to the ranker.
// Positions are read once through a Provider or followed through an explicit
// Subscription that the caller must release.
package location

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kass/go-geo-rank/pkg/models"
)

var (
	// ErrNoPosition is returned when no position has been published yet
	ErrNoPosition = errors.New("no position available")
	// ErrClosed is returned by a Feed after Close
	ErrClosed = errors.New("location feed closed")
)

// Provider returns the current position
type Provider interface {
	Current(ctx context.Context) (models.GeoPoint, error)
}

// Watcher streams position updates until the subscription is released
type Watcher interface {
	Watch(ctx context.Context) (*Subscription, error)
}

// Subscription is a stream of position updates. The channel returned by
// Updates is closed once Unsubscribe is called or the watch context ends.
type Subscription struct {
	updates chan models.GeoPoint
	done    chan struct{}
	once    sync.Once
	release func()
}

// newSubscription returns a subscription that runs release once, on
// Unsubscribe or, after watch is called, when ctx ends
func newSubscription(release func(*Subscription)) *Subscription {
	sub := &Subscription{
		updates: make(chan models.GeoPoint, 1),
		done:    make(chan struct{}),
	}
	sub.release = func() {
		close(sub.done)
		release(sub)
	}
	return sub
}

// watch ties the subscription to ctx. It must be called once the
// subscription is fully set up.
func (s *Subscription) watch(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.Unsubscribe()
		case <-s.done:
		}
	}()
}

// Updates returns the channel on which positions are delivered
func (s *Subscription) Updates() <-chan models.GeoPoint {
	return s.updates
}

// Unsubscribe stops delivery and closes the updates channel. It is safe to
// call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.release)
}

// Static is a Provider and Watcher for a fixed position
type Static struct {
	Point models.GeoPoint
}

// NewStatic returns a provider that always reports p
func NewStatic(p models.GeoPoint) *Static {
	return &Static{Point: p}
}

func (s *Static) Current(ctx context.Context) (models.GeoPoint, error) {
	if err := ctx.Err(); err != nil {
		return models.GeoPoint{}, err
	}
	return s.Point, nil
}

// Watch delivers the fixed position once and then waits for release
func (s *Static) Watch(ctx context.Context) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := newSubscription(func(sub *Subscription) {
		close(sub.updates)
	})
	sub.updates <- s.Point
	sub.watch(ctx)
	return sub, nil
}

// Feed fans published positions out to its subscribers. Publish never
// blocks: a subscriber that has not drained its previous update gets only
// the newest one. PublishWait delivers every position instead.
type Feed struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	current *models.GeoPoint
	closed  bool
	logger  *zap.Logger
}

// Option configures a Feed
type Option func(*Feed)

// WithLogger sets the logger used for delivery events
func WithLogger(logger *zap.Logger) Option {
	return func(f *Feed) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFeed creates a feed with no position
func NewFeed(opts ...Option) *Feed {
	f := &Feed{
		subs:   make(map[*Subscription]struct{}),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Publish records p as the current position and delivers it to every
// subscriber without blocking. Undelivered older positions are discarded.
func (f *Feed) Publish(p models.GeoPoint) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.current = &p

	replaced := 0
	for sub := range f.subs {
		select {
		case sub.updates <- p:
			continue
		default:
		}

		// Publish is the only sender, so after draining the send succeeds
		select {
		case <-sub.updates:
		default:
		}
		select {
		case sub.updates <- p:
		default:
		}
		replaced++
	}
	if replaced > 0 {
		f.logger.Warn("stale position replaced for slow subscribers",
			zap.Int("replaced", replaced),
			zap.Int("subscribers", len(f.subs)))
	}
}

// PublishWait records p as the current position and waits until every
// subscriber has room for it, so no earlier position is discarded. It
// returns ctx.Err() if ctx ends first; subscribers not yet reached then miss p.
func (f *Feed) PublishWait(ctx context.Context, p models.GeoPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	f.current = &p

	// remove needs the lock to close a channel, and release closes done
	// before taking it, so an unsubscribing receiver never stalls this loop
	for sub := range f.subs {
		select {
		case sub.updates <- p:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Current returns the last published position
func (f *Feed) Current(ctx context.Context) (models.GeoPoint, error) {
	if err := ctx.Err(); err != nil {
		return models.GeoPoint{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return models.GeoPoint{}, ErrClosed
	}
	if f.current == nil {
		return models.GeoPoint{}, ErrNoPosition
	}
	return *f.current, nil
}

// Watch subscribes to position updates. The last published position, if
// any, is delivered first. The subscription ends when ctx is done.
func (f *Feed) Watch(ctx context.Context) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}

	sub := newSubscription(f.remove)
	if f.current != nil {
		sub.updates <- *f.current
	}
	f.subs[sub] = struct{}{}
	sub.watch(ctx)
	return sub, nil
}

// Subscribers returns the number of active subscriptions
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close ends every subscription; later Watch calls fail with ErrClosed
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	subs := make([]*Subscription, 0, len(f.subs))
	for sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// remove closes the channel under the lock so Publish never sends on it
func (f *Feed) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[sub]; !ok {
		return
	}
	delete(f.subs, sub)
	close(sub.updates)
}
