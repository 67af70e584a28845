package notifier

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hmoradi/banking-saga/internal/model"
)

var (
	ErrNoHealthy = fmt.Errorf("no healthy providers")
	ErrNoAcquire = fmt.Errorf("provider not acquired")
)

// Notifier delivers user notifications through a pool of providers with
// round-robin selection and bounded retry.
type Notifier struct {
	providers         []Provider
	roundRobinCounter atomic.Uint64
	maxAttempts       int
}

func New(provs []Provider, maxAttempts int) *Notifier {
	if maxAttempts < 1 {
		maxAttempts = 2
	}

	return &Notifier{providers: provs, maxAttempts: maxAttempts}
}

func (d *Notifier) selectProvider() (Provider, error) {
	healthy := make([]Provider, 0, len(d.providers))
	for _, p := range d.providers {
		if p.Ready() {
			healthy = append(healthy, p)
		}
	}

	if len(healthy) == 0 {
		return nil, ErrNoHealthy
	}

	x := d.roundRobinCounter.Add(1)
	idx := int((x - 1) % uint64(len(healthy)))

	return healthy[idx], nil
}

func (d *Notifier) tryOnce(ctx context.Context, n model.Notification) error {
	p, err := d.selectProvider()
	if err != nil {
		return err
	}

	if !p.Acquire() {
		return ErrNoAcquire
	}

	return p.Deliver(ctx, n)
}

// Notify attempts delivery up to maxAttempts times, rotating providers.
func (d *Notifier) Notify(ctx context.Context, n model.Notification) error {
	var last error
	for i := 0; i < d.maxAttempts; i++ {
		if err := d.tryOnce(ctx, n); err == nil {
			return nil
		} else {
			last = err
		}
	}

	if last == nil {
		last = fmt.Errorf("notify failed")
	}

	return last
}
