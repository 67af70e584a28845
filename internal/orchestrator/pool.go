package orchestrator

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/hmoradi/banking-saga/internal/worker"
)

var ErrNoWorkers = errors.New("orchestrator: no alive workers")

// Worker is one delegation target. Implementations report lifecycle through
// Done (closed on exit or channel breakdown); membership changes are observed,
// never polled.
type Worker interface {
	ID() string
	Alive() bool
	Send(t worker.Task) error
	Results() <-chan worker.Result
	Done() <-chan struct{}
	Stop()
}

// Pool tracks connected workers.
type Pool struct {
	mu      sync.RWMutex
	workers map[string]Worker
}

func NewPool() *Pool {
	return &Pool{workers: make(map[string]Worker)}
}

func (p *Pool) Add(w Worker) {
	p.mu.Lock()
	p.workers[w.ID()] = w
	p.mu.Unlock()
}

func (p *Pool) Remove(id string) {
	p.mu.Lock()
	delete(p.workers, id)
	p.mu.Unlock()
}

// PickRandom returns a uniformly-random alive worker.
func (p *Pool) PickRandom() (Worker, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	alive := make([]Worker, 0, len(p.workers))
	for _, w := range p.workers {
		if w.Alive() {
			alive = append(alive, w)
		}
	}
	if len(alive) == 0 {
		return nil, ErrNoWorkers
	}
	return alive[rand.Intn(len(alive))], nil
}

func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}

// All returns a snapshot of current members.
func (p *Pool) All() []Worker {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Worker, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w)
	}
	return out
}
