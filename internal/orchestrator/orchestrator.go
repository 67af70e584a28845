package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/hmoradi/banking-saga/internal/broker"
	"github.com/hmoradi/banking-saga/internal/logger"
	"github.com/hmoradi/banking-saga/internal/metrics"
	"github.com/hmoradi/banking-saga/internal/model"
	"github.com/hmoradi/banking-saga/internal/util"
	"github.com/hmoradi/banking-saga/internal/worker"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var ErrBrokerDown = errors.New("orchestrator: broker connection is not alive")

// Delivery is the slice of amqp.Delivery the orchestrator settles. Split out
// so tests can feed fakes.
type Delivery interface {
	Body() []byte
	RoutingKey() string
	Ack() error
	Nack() error // never requeues
}

type amqpDelivery struct {
	d amqp.Delivery
}

func (a amqpDelivery) Body() []byte       { return a.d.Body }
func (a amqpDelivery) RoutingKey() string { return a.d.RoutingKey }
func (a amqpDelivery) Ack() error         { return a.d.Ack(false) }
func (a amqpDelivery) Nack() error        { return a.d.Nack(false, false) }

type pendingTask struct {
	delivery Delivery
	workerID string
	queue    string
}

// Orchestrator runs only in the primary process: it consumes every command
// queue with prefetch-1 manual ack, forwards each message to a random alive
// worker, and settles the broker message strictly from the worker's reported
// outcome. A message is never acked at forward time.
type Orchestrator struct {
	Broker *broker.Client
	Pool   *Pool

	// Spawn creates a replacement worker after one dies. Nil disables respawn.
	Spawn        func() (Worker, error)
	RespawnDelay time.Duration
	Prefetch     int

	mu      sync.Mutex
	pending map[string]pendingTask

	// commandFromQueue maps a routing key back to the command name carried by
	// bare (non-envelope) messages.
	commandFromQueue map[string]string
}

func New(b *broker.Client, pool *Pool) *Orchestrator {
	byQueue := make(map[string]string, len(model.RoutingKeys))
	for name, key := range model.RoutingKeys {
		byQueue[key] = name
	}
	return &Orchestrator{
		Broker:           b,
		Pool:             pool,
		RespawnDelay:     2 * time.Second,
		Prefetch:         1,
		pending:          make(map[string]pendingTask),
		commandFromQueue: byQueue,
	}
}

// Run verifies the broker connection, subscribes to every command queue,
// and blocks until ctx is cancelled. Workers must be registered through
// AddWorker, which attaches their lifecycle watchers.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.Broker == nil || !o.Broker.Alive() {
		return ErrBrokerDown
	}

	for _, queue := range broker.Queues {
		deliveries, ch, err := o.Broker.ConsumeChannel(queue, o.Prefetch)
		if err != nil {
			return err
		}
		defer ch.Close()

		queue := queue
		go func() {
			for d := range deliveries {
				o.Dispatch(queue, amqpDelivery{d: d})
			}
		}()
	}

	logger.Log.Info("orchestrator started",
		zap.Int("queues", len(broker.Queues)),
		zap.Int("workers", o.Pool.Len()),
	)

	<-ctx.Done()

	for _, w := range o.Pool.All() {
		w.Stop()
	}
	return nil
}

// AddWorker registers a worker and watches its results and lifecycle.
func (o *Orchestrator) AddWorker(ctx context.Context, w Worker) {
	o.Pool.Add(w)
	go o.watch(ctx, w)
}

// Dispatch forwards one broker message to a worker. Any forwarding failure
// nacks the message immediately; otherwise settling waits for the worker's
// result.
func (o *Orchestrator) Dispatch(queue string, d Delivery) {
	name, payload, err := o.unwrap(queue, d.Body())
	if err != nil {
		logger.Log.Warn("orchestrator: bad message", zap.String("queue", queue), zap.Error(err))
		o.settle(queue, d, false)
		return
	}

	w, err := o.Pool.PickRandom()
	if err != nil {
		logger.Log.Error("orchestrator: no worker available", zap.String("queue", queue), zap.String("command", name))
		o.settle(queue, d, false)
		return
	}

	taskID := util.NewID()
	o.mu.Lock()
	o.pending[taskID] = pendingTask{delivery: d, workerID: w.ID(), queue: queue}
	o.mu.Unlock()

	if err := w.Send(worker.Task{ID: taskID, Command: name, Payload: payload}); err != nil {
		logger.Log.Error("orchestrator: forward failed",
			zap.String("queue", queue),
			zap.String("worker_id", w.ID()),
			zap.Error(err),
		)
		o.mu.Lock()
		delete(o.pending, taskID)
		o.mu.Unlock()
		o.settle(queue, d, false)
	}
}

// unwrap extracts (commandName, inner payload) from a message body, accepting
// either the shared envelope or a bare payload routed by queue name.
func (o *Orchestrator) unwrap(queue string, body []byte) (string, json.RawMessage, error) {
	var env model.Envelope
	if err := json.Unmarshal(body, &env); err == nil && env.CommandName != "" {
		return env.CommandName, env.Payload, nil
	}

	name, ok := o.commandFromQueue[queue]
	if !ok {
		return "", nil, errors.New("no envelope and unknown queue")
	}
	return name, body, nil
}

func (o *Orchestrator) watch(ctx context.Context, w Worker) {
	for {
		select {
		case res := <-w.Results():
			o.onResult(res)
		case <-w.Done():
			o.onWorkerDeath(ctx, w)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) onResult(res worker.Result) {
	o.mu.Lock()
	pt, ok := o.pending[res.TaskID]
	if ok {
		delete(o.pending, res.TaskID)
	}
	o.mu.Unlock()

	if !ok {
		logger.Log.Warn("orchestrator: result for unknown task", zap.String("task_id", res.TaskID))
		return
	}

	if !res.Success {
		logger.Log.Warn("orchestrator: task failed",
			zap.String("task_id", res.TaskID),
			zap.String("queue", pt.queue),
			zap.String("cause", res.Error),
		)
	}
	o.settle(pt.queue, pt.delivery, res.Success)
}

// onWorkerDeath nacks every task the dead worker still held so none is
// silently lost or double-acked, then respawns a replacement.
func (o *Orchestrator) onWorkerDeath(ctx context.Context, w Worker) {
	o.Pool.Remove(w.ID())

	o.mu.Lock()
	orphans := make(map[string]pendingTask)
	for id, pt := range o.pending {
		if pt.workerID == w.ID() {
			orphans[id] = pt
			delete(o.pending, id)
		}
	}
	o.mu.Unlock()

	for id, pt := range orphans {
		logger.Log.Error("orchestrator: worker died holding task",
			zap.String("worker_id", w.ID()),
			zap.String("task_id", id),
			zap.String("queue", pt.queue),
		)
		o.settle(pt.queue, pt.delivery, false)
	}

	if o.Spawn == nil || ctx.Err() != nil {
		return
	}

	go func() {
		if o.RespawnDelay > 0 {
			select {
			case <-time.After(o.RespawnDelay):
			case <-ctx.Done():
				return
			}
		}
		nw, err := o.Spawn()
		if err != nil {
			logger.Log.Error("orchestrator: respawn failed", zap.Error(err))
			return
		}
		o.AddWorker(ctx, nw)
	}()
}

func (o *Orchestrator) settle(queue string, d Delivery, ok bool) {
	if ok {
		if err := d.Ack(); err != nil {
			logger.Log.Error("orchestrator: ack failed", zap.String("queue", queue), zap.Error(err))
			return
		}
		metrics.BrokerMessagesTotal.WithLabelValues(queue, "ack").Inc()
		return
	}

	if err := d.Nack(); err != nil {
		logger.Log.Error("orchestrator: nack failed", zap.String("queue", queue), zap.Error(err))
		return
	}
	metrics.BrokerMessagesTotal.WithLabelValues(queue, "nack").Inc()
}
