package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/hmoradi/banking-saga/internal/handler"
	"github.com/hmoradi/banking-saga/internal/logger"
	"github.com/hmoradi/banking-saga/internal/metrics"
	"go.uber.org/zap"
)

const defaultProcessors = 8

// Runner is the worker-process task loop: it decodes tasks from in, executes
// them through the command registry, and writes one result line per task to
// out. It exits cleanly when in reaches EOF (the orchestrator closed our
// stdin) or ctx is cancelled.
type Runner struct {
	Registry   *handler.Registry
	Processors int
}

func NewRunner(reg *handler.Registry) *Runner {
	return &Runner{Registry: reg, Processors: defaultProcessors}
}

func (r *Runner) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	procs := r.Processors
	if procs <= 0 {
		procs = defaultProcessors
	}

	var outMu sync.Mutex
	enc := json.NewEncoder(out)
	report := func(res Result) {
		outMu.Lock()
		defer outMu.Unlock()
		if err := enc.Encode(res); err != nil {
			logger.Log.Error("worker: result write failed", zap.String("task_id", res.TaskID), zap.Error(err))
		}
	}

	tasks := make(chan Task, procs)

	var wg sync.WaitGroup
	for i := 0; i < procs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				r.runOne(ctx, t, report)
			}
		}()
	}

	dec := json.NewDecoder(in)
	var err error
	for {
		var t Task
		if derr := dec.Decode(&t); derr != nil {
			if !errors.Is(derr, io.EOF) && ctx.Err() == nil {
				err = derr
			}
			break
		}
		select {
		case tasks <- t:
		case <-ctx.Done():
			err = nil
		}
		if ctx.Err() != nil {
			break
		}
	}

	close(tasks)
	wg.Wait()
	return err
}

func (r *Runner) runOne(ctx context.Context, t Task, report func(Result)) {
	res := Result{TaskID: t.ID, Success: true}

	if err := r.Registry.Dispatch(ctx, t.Command, t.Payload); err != nil {
		res.Success = false
		res.Error = err.Error()
		logger.Log.Warn("worker: task failed",
			zap.String("task_id", t.ID),
			zap.String("command", t.Command),
			zap.Error(err),
		)
		metrics.WorkerTasksTotal.WithLabelValues(t.Command, "failed").Inc()
	} else {
		metrics.WorkerTasksTotal.WithLabelValues(t.Command, "ok").Inc()
	}

	report(res)
}
