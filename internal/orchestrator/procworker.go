package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/hmoradi/banking-saga/internal/logger"
	"github.com/hmoradi/banking-saga/internal/util"
	"github.com/hmoradi/banking-saga/internal/worker"
	"go.uber.org/zap"
)

// ProcWorker runs the `worker` subcommand as a child process. Tasks go down
// its stdin as JSON lines, results come back on its stdout; stderr (logs) is
// inherited. Done closes when the process exits for any reason.
type ProcWorker struct {
	id  string
	cmd *exec.Cmd

	mu    sync.Mutex
	stdin io.WriteCloser
	enc   *json.Encoder

	results chan worker.Result
	done    chan struct{}
	alive   atomic.Bool
}

// SpawnProc starts a worker process from bin with args.
func SpawnProc(bin string, args ...string) (*ProcWorker, error) {
	if bin == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		bin = exe
	}

	cmd := exec.Command(bin, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}

	w := &ProcWorker{
		id:      util.NewID(),
		cmd:     cmd,
		stdin:   stdin,
		enc:     json.NewEncoder(stdin),
		results: make(chan worker.Result, 64),
		done:    make(chan struct{}),
	}
	w.alive.Store(true)

	go w.readResults(stdout)
	go w.wait()

	logger.Log.Info("worker spawned", zap.String("worker_id", w.id), zap.Int("pid", cmd.Process.Pid))
	return w, nil
}

func (w *ProcWorker) readResults(stdout io.Reader) {
	dec := json.NewDecoder(stdout)
	for {
		var res worker.Result
		if err := dec.Decode(&res); err != nil {
			// EOF or a broken pipe: the wait goroutine handles lifecycle.
			return
		}
		select {
		case w.results <- res:
		case <-w.done:
			// Nobody is draining results anymore.
			return
		}
	}
}

func (w *ProcWorker) wait() {
	err := w.cmd.Wait()
	w.alive.Store(false)
	close(w.done)
	if err != nil {
		logger.Log.Warn("worker exited", zap.String("worker_id", w.id), zap.Error(err))
	} else {
		logger.Log.Info("worker exited", zap.String("worker_id", w.id))
	}
}

func (w *ProcWorker) ID() string                    { return w.id }
func (w *ProcWorker) Alive() bool                   { return w.alive.Load() }
func (w *ProcWorker) Results() <-chan worker.Result { return w.results }
func (w *ProcWorker) Done() <-chan struct{}         { return w.done }

// Send forwards one task. Fails once the process is gone or the pipe broke.
func (w *ProcWorker) Send(t worker.Task) error {
	if !w.Alive() {
		return fmt.Errorf("worker %s is not alive", w.id)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(t); err != nil {
		return fmt.Errorf("send to worker %s: %w", w.id, err)
	}
	return nil
}

// Stop closes the worker's stdin; the runner drains in-flight tasks and
// exits, which closes Done.
func (w *ProcWorker) Stop() {
	w.mu.Lock()
	_ = w.stdin.Close()
	w.mu.Unlock()
}
