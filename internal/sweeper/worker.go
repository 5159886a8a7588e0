package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/rmitchellscott/creativeforge/internal/logging"
)

// Task removes expired state and reports how many items it dropped.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Worker runs every task on a fixed interval until stopped.
type Worker struct {
	interval time.Duration
	tasks    []Task
	timeout  time.Duration

	mu      sync.Mutex
	running bool
	quit    chan struct{}
	done    chan struct{}
}

func NewWorker(interval time.Duration, tasks ...Task) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Worker{interval: interval, tasks: tasks, timeout: 30 * time.Second}
}

func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.quit = make(chan struct{})
	w.done = make(chan struct{})
	go w.run(w.quit, w.done)
	logging.Logf("[SWEEPER] Started with %d task(s) every %s", len(w.tasks), w.interval)
}

// Stop waits for an in-flight sweep to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.quit)
	done := w.done
	w.mu.Unlock()
	<-done
}

func (w *Worker) run(quit, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce runs every task once. A failing task does not stop the others.
func (w *Worker) RunOnce() {
	for _, t := range w.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		n, err := t.Run(ctx)
		cancel()
		if err != nil {
			logging.Warnf("[SWEEPER] %s failed: %v", t.Name, err)
			continue
		}
		if n > 0 {
			logging.Logf("[SWEEPER] %s removed %d item(s)", t.Name, n)
		}
	}
}
