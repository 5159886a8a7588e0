package jobs

import (
	"sync"
	"time"
)

const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Job is the observable state of one long-running request, such as an image
// generation walking the provider chain or a batch conversion.
type Job struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data,omitempty"`
	Progress  int               `json:"progress"`
	Operation string            `json:"operation"` // e.g. "pollinations", "converting", "storing"
	UpdatedAt time.Time         `json:"updatedAt"`
}

func (j *Job) clone() *Job {
	c := *j
	if j.Data != nil {
		c.Data = make(map[string]string, len(j.Data))
		for k, v := range j.Data {
			c.Data[k] = v
		}
	}
	return &c
}

// Terminal reports whether no further updates will follow.
func (j *Job) Terminal() bool {
	return j.Status == StatusSuccess || j.Status == StatusError
}

// Store holds all jobs in memory
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	watchers map[string][]chan *Job
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		jobs:     make(map[string]*Job),
		watchers: make(map[string][]chan *Job),
		now:      time.Now,
	}
}

// Subscribe returns a channel that receives job updates for the given id,
// starting with the current state if the job exists. Call the returned
// function to unsubscribe.
func (s *Store) Subscribe(id string) (<-chan *Job, func()) {
	ch := make(chan *Job, 64)
	s.mu.Lock()
	s.watchers[id] = append(s.watchers[id], ch)
	if job := s.jobs[id]; job != nil {
		ch <- job.clone()
	}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			watchers := s.watchers[id]
			for i, c := range watchers {
				if c == ch {
					s.watchers[id] = append(watchers[:i], watchers[i+1:]...)
					break
				}
			}
			if len(s.watchers[id]) == 0 {
				delete(s.watchers, id)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// broadcastLocked never blocks: a slow watcher misses intermediate states,
// and terminal states replace whatever is queued.
func (s *Store) broadcastLocked(id string) {
	job := s.jobs[id]
	for _, ch := range s.watchers[id] {
		snapshot := job.clone()
		select {
		case ch <- snapshot:
			continue
		default:
		}
		if job.Terminal() {
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func (s *Store) Create(id, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = &Job{ID: id, Kind: kind, Status: StatusPending, UpdatedAt: s.now()}
	s.broadcastLocked(id)
}

// Stage records that the job moved to a new operation.
func (s *Store) Stage(id, operation, msg string, progress int) {
	s.update(id, func(j *Job) {
		j.Status = StatusRunning
		j.Operation = operation
		j.Message = msg
		j.Progress = clamp(progress)
	})
}

// UpdateProgress sets the progress (0-100) for a job.
func (s *Store) UpdateProgress(id string, p int) {
	s.update(id, func(j *Job) { j.Progress = clamp(p) })
}

func (s *Store) Succeed(id, msg string, data map[string]string) {
	s.update(id, func(j *Job) {
		j.Status = StatusSuccess
		j.Message = msg
		j.Data = data
		j.Progress = 100
	})
}

func (s *Store) Fail(id, msg string) {
	s.update(id, func(j *Job) {
		j.Status = StatusError
		j.Message = msg
	})
}

func (s *Store) update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return
	}
	fn(j)
	j.UpdatedAt = s.now()
	s.broadcastLocked(id)
}

// Get returns a copy of the job.
func (s *Store) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return j.clone(), true
}

// Prune drops terminal jobs last updated before cutoff.
func (s *Store) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, j := range s.jobs {
		if j.Terminal() && j.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

func clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Tracker binds a Store to one job id. A nil *Tracker is a valid no-op, so
// callers that were not given a request id need no checks.
type Tracker struct {
	store *Store
	id    string
}

func (s *Store) Track(id, kind string) *Tracker {
	if s == nil || id == "" {
		return nil
	}
	s.Create(id, kind)
	return &Tracker{store: s, id: id}
}

func (t *Tracker) Stage(operation, msg string, progress int) {
	if t != nil {
		t.store.Stage(t.id, operation, msg, progress)
	}
}

func (t *Tracker) Succeed(msg string, data map[string]string) {
	if t != nil {
		t.store.Succeed(t.id, msg, data)
	}
}

func (t *Tracker) Fail(msg string) {
	if t != nil {
		t.store.Fail(t.id, msg)
	}
}
