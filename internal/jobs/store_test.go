package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()
	s.Create("r1", "generate")
	s.Stage("r1", "pollinations", "trying pollinations", 10)

	j, ok := s.Get("r1")
	require.True(t, ok)
	assert.Equal(t, StatusRunning, j.Status)
	assert.Equal(t, "pollinations", j.Operation)

	s.UpdateProgress("r1", 250)
	j, _ = s.Get("r1")
	assert.Equal(t, 100, j.Progress)

	s.Succeed("r1", "done", map[string]string{"service": "placeholder"})
	j, _ = s.Get("r1")
	assert.True(t, j.Terminal())
	assert.Equal(t, "placeholder", j.Data["service"])

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Create("r1", "convert")
	s.Succeed("r1", "ok", map[string]string{"k": "v"})

	j, _ := s.Get("r1")
	j.Data["k"] = "changed"

	again, _ := s.Get("r1")
	assert.Equal(t, "v", again.Data["k"])
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	s := NewStore()
	s.Create("r1", "generate")

	ch, cancel := s.Subscribe("r1")
	defer cancel()

	first := <-ch
	assert.Equal(t, StatusPending, first.Status)

	s.Stage("r1", "stablehorde", "polling", 40)
	s.Fail("r1", "all providers failed")

	var last *Job
	timeout := time.After(time.Second)
	for last == nil || !last.Terminal() {
		select {
		case last = <-ch:
		case <-timeout:
			t.Fatal("no terminal update")
		}
	}
	assert.Equal(t, StatusError, last.Status)
}

func TestSlowWatcherStillGetsTerminalState(t *testing.T) {
	s := NewStore()
	s.Create("r1", "convert")
	ch, cancel := s.Subscribe("r1")
	defer cancel()

	for i := 0; i < 200; i++ {
		s.UpdateProgress("r1", i%100)
	}
	s.Succeed("r1", "done", nil)

	var last *Job
	for len(ch) > 0 {
		last = <-ch
	}
	require.NotNil(t, last)
	assert.Equal(t, StatusSuccess, last.Status)
}

func TestPrune(t *testing.T) {
	s := NewStore()
	base := time.Now()
	s.now = func() time.Time { return base }
	s.Create("old", "convert")
	s.Succeed("old", "ok", nil)
	s.Create("running", "convert")

	assert.Equal(t, 1, s.Prune(base.Add(time.Minute)))
	_, ok := s.Get("old")
	assert.False(t, ok)
	_, ok = s.Get("running")
	assert.True(t, ok)
}

func TestNilTrackerIsNoop(t *testing.T) {
	var s *Store
	tr := s.Track("r1", "generate")
	assert.Nil(t, tr)
	tr.Stage("x", "y", 1)
	tr.Succeed("ok", nil)
	tr.Fail("bad")
}
