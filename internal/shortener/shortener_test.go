package shortener

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rmitchellscott/creativeforge/internal/database"
	"github.com/rmitchellscott/creativeforge/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewService(db, security.URLPolicy{}, 16, time.Minute), db
}

func TestShortenCreatesAndReuses(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rec, existed, err := svc.Shorten(ctx, "https://example.com/a", "", "http://localhost:8000/")
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Len(t, rec.ShortCode, codeLength)
	assert.Equal(t, "http://localhost:8000/s/"+rec.ShortCode, rec.ShortURL)

	again, existed, err := svc.Shorten(ctx, "https://example.com/a", "other", "http://localhost:8000")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, rec.ShortCode, again.ShortCode)
}

func TestShortenValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Shorten(ctx, "not a url", "", "http://x")
	assert.ErrorIs(t, err, ErrInvalidURL)
	_, _, err = svc.Shorten(ctx, "ftp://example.com", "", "http://x")
	assert.ErrorIs(t, err, ErrInvalidURL)
	_, _, err = svc.Shorten(ctx, "https://example.com", "bad code!", "http://x")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestShortenCustomCodeTaken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Shorten(ctx, "https://example.com/1", "my-code_1", "http://x")
	require.NoError(t, err)
	_, _, err = svc.Shorten(ctx, "https://example.com/2", "my-code_1", "http://x")
	assert.ErrorIs(t, err, ErrCodeTaken)
}

func TestShortenRetriesOnCollision(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	codes := []string{"AAAAAAAA", "AAAAAAAA", "BBBBBBBB"}
	svc.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	_, _, err := svc.Shorten(ctx, "https://example.com/1", "", "http://x")
	require.NoError(t, err)
	rec, _, err := svc.Shorten(ctx, "https://example.com/2", "", "http://x")
	require.NoError(t, err)
	assert.Equal(t, "BBBBBBBB", rec.ShortCode)
}

func TestShortenGivesUpAfterRetries(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	svc.newCode = func() (string, error) { return "SAMECODE", nil }

	_, _, err := svc.Shorten(ctx, "https://example.com/1", "", "http://x")
	require.NoError(t, err)
	_, _, err = svc.Shorten(ctx, "https://example.com/2", "", "http://x")
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestResolveCountsClicks(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rec, _, err := svc.Shorten(ctx, "https://example.com/target", "go", "http://x")
	require.NoError(t, err)

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	for i := 0; i < 12; i++ {
		u, err := svc.Resolve(ctx, "go", Visit{IP: fmt.Sprintf("10.0.0.%d", i), UserAgent: "test", Referrer: "https://ref.example"})
		require.NoError(t, err)
		assert.Equal(t, rec.OriginalURL, u)
	}

	a, err := svc.Analytics(ctx, "go")
	require.NoError(t, err)
	assert.EqualValues(t, 12, a.Clicks)
	require.Len(t, a.ClickHistory, historyLimit)
	assert.Equal(t, "10.0.0.2", a.ClickHistory[0].IP)
	assert.Equal(t, "10.0.0.11", a.ClickHistory[historyLimit-1].IP)
}

func TestResolveConcurrentClicks(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, _, err := svc.Shorten(ctx, "https://example.com/busy", "busy", "http://x")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Resolve(ctx, "busy", Visit{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	a, err := svc.Analytics(ctx, "busy")
	require.NoError(t, err)
	assert.EqualValues(t, 20, a.Clicks)
}

func TestResolveUnknownCode(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Resolve(context.Background(), "missing", Visit{})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Analytics(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveDropsStaleCacheEntry(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	rec, _, err := svc.Shorten(ctx, "https://example.com/gone", "gone", "http://x")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, "gone", Visit{})
	require.NoError(t, err)

	require.NoError(t, db.Delete(&database.ShortURL{}, "id = ?", rec.ID).Error)
	_, err = svc.Resolve(ctx, "gone", Visit{})
	assert.ErrorIs(t, err, ErrNotFound)
	_, ok := svc.cache.Get("gone")
	assert.False(t, ok)
}

func TestRecentAndTotals(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return at }
		_, _, err := svc.Shorten(ctx, fmt.Sprintf("https://example.com/%d", i), fmt.Sprintf("c%d", i), "http://x")
		require.NoError(t, err)
	}
	_, err := svc.Resolve(ctx, "c1", Visit{})
	require.NoError(t, err)

	recent, err := svc.Recent(ctx)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "c2", recent[0].ShortCode)

	urls, clicks, err := svc.Totals(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, urls)
	assert.EqualValues(t, 1, clicks)
}
