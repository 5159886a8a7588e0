package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *ImageService {
	t.Helper()
	db, err := OpenInMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewImageService(db)
}

func TestMigrateIsIdempotent(t *testing.T) {
	svc := openTest(t)
	require.NoError(t, Migrate(svc.db, "TEST"))
	for _, m := range GetAllModels() {
		assert.True(t, svc.db.Migrator().HasTable(m), "%T", m)
	}
}

func TestShortCodeUniqueness(t *testing.T) {
	svc := openTest(t)
	ctx := context.Background()

	first := &ShortURL{OriginalURL: "https://a.example", ShortCode: "abc", ShortURL: "http://x/s/abc"}
	require.NoError(t, svc.db.WithContext(ctx).Create(first).Error)
	assert.WithinDuration(t, time.Now().Add(ShortURLLifetime), first.ExpiresAt, time.Minute)

	err := svc.db.WithContext(ctx).Create(&ShortURL{OriginalURL: "https://b.example", ShortCode: "abc", ShortURL: "http://x/s/abc"}).Error
	assert.True(t, IsDuplicate(err), err)

	err = svc.db.WithContext(ctx).Create(&ShortURL{OriginalURL: "https://a.example", ShortCode: "def", ShortURL: "http://x/s/def"}).Error
	assert.True(t, IsDuplicate(err), err)
}

func TestTempEmailDefaults(t *testing.T) {
	svc := openTest(t)
	inbox := &TempEmail{Email: "temp1@1secmail.com", Username: "temp1", Domain: "1secmail.com"}
	require.NoError(t, svc.db.Create(inbox).Error)
	assert.NotEqual(t, uuid.Nil, inbox.ID)
	assert.WithinDuration(t, time.Now().Add(TempEmailLifetime), inbox.ExpiresAt, time.Minute)

	err := svc.db.Create(&TempEmail{Email: "temp1@1secmail.com", Username: "temp1", Domain: "1secmail.com"}).Error
	assert.True(t, IsDuplicate(err))
}

func TestImageServiceRecordAndRecent(t *testing.T) {
	svc := openTest(t)
	ctx := context.Background()

	for _, p := range []string{"one", "two", "three"} {
		_, err := svc.Record(ctx, p, "/api/images/download/"+p+".png", "placeholder")
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	recent, err := svc.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "three", recent[0].Prompt)
	assert.Equal(t, "two", recent[1].Prompt)

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestDailyCounts(t *testing.T) {
	svc := openTest(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{day.AddDate(0, 0, -40), day.AddDate(0, 0, -1), day, day.Add(time.Hour)} {
		require.NoError(t, svc.db.Create(&GeneratedImage{Prompt: "p", ImageURL: "u", Service: "pollinations", CreatedAt: at}).Error)
	}

	counts, err := svc.DailyCounts(ctx, day.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, []DailyCount{{Date: "2026-03-09", Count: 1}, {Date: "2026-03-10", Count: 2}}, counts)

	n, err := svc.CountSince(ctx, day.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
