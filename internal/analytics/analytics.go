package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rmitchellscott/creativeforge/internal/database"
	"github.com/rmitchellscott/creativeforge/internal/storage"
)

const (
	usageWindow      = 30 * 24 * time.Hour
	activityLimit    = 10
	bytesPerMegabyte = 1 << 20
)

// Images is the part of the image repository the dashboard reads.
type Images interface {
	Count(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	Recent(ctx context.Context, limit int) ([]database.GeneratedImage, error)
	DailyCounts(ctx context.Context, since time.Time) ([]database.DailyCount, error)
}

type URLs interface {
	Totals(ctx context.Context) (urls, clicks int64, err error)
}

type Inboxes interface {
	Count(ctx context.Context) (int64, error)
}

// Stats is the dashboard summary.
type Stats struct {
	TotalImages          int64            `json:"totalImages"`
	ImagesThisMonth      int64            `json:"imagesThisMonth"`
	ImagesThisWeek       int64            `json:"imagesThisWeek"`
	TotalConversions     int              `json:"totalConversions"`
	ConversionsThisMonth int              `json:"conversionsThisMonth"`
	StorageUsed          int64            `json:"storageUsed"` // MB
	StorageBytes         map[string]int64 `json:"storageBytes"`
	TotalProjects        int64            `json:"totalProjects"`
	TotalDocuments       int              `json:"totalDocuments"`
	TotalQRCodes         int              `json:"totalQRCodes"`
	TotalShortURLs       int64            `json:"totalShortUrls"`
	TotalClicks          int64            `json:"totalClicks"`
	TotalTempEmails      int64            `json:"totalTempEmails"`
}

// Activity is one entry of the recent activity feed.
type Activity struct {
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Aggregator reads counters from the database and the blob store.
type Aggregator struct {
	images  Images
	urls    URLs
	inboxes Inboxes
	store   storage.Backend
	now     func() time.Time
}

func NewAggregator(images Images, urls URLs, inboxes Inboxes, store storage.Backend) *Aggregator {
	return &Aggregator{images: images, urls: urls, inboxes: inboxes, store: store, now: time.Now}
}

var storagePrefixes = []string{
	storage.PrefixUploads,
	storage.PrefixConverted,
	storage.PrefixDocuments,
	storage.PrefixQRCodes,
	storage.PrefixGenerated,
}

// Stats builds the dashboard summary. Months start at local midnight of
// the first day; weeks are the trailing seven days.
func (a *Aggregator) Stats(ctx context.Context) (*Stats, []Activity, error) {
	now := a.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var (
		st  Stats
		err error
	)
	if st.TotalImages, err = a.images.Count(ctx); err != nil {
		return nil, nil, fmt.Errorf("count images: %w", err)
	}
	if st.ImagesThisMonth, err = a.images.CountSince(ctx, monthStart); err != nil {
		return nil, nil, fmt.Errorf("count images: %w", err)
	}
	if st.ImagesThisWeek, err = a.images.CountSince(ctx, now.Add(-7*24*time.Hour)); err != nil {
		return nil, nil, fmt.Errorf("count images: %w", err)
	}
	if st.TotalShortURLs, st.TotalClicks, err = a.urls.Totals(ctx); err != nil {
		return nil, nil, fmt.Errorf("count short URLs: %w", err)
	}
	if st.TotalTempEmails, err = a.inboxes.Count(ctx); err != nil {
		return nil, nil, fmt.Errorf("count temp emails: %w", err)
	}

	st.StorageBytes = make(map[string]int64, len(storagePrefixes))
	var total int64
	for _, prefix := range storagePrefixes {
		infos, err := a.store.ListWithInfo(ctx, prefix)
		if err != nil {
			return nil, nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		var size int64
		for _, info := range infos {
			size += info.Size
		}
		st.StorageBytes[strings.TrimSuffix(prefix, "/")] = size
		total += size

		switch prefix {
		case storage.PrefixConverted:
			st.TotalConversions = len(infos)
			for _, info := range infos {
				if !info.LastModified.Before(monthStart) {
					st.ConversionsThisMonth++
				}
			}
		case storage.PrefixDocuments:
			st.TotalDocuments = len(infos)
		case storage.PrefixQRCodes:
			st.TotalQRCodes = len(infos)
		}
	}
	st.StorageUsed = (total + bytesPerMegabyte/2) / bytesPerMegabyte
	st.TotalProjects = st.TotalImages + int64(st.TotalConversions)

	recent, err := a.images.Recent(ctx, activityLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("recent images: %w", err)
	}
	activity := make([]Activity, 0, len(recent))
	for _, img := range recent {
		activity = append(activity, Activity{Prompt: img.Prompt, CreatedAt: img.CreatedAt})
	}
	return &st, activity, nil
}

// Usage returns daily image counts for the last thirty days, oldest first.
// Days without images are omitted.
func (a *Aggregator) Usage(ctx context.Context) ([]database.DailyCount, error) {
	counts, err := a.images.DailyCounts(ctx, a.now().Add(-usageWindow))
	if err != nil {
		return nil, err
	}
	if counts == nil {
		counts = []database.DailyCount{}
	}
	return counts, nil
}
