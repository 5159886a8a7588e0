package database

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ImageService persists generated image records.
type ImageService struct {
	db *gorm.DB
}

func NewImageService(db *gorm.DB) *ImageService {
	return &ImageService{db: db}
}

// Record inserts one generation result.
func (s *ImageService) Record(ctx context.Context, prompt, imageURL, service string) (*GeneratedImage, error) {
	img := &GeneratedImage{Prompt: prompt, ImageURL: imageURL, Service: service}
	if err := s.db.WithContext(ctx).Create(img).Error; err != nil {
		return nil, err
	}
	return img, nil
}

// Recent returns the newest images first.
func (s *ImageService) Recent(ctx context.Context, limit int) ([]GeneratedImage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var images []GeneratedImage
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&images).Error
	return images, err
}

// Count returns the total number of generated images.
func (s *ImageService) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&GeneratedImage{}).Count(&n).Error
	return n, err
}

// CountSince returns the number of images generated at or after since.
func (s *ImageService) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&GeneratedImage{}).Where("created_at >= ?", since).Count(&n).Error
	return n, err
}

// DailyCount is the number of images generated on one UTC day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// DailyCounts buckets images created since `since` by UTC day, oldest first.
// Bucketing happens in Go so the query stays portable across SQLite and
// Postgres.
func (s *ImageService) DailyCounts(ctx context.Context, since time.Time) ([]DailyCount, error) {
	var stamps []time.Time
	err := s.db.WithContext(ctx).Model(&GeneratedImage{}).
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Pluck("created_at", &stamps).Error
	if err != nil {
		return nil, err
	}

	var out []DailyCount
	for _, ts := range stamps {
		day := ts.UTC().Format("2006-01-02")
		if n := len(out); n > 0 && out[n-1].Date == day {
			out[n-1].Count++
			continue
		}
		out = append(out, DailyCount{Date: day, Count: 1})
	}
	return out, nil
}
