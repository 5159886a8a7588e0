package shortener

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rmitchellscott/creativeforge/internal/database"
	"github.com/rmitchellscott/creativeforge/internal/logging"
	"github.com/rmitchellscott/creativeforge/internal/security"
	"gorm.io/gorm"
)

const (
	codeLength     = 8
	maxCodeRetries = 5
	historyLimit   = 10
	recentLimit    = 50
)

// base57 alphabet without look-alike characters.
const alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var (
	ErrInvalidURL  = errors.New("invalid URL")
	ErrInvalidCode = errors.New("custom code can only contain letters, numbers, hyphens, and underscores")
	ErrCodeTaken   = errors.New("custom code is already taken")
	ErrNotFound    = errors.New("short URL not found")
	ErrExhausted   = errors.New("could not allocate a unique short code")
)

var customCode = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type target struct {
	id  uuid.UUID
	url string
}

// Service shortens URLs and resolves short codes.
type Service struct {
	db     *gorm.DB
	policy security.URLPolicy
	cache  *expirable.LRU[string, target]
	now    func() time.Time
	// newCode is swapped in tests to force collisions.
	newCode func() (string, error)
}

func NewService(db *gorm.DB, policy security.URLPolicy, cacheSize int, cacheTTL time.Duration) *Service {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	return &Service{
		db:      db,
		policy:  policy,
		cache:   expirable.NewLRU[string, target](cacheSize, nil, cacheTTL),
		now:     time.Now,
		newCode: generateCode,
	}
}

func generateCode() (string, error) {
	b := make([]byte, codeLength)
	max := big.NewInt(int64(len(alphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b), nil
}

// Shorten returns the record for originalURL, creating it when absent.
// existed reports that the URL had already been shortened. baseURL is the
// public origin the short link is built on.
func (s *Service) Shorten(ctx context.Context, originalURL, code, baseURL string) (rec *database.ShortURL, existed bool, err error) {
	originalURL = strings.TrimSpace(originalURL)
	if err := s.policy.Validate(originalURL); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	code = strings.TrimSpace(code)
	if code != "" && !customCode.MatchString(code) {
		return nil, false, ErrInvalidCode
	}

	db := s.db.WithContext(ctx)
	if found, err := s.byURL(db, originalURL); err == nil {
		return found, true, nil
	} else if !database.IsNotFound(err) {
		return nil, false, err
	}

	attempts := maxCodeRetries
	if code != "" {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		c := code
		if c == "" {
			if c, err = s.newCode(); err != nil {
				return nil, false, err
			}
		}
		rec = &database.ShortURL{
			OriginalURL: originalURL,
			ShortCode:   c,
			ShortURL:    strings.TrimRight(baseURL, "/") + "/s/" + c,
			CreatedAt:   s.now(),
			ExpiresAt:   s.now().Add(database.ShortURLLifetime),
		}
		err = db.Create(rec).Error
		if err == nil {
			logging.Logf("[SHORTEN] %s -> %s", c, originalURL)
			return rec, false, nil
		}
		if !database.IsDuplicate(err) {
			return nil, false, fmt.Errorf("failed to save short URL: %w", err)
		}
		// A concurrent request may have inserted the same URL.
		if found, ferr := s.byURL(db, originalURL); ferr == nil {
			return found, true, nil
		}
		if code != "" {
			return nil, false, ErrCodeTaken
		}
		logging.Warnf("[SHORTEN] Short code collision on %s, retrying", c)
	}
	return nil, false, ErrExhausted
}

func (s *Service) byURL(db *gorm.DB, originalURL string) (*database.ShortURL, error) {
	var rec database.ShortURL
	if err := db.Where("original_url = ?", originalURL).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Service) byCode(db *gorm.DB, code string) (*database.ShortURL, error) {
	var rec database.ShortURL
	if err := db.Where("short_code = ?", code).First(&rec).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Visit describes the request that followed a short link.
type Visit struct {
	IP        string
	UserAgent string
	Referrer  string
}

// Resolve returns the target of code and records the click. The counter is
// incremented in SQL so concurrent redirects never lose a click.
func (s *Service) Resolve(ctx context.Context, code string, v Visit) (string, error) {
	db := s.db.WithContext(ctx)

	t, ok := s.cache.Get(code)
	if !ok {
		rec, err := s.byCode(db, code)
		if err != nil {
			return "", err
		}
		t = target{id: rec.ID, url: rec.OriginalURL}
		s.cache.Add(code, t)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&database.ShortURL{}).Where("id = ?", t.id).
			UpdateColumn("clicks", gorm.Expr("clicks + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Create(&database.ClickEvent{
			ShortURLID: t.id,
			Timestamp:  s.now(),
			IP:         v.IP,
			UserAgent:  v.UserAgent,
			Referrer:   v.Referrer,
		}).Error
	})
	if errors.Is(err, ErrNotFound) {
		s.cache.Remove(code)
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("failed to record click: %w", err)
	}
	return t.url, nil
}

// Analytics is the click summary of one short URL.
type Analytics struct {
	OriginalURL  string                `json:"originalUrl"`
	ShortURL     string                `json:"shortUrl"`
	Clicks       int64                 `json:"clicks"`
	CreatedAt    time.Time             `json:"createdAt"`
	ClickHistory []database.ClickEvent `json:"clickHistory"`
}

// Analytics returns the counters and the last ten clicks, oldest first.
func (s *Service) Analytics(ctx context.Context, code string) (*Analytics, error) {
	db := s.db.WithContext(ctx)
	rec, err := s.byCode(db, code)
	if err != nil {
		return nil, err
	}

	var events []database.ClickEvent
	if err := db.Where("short_url_id = ?", rec.ID).Order("timestamp DESC").Limit(historyLimit).Find(&events).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	return &Analytics{
		OriginalURL:  rec.OriginalURL,
		ShortURL:     rec.ShortURL,
		Clicks:       rec.Clicks,
		CreatedAt:    rec.CreatedAt,
		ClickHistory: events,
	}, nil
}

// Recent lists the newest short URLs.
func (s *Service) Recent(ctx context.Context) ([]database.ShortURL, error) {
	var out []database.ShortURL
	err := s.db.WithContext(ctx).
		Select("id", "original_url", "short_url", "short_code", "clicks", "created_at", "expires_at").
		Order("created_at DESC").Limit(recentLimit).Find(&out).Error
	return out, err
}

// Totals returns the number of short URLs and the sum of their clicks.
func (s *Service) Totals(ctx context.Context) (urls, clicks int64, err error) {
	db := s.db.WithContext(ctx).Model(&database.ShortURL{})
	if err = db.Count(&urls).Error; err != nil {
		return 0, 0, err
	}
	var sum struct{ Total int64 }
	if err = s.db.WithContext(ctx).Model(&database.ShortURL{}).Select("COALESCE(SUM(clicks), 0) AS total").Scan(&sum).Error; err != nil {
		return 0, 0, err
	}
	return urls, sum.Total, nil
}
