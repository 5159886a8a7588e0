package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ShortURLLifetime  = 365 * 24 * time.Hour
	TempEmailLifetime = 10 * time.Minute
)

// GeneratedImage records one successful provider chain run. Rows are never
// updated.
type GeneratedImage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Prompt    string    `gorm:"size:1000;not null" json:"prompt"`
	ImageURL  string    `gorm:"column:image_url;not null" json:"imageUrl"`
	Service   string    `gorm:"size:32;not null;index" json:"service"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (g *GeneratedImage) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// ShortURL maps a short code to its target. Both columns carry unique indexes
// so concurrent inserts resolve in the database.
type ShortURL struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OriginalURL string    `gorm:"column:original_url;size:2048;not null;uniqueIndex" json:"originalUrl"`
	ShortCode   string    `gorm:"size:64;not null;uniqueIndex" json:"shortCode"`
	ShortURL    string    `gorm:"column:short_url;not null" json:"shortUrl"`
	Clicks      int64     `gorm:"not null;default:0" json:"clicks"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`

	ClickEvents []ClickEvent `gorm:"foreignKey:ShortURLID;constraint:OnDelete:CASCADE" json:"-"`
}

func (s *ShortURL) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = time.Now().Add(ShortURLLifetime)
	}
	return nil
}

func (ShortURL) TableName() string {
	return "short_urls"
}

// ClickEvent is appended on every redirect.
type ClickEvent struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	ShortURLID uuid.UUID `gorm:"column:short_url_id;type:uuid;not null;index" json:"-"`
	Timestamp  time.Time `gorm:"not null" json:"timestamp"`
	IP         string    `gorm:"size:45" json:"ip"`
	UserAgent  string    `gorm:"type:text" json:"userAgent"`
	Referrer   string    `gorm:"type:text" json:"referrer"`
}

func (c *ClickEvent) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	return nil
}

// TempEmail is a disposable inbox. Expired rows are removed by the sweeper
// and excluded by every read.
type TempEmail struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"size:320;not null;uniqueIndex" json:"email"`
	Username  string    `gorm:"size:64;not null" json:"username"`
	Domain    string    `gorm:"size:255;not null" json:"domain"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`

	Messages []TempEmailMessage `gorm:"foreignKey:TempEmailID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

func (t *TempEmail) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.ExpiresAt.IsZero() {
		t.ExpiresAt = time.Now().Add(TempEmailLifetime)
	}
	return nil
}

// TempEmailMessage is one message in an inbox. RemoteID is set for messages
// pulled from the remote mailbox.
type TempEmailMessage struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TempEmailID uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	RemoteID    string    `gorm:"size:64" json:"remoteId,omitempty"`
	From        string    `gorm:"column:from_address" json:"from"`
	Subject     string    `json:"subject"`
	Body        string    `gorm:"type:text" json:"body"`
	HTML        string    `gorm:"column:html;type:text" json:"html"`
	ReceivedAt  time.Time `gorm:"index" json:"receivedAt"`
	Read        bool      `gorm:"default:false" json:"read"`
}

func (m *TempEmailMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = time.Now()
	}
	return nil
}

// GetAllModels returns all models for migration
func GetAllModels() []interface{} {
	return []interface{}{
		&GeneratedImage{},
		&ShortURL{},
		&ClickEvent{},
		&TempEmail{},
		&TempEmailMessage{},
	}
}
