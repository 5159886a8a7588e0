package tempmail

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/rmitchellscott/creativeforge/internal/database"
	"github.com/rmitchellscott/creativeforge/internal/logging"
	"gorm.io/gorm"
)

const maxUsernameRetries = 5

// RemoteDomains are served by the remote mailbox; inboxes on them are
// refreshed from it.
var RemoteDomains = []string{
	"1secmail.com",
	"1secmail.org",
	"1secmail.net",
	"kzccv.com",
	"qiott.com",
	"uuf.me",
	"1secmail.xyz",
}

// LocalDomains only ever receive simulated messages.
var LocalDomains = []string{
	"10minutemail.com",
	"tempmail.net",
	"guerrillamail.com",
	"mailinator.com",
	"yopmail.com",
}

var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrUnknownDomain   = errors.New("domain is not available")
	ErrUsernameTaken   = errors.New("username is already taken on this domain")
	ErrNotFound        = errors.New("email not found or expired")
	ErrExhausted       = errors.New("could not allocate a unique address")
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9._-]{1,64}$`)

// Service manages disposable inboxes.
type Service struct {
	db     *gorm.DB
	remote Mailbox
	now    func() time.Time
	// pick returns a random index below n.
	pick func(n int) int
}

// NewService builds a Service. remote may be nil, in which case inboxes are
// never refreshed.
func NewService(db *gorm.DB, remote Mailbox) *Service {
	return &Service{
		db:     db,
		remote: remote,
		now:    time.Now,
		pick:   rand.Intn,
	}
}

// Domains lists every domain an inbox may be created on.
func Domains() []string {
	out := make([]string, 0, len(RemoteDomains)+len(LocalDomains))
	out = append(out, RemoteDomains...)
	return append(out, LocalDomains...)
}

func isRemote(domain string) bool {
	for _, d := range RemoteDomains {
		if d == domain {
			return true
		}
	}
	return false
}

func known(domain string) bool {
	for _, d := range Domains() {
		if d == domain {
			return true
		}
	}
	return false
}

const usernameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func (s *Service) randomUsername() string {
	b := make([]byte, 8)
	for i := range b {
		b[i] = usernameAlphabet[s.pick(len(usernameAlphabet))]
	}
	return "temp" + string(b)
}

// Generate creates an inbox. An empty username is generated, an empty domain
// defaults to the first remote domain.
func (s *Service) Generate(ctx context.Context, username, domain string) (*database.TempEmail, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		domain = RemoteDomains[0]
	}
	if !known(domain) {
		return nil, ErrUnknownDomain
	}
	if username != "" && !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}

	attempts := maxUsernameRetries
	if username != "" {
		attempts = 1
	}
	db := s.db.WithContext(ctx)
	for i := 0; i < attempts; i++ {
		u := username
		if u == "" {
			u = s.randomUsername()
		}
		now := s.now()
		inbox := &database.TempEmail{
			Email:     u + "@" + domain,
			Username:  u,
			Domain:    domain,
			CreatedAt: now,
			ExpiresAt: now.Add(database.TempEmailLifetime),
		}
		err := db.Create(inbox).Error
		if err == nil {
			logging.Logf("[TEMPMAIL] Created %s (expires %s)", inbox.Email, inbox.ExpiresAt.Format(time.RFC3339))
			return inbox, nil
		}
		if !database.IsDuplicate(err) {
			return nil, fmt.Errorf("failed to create inbox: %w", err)
		}
		// An expired inbox still holding the address must not block it
		// until the next sweep.
		if n, _ := s.sweep(db, "email = ?", inbox.Email); n > 0 {
			if err := db.Create(inbox).Error; err == nil {
				return inbox, nil
			}
		}
		if username != "" {
			return nil, ErrUsernameTaken
		}
	}
	return nil, ErrExhausted
}

func (s *Service) active(db *gorm.DB, email string) (*database.TempEmail, error) {
	var inbox database.TempEmail
	err := db.Where("email = ? AND expires_at > ?", strings.ToLower(email), s.now()).First(&inbox).Error
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inbox, nil
}

// Inbox is an inbox with its messages, newest first.
type Inbox struct {
	Email     string                      `json:"email"`
	ExpiresAt time.Time                   `json:"expiresAt"`
	Messages  []database.TempEmailMessage `json:"messages"`
	// APIError carries a failed refresh; stored messages are still returned.
	APIError string `json:"apiError,omitempty"`
}

// Messages returns the inbox, refreshing it from the remote mailbox first
// when the domain is remote. A refresh replaces every stored message with
// the remote list, simulated ones included.
func (s *Service) Messages(ctx context.Context, email string) (*Inbox, error) {
	db := s.db.WithContext(ctx)
	inbox, err := s.active(db, email)
	if err != nil {
		return nil, err
	}

	out := &Inbox{Email: inbox.Email, ExpiresAt: inbox.ExpiresAt}
	if s.remote != nil && isRemote(inbox.Domain) {
		if err := s.refresh(ctx, db, inbox); err != nil {
			logging.Warnf("[TEMPMAIL] Refresh of %s failed: %v", inbox.Email, err)
			out.APIError = err.Error()
		}
	}

	if err := db.Where("temp_email_id = ?", inbox.ID).Order("received_at DESC").Find(&out.Messages).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) refresh(ctx context.Context, db *gorm.DB, inbox *database.TempEmail) error {
	remote, err := s.remote.Fetch(ctx, inbox.Username, inbox.Domain)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("temp_email_id = ?", inbox.ID).Delete(&database.TempEmailMessage{}).Error; err != nil {
			return err
		}
		for _, m := range remote {
			msg := &database.TempEmailMessage{
				TempEmailID: inbox.ID,
				RemoteID:    m.ID,
				From:        m.From,
				Subject:     m.Subject,
				Body:        m.TextBody,
				HTML:        m.HTMLBody,
				ReceivedAt:  m.Date,
			}
			if err := tx.Create(msg).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

const (
	defaultFrom    = "noreply@example.com"
	defaultSubject = "Test Email"
	defaultBody    = "This is a simulated email message for demonstration purposes."
)

// Simulate stores a message as if it had been delivered.
func (s *Service) Simulate(ctx context.Context, email, from, subject, body string) (*database.TempEmailMessage, error) {
	if from == "" {
		from = defaultFrom
	}
	if subject == "" {
		subject = defaultSubject
	}
	if body == "" {
		body = defaultBody
	}
	return s.deliver(ctx, email, database.TempEmailMessage{
		From:    from,
		Subject: subject,
		Body:    body,
		HTML:    "<p>" + html.EscapeString(body) + "</p>",
	})
}

var externalSamples = []database.TempEmailMessage{
	{
		From:    "noreply@github.com",
		Subject: "Verify your GitHub account",
		Body:    "Click the link below to verify your GitHub account: https://github.com/verify/abc123",
		HTML:    `<p>Click the link below to verify your GitHub account:</p><p><a href="https://github.com/verify/abc123">Verify Account</a></p>`,
	},
	{
		From:    "welcome@discord.com",
		Subject: "Welcome to Discord!",
		Body:    "Thanks for joining Discord! Your verification code is: 123456",
		HTML:    `<h2>Welcome to Discord!</h2><p>Thanks for joining Discord!</p><p>Your verification code is: <strong>123456</strong></p>`,
	},
	{
		From:    "security@twitter.com",
		Subject: "Confirm your Twitter account",
		Body:    "Please confirm your Twitter account by clicking this link: https://twitter.com/confirm/xyz789",
		HTML:    `<p>Please confirm your Twitter account:</p><p><a href="https://twitter.com/confirm/xyz789">Confirm Account</a></p>`,
	},
}

// SimulateExternal delivers one of a few canned sign-up e-mails.
func (s *Service) SimulateExternal(ctx context.Context, email string) (*database.TempEmailMessage, error) {
	return s.deliver(ctx, email, externalSamples[s.pick(len(externalSamples))])
}

func (s *Service) deliver(ctx context.Context, email string, msg database.TempEmailMessage) (*database.TempEmailMessage, error) {
	db := s.db.WithContext(ctx)
	inbox, err := s.active(db, email)
	if err != nil {
		return nil, err
	}
	msg.TempEmailID = inbox.ID
	msg.ReceivedAt = s.now()
	if err := db.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	return &msg, nil
}

// Sweep deletes expired inboxes and their messages.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	return s.sweep(s.db.WithContext(ctx), "")
}

func (s *Service) sweep(db *gorm.DB, filter string, args ...interface{}) (int64, error) {
	var removed int64
	err := db.Transaction(func(tx *gorm.DB) error {
		expired := tx.Model(&database.TempEmail{}).Where("expires_at <= ?", s.now())
		if filter != "" {
			expired = expired.Where(filter, args...)
		}
		var ids []string
		if err := expired.Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("temp_email_id IN ?", ids).Delete(&database.TempEmailMessage{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&database.TempEmail{})
		removed = res.RowsAffected
		return res.Error
	})
	return removed, err
}

// Count returns the number of live inboxes.
func (s *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&database.TempEmail{}).Where("expires_at > ?", s.now()).Count(&n).Error
	return n, err
}
