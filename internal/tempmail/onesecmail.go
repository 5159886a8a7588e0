package tempmail

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RemoteMessage is one message read from the remote mailbox.
type RemoteMessage struct {
	ID       string
	From     string
	Subject  string
	TextBody string
	HTMLBody string
	Date     time.Time
}

// Mailbox is a remote inbox provider.
type Mailbox interface {
	Fetch(ctx context.Context, login, domain string) ([]RemoteMessage, error)
}

// OneSecMail reads inboxes from the 1secmail public API.
type OneSecMail struct {
	client *resty.Client
}

func NewOneSecMail(baseURL string) *OneSecMail {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/") + "/").
		SetTimeout(15 * time.Second).
		SetRetryCount(1)
	return &OneSecMail{client: client}
}

type secmailSummary struct {
	ID      int    `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
}

type secmailMessage struct {
	secmailSummary
	Body     string `json:"body"`
	TextBody string `json:"textBody"`
	HTMLBody string `json:"htmlBody"`
}

const secmailDate = "2006-01-02 15:04:05"

// Fetch lists the inbox and reads every message in it.
func (m *OneSecMail) Fetch(ctx context.Context, login, domain string) ([]RemoteMessage, error) {
	var list []secmailSummary
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"action": "getMessages", "login": login, "domain": domain}).
		ExpectContentType("application/json").
		SetResult(&list).
		Get("")
	if err != nil {
		return nil, fmt.Errorf("1secmail list: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("1secmail list: status %s", resp.Status())
	}

	out := make([]RemoteMessage, 0, len(list))
	for _, s := range list {
		var msg secmailMessage
		resp, err := m.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"action": "readMessage",
				"login":  login,
				"domain": domain,
				"id":     strconv.Itoa(s.ID),
			}).
			ExpectContentType("application/json").
			SetResult(&msg).
			Get("")
		if err != nil {
			return nil, fmt.Errorf("1secmail read %d: %w", s.ID, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("1secmail read %d: status %s", s.ID, resp.Status())
		}

		text := msg.TextBody
		if text == "" {
			text = msg.Body
		}
		date, err := time.ParseInLocation(secmailDate, s.Date, time.UTC)
		if err != nil {
			date = time.Now()
		}
		out = append(out, RemoteMessage{
			ID:       strconv.Itoa(s.ID),
			From:     s.From,
			Subject:  s.Subject,
			TextBody: text,
			HTMLBody: msg.HTMLBody,
			Date:     date,
		})
	}
	return out, nil
}
