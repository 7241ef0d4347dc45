// Package slack renders the weekly snapshot as a Block Kit message and
// posts it to one or more incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pulse/internal/domain/metrics"
)

const maxTransactionLines = 5

// Notifier posts the weekly report to every configured webhook. Delivery
// succeeds if at least one webhook accepts the message.
type Notifier struct {
	httpClient *http.Client
	webhooks   []string
	log        zerolog.Logger
}

func NewNotifier(webhooks []string, log zerolog.Logger) *Notifier {
	var active []string
	for _, url := range webhooks {
		if url != "" {
			active = append(active, url)
		}
	}

	return &Notifier{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		webhooks:   active,
		log:        log.With().Str("component", "slack_notifier").Logger(),
	}
}

func (n *Notifier) Name() string { return "slack" }

// Configured reports whether at least one webhook URL is set.
func (n *Notifier) Configured() bool { return len(n.webhooks) > 0 }

func (n *Notifier) Notify(ctx context.Context, snapshot *metrics.Snapshot) error {
	if len(n.webhooks) == 0 {
		n.log.Debug().Msg("no webhooks configured, skipping notification")
		return nil
	}

	payload, err := json.Marshal(message{Blocks: buildBlocks(snapshot)})
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	delivered := 0
	for i, url := range n.webhooks {
		if err := n.post(ctx, url, payload); err != nil {
			n.log.Error().Err(err).Int("webhook", i+1).Msg("failed to post to webhook")
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return fmt.Errorf("failed to deliver to all %d webhooks", len(n.webhooks))
	}

	return nil
}

func (n *Notifier) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

type message struct {
	Blocks []block `json:"blocks"`
}

type block struct {
	Type     string `json:"type"`
	Text     *text  `json:"text,omitempty"`
	Fields   []text `json:"fields,omitempty"`
	Elements []text `json:"elements,omitempty"`
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func buildBlocks(s *metrics.Snapshot) []block {
	blocks := []block{
		{
			Type: "header",
			Text: &text{Type: "plain_text", Text: fmt.Sprintf("📊 Weekly Business Pulse: %s", s.WeekStart.Format("Jan 2, 2006"))},
		},
		{
			Type: "section",
			Fields: []text{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Current Balance:*\n$%s", formatAmount(s.CurrentBalance))},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Accounts Receivable:*\n$%s", formatAmount(s.AccountsReceivable))},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Invoiced This Week:*\n$%s", formatAmount(s.InvoicedAmount))},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Cash Collected:*\n$%s", formatAmount(s.CashCollected))},
			},
		},
		{
			Type: "section",
			Text: &text{Type: "mrkdwn", Text: fmt.Sprintf("*Collection Rate:* %.1f%%", s.CollectionRate())},
		},
		{Type: "divider"},
		{
			Type: "section",
			Fields: []text{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Commits:*\n%d", s.DeveloperCommits)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*PRs Merged:*\n%d", s.PRsMerged)},
			},
		},
	}

	if len(s.PRsByAuthor) > 0 {
		var lines []string
		for _, ac := range s.PRsByAuthor {
			lines = append(lines, fmt.Sprintf("• %s: %d", ac.Author, ac.Count))
		}
		blocks = append(blocks, block{
			Type: "section",
			Text: &text{Type: "mrkdwn", Text: "*PRs by author:*\n" + strings.Join(lines, "\n")},
		})
	}

	if len(s.RecentTransactions) > 0 {
		var lines []string
		for i, tx := range s.RecentTransactions {
			if i == maxTransactionLines {
				break
			}
			lines = append(lines, fmt.Sprintf("• %s  %s  $%s",
				tx.Date.Format("Jan 2"), tx.Description, formatAmount(tx.Amount)))
		}
		blocks = append(blocks, block{
			Type: "section",
			Text: &text{Type: "mrkdwn", Text: "*Recent transactions:*\n" + strings.Join(lines, "\n")},
		})
	}

	blocks = append(blocks, block{
		Type: "context",
		Elements: []text{
			{Type: "mrkdwn", Text: fmt.Sprintf("Generated %s", s.GeneratedAt.Format("2006-01-02 15:04 MST"))},
		},
	})

	return blocks
}

func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)

	// Insert thousands separators into the integer part.
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]

	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}

	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
