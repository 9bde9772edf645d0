// backend/notify/notify.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/stockvaluatorpro/taxdata/backend/config"
	"github.com/stockvaluatorpro/taxdata/backend/models"
)

// Sink delivers one notification message somewhere. Delivery is best-effort
// and at-least-once; deduplication happens upstream by record state.
type Sink interface {
	Name() string
	Send(ctx context.Context, message string) error
}

// Dispatcher fans update notifications out to all configured sinks. It is
// stateless and fire-and-forget: sink failures are logged, never escalated
// to the caller.
type Dispatcher struct {
	cfg   config.NotifyConfig
	sinks []Sink
}

// NewDispatcher builds a dispatcher from configuration: a Slack sink when a
// webhook URL is configured, plus the log sink.
func NewDispatcher(cfg config.NotifyConfig) *Dispatcher {
	d := &Dispatcher{cfg: cfg}
	if cfg.SlackWebhookURL != "" {
		d.sinks = append(d.sinks, NewSlackSink(cfg.SlackWebhookURL))
	}
	d.sinks = append(d.sinks, LogSink{})
	return d
}

// AnnounceUpdate notifies all sinks that an update was detected for a
// dataset and is awaiting admin approval.
func (d *Dispatcher) AnnounceUpdate(ctx context.Context, rec *models.UpdateCheckRecord) {
	if d.cfg.Disabled {
		return
	}
	message := fmt.Sprintf(
		"NTA reference data update detected\n\nDataset: %s\nChecked at: %s\nReason: %s\n\nPlease review and approve the update: %s",
		rec.DatasetType, rec.CheckedAt.Format("2006-01-02 15:04:05"), rec.Notes, d.cfg.AdminPanelURL)
	d.send(ctx, message)
}

func (d *Dispatcher) send(ctx context.Context, message string) {
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, message); err != nil {
			log.Printf("ERROR Notify: %s delivery failed: %v\n", sink.Name(), err)
		}
	}
}

// SlackSink posts messages to a Slack incoming webhook.
type SlackSink struct {
	webhookURL string
	client     *http.Client
}

func NewSlackSink(webhookURL string) *SlackSink {
	return &SlackSink{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SlackSink) Name() string { return "slack" }

func (s *SlackSink) Send(ctx context.Context, message string) error {
	payload, err := json.Marshal(map[string]string{
		"text":       message,
		"username":   "Stock Valuator Pro",
		"icon_emoji": ":chart_with_upwards_trend:",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogSink writes notifications to the application log. Always configured,
// so a detected update is visible even with no external sink set up.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Send(_ context.Context, message string) error {
	log.Printf("Notify: %s\n", message)
	return nil
}
