package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Sink delivers an operator notification; delivery is best effort and no
// ordering is guaranteed.
type Sink interface {
	Notify(ctx context.Context, subject, body string) error
}

// WebhookSink POSTs ntfy-style plain-text notifications to a URL.
type WebhookSink struct {
	URL string
	hc  *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		URL: url,
		hc:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookSink) Notify(ctx context.Context, subject, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Title", subject)
	req.Header.Set("Content-Type", "text/plain")

	res, err := w.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return fmt.Errorf("webhook status %d", res.StatusCode)
	}
	return nil
}

// LogSink writes notifications to the engine log; the fallback when no
// webhook is configured.
type LogSink struct {
	Logger *zap.Logger
}

func (l *LogSink) Notify(_ context.Context, subject, body string) error {
	l.Logger.Info("notification",
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
