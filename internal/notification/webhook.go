package notification

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// WebhookNotifier POSTs each alert as JSON to a fixed URL. The alert level
// is repeated in the X-Signaldesk-Level header so receivers can route
// without parsing the body.
type WebhookNotifier struct {
	url    string
	header http.Header
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier for url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, header: http.Header{}, client: newHTTPClient()}
}

// WithHeader adds a static header (e.g. Authorization) to every delivery.
func (w *WebhookNotifier) WithHeader(key, value string) *WebhookNotifier {
	w.header.Add(key, value)
	return w
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	if alert.TS.IsZero() {
		alert.TS = time.Now().UTC()
	}
	h := w.header.Clone()
	h.Set("X-Signaldesk-Level", string(alert.Level))

	if _, err := postJSON(ctx, w.client, "webhook", w.url, alert, h); err != nil {
		return err
	}
	slog.Debug("webhook alert sent", "symbol", alert.Symbol, "signal", alert.Signal)
	return nil
}
