package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lscrefer/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertIndexEmpty    AlertType = "index_empty"
	AlertIndexStale    AlertType = "index_stale"
	AlertCacheFallback AlertType = "cache_fallback"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Without region codes nothing can be resolved until the next reload.
	if snap.Index.ByRIN == 0 {
		alerts = append(alerts, Alert{
			Type:     AlertIndexEmpty,
			Severity: "high",
			Message: fmt.Sprintf(
				"Program index %s has no service-area mappings (%d directory entries)",
				snap.Index.Generation, snap.Index.ByArea,
			),
			Details: map[string]any{
				"generation": snap.Index.Generation,
				"by_area":    snap.Index.ByArea,
			},
			Timestamp: now,
		})
	}

	if snap.CacheEmpty {
		alerts = append(alerts, Alert{
			Type:     AlertCacheFallback,
			Severity: "medium",
			Message:  "Service-area cache holds the empty fallback payload",
			Details: map[string]any{
				"cache_bytes": snap.CacheBytes,
			},
			Timestamp: now,
		})
	}

	maxAge := time.Duration(a.cfg.MaxIndexAgeHours) * time.Hour
	if maxAge > 0 && snap.IndexAge > maxAge {
		alerts = append(alerts, Alert{
			Type:     AlertIndexStale,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Program index built %s ago exceeds max age %s",
				snap.IndexAge.Round(time.Minute), maxAge,
			),
			Details: map[string]any{
				"built_at":          snap.Index.BuiltAt,
				"max_index_age_hrs": a.cfg.MaxIndexAgeHours,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
