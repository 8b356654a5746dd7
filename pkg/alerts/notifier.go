package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/meerkat-code/meerkat-abacus/pkg/codes"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/logger"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
	"github.com/meerkat-code/meerkat-abacus/pkg/locations"
	"github.com/redis/go-redis/v9"
)

// Notifier dispatches alert notifications to the external messaging service.
// A redis key per alert id stops repeated coding passes from re-notifying.
type Notifier struct {
	url       string
	client    *http.Client
	catalog   *codes.Catalog
	locations *locations.Index
	redis     *redis.Client
	dedupeTTL time.Duration
}

func NewNotifier(url string, catalog *codes.Catalog, index *locations.Index, redisClient *redis.Client, dedupeTTL time.Duration) *Notifier {
	return &Notifier{
		url:       url,
		client:    &http.Client{Timeout: 10 * time.Second},
		catalog:   catalog,
		locations: index,
		redis:     redisClient,
		dedupeTTL: dedupeTTL,
	}
}

type notification struct {
	AlertID    string                 `json:"alert_id"`
	Reason     string                 `json:"reason"`
	ReasonName string                 `json:"reason_name"`
	Clinic     string                 `json:"clinic"`
	Region     string                 `json:"region"`
	Date       time.Time              `json:"date"`
	Data       map[string]interface{} `json:"data"`
}

// Send posts one alert notification, keyed by the triggering variable and
// location names. Failures are logged, not returned: a lost notification
// must not fail the record that raised it.
func (n *Notifier) Send(ctx context.Context, alert *models.Alert) {
	if n.url == "" {
		return
	}
	if n.alreadySent(ctx, alert.ID) {
		return
	}

	payload := notification{
		AlertID: alert.ID,
		Reason:  alert.Reason,
		Date:    alert.Date,
		Data:    alert.Data,
	}
	if rule, ok := n.catalog.Rule(alert.Reason); ok {
		payload.ReasonName = rule.Name
	}
	if clinic, ok := n.locations.ByID[alert.Clinic]; ok {
		payload.Clinic = clinic.Name
	}
	if region, ok := n.locations.ByID[alert.Region]; ok {
		payload.Region = region.Name
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to marshal alert notification")
		return
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		logger.Log.WithError(err).Error("Failed to build alert notification request")
		return
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := n.client.Do(request)
	if err != nil {
		logger.Log.WithError(err).WithField("alert_id", alert.ID).Error("Failed to send alert notification")
		return
	}
	defer response.Body.Close()

	if response.StatusCode >= 300 {
		logger.Log.WithFields(map[string]interface{}{
			"alert_id": alert.ID,
			"status":   response.StatusCode,
		}).Error("Alert notification rejected")
		return
	}

	logger.Log.WithFields(map[string]interface{}{
		"alert_id": alert.ID,
		"reason":   alert.Reason,
	}).Info("Alert notification sent")
}

func (n *Notifier) alreadySent(ctx context.Context, alertID string) bool {
	if n.redis == nil {
		return false
	}
	key := fmt.Sprintf("abacus:alert_sent:%s", alertID)
	set, err := n.redis.SetNX(ctx, key, 1, n.dedupeTTL).Result()
	if err != nil {
		logger.Log.WithError(err).Warn("Alert dedupe cache unavailable")
		return false
	}
	return !set
}
