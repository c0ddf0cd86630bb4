package reward

import (
	"context"
	"encoding/json"

	"swaply-rewards/pkg/db"
	"swaply-rewards/pkg/errutil"
	"swaply-rewards/pkg/metrics"

	taskq "swaply-rewards/pkg/asynq"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// GrantResult reports the outcome of one exactly-once grant attempt.
// Granted is false when the trigger was already claimed.
type GrantResult struct {
	Granted    bool      `json:"granted"`
	TriggerN   int64     `json:"trigger_n"`
	Kind       GrantKind `json:"kind"`
	Amount     int64     `json:"amount"`
	NewBalance int64     `json:"new_balance,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

type entryPayload struct {
	Spins      int64  `json:"spins,omitempty"`
	Points     int64  `json:"points,omitempty"`
	NewBalance int64  `json:"new_balance,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// GrantSpinsOnce grants add spins for the trigger at most once, ever.
func (s *Service) GrantSpinsOnce(ctx context.Context, userID, code, listingID string, triggerN, add int64, reason string) (*GrantResult, error) {
	return s.grantOnce(ctx, userID, code, listingID, triggerN, GrantSpin, add, reason)
}

// GrantPointsOnce grants amount points for the trigger at most once, ever.
func (s *Service) GrantPointsOnce(ctx context.Context, userID, code, listingID string, triggerN, amount int64, reason string) (*GrantResult, error) {
	return s.grantOnce(ctx, userID, code, listingID, triggerN, GrantPoints, amount, reason)
}

// grantOnce is the exactly-once grant protocol: a pending audit entry
// whose unique key is the gate, then the atomic balance mutation, then
// the entry finalized. A failed mutation leaves a failed entry that
// permanently blocks retries of the same trigger; remediation is manual.
func (s *Service) grantOnce(ctx context.Context, userID, code, listingID string, triggerN int64, kind GrantKind, amount int64, reason string) (*GrantResult, error) {
	result := &GrantResult{TriggerN: triggerN, Kind: kind, Amount: amount, Reason: reason}
	if amount <= 0 {
		return result, nil
	}

	payload := entryPayload{Reason: reason}
	if kind == GrantSpin {
		payload.Spins = amount
	} else {
		payload.Points = amount
	}
	raw, _ := json.Marshal(payload)

	entry := &Entry{
		ID:           s.node.Generate().String(),
		UserID:       userID,
		CampaignCode: code,
		TriggerN:     triggerN,
		Kind:         kind,
		ListingID:    listingID,
		Status:       EntryStatusPending,
		Payload:      datatypes.JSON(raw),
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		if db.IsUniqueViolation(err) {
			return result, nil
		}
		return nil, errutil.Internal("failed to record grant entry", err)
	}

	var (
		newBalance int64
		err        error
	)
	if kind == GrantSpin {
		newBalance, err = s.AddSpins(ctx, userID, code, amount)
	} else {
		newBalance, err = s.AddPoints(ctx, userID, code, amount)
	}
	if err != nil {
		s.markFailed(ctx, entry, payload, err)
		metrics.GrantsTotal.WithLabelValues(string(kind), string(EntryStatusFailed)).Inc()
		return nil, errutil.New(errutil.StatusPartialFailure, "grant failed after entry recorded", errutil.WithErr(err))
	}

	payload.NewBalance = newBalance
	raw, _ = json.Marshal(payload)
	if err := s.entries.Update(ctx, entry.ID, map[string]any{
		"status":  EntryStatusCompleted,
		"payload": datatypes.JSON(raw),
	}); err != nil {
		// The balance is already mutated; rolling back a granted reward
		// is unsafe. The entry stays pending for the audit trail.
		zap.L().Error("failed to finalize grant entry",
			zap.String("entry_id", entry.ID),
			zap.String("user_id", userID),
			zap.Int64("trigger_n", triggerN),
			zap.Error(err))
	}

	metrics.GrantsTotal.WithLabelValues(string(kind), string(EntryStatusCompleted)).Inc()
	s.notifyGranted(ctx, userID, code, kind, amount, reason)

	result.Granted = true
	result.NewBalance = newBalance
	return result, nil
}

func (s *Service) notifyGranted(ctx context.Context, userID, code string, kind GrantKind, amount int64, reason string) {
	if s.tasks == nil {
		return
	}

	note, _ := json.Marshal(taskq.GrantNotificationPayload{
		UserID:       userID,
		CampaignCode: code,
		Kind:         string(kind),
		Amount:       amount,
		Message:      reason,
	})
	if _, err := s.tasks.EnqueueContext(ctx, asynq.NewTask(taskq.GrantNotificationTask, note), asynq.Queue("low")); err != nil {
		zap.L().Warn("failed to enqueue grant notification", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *Service) markFailed(ctx context.Context, entry *Entry, payload entryPayload, cause error) {
	payload.Error = cause.Error()
	raw, _ := json.Marshal(payload)

	if err := s.entries.Update(ctx, entry.ID, map[string]any{
		"status":  EntryStatusFailed,
		"payload": datatypes.JSON(raw),
	}); err != nil {
		zap.L().Error("failed to mark grant entry failed",
			zap.String("entry_id", entry.ID),
			zap.Error(err))
	}

	zap.L().Error("grant failed after entry recorded",
		zap.String("entry_id", entry.ID),
		zap.String("user_id", entry.UserID),
		zap.String("campaign_code", entry.CampaignCode),
		zap.Int64("trigger_n", entry.TriggerN),
		zap.String("kind", string(entry.Kind)),
		zap.Error(cause))

	if s.tasks == nil {
		return
	}

	alert, _ := json.Marshal(taskq.GrantFailedAlertPayload{
		UserID:       entry.UserID,
		CampaignCode: entry.CampaignCode,
		EntryID:      entry.ID,
		Kind:         string(entry.Kind),
		Reason:       cause.Error(),
	})
	if _, err := s.tasks.EnqueueContext(ctx, asynq.NewTask(taskq.GrantFailedAlertTask, alert), asynq.Queue("critical")); err != nil {
		zap.L().Error("failed to enqueue grant alert", zap.String("entry_id", entry.ID), zap.Error(err))
	}
}
