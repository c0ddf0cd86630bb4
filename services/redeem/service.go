package redeem

import (
	"context"
	"encoding/json"
	"strings"

	taskq "swaply-rewards/pkg/asynq"
	"swaply-rewards/pkg/errutil"
	"swaply-rewards/pkg/metrics"
	"swaply-rewards/pkg/repository"
	"swaply-rewards/pkg/sequence"
	"swaply-rewards/services/reward"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	node  *snowflake.Node
	seq   sequence.Generator
	tasks *asynq.Client

	rewards *reward.Service

	requests repository.Repository[AirtimeRequest]
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Seq     sequence.Generator `optional:"true"`
	Tasks   *asynq.Client      `optional:"true"`
	Rewards *reward.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		node:  p.Node,
		seq:   p.Seq,
		tasks: p.Tasks,

		rewards: p.Rewards,

		requests: repository.ProvideStore[AirtimeRequest](p.DB),
	}
}

type Input struct {
	Phone        string `json:"phone" binding:"required"`
	Points       int64  `json:"points" binding:"required"`
	CampaignCode string `json:"campaign_code"`
}

type Result struct {
	OK           bool   `json:"ok"`
	Reason       string `json:"reason,omitempty"`
	RedeemCode   string `json:"redeem_code,omitempty"`
	Status       string `json:"status,omitempty"`
	PointBalance int64  `json:"point_balance"`
}

// Redeem debits points and records an airtime top-up request for async
// fulfillment. Insufficient balance is a soft outcome, not an error.
func (s *Service) Redeem(ctx context.Context, userID string, in Input) (*Result, error) {
	phone, err := normalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}
	if in.Points <= 0 {
		return nil, errutil.ValidationFailed("points must be positive", nil)
	}

	code := s.rewards.CampaignCode(in.CampaignCode)
	log := zap.L().With(
		zap.String("user_id", userID),
		zap.String("phone", maskPhone(phone)),
		zap.Int64("points", in.Points),
	)

	balance, debited, err := s.rewards.DebitPoints(ctx, userID, code, in.Points)
	if err != nil {
		return nil, errutil.Internal("failed to debit points", err)
	}
	if !debited {
		metrics.AirtimeRedeemTotal.WithLabelValues("insufficient").Inc()
		st, err := s.rewards.Snapshot(ctx, userID, code)
		if err != nil {
			return nil, err
		}
		return &Result{
			OK:           false,
			Reason:       "insufficient_points",
			PointBalance: st.PointBalance,
		}, nil
	}

	redeemCode, err := s.nextCode(ctx, code)
	if err != nil {
		return nil, s.rollback(ctx, log, userID, code, in.Points, err)
	}

	meta, _ := json.Marshal(map[string]any{"phone": maskPhone(phone)})
	row := &AirtimeRequest{
		ID:           s.node.Generate().String(),
		UserID:       userID,
		CampaignCode: code,
		RedeemCode:   redeemCode,
		Phone:        phone,
		Points:       in.Points,
		Status:       StatusPending,
		Metadata:     datatypes.JSON(meta),
	}
	if err := s.requests.Create(ctx, row); err != nil {
		return nil, s.rollback(ctx, log, userID, code, in.Points, err)
	}

	// The debit is committed from here on. A failed enqueue leaves the
	// row pending for later re-enqueue rather than refunding.
	status := StatusPending
	if s.tasks != nil {
		payload, _ := json.Marshal(taskq.AirtimeFulfillPayload{
			RequestID:  row.ID,
			UserID:     userID,
			Phone:      phone,
			Amount:     in.Points,
			RedeemCode: redeemCode,
		})
		task := asynq.NewTask(taskq.AirtimeFulfillTask, payload)
		if _, err := s.tasks.EnqueueContext(ctx, task, asynq.Queue("default")); err != nil {
			log.Error("failed to enqueue airtime fulfillment", zap.Error(err))
		} else {
			status = StatusQueued
			if err := s.requests.Update(ctx, row.ID, map[string]any{"status": StatusQueued}); err != nil {
				log.Warn("failed to mark redeem request queued", zap.Error(err))
			}
		}
	}

	metrics.AirtimeRedeemTotal.WithLabelValues("accepted").Inc()
	log.Info("airtime redeem accepted", zap.String("redeem_code", redeemCode))

	return &Result{
		OK:           true,
		RedeemCode:   redeemCode,
		Status:       status,
		PointBalance: balance,
	}, nil
}

// rollback refunds a debit whose request row never materialized.
func (s *Service) rollback(ctx context.Context, log *zap.Logger, userID, code string, points int64, cause error) error {
	if _, err := s.rewards.AddPoints(ctx, userID, code, points); err != nil {
		log.Error("failed to refund points after redeem failure", zap.Error(err))
	}
	metrics.AirtimeRedeemTotal.WithLabelValues("failed").Inc()
	if be, ok := errutil.AsBaseError(cause); ok {
		return be
	}
	return errutil.Internal("failed to create redeem request", cause)
}

func (s *Service) nextCode(ctx context.Context, campaignCode string) (string, error) {
	if s.seq == nil {
		return "RDM-" + strings.ToUpper(s.node.Generate().Base36()), nil
	}
	return s.seq.NextRedeemCode(ctx, campaignCode)
}

// normalizePhone accepts E.164-style numbers: optional leading +, 8 to
// 15 digits, nothing else.
func normalizePhone(raw string) (string, error) {
	phone := strings.TrimSpace(raw)
	if phone == "" {
		return "", errutil.ValidationFailed("phone is required", nil)
	}
	if len(phone) > 16 {
		return "", errutil.ValidationFailed("invalid phone number", nil)
	}

	digits := phone
	if strings.HasPrefix(phone, "+") {
		digits = phone[1:]
	}
	if len(digits) < 8 || len(digits) > 15 {
		return "", errutil.ValidationFailed("invalid phone number", nil)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", errutil.ValidationFailed("invalid phone number", nil)
		}
	}
	return phone, nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
