package asynq

const (
	GrantFailedAlertTask  = "reward:grant_failed_alert"
	GrantNotificationTask = "reward:grant_notification"
	AirtimeFulfillTask    = "redeem:airtime_fulfill"
)

type GrantFailedAlertPayload struct {
	UserID       string `json:"user_id"`
	CampaignCode string `json:"campaign_code"`
	EntryID      string `json:"entry_id"`
	Kind         string `json:"kind"`
	Reason       string `json:"reason"`
}

type GrantNotificationPayload struct {
	UserID       string `json:"user_id"`
	CampaignCode string `json:"campaign_code"`
	Kind         string `json:"kind"`
	Amount       int64  `json:"amount"`
	Message      string `json:"message"`
}

type AirtimeFulfillPayload struct {
	RequestID  string `json:"request_id"`
	UserID     string `json:"user_id"`
	Phone      string `json:"phone"`
	Amount     int64  `json:"amount"`
	RedeemCode string `json:"redeem_code"`
}
