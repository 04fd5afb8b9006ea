package tasks

import "time"

// A list of task types.
const (
	TaskReconcileMint = "publish:mint:reconcile"
)

// ReconcileMintPayload identifies an outstanding mint to check on after the mint timeout.
type ReconcileMintPayload struct {
	PublishID   string    `json:"publish_id"`
	AccountID   string    `json:"account_id"`
	RequestedAt time.Time `json:"requested_at"`
}

func (p ReconcileMintPayload) GetTraceData() map[string]string {
	return map[string]string{
		"publish_id":   p.PublishID,
		"account_id":   p.AccountID,
		"requested_at": p.RequestedAt.Format(time.RFC3339),
	}
}
