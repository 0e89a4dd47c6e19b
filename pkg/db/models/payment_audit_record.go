package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentAuditEvent is one entry in the append-only reconciliation timeline.
type PaymentAuditEvent struct {
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
	Message string    `json:"message,omitempty"`
}

// PaymentAuditRecord is the forensic trail for one checkout attempt. Created
// before the gateway is queried, updated in place, never deleted.
type PaymentAuditRecord struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionRef string    `gorm:"column:transaction_ref;not null;uniqueIndex:ux_payment_audits_transaction_ref"`
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`

	ClientClaimedPaise   int64 `gorm:"column:client_claimed_paise;not null;default:0"`
	ServerComputedPaise  int64 `gorm:"column:server_computed_paise;not null;default:0"`
	GatewayCapturedPaise int64 `gorm:"column:gateway_captured_paise;not null;default:0"`

	RiskScore  int     `gorm:"column:risk_score;not null;default:0"`
	Flagged    bool    `gorm:"column:flagged;not null;default:false"`
	FlagReason *string `gorm:"column:flag_reason"`

	Events  json.RawMessage `gorm:"column:events;type:jsonb"`
	OrderID *uuid.UUID      `gorm:"column:order_id;type:uuid"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// AppendEvent adds an entry to the timeline, tolerating a previously empty
// column.
func (r *PaymentAuditRecord) AppendEvent(kind, message string, at time.Time) error {
	var events []PaymentAuditEvent
	if len(r.Events) > 0 {
		if err := json.Unmarshal(r.Events, &events); err != nil {
			return err
		}
	}
	events = append(events, PaymentAuditEvent{At: at, Kind: kind, Message: message})
	raw, err := json.Marshal(events)
	if err != nil {
		return err
	}
	r.Events = raw
	return nil
}
