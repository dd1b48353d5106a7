package entity

import "time"

// ReconcileAction is the outcome of applying one revision.
type ReconcileAction string

const (
	ActionCreated    ReconcileAction = "created"
	ActionUpdated    ReconcileAction = "updated"
	ActionCancelled  ReconcileAction = "cancelled"
	ActionSuperseded ReconcileAction = "superseded"
	ActionUnmatched  ReconcileAction = "unmatched"
	ActionDuplicate  ReconcileAction = "duplicate"
	ActionIgnored    ReconcileAction = "ignored"
	ActionRejected   ReconcileAction = "rejected"
	// ActionAlerted answers health webhooks.
	ActionAlerted ReconcileAction = "alerted"
)

// Applied reports whether the action changed the booking store.
func (a ReconcileAction) Applied() bool {
	return a == ActionCreated || a == ActionUpdated || a == ActionCancelled
}

// ReconcileResult is returned by the revision reconciler.
type ReconcileResult struct {
	Action    ReconcileAction `json:"action"`
	BookingID string          `json:"booking_id,omitempty"`
	UnitID    string          `json:"unit_id,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Message   string          `json:"message,omitempty"`
	// PreviousUnitID is set when a modification moved the booking.
	PreviousUnitID string `json:"previous_unit_id,omitempty"`
	// DateFrom and DateTo cover every night whose availability changed.
	DateFrom time.Time `json:"-"`
	DateTo   time.Time `json:"-"`
}

// AdmitResult is returned by the idempotency guard.
type AdmitResult struct {
	Admitted bool
	RecordID string
}

// WebhookResult is the structured answer returned to the channel manager.
type WebhookResult struct {
	Action    ReconcileAction `json:"action"`
	EventID   string          `json:"event_id,omitempty"`
	BookingID string          `json:"booking_id,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Message   string          `json:"message,omitempty"`
	LogID     string          `json:"log_id,omitempty"`
}

// Decision is the rate limiter answer for one acquisition.
type Decision struct {
	Allowed bool          `json:"allowed"`
	Wait    time.Duration `json:"wait"`
}
