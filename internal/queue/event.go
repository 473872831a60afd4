// Package queue carries auth audit events over RabbitMQ: a publisher used
// by the credential service and a consumer that appends each event to an
// audit log file.
package queue

import "time"

// Event types.
const (
	TypeAccountRegistered    = "account.registered"
	TypeRefreshReuseDetected = "refresh.reuse_detected"
)

// Event is the envelope published for every audit-worthy auth action. It
// contains enough information for downstream consumers to log or alert
// without querying the primary database. Secrets are never included.
type Event struct {
	Type       string    `json:"type"`
	AccountID  int64     `json:"account_id"`
	Username   string    `json:"username,omitempty"`
	FamilyID   string    `json:"family_id,omitempty"`
	Revoked    int64     `json:"revoked,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AccountRegistered builds the event published after a successful registration.
func AccountRegistered(accountID int64, username string, at time.Time) Event {
	return Event{Type: TypeAccountRegistered, AccountID: accountID, Username: username, OccurredAt: at.UTC()}
}

// RefreshReuseDetected builds the event published when a rotated refresh
// token is presented again and its family is revoked.
func RefreshReuseDetected(accountID int64, familyID string, revoked int64, at time.Time) Event {
	return Event{
		Type:       TypeRefreshReuseDetected,
		AccountID:  accountID,
		FamilyID:   familyID,
		Revoked:    revoked,
		OccurredAt: at.UTC(),
	}
}
