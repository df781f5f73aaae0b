package models

import "time"

// RecipientSelf is the default recipient tag: the customer queues for
// themselves.
const RecipientSelf = "self"

type Ticket struct {
	ID                 string    `json:"id"`
	SequenceNumber     int       `json:"sequence_number"`
	DisplayName        string    `json:"display_name"`
	Phone              string    `json:"phone,omitempty"`
	RecipientTag       string    `json:"recipient_tag,omitempty"`
	State              string    `json:"state"`
	StatusMessage      string    `json:"status_message"`
	CreatedAt          time.Time `json:"created_at"`
	StartedAt          int64     `json:"started_at"`
	AccumulatedSeconds int64     `json:"accumulated_seconds"`
	BusinessDate       string    `json:"business_date"`
}

const (
	StatePending  = "pending"
	StateActive   = "active"
	StateFinished = "finished"
	StateCanceled = "canceled"
)

// Running reports whether the ticket's timer is counting. StartedAt is
// non-zero iff the ticket is active.
func (t Ticket) Running() bool {
	return t.StartedAt > 0
}

// Terminal reports whether the ticket can accept no further transitions.
func Terminal(state string) bool {
	return state == StateFinished || state == StateCanceled
}

type ResetEntry struct {
	Date         time.Time `json:"date"`
	Scope        string    `json:"scope"`
	DeletedCount int       `json:"deleted_count"`
}
