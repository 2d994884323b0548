package domain

import "time"

// EventStatus is the availability state of a slot.
type EventStatus string

const (
	// StatusBusy marks a slot the owner keeps for themselves.
	StatusBusy EventStatus = "BUSY"

	// StatusSwappable marks a slot offered for exchange.
	StatusSwappable EventStatus = "SWAPPABLE"

	// StatusLocked marks a slot committed to exactly one pending swap.
	StatusLocked EventStatus = "LOCKED"
)

// Valid reports whether s is a known event status.
func (s EventStatus) Valid() bool {
	switch s {
	case StatusBusy, StatusSwappable, StatusLocked:
		return true
	}
	return false
}

// SwapStatus is the lifecycle state of a swap request.
type SwapStatus string

const (
	SwapPending   SwapStatus = "PENDING"
	SwapAccepted  SwapStatus = "ACCEPTED"
	SwapRejected  SwapStatus = "REJECTED"
	SwapCancelled SwapStatus = "CANCELLED"
)

// Valid reports whether s is a known swap status.
func (s SwapStatus) Valid() bool {
	switch s {
	case SwapPending, SwapAccepted, SwapRejected, SwapCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s SwapStatus) Terminal() bool {
	return s == SwapAccepted || s == SwapRejected || s == SwapCancelled
}

// User is a registered account.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Event is a calendar slot, the unit of exchange.
type Event struct {
	ID        int64       `json:"id"`
	OwnerID   int64       `json:"owner_id"`
	Title     string      `json:"title"`
	StartTime time.Time   `json:"start_time"`
	EndTime   time.Time   `json:"end_time"`
	Status    EventStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SwapRequest is a proposal to exchange ownership of two slots.
//
// RequesterID and ResponderID are captured from slot ownership when the
// request is created; they do not follow later ownership changes.
type SwapRequest struct {
	ID               int64      `json:"id"`
	RequesterID      int64      `json:"requester_id"`
	ResponderID      int64      `json:"responder_id"`
	RequesterEventID int64      `json:"requester_event_id"`
	ResponderEventID int64      `json:"responder_event_id"`
	Status           SwapStatus `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
