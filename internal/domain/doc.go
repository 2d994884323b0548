// Package domain provides the shared types of the slot swap service.
//
// This package contains type definitions, the coded error taxonomy, and
// text normalisation only. All other internal packages import domain;
// domain imports nothing internal.
//
// Key design constraints:
//   - Event status is one of BUSY, SWAPPABLE, LOCKED; LOCKED is set and
//     cleared only by the negotiation engine
//   - SwapRequest status PENDING moves once to ACCEPTED, REJECTED or
//     CANCELLED and never leaves a terminal status
//   - All JSON tags use snake_case
//   - Identifiers are int64 row ids assigned by the store
package domain
