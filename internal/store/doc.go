// Package store provides SQLite-backed durable storage for slots, swap
// requests and users.
//
// The store exposes three components that share one transaction scope:
//   - Slots: the Slot Store (events and their status)
//   - Ledger: the Swap Request Ledger (requests referencing two slots)
//   - Users: the account directory used by the auth collaborator
//
// # Critical Patterns
//
// Single Writer
//   - SetMaxOpenConns(1): every transaction runs on the one connection
//   - Transactions therefore serialize; a second caller observes the
//     first caller's committed locks
//
// Compare-And-Swap Status Updates
//   - Every status change is UPDATE ... WHERE id = ? AND status = ?
//   - Zero affected rows means another transition won; callers map it to
//     Conflict or AlreadyResolved
//
// One Pending Request Per Slot
//   - Partial UNIQUE indexes on requester_event_id and responder_event_id
//     WHERE status = 'PENDING'
//   - A violation surfaces as Conflict
//
// Deterministic Ordering
//   - List queries order by a time column and then id, never by rowid alone
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
