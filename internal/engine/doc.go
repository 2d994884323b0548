// Package engine implements the slot swap negotiation state machine.
//
// The engine validates and executes swap request creation, response and
// cancellation over the store's Slot Store and Swap Request Ledger. It is
// also the single entry point for owner edits to slots, so every mutation
// shares the same transaction discipline and tracing.
//
// ARCHITECTURE:
//
// Request State Machine:
// PENDING moves once to ACCEPTED, REJECTED or CANCELLED. Nothing leaves a
// terminal status; a repeated response fails with ALREADY_RESOLVED.
//
// Transition Flow:
// 1. Open a store transaction (store.WithTx)
// 2. Load the request and/or slots; run the ordered checks
// 3. Apply compare-and-swap slot updates and the ledger update
// 4. Commit, or roll back everything on the first error
// 5. After commit: log, then publish a lifecycle event
//
// The lifecycle publish happens outside the transaction. A broker outage
// is logged and never undoes a committed swap.
//
// CRITICAL PATTERNS:
//
// Lock Before Record:
// requestSwap locks both slots (SWAPPABLE -> LOCKED) in the same
// transaction that inserts the PENDING request. A concurrent requester for
// either slot observes LOCKED and gets CONFLICT, the only retryable error.
//
// Ownership From Slots:
// respondSwap authorizes against the current owner of the responder-side
// slot, not the responder id captured on the request.
//
// Expiry:
// ExpirePending and RunExpiry cancel PENDING requests older than a
// configured age. They are an optional sweeper; nothing in the state
// machine depends on them running.
package engine
