package sheets

import (
	"context"

	"finledger/internal/core"
)

// LedgerMirror publishes a user's projected balance ledger to an external
// spreadsheet so it can be eyeballed outside the API.
type LedgerMirror interface {
	// MirrorLedger replaces the mirrored rows for userID with entries.
	MirrorLedger(ctx context.Context, userID string, entries []core.BalanceLedgerEntry) error
}
