package ledger

import "time"

// SetClock replaces the ledger's timestamp source in tests.
func SetClock(l *Ledger, now func() time.Time) {
	l.now = now
}
