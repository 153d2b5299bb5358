package probe

import "time"

// DefaultStaleAfter is the age after which a probe record is dropped,
// resolved or not.
const DefaultStaleAfter = 60 * time.Second

// isStale reports whether rec is older than staleAfter at now. A record
// exactly staleAfter old is kept.
func isStale(rec Record, now time.Time, staleAfter time.Duration) bool {
	return now.Sub(rec.SentAt) > staleAfter
}

// evict filters stale records out of records in place and returns the
// surviving slice along with the number removed.
func evict(records []Record, now time.Time, staleAfter time.Duration) ([]Record, int) {
	kept := records[:0]
	for _, rec := range records {
		if !isStale(rec, now, staleAfter) {
			kept = append(kept, rec)
		}
	}
	removed := len(records) - len(kept)

	// Zero the tail so evicted records don't linger in the backing array.
	for i := len(kept); i < len(records); i++ {
		records[i] = Record{}
	}
	return kept, removed
}
