// Package stream reconciles the partial-content chunks of an in-flight
// streamed message into authoritative cumulative content.
//
// The agent transport does not guarantee strictly incremental deltas: a
// chunk may be a full snapshot, a resend, a stale shorter fragment that
// arrived late, or a genuine delta. Reconcile infers which case applies
// from the two strings alone.
package stream

import "strings"

// Reconcile returns the authoritative content after observing incoming,
// given the content accumulated so far. It is pure and deterministic.
//
// The rules are checked in order; the first match wins. Prefix checks come
// before the substring check, and the substring check before concatenation,
// because concatenation is the only case that duplicates text when the
// guess is wrong and so must be the last resort.
func Reconcile(previous, incoming string) string {
	switch {
	case previous == "":
		// First chunk.
		return incoming
	case strings.HasPrefix(incoming, previous):
		// Newer full snapshot (covers no-op resends).
		return incoming
	case strings.HasPrefix(previous, incoming):
		// Stale shorter fragment, likely reordered arrival. Content
		// never shrinks.
		return previous
	case strings.Contains(incoming, previous):
		// Snapshot that grew on both ends; adopt it whole.
		return incoming
	default:
		// Genuine incremental delta.
		return previous + incoming
	}
}
