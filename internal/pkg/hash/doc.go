// Package hash provides keyed digests for short-lived secrets.
//
// Callers store only the digest and verify user input by recomputing it with
// the same server key. The plaintext never needs to be kept.
package hash
