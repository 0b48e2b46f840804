package id

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// batchIDAlphabet is the lowercase alphanumeric set used for the random
// suffix of a batch ID.
const batchIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// batchIDSuffixLen is the length of the random suffix appended to a batch
// ID's timestamp.
const batchIDSuffixLen = 6

// Generate creates a prefixed unique ID using NanoID
// Format: prefix-nanoid (e.g., "lib-V1StGXR8_Z5jdHi6B-myT")
//
// NanoIDs are URL-friendly, compact (21 characters vs UUID's 36),
// and use a larger alphabet for better entropy per character.
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	// Use default NanoID (21 characters, URL-safe alphabet)
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
// Use this only when you're certain the system entropy is available,
// or when failure should crash the program (e.g., during initialization).
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// BatchID creates a new batch identifier of the form
// "batch-<UTC timestamp>-<6 lowercase alphanumerics>", e.g.
// "batch-20260730083145-a1b2c3". The timestamp makes batches sortable by
// creation time; the suffix disambiguates batches created within the same
// second.
func BatchID(now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(batchIDAlphabet, batchIDSuffixLen)
	if err != nil {
		return "", fmt.Errorf("generate batch id suffix: %w", err)
	}
	return fmt.Sprintf("batch-%s-%s", now.UTC().Format("20060102150405"), suffix), nil
}
