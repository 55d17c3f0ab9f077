package uid

import "github.com/google/uuid"

// UUID generates version 7 UUIDs. They sort by creation time, which keeps
// correlation IDs of one burst of requests together in log search.
type UUID struct{}

// NewUUID returns a UUID generator.
func NewUUID() *UUID {
	return &UUID{}
}

// Generate returns a new UUID string.
func (*UUID) Generate() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	// v7 only fails when the random source does
	return uuid.NewString()
}
