package config

import (
	"io"
	"time"
)

// Config reads typed configuration values by dotted key.
//
// Missing keys return the zero value of the requested type unless a default
// was registered by the implementation.
type Config interface {
	io.Closer

	GetBool(key string) bool
	GetString(key string) string
	GetInt(key string) int
	GetInt32(key string) int32
	GetUint16(key string) uint16
	GetFloat64(key string) float64

	// GetSecond, GetMinute and GetDay read an integer and scale it to a duration.
	GetSecond(key string) time.Duration
	GetMinute(key string) time.Duration
	GetDay(key string) time.Duration

	// GetBinary decodes a base64 encoded value.
	GetBinary(key string) []byte

	// GetArray splits a comma separated value, dropping empty elements.
	GetArray(key string) []string
}
