package shared

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

func NewID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}

// ParseLimit reads a page size from a query value, falling back to
// DefaultPageSize and capping at MaxPageSize.
func ParseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return DefaultPageSize
	}
	return min(n, MaxPageSize)
}
