package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateEventID creates a stable ID for an event from its natural key
func GenerateEventID(source Source, externalID string) string {
	input := fmt.Sprintf("%s|%s", source, externalID)
	hash := sha256.Sum256([]byte(input))
	return "evt_" + hex.EncodeToString(hash[:])[:16]
}

// GenerateExternalID creates a source-scoped identifier for providers that do
// not assign one, based on the candidate's core attributes
func GenerateExternalID(prefix string, parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = strings.ToLower(strings.TrimSpace(p))
	}
	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return prefix + "_" + hex.EncodeToString(hash[:])[:12]
}

// Float64Ptr returns a pointer to v
func Float64Ptr(v float64) *float64 {
	return &v
}
