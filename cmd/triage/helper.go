package main

import (
	"strings"

	"github.com/harunnryd/triage/internal/tracker"
)

// trimTrackerPrefix accepts both a tracker signal id and a bare item id.
func trimTrackerPrefix(id string) string {
	return strings.TrimPrefix(strings.TrimSpace(id), tracker.IDPrefix+"-")
}

func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}
