// Package identity computes the deterministic keys used to make ingestion idempotent.
package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"

	"newsdesk/internal/core"
)

// Of hashes the identifying fields of an article for a collection date.
// The same logical article always yields the same 40-character hex digest.
func Of(a core.Article, collectionDate string) string {
	key := strings.Join([]string{
		string(a.Source),
		strconv.Itoa(a.SequenceOrder),
		a.SourceURL,
		a.Title,
		collectionDate,
	}, "|")
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// CollectionName returns the vector collection for a collection date, e.g. broadcasts_2024_06_01.
func CollectionName(collectionDate string) string {
	return "broadcasts_" + strings.ReplaceAll(collectionDate, "-", "_")
}
