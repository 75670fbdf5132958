package itinerary

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"

	"github.com/example/rental-checkout/internal/models"
)

// Fingerprint hashes the parts of an itinerary that affect its price.
// Segment order and every coordinate count.
func Fingerprint(it models.Itinerary) uint64 {
	b, err := json.Marshal(it)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(b)
}
