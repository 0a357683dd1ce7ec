package order

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// NewNumber builds a human-facing order number candidate: a time-derived
// prefix plus a random 4-digit suffix. Collisions are unlikely but real;
// the creation path re-checks uniqueness and retries on conflict.
func NewNumber() string {
	return fmt.Sprintf("%06d%04d", time.Now().UnixMilli()%1_000_000, rand.IntN(10_000))
}
