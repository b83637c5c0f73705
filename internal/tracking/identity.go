package tracking

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Derive computes the fingerprint of one issuance from the recipient's email,
// source address and the issuance instant.
//
// The digest is xxHash64 rendered as 16 hex digits. It is fast and well
// distributed but keyless and not collision resistant: anyone holding the inputs
// can recompute it, and plain concatenation means ("ab","c") and ("a","bc")
// collide at the same instant. Treat the result as a correlation id only.
func Derive(r RecipientInfo, now time.Time) Fingerprint {
	input := r.Email + r.SourceAddress + now.UTC().Format(time.RFC3339Nano)
	return Fingerprint(fmt.Sprintf("%016x", xxhash.Sum64String(input)))
}
