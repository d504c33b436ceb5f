package intake

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// HashPatientIdentifier replaces the raw identifier before anything is
// stored; only the hash ever reaches the database.
func HashPatientIdentifier(raw string) string {
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// DedupKey derives the idempotency key from the submission identity plus
// a truncated timestamp. Resubmitting the same drug/patient from the same
// submitter within one bucket collapses to one event.
func DedupKey(source Source, submitterID, drugName, patientHash string, at time.Time, bucket time.Duration) string {
	if bucket <= 0 {
		bucket = time.Hour
	}
	stamp := at.UTC().Truncate(bucket).Format("2006010215")
	key := fmt.Sprintf("%s:%s:%s:%s:%s", source, submitterID, drugName, patientHash, stamp)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
