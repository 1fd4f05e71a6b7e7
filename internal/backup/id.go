package backup

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateJobID builds ids of the form {prefix}_{unix-ms}_{random} so a
// directory listing reads in rough chronological order. Uniqueness holds
// with overwhelming probability; it is not transactionally enforced.
func GenerateJobID(prefix string) string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), hex.EncodeToString(buf))
}
