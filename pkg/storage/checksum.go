package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Checksum computes the stable hash of a breadcrumb's canonical
// (title, tags, context) triple: tags are sorted before hashing so
// checksum depends only on the tag set, not insertion order, while
// context is hashed as the exact bytes the caller persists (callers pass
// the canonically-marshaled form so repeat writes of unchanged content
// produce an unchanged checksum).
func Checksum(title string, tags []string, context []byte) string {
	sorted := make([]string, len(tags))
	copy(sorted, tags)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.Join(sorted, ",")))
	h.Write([]byte{'|'})
	h.Write(context)
	return hex.EncodeToString(h.Sum(nil))
}
