package core

import (
	"fmt"
	"sort"
	"strings"
)

const (
	fnvOffset32 uint32 = 0x811c9dc5
	fnvPrime32  uint32 = 0x01000193

	noCurrentItem = "null"
)

// StateHash fingerprints a queue for drift detection. Item order is ignored
// on purpose; the current item id is included. Not a security primitive.
func StateHash(itemIDs []string, currentID *string) string {
	ids := append([]string(nil), itemIDs...)
	sort.Strings(ids)

	cur := noCurrentItem
	if currentID != nil {
		cur = *currentID
	}
	return fnv1a(strings.Join(ids, ",") + "|" + cur)
}

func fnv1a(s string) string {
	h := fnvOffset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime32
	}
	return fmt.Sprintf("%08x", h)
}
