package selection

import (
	"github.com/cespare/xxhash/v2"
)

// Signature hashes the shape of a selection tree including aliases and argument literals.
// Two trees with the same signature print to the same GraphQL text.
func Signature(fields []*FieldSelection) uint64 {
	digest := xxhash.New()
	_, _ = digest.WriteString(Print(fields))
	return digest.Sum64()
}
