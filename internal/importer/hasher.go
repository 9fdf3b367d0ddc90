package importer

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Hasher produces the duplicate-detection key for an imported row.
type Hasher struct {
	algorithm string
}

func NewHasher(algorithm string) *Hasher {
	return &Hasher{algorithm: algorithm}
}

// ComputeRowHash hashes the listed part columns of one row. Fields are read
// in slice order so the hash is deterministic; missing columns hash as
// empty. Comparison is case-insensitive to match the rule evaluator's view
// of part fields.
func (h *Hasher) ComputeRowHash(values map[string]string, fields []string) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("no fields specified for hashing")
	}

	var builder strings.Builder
	for _, field := range fields {
		builder.WriteString(strings.ToLower(strings.TrimSpace(values[field])))
		builder.WriteString("|")
	}

	input := builder.String()

	switch h.algorithm {
	case "md5":
		sum := md5.Sum([]byte(input))
		return hex.EncodeToString(sum[:]), nil
	default:
		sum := sha256.Sum256([]byte(input))
		return hex.EncodeToString(sum[:]), nil
	}
}
