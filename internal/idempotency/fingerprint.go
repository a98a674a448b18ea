package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// keyPrefix namespaces idempotency entries in shared backends.
const keyPrefix = "mcp:idempotency:"

// Fingerprint derives the cache key for a tool call. Two calls collide
// exactly when tool, user and the canonical form of args all match; map
// ordering and JSON whitespace never influence the result.
func Fingerprint(tool string, args map[string]any, user string) string {
	h := sha256.New()
	h.Write([]byte(tool))
	h.Write([]byte{0})
	h.Write([]byte(user))
	h.Write([]byte{0})
	writeCanonical(h, args)
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// writeCanonical serializes v with all object keys sorted so that
// semantically equal argument maps hash identically.
func writeCanonical(w interface{ Write([]byte) (int, error) }, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w.Write([]byte{'{'})
		for i, k := range keys {
			if i > 0 {
				w.Write([]byte{','})
			}
			fmt.Fprintf(w, "%q:", k)
			writeCanonical(w, val[k])
		}
		w.Write([]byte{'}'})
	case []any:
		w.Write([]byte{'['})
		for i, item := range val {
			if i > 0 {
				w.Write([]byte{','})
			}
			writeCanonical(w, item)
		}
		w.Write([]byte{']'})
	case nil:
		w.Write([]byte("null"))
	case string:
		fmt.Fprintf(w, "%q", val)
	default:
		// Numbers and booleans round-trip deterministically.
		b, err := json.Marshal(val)
		if err != nil {
			fmt.Fprintf(w, "%q", fmt.Sprint(val))
			return
		}
		w.Write(b)
	}
}

// ShortKey strips the namespace prefix for log output.
func ShortKey(key string) string {
	return strings.TrimPrefix(key, keyPrefix)
}
