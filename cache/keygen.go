package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

const keySep = ":"

// Key builds a cache key from a domain prefix and identifying parts.
// Keys are lower-cased and colon-joined; empty parts are kept so that
// ("a", "") and ("a") never collide.
func Key(d Domain, parts ...string) string {
	segs := make([]string, 0, len(parts)+1)
	segs = append(segs, normalize(string(d)))
	for _, p := range parts {
		segs = append(segs, normalize(p))
	}
	return strings.Join(segs, keySep)
}

// Pattern builds a glob matching every key under the given prefix parts
func Pattern(d Domain, parts ...string) string {
	return Key(d, parts...) + keySep + "*"
}

// SearchHash returns a stable short hash of search parameters.
// Map iteration order is irrelevant: pairs are normalized and sorted first.
func SearchHash(params map[string]string) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, normalize(k)+"="+normalize(v))
	}
	sort.Strings(pairs)

	h := sha256.New()
	for _, p := range pairs {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
