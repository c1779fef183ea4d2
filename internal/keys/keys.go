package keys

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Tagged wraps name in a cluster hash tag and appends suffix, so every key
// derived from the same name routes to the same slot.
func Tagged(name, suffix string) string {
	return "{" + name + "}:" + suffix
}

func Value(name string) string   { return Tagged(name, "value") }
func Version(name string) string { return Tagged(name, "version") }

// HashTag returns the part of key a Redis Cluster hashes on: the substring
// between the first '{' and the next '}', when non-empty; otherwise the whole key.
func HashTag(key string) string {
	open := strings.IndexByte(key, '{')
	if open < 0 {
		return key
	}
	end := strings.IndexByte(key[open+1:], '}')
	if end <= 0 {
		return key
	}
	return key[open+1 : open+1+end]
}

// Redact returns a short, stable fingerprint of key for logs.
func Redact(key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", sum[:8])
}
