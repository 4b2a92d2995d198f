package geocode

import (
	"regexp"
	"strings"
)

// Public-safety feeds redact exact street numbers to a block, e.g.
// "2600 *** BLOCK AMANDA AV". The mask and the literal BLOCK confuse
// geocoders, so we strip them before querying.
var blockRe = regexp.MustCompile(`(?i)^\s*(\d+)\s+(?:\*+\s+)?BLOCK\s+(.+?)\s*$`)

// ParseBlock extracts the block number and street from a block address.
// ok is false when the input does not match the block pattern.
func ParseBlock(addr string) (number, street string, ok bool) {
	m := blockRe.FindStringSubmatch(addr)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// SimplifyBlockAddress rewrites "2600 *** BLOCK AMANDA AV" as
// "2600 AMANDA AV", preserving the block number. Inputs without the block
// pattern return ok false.
func SimplifyBlockAddress(addr string) (string, bool) {
	number, street, ok := ParseBlock(addr)
	if !ok {
		return "", false
	}
	return number + " " + street, true
}

// joinParts joins non-empty, trimmed address components with commas.
func joinParts(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}
