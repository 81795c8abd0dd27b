// Package strings normalizes list-valued configuration.
package strings

import "strings"

// SplitList flattens comma separated entries, trims whitespace and drops
// empty and repeated values. Order of first appearance is preserved.
//
//	SplitList([]string{"a:9092, b:9092", " a:9092", ""}) // [a:9092 b:9092]
func SplitList(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, dup := seen[part]; dup {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}
