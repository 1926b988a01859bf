package utils

import "strings"

// ToStringSlice reads a JSON claim or attribute value as a string list. A single
// string becomes a one element list; non-string entries and blanks are dropped.
func ToStringSlice(value any) []string {
	stringSlice := make([]string, 0)
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) != "" {
			stringSlice = append(stringSlice, v)
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				stringSlice = append(stringSlice, s)
			}
		}
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				stringSlice = append(stringSlice, s)
			}
		}
	}
	return stringSlice
}
