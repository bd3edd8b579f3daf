package config

import (
	"log"
	"sort"
	"strings"
)

// Missing returns the names of required settings whose value is empty,
// sorted by name.
func Missing(required map[string]string) []string {
	var out []string
	for name, v := range required {
		if strings.TrimSpace(v) == "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// MustHave exits the process listing every empty required setting at once.
func MustHave(required map[string]string) {
	if m := Missing(required); len(m) > 0 {
		log.Fatalf("missing required env %s", strings.Join(m, ", "))
	}
}
