package main

import (
	"fmt"
	"sort"
	"strings"
)

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return name
}

// resolveUnit accepts a unit id or a unit name in any case or separator style.
func resolveUnit(input string, names map[string]string) (string, error) {
	if _, ok := names[input]; ok {
		return input, nil
	}
	needle := normalizeName(input)
	for id, name := range names {
		if normalizeName(name) == needle || normalizeName(id) == needle {
			return id, nil
		}
	}
	available := make([]string, 0, len(names))
	for _, name := range names {
		available = append(available, name)
	}
	sort.Strings(available)
	return "", fmt.Errorf("unit %q not found. Available: %s", input, strings.Join(available, ", "))
}
