package vars

import "strings"

// Markers that make a variable name per-entity, e.g. {skor.%player%}
var entityMarkers = []string{"%player%", "%pemain%"}

// IsEntityScoped reports whether name refers to the current entity's scope
func IsEntityScoped(name string) bool {
	for _, m := range entityMarkers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// Resolve splits a script variable name into the scope it lives in and the
// key within that scope. Names carrying an entity marker resolve to entityID
// with the marker stripped; all others resolve to the global scope ("").
func Resolve(name, entityID string) (scope, key string) {
	if !IsEntityScoped(name) {
		return "", name
	}
	key = name
	for _, m := range entityMarkers {
		key = strings.ReplaceAll(key, "."+m, "")
		key = strings.ReplaceAll(key, m+".", "")
		key = strings.ReplaceAll(key, m, "")
	}
	return entityID, key
}
