package permission

import "sort"

const (
	// KeyFederation gates federation administration.
	KeyFederation = "federation"
	// KeySettings gates instance settings.
	KeySettings = "settings"
	// KeyLibrary gates library curation and pending review edits.
	KeyLibrary = "library"
	// KeyUpload gates uploads.
	KeyUpload = "upload"
	// KeyModeration gates pending review reports and requests.
	KeyModeration = "moderation"
)

// Set maps a permission key to whether the current user holds it.
// A missing key and a false value are both treated as "not granted".
type Set map[string]bool

// Has reports whether key is present and granted.
func (s Set) Has(key string) bool {
	if s == nil {
		return false
	}
	return s[key]
}

// Clone returns a shallow copy of s. A nil Set clones to an empty, non-nil Set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Keys returns the keys of s in lexical order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Granted returns the granted keys of s in lexical order.
func (s Set) Granted() []string {
	keys := make([]string, 0, len(s))
	for k, v := range s {
		if v {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
