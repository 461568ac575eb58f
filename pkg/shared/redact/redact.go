package redact

import "strings"

var sensitiveKeys = []string{"authorization", "proxy-authorization", "cookie", "set-cookie", "access_token", "id_token", "session", "apikey", "x-api-key"}

const mask = "***"

// Value masks the value when the key names a credential-bearing header or
// field.
func Value(key, value string) string {
	if IsSensitive(key) {
		return mask
	}
	return value
}

// IsSensitive reports whether the key names a secret.
func IsSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if key == s {
			return true
		}
	}
	return false
}
