package env

import "os"

const prefix = "PROMOENGINE_"

// Get returns the prefixed variable PROMOENGINE_<key>, then the bare key, or
// fallback when neither is set.
func Get(key, fallback string) string {
	if val := os.Getenv(prefix + key); val != "" {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
