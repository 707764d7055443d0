// SPDX-License-Identifier: MIT

package log

import (
	"net/url"
	"strings"
)

const redacted = "xxxxx"

// sensitiveQueryKeys carry credentials in locators, e.g. photo-server
// shared links.
var sensitiveQueryKeys = map[string]bool{
	"key":      true,
	"password": true,
	"slug":     true,
	"api_key":  true,
	"apikey":   true,
	"token":    true,
}

// RedactURI masks the userinfo password and credential query parameters of
// a locator. Unparseable input is returned as a fixed placeholder so nothing
// leaks.
func RedactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid-uri>"
	}
	u.RawQuery = redactQuery(u.RawQuery)
	return u.Redacted()
}

// redactQuery keeps parameter order so untouched locators stay byte-stable.
func redactQuery(raw string) string {
	if raw == "" {
		return raw
	}
	parts := strings.Split(raw, "&")
	for i, p := range parts {
		k, _, hasValue := strings.Cut(p, "=")
		name, err := url.QueryUnescape(k)
		if err != nil {
			name = k
		}
		if hasValue && sensitiveQueryKeys[strings.ToLower(name)] {
			parts[i] = k + "=" + redacted
		}
	}
	return strings.Join(parts, "&")
}
