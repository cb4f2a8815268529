package logging

import (
	"net/url"
	"strings"
)

const redactedValue = "[REDACTED]"

// Redactor replaces the values of sensitive log fields. Keys match
// case-insensitively and exactly; substring matching caught too many
// legitimate fields.
type Redactor struct {
	sensitiveKeys map[string]bool
}

// NewRedactor creates a Redactor with the default key set.
func NewRedactor() *Redactor {
	r := &Redactor{sensitiveKeys: make(map[string]bool)}
	for _, k := range defaultSensitiveKeys {
		r.AddSensitiveKey(k)
	}
	return r
}

var defaultSensitiveKeys = []string{
	// Credentials and sessions
	"password", "token", "secret", "key", "session_token", "authorization",
	"jwt_secret", "decoy_secret", "dsn",

	// SRP handshake values, as logged and as they appear on the wire
	"verifier", "srpVerifier",
	"salt", "srpSalt", "kekSalt", "kek_salt",
	"a", "b", "srpA", "srpB",
	"m1", "m2", "srpM1", "srpM2", "proof",
	"loginSubKey", "login_sub_key", "session_key",

	// MFA
	"code",

	// Key material on disk
	"private_key", "tls_key",
}

// AddSensitiveKey adds a key to the redaction list.
func (r *Redactor) AddSensitiveKey(key string) {
	r.sensitiveKeys[strings.ToLower(key)] = true
}

// RemoveSensitiveKey removes a key from the redaction list.
func (r *Redactor) RemoveSensitiveKey(key string) {
	delete(r.sensitiveKeys, strings.ToLower(key))
}

// RedactFields returns a copy of fields with sensitive values replaced.
// Nested maps are walked.
func (r *Redactor) RedactFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}

	redacted := make(map[string]any, len(fields))

	for k, v := range fields {
		switch {
		case r.isSensitiveKey(k):
			redacted[k] = redactedValue
		default:
			if nested, ok := v.(map[string]any); ok {
				redacted[k] = r.RedactFields(nested)
			} else {
				redacted[k] = v
			}
		}
	}

	return redacted
}

// RedactString redacts a whole string that looks like it carries a
// sensitive key=value, key: value or "key": pair.
func (r *Redactor) RedactString(s string) string {
	lower := strings.ToLower(s)
	for key := range r.sensitiveKeys {
		if len(key) < 3 {
			// single-letter SRP names would match almost any text
			continue
		}
		for _, pattern := range []string{key + "=", key + ": ", "\"" + key + "\":"} {
			if strings.Contains(lower, pattern) {
				return redactedValue
			}
		}
	}
	return s
}

func (r *Redactor) isSensitiveKey(key string) bool {
	return r.sensitiveKeys[strings.ToLower(key)]
}

// RedactDSN strips the password from a connection URL so it can be logged.
// Strings that do not parse as a URL are redacted entirely.
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return redactedValue
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
