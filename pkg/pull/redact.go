package pull

import "net/url"

const (
	// maskToken replaces the password component of a redacted URL.
	maskToken = "xxxxx"

	// unparseablePlaceholder stands in for URLs that cannot be parsed at
	// all. Redaction must never fail, so a broken URL degrades to a fixed
	// placeholder instead of leaking whatever the string contained.
	unparseablePlaceholder = "<unparseable-url>"
)

// RedactURL masks the password in a connection URL while preserving scheme,
// user, host, port, and path. URLs without credentials pass through
// unchanged, which also makes redaction idempotent: redacting an already
// redacted URL yields the same string.
func RedactURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return unparseablePlaceholder
	}
	if u.User == nil {
		return raw
	}
	if _, has := u.User.Password(); !has {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), maskToken)
	return u.String()
}
