package observability

import "unicode"

const defaultStringLimit = 256

// scrub drops control characters and bounds the length of values headed for
// log fields, so request-supplied strings cannot forge log lines.
func scrub(value string, limit int) string {
	if limit <= 0 {
		limit = defaultStringLimit
	}

	kept := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return string(kept)
}

// SanitizeRoute bounds a request path for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return scrub(route, 180)
}

// SanitizeMethod bounds an HTTP method for logging.
func SanitizeMethod(method string) string {
	return scrub(method, 10)
}

// SanitizeUserID bounds a user identifier for logging.
func SanitizeUserID(uid string) string {
	if len(uid) == 0 {
		return ""
	}
	return scrub(uid, 64)
}
