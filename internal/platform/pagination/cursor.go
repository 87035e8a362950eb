// Package pagination encodes list-query resume positions as opaque page
// tokens. Firestore cursor queries resume after a (sort key, document id)
// pair; the token carries exactly that pair.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidToken reports a page token the codec cannot decode. Callers
// treat it as "start from the beginning" or reject the request, their call.
var ErrInvalidToken = errors.New("pagination: invalid page token")

// Cursor pins where a list query resumes. Key holds the value of the
// primary sort field (a name, an RFC3339 timestamp); DocID breaks ties.
type Cursor struct {
	Key   string `json:"k"`
	DocID string `json:"id"`
}

// Encode serialises the cursor into an opaque URL-safe token. An empty
// cursor encodes to the empty string, meaning "no next page".
func Encode(c Cursor) string {
	if c.Key == "" && c.DocID == "" {
		return ""
	}
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode parses a token produced by Encode.
func Decode(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.DocID == "" {
		return Cursor{}, fmt.Errorf("%w: missing document id", ErrInvalidToken)
	}
	return c, nil
}
