package oauthcallback

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	autherrors "github.com/jrsteele09/speakwise-web/internal/errors"
	"github.com/jrsteele09/speakwise-web/users"
)

// NormalizeLegacyDict rewrites a dict literal in the legacy dialect the
// identity bridge used to put in the user parameter into JSON: single quoted
// strings become double quoted and the bare words None, True and False
// become null, true and false. Valid JSON passes through with the same
// meaning. Everything the dialect assumes lives in this function.
func NormalizeLegacyDict(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			str, n := readQuoted(s[i:])
			encoded, _ := json.Marshal(str)
			b.Write(encoded)
			i += n
		case isWordByte(c):
			j := i
			for j < len(s) && (isWordByte(s[j]) || (s[j] >= '0' && s[j] <= '9')) {
				j++
			}
			switch word := s[i:j]; word {
			case "None":
				b.WriteString("null")
			case "True":
				b.WriteString("true")
			case "False":
				b.WriteString("false")
			default:
				b.WriteString(word)
			}
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// readQuoted decodes the quoted string at the start of s and returns its
// content and the number of bytes consumed. An unterminated string runs to
// the end of s.
func readQuoted(s string) (string, int) {
	quote := s[0]
	var b strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		if c == quote {
			return b.String(), i + 1
		}
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			i++
			continue
		}
		next := s[i+1]
		i += 2
		switch next {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'u':
			if i+4 <= len(s) {
				if r, err := strconv.ParseUint(s[i:i+4], 16, 32); err == nil {
					b.WriteRune(rune(r))
					i += 4
					continue
				}
			}
			b.WriteString(`\u`)
		default:
			b.WriteByte(next)
		}
	}
	return b.String(), len(s)
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// ParseUser decodes the user query parameter. JSON is tried first and the
// legacy dialect second. Unknown fields are ignored and an unknown role is
// dropped rather than failing the parse.
func ParseUser(raw string) (*users.Summary, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, autherrors.Wrapf(autherrors.ErrInvalidRequest, "[ParseUser] empty user parameter")
	}

	fields, err := decodeObject(raw)
	if err != nil {
		fields, err = decodeObject(NormalizeLegacyDict(raw))
		if err != nil {
			return nil, autherrors.Wrapf(autherrors.ErrInvalidRequest, "[ParseUser] %v", err)
		}
	}
	return summaryFromFields(fields), nil
}

func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("user parameter is not an object")
	}
	return fields, nil
}

func summaryFromFields(fields map[string]any) *users.Summary {
	user := &users.Summary{
		ID:        users.IDFromAny(fields["id"]),
		FirstName: stringField(fields, "first_name", "firstName", "given_name"),
		LastName:  stringField(fields, "last_name", "lastName", "family_name"),
		Email:     stringField(fields, "email"),
	}
	if role, err := users.ParseRole(stringField(fields, "role")); err == nil {
		user.Role = role
	}
	return user
}

// stringField returns the first key holding a string; null and other types count as absent
func stringField(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := fields[key].(string); ok {
			return s
		}
	}
	return ""
}
