package users

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/goccy/go-json"
)

// object is a JSON object whose keys have already been mapped to camelCase.
type object map[string]json.RawMessage

var null = []byte("null")

// Decode maps a response body onto []User. The body must be a JSON array of
// user objects. Keys are converted from snake_case to camelCase before the
// schema is checked. Decoding is all-or-nothing: if any element fails, Decode
// returns a KindDecodeFailure error and no users.
func Decode(data []byte) ([]User, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, null) {
		return nil, NewDecodeError(errors.New("expected a JSON array, got an empty body"))
	}
	// RawMessage values for keys nobody reads are not syntax-checked while
	// decoding, so the whole body is validated first.
	if !json.Valid(trimmed) {
		return nil, NewDecodeError(errors.New("response is not valid JSON"))
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, NewDecodeError(fmt.Errorf("expected a JSON array: %w", err))
	}

	out := make([]User, 0, len(elems))
	for i, raw := range elems {
		u, err := decodeUser(raw)
		if err != nil {
			return nil, NewDecodeError(fmt.Errorf("element %d: %w", i, err))
		}
		out = append(out, u)
	}
	return out, nil
}

func decodeUser(raw json.RawMessage) (User, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return User{}, err
	}

	var u User
	if u.ID, err = obj.integer("id"); err != nil {
		return User{}, err
	}
	if u.Name, err = obj.str("name"); err != nil {
		return User{}, err
	}
	if u.Email, err = obj.str("email"); err != nil {
		return User{}, err
	}

	companyRaw, err := obj.required("company")
	if err != nil {
		return User{}, err
	}
	company, err := decodeObject(companyRaw)
	if err != nil {
		return User{}, fmt.Errorf("company: %w", err)
	}
	if u.Company.Name, err = company.str("name"); err != nil {
		return User{}, fmt.Errorf("company: %w", err)
	}
	return u, nil
}

// decodeObject unmarshals raw into an object and maps every key to camelCase.
// When two wire keys map to the same name the later one wins.
func decodeObject(raw json.RawMessage) (object, error) {
	if bytes.Equal(bytes.TrimSpace(raw), null) {
		return nil, errors.New("expected an object, got null")
	}
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("expected an object: %w", err)
	}
	obj := make(object, len(wire))
	for k, v := range wire {
		obj[CamelCase(k)] = v
	}
	return obj, nil
}

func (o object) required(key string) (json.RawMessage, error) {
	v, ok := o[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), null) {
		return nil, fmt.Errorf("missing required key %q", key)
	}
	return v, nil
}

func (o object) str(key string) (string, error) {
	raw, err := o.required(key)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("key %q: expected a string: %w", key, err)
	}
	return s, nil
}

// integer accepts only JSON integer literals; fractions, exponents and quoted
// numbers are rejected.
func (o object) integer(key string) (int, error) {
	raw, err := o.required(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(string(bytes.TrimSpace(raw)))
	if err != nil {
		return 0, fmt.Errorf("key %q: expected an integer, got %s", key, raw)
	}
	return n, nil
}

// CamelCase converts a snake_case key to camelCase: "first_name" becomes
// "firstName", "company" is unchanged, and leading or trailing underscores are
// preserved ("_id_" stays "_id_"). Keys without an inner underscore are
// returned as is.
func CamelCase(key string) string {
	start := strings.IndexFunc(key, func(r rune) bool { return r != '_' })
	if start < 0 {
		return key
	}
	end := strings.LastIndexFunc(key, func(r rune) bool { return r != '_' }) + 1

	body := key[start:end]
	if !strings.Contains(body, "_") {
		return key
	}

	var b strings.Builder
	b.Grow(len(key))
	b.WriteString(key[:start])

	words := strings.FieldsFunc(body, func(r rune) bool { return r == '_' })
	for i, w := range words {
		if i == 0 {
			b.WriteString(strings.ToLower(w))
			continue
		}
		b.WriteString(capitalize(w))
	}
	b.WriteString(key[end:])
	return b.String()
}

func capitalize(w string) string {
	runes := []rune(strings.ToLower(w))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
