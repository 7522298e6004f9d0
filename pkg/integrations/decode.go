package integrations

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Shape is implemented by decode targets whose JSON form has required keys.
// Each key is a dot-separated path such as "crate.max_version" and must be
// present with a non-null value.
type Shape interface {
	RequiredKeys() []string
}

// DecodeJSON parses data as a single JSON document of type T.
//
// It fails with a *[DecodeError] when data is not valid JSON, when it is
// null or followed by trailing data, when it is the registry's error
// envelope (in which case the DecodeError wraps an *[APIError]), or when T
// implements [Shape] and a required key is missing. It never panics.
func DecodeJSON[T any](data []byte) (T, error) {
	var v T
	if err := decodeInto(data, &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// DecodeText returns data as a string, failing with a *[DecodeError] if it is not valid UTF-8.
func DecodeText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", &DecodeError{Target: "text", Err: ErrInvalidUTF8}
	}
	return string(data), nil
}

func decodeInto(data []byte, v any) error {
	target := strings.TrimPrefix(fmt.Sprintf("%T", v), "*")

	if apiErr := envelopeError(data); apiErr != nil {
		return &DecodeError{Target: target, Err: apiErr}
	}

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return &DecodeError{Target: target, Err: ErrNullDocument}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return &DecodeError{Target: target, Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return &DecodeError{Target: target, Err: ErrTrailingData}
	}

	if shape, ok := v.(Shape); ok {
		for _, key := range shape.RequiredKeys() {
			if !hasKey(data, strings.Split(key, ".")) {
				return &DecodeError{Target: target, Err: fmt.Errorf("%w %q", ErrMissingKey, key)}
			}
		}
	}
	return nil
}

// hasKey reports whether the object path in data leads to a non-null value.
func hasKey(data []byte, path []string) bool {
	for _, name := range path {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return false
		}
		raw, ok := obj[name]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return false
		}
		data = raw
	}
	return true
}

// envelopeError extracts the registry error envelope, or returns nil when
// data is anything else.
func envelopeError(data []byte) *APIError {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' || !bytes.Contains(trimmed, []byte(`"errors"`)) {
		return nil
	}

	var envelope struct {
		Errors []struct {
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil || len(envelope.Errors) == 0 {
		return nil
	}

	apiErr := &APIError{}
	for _, e := range envelope.Errors {
		apiErr.Details = append(apiErr.Details, e.Detail)
	}
	return apiErr
}
