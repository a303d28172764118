package mail

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var base64Body = regexp.MustCompile(`^[A-Za-z0-9+/]+=*$`)

// stripSpace removes every whitespace rune.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// looksLikeBase64 is a lightweight heuristic: non-empty, length divisible by
// four, standard alphabet with trailing padding only.
func looksLikeBase64(s string) bool {
	t := stripSpace(s)
	return len(t) > 0 && len(t)%4 == 0 && base64Body.MatchString(t)
}

func decodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(stripSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return b, nil
}

// sliceBytes converts one slice payload into bytes.
func sliceBytes(data any) ([]byte, error) {
	switch v := data.(type) {
	case string:
		if looksLikeBase64(v) {
			return decodeBase64(v)
		}
		return []byte(v), nil
	case []byte:
		return v, nil
	case []int:
		out := make([]byte, len(v))
		for i, n := range v {
			out[i] = byte(n)
		}
		return out, nil
	case []float64:
		out := make([]byte, len(v))
		for i, n := range v {
			out[i] = byte(int(n))
		}
		return out, nil
	case []any:
		return numericArray(v)
	case BufferView:
		return v.Bytes(), nil
	case nil:
		return nil, nil
	default:
		return []byte(fmt.Sprint(v)), nil
	}
}

// numericArray materializes a heterogeneous array of numbers (the shape JSON
// decoding produces). A non-numeric element falls back to text encoding.
func numericArray(v []any) ([]byte, error) {
	out := make([]byte, len(v))
	for i, e := range v {
		switch n := e.(type) {
		case int:
			out[i] = byte(n)
		case int64:
			out[i] = byte(n)
		case float64:
			out[i] = byte(int(n))
		case uint8:
			out[i] = n
		default:
			return []byte(fmt.Sprint(v...)), nil
		}
	}
	return out, nil
}
