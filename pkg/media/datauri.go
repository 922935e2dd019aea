package media

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

var dataURIPattern = regexp.MustCompile(`^data:([\w.+-]+/[\w.+-]+);base64,`)

// EncodeDataURI wraps raw bytes as a base64 data URI.
func EncodeDataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a base64 data URI into its content type and bytes.
func DecodeDataURI(uri string) (string, []byte, error) {
	m := dataURIPattern.FindStringSubmatch(uri)
	if m == nil {
		return "", nil, fmt.Errorf("invalid base64 data URI")
	}
	data, err := base64.StdEncoding.DecodeString(uri[len(m[0]):])
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return strings.ToLower(m[1]), data, nil
}
