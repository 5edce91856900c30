package message

import (
	"encoding/base64"
	"errors"
	"strings"
)

var ErrInvalidDataURL = errors.New("invalid data URL")

// DataURL encodes data as a base64 data URL
func DataURL(mediaType string, data []byte) string {
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL decodes a data URL into its media type and payload.
// Only base64 payloads and plain percent-free text payloads are accepted.
func ParseDataURL(s string) (mediaType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}

	isBase64 := false
	if h, found := strings.CutSuffix(header, ";base64"); found {
		header = h
		isBase64 = true
	}
	mediaType, _, _ = strings.Cut(header, ";")
	if mediaType == "" {
		mediaType = "text/plain"
	}

	if !isBase64 {
		return mediaType, []byte(payload), nil
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, errors.Join(ErrInvalidDataURL, err)
	}
	return mediaType, data, nil
}
