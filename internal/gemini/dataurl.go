package gemini

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

func EncodeDataURL(mimeType, base64Data string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64Data)
}

// ParseDataURL splits a data URL into mime type and base64 payload. Bare
// base64 without the data: prefix is accepted as image/png.
func ParseDataURL(value string) (mimeType string, base64Data string, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", errors.New("empty data url")
	}

	const prefix = "data:"
	if !strings.HasPrefix(value, prefix) {
		return "image/png", value, nil
	}

	parts := strings.SplitN(value, ",", 2)
	if len(parts) != 2 {
		return "", "", errors.New("invalid data url")
	}

	meta := strings.TrimPrefix(parts[0], prefix)
	metaParts := strings.Split(meta, ";")
	mimeType = strings.TrimSpace(metaParts[0])
	if mimeType == "" {
		mimeType = "image/png"
	}
	return mimeType, parts[1], nil
}

func DecodeDataURL(value string) (mimeType string, data []byte, err error) {
	mimeType, payload, err := ParseDataURL(value)
	if err != nil {
		return "", nil, err
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode base64: %w", err)
	}
	return mimeType, data, nil
}
