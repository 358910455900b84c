// Package storage holds the object store used for sign-up images and the
// helpers that turn client image payloads into bytes plus a content type.
package storage

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrInvalidImage is returned when an image payload cannot be decoded or is
// not an image.
var ErrInvalidImage = errors.New("invalid image payload")

// allowedImageTypes is the set of content types accepted for storage. SVG is
// never accepted.
var allowedImageTypes = []string{
	"image/png",
	"image/jpeg",
	"image/webp",
	"image/gif",
	"image/heic",
}

// DecodeImage accepts either raw image bytes or a data URI
// ("data:image/png;base64,....") and returns the decoded bytes with their
// content type. The bytes are always sniffed; a data URI's declared type must
// agree with what was detected. Only allow-listed types pass.
func DecodeImage(raw []byte) ([]byte, string, error) {
	if len(raw) == 0 {
		return nil, "", fmt.Errorf("%w: empty", ErrInvalidImage)
	}
	if hasDataPrefix(raw) {
		return decodeDataURI(string(raw))
	}
	detected := mimetype.Detect(raw)
	ct, ok := allowed(detected)
	if !ok {
		return nil, "", fmt.Errorf("%w: detected %s", ErrInvalidImage, detected.String())
	}
	return raw, ct, nil
}

// hasDataPrefix matches the "data:" scheme case-insensitively.
func hasDataPrefix(raw []byte) bool {
	return len(raw) >= 5 && bytes.EqualFold(raw[:5], []byte("data:"))
}

// allowed returns the canonical allow-listed type m matches, aliases included.
func allowed(m *mimetype.MIME) (string, bool) {
	for _, ct := range allowedImageTypes {
		if m.Is(ct) {
			return ct, true
		}
	}
	return "", false
}

func decodeDataURI(s string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: data uri has no payload", ErrInvalidImage)
	}
	isBase64 := false
	if n := len(meta) - len(";base64"); n >= 0 && strings.EqualFold(meta[n:], ";base64") {
		isBase64 = true
		meta = meta[:n]
	}
	ct := baseType(meta)
	if ct == "image/jpg" {
		ct = "image/jpeg"
	}
	if !slices.Contains(allowedImageTypes, ct) {
		return nil, "", fmt.Errorf("%w: declared %q", ErrInvalidImage, ct)
	}

	var data []byte
	if isBase64 {
		var err error
		data, err = base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			// Some clients drop the padding.
			if data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(payload), "=")); err != nil {
				return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
			}
		}
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		data = []byte(unescaped)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty", ErrInvalidImage)
	}
	detected := mimetype.Detect(data)
	if !detected.Is(ct) {
		return nil, "", fmt.Errorf("%w: declared %s, detected %s", ErrInvalidImage, ct, detected.String())
	}
	return data, ct, nil
}

// baseType strips parameters ("image/png; charset=x" -> "image/png").
func baseType(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

// extensionFor returns a file extension (with dot) for a content type.
func extensionFor(ct string) string {
	if m := mimetype.Lookup(ct); m != nil {
		return m.Extension()
	}
	return ""
}
