package storage

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// DetectContentType determines the MIME type of a file.
//
// Detection priority:
// 1. providedType, if non-empty
// 2. the file extension
// 3. the first 512 bytes of data
// 4. application/octet-stream
func DetectContentType(providedType, filename string, data []byte) string {
	if providedType != "" {
		return normalizeType(providedType)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return normalizeType(contentType)
	}

	if len(data) > 0 {
		return normalizeType(http.DetectContentType(data))
	}

	return "application/octet-stream"
}

// SniffContentType reports the type of data from its leading bytes, ignoring
// whatever the client claimed.
func SniffContentType(data []byte) string {
	return normalizeType(http.DetectContentType(data))
}

// ExtensionForContentType returns a file extension for a MIME type.
func ExtensionForContentType(contentType string) string {
	switch normalizeType(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}

	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// normalizeType strips parameters like charset and lower-cases the type.
func normalizeType(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(strings.ToLower(base))
}
