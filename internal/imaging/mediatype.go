package imaging

import (
	"mime"
	"net/http"
)

// DetectMediaType sniffs the media type of an upload from its first bytes.
// HEIC/HEIF is checked here because net/http does not know the ftyp brands.
// Unrecognised content is reported as application/octet-stream.
func DetectMediaType(data []byte) string {
	switch {
	case isPDF(data):
		return "application/pdf"
	case isHEICFormat(data):
		return "image/heic"
	}
	mediaType, _, err := mime.ParseMediaType(http.DetectContentType(data))
	if err != nil {
		return "application/octet-stream"
	}
	return mediaType
}
