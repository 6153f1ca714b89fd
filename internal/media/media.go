// Package media prepares user-supplied images for the vision model:
// MIME detection from magic bytes, resize and recompress to stay inside
// the backend's practical payload limits, Telegram file download.
package media

import (
	"encoding/base64"

	"github.com/gabriel-vasile/mimetype"
)

// Payload limits for images sent to the vision model. Base64 inflates the
// body by a third, so the raw cap stays well under the backend's request
// limit.
const (
	MaxDimension = 1600
	MaxBytes     = 5 * 1024 * 1024
	MinQuality   = 35
	MaxQuality   = 85
)

// SupportedMIMETypes lists the formats the pipeline can decode.
var SupportedMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Image is a processed image ready for the vision model.
type Image struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// Base64 returns the image bytes base64-encoded for the wire.
func (img *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(img.Data)
}

func (img *Image) Size() int {
	return len(img.Data)
}

// WithinLimits reports whether the image needs no further reduction.
func (img *Image) WithinLimits() bool {
	return img.Width <= MaxDimension &&
		img.Height <= MaxDimension &&
		len(img.Data) <= MaxBytes
}

// DetectMIME sniffs the type from magic bytes, never the file name.
func DetectMIME(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsSupported reports whether the sniffed MIME type can be processed.
func IsSupported(mimeType string) bool {
	return SupportedMIMETypes[mimeType]
}
