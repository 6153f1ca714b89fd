package media

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"

	// webp is decode-only, recompressed output goes out as JPEG.
	_ "golang.org/x/image/webp"
)

var qualityLevels = []int{85, 75, 65, 55, 45, 35}

var dimensionLevels = []int{1600, 1400, 1200, 1000, 800, 640}

// Optimize shrinks an image until it fits the payload limits. Images
// already within limits pass through untouched.
func Optimize(data []byte) (*Image, error) {
	mimeType := DetectMIME(data)
	if !IsSupported(mimeType) {
		return nil, fmt.Errorf("unsupported image type: %s", mimeType)
	}

	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := decoded.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width <= MaxDimension && height <= MaxDimension && len(data) <= MaxBytes {
		return &Image{Data: data, MimeType: mimeType, Width: width, Height: height}, nil
	}

	return shrink(decoded, width, height, format)
}

// shrink walks descending dimension and quality grids and returns the
// first encoding that fits.
func shrink(img image.Image, origWidth, origHeight int, format string) (*Image, error) {
	maxDim := max(origWidth, origHeight)
	dimensions := make([]int, 0, len(dimensionLevels)+1)
	if maxDim <= MaxDimension {
		dimensions = append(dimensions, maxDim)
	} else {
		dimensions = append(dimensions, MaxDimension)
	}
	for _, d := range dimensionLevels {
		if d < maxDim && d < MaxDimension {
			dimensions = append(dimensions, d)
		}
	}

	var smallest *Image

	for _, targetDim := range dimensions {
		resized := img
		newWidth, newHeight := origWidth, origHeight
		if origWidth > targetDim || origHeight > targetDim {
			resized = imaging.Fit(img, targetDim, targetDim, imaging.Lanczos)
			bounds := resized.Bounds()
			newWidth, newHeight = bounds.Dx(), bounds.Dy()
		}

		for _, quality := range qualityLevels {
			encoded, mimeType, err := encode(resized, format, quality)
			if err != nil {
				continue
			}

			if smallest == nil || len(encoded) < len(smallest.Data) {
				smallest = &Image{Data: encoded, MimeType: mimeType, Width: newWidth, Height: newHeight}
			}
			if len(encoded) <= MaxBytes {
				return &Image{Data: encoded, MimeType: mimeType, Width: newWidth, Height: newHeight}, nil
			}
		}

		// Only JPEG has a quality axis worth walking.
		if format != "jpeg" && format != "webp" {
			continue
		}
	}

	if smallest == nil {
		return nil, fmt.Errorf("image could not be encoded")
	}
	if len(smallest.Data) > MaxBytes {
		return nil, fmt.Errorf("image could not be reduced below %dMB (got %.2fMB)",
			MaxBytes/(1024*1024), float64(len(smallest.Data))/(1024*1024))
	}
	return smallest, nil
}

func encode(img image.Image, format string, quality int) ([]byte, string, error) {
	var buf bytes.Buffer

	switch format {
	case "png":
		err := png.Encode(&buf, img)
		return buf.Bytes(), "image/png", err
	case "gif":
		err := gif.Encode(&buf, img, nil)
		return buf.Bytes(), "image/gif", err
	default:
		// jpeg, webp and anything unknown come out as JPEG.
		err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
		return buf.Bytes(), "image/jpeg", err
	}
}
