package media

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodeTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x += 10 {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestOptimizePassthroughWithinLimits(t *testing.T) {
	data := encodeTestJPEG(t, 200, 100)
	img, err := Optimize(data)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if img.Width != 200 || img.Height != 100 {
		t.Errorf("dims = %dx%d", img.Width, img.Height)
	}
	if !bytes.Equal(img.Data, data) {
		t.Error("small image was re-encoded")
	}
	if !img.WithinLimits() {
		t.Error("result reported over limits")
	}
}

func TestOptimizeShrinksOversizedDimensions(t *testing.T) {
	data := encodeTestJPEG(t, 3200, 1800)
	img, err := Optimize(data)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if img.Width > MaxDimension || img.Height > MaxDimension {
		t.Errorf("dims = %dx%d, want within %d", img.Width, img.Height, MaxDimension)
	}
	if img.MimeType != "image/jpeg" {
		t.Errorf("mime = %s", img.MimeType)
	}
	// Aspect ratio survives the fit.
	ratio := float64(img.Width) / float64(img.Height)
	if ratio < 1.7 || ratio > 1.9 {
		t.Errorf("aspect ratio = %.2f", ratio)
	}
}

func TestOptimizeRejectsUnsupportedData(t *testing.T) {
	if _, err := Optimize([]byte("%PDF-1.4 not an image")); err == nil {
		t.Error("expected error for non-image data")
	}
}

func TestDetectMIME(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	if got := DetectMIME(buf.Bytes()); got != "image/png" {
		t.Errorf("DetectMIME = %s", got)
	}
	if !IsSupported("image/png") || IsSupported("application/pdf") {
		t.Error("IsSupported misclassifies")
	}
}

func TestImageBase64(t *testing.T) {
	img := &Image{Data: []byte{1, 2, 3}}
	if img.Base64() != "AQID" {
		t.Errorf("Base64 = %s", img.Base64())
	}
	if img.Size() != 3 {
		t.Errorf("Size = %d", img.Size())
	}
}
