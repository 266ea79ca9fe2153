package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/image-quality/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / width), uint8(y * 255 / height), 100, 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeDataURL(t *testing.T) {
	p := NewProcessor()
	payload := base64.StdEncoding.EncodeToString(encodePNG(t, createTestImage(20, 10)))

	img, err := p.DecodeDataURL("data:image/png;base64," + payload)
	if err != nil {
		t.Fatalf("DecodeDataURL failed: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
		t.Errorf("Expected 20x10, got %v", img.Bounds())
	}

	tests := []string{
		"data:image/png," + payload,
		"data:text/plain;base64," + payload,
		"image/png;base64," + payload,
		"data:image/png;base64,@@@@",
	}
	for _, in := range tests {
		if _, err := p.DecodeDataURL(in); err == nil {
			t.Errorf("Expected error for %.30q", in)
		}
	}
}

func TestDecodeBase64Variants(t *testing.T) {
	p := NewProcessor()
	data := encodePNG(t, createTestImage(8, 8))

	for name, s := range map[string]string{
		"std":     base64.StdEncoding.EncodeToString(data),
		"raw std": base64.RawStdEncoding.EncodeToString(data),
		"url":     base64.URLEncoding.EncodeToString(data),
	} {
		if _, err := p.DecodeBase64(s); err != nil {
			t.Errorf("%s: DecodeBase64 failed: %v", name, err)
		}
	}

	_, err := p.DecodeBase64(base64.StdEncoding.EncodeToString([]byte("definitely not an image")))
	if !errors.Is(err, types.ErrDecode) {
		t.Errorf("Expected ErrDecode for non-image payload, got %v", err)
	}
}

func TestLoadImageSmart(t *testing.T) {
	p := NewProcessor()
	data := encodePNG(t, createTestImage(16, 12))

	path := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != UserAgent {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer server.Close()

	sources := map[string]string{
		"file":     path,
		"url":      server.URL + "/photo.png",
		"data url": "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
		"base64":   base64.StdEncoding.EncodeToString(data),
	}
	for name, src := range sources {
		img, err := p.LoadImageSmart(context.Background(), src)
		if err != nil {
			t.Errorf("%s: LoadImageSmart failed: %v", name, err)
			continue
		}
		if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 12 {
			t.Errorf("%s: expected 16x12, got %v", name, img.Bounds())
		}
	}

	if _, err := p.LoadImageSmart(context.Background(), "/no/such/file.jpg"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error for missing file, got %v", err)
	}
	if _, err := p.LoadImageSmart(context.Background(), "  "); !errors.Is(err, types.ErrDecode) {
		t.Errorf("Expected ErrDecode for empty source, got %v", err)
	}
}

func TestLoadImageFromURLRejectsNonImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	_, err := NewProcessor().LoadImageFromURL(context.Background(), server.URL)
	if !errors.Is(err, types.ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}

	if _, err := NewProcessor().LoadImageFromURL(context.Background(), "ftp://example.com/a.png"); err == nil {
		t.Error("Expected ftp scheme to be rejected")
	}
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor()

	b64, err := p.PrepareImageForModel(createTestImage(400, 200), "png", 100, 85)
	if err != nil {
		t.Fatalf("PrepareImageForModel failed: %v", err)
	}
	img, err := p.DecodeBase64(b64)
	if err != nil {
		t.Fatalf("Failed to decode prepared image: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Errorf("Expected 100x50, got %v", img.Bounds())
	}
}

func TestCreateDebugOverlay(t *testing.T) {
	p := NewProcessor()
	img := image.NewRGBA(image.Rect(0, 0, 90, 90))

	result := &types.AnalysisResult{Context: types.ImageContext{
		SubjectRegion: &types.SubjectRegion{Rectangle: types.Rectangle{X: 10, Y: 10, Width: 20, Height: 20}},
	}}
	out := p.CreateDebugOverlay(img, result)

	if got := color.NRGBAModel.Convert(out.At(15, 10)).(color.NRGBA); got != (color.NRGBA{0, 255, 0, 255}) {
		t.Errorf("Expected green subject box edge, got %v", got)
	}
	if got := color.NRGBAModel.Convert(out.At(5, 30)).(color.NRGBA); got != (color.NRGBA{255, 204, 0, 255}) {
		t.Errorf("Expected gold thirds line, got %v", got)
	}
	if got := color.NRGBAModel.Convert(out.At(45, 45)).(color.NRGBA); got != (color.NRGBA{0, 170, 255, 255}) {
		t.Errorf("Expected blue image centre, got %v", got)
	}

	// The source image is never modified
	if img.Pix[(10*90+15)*4+1] != 0 {
		t.Error("Overlay modified the source image")
	}

	if p.CreateDebugOverlay(img, nil) == nil {
		t.Error("Expected overlay without result")
	}
}

func TestSaveImage(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()

	for _, format := range []string{"png", "jpg"} {
		path := filepath.Join(dir, "out."+format)
		if err := p.SaveImage(createTestImage(30, 20), path, format, 90, false); err != nil {
			t.Fatalf("SaveImage(%s) failed: %v", format, err)
		}
		img, err := p.LoadImage(path)
		if err != nil {
			t.Fatalf("LoadImage(%s) failed: %v", format, err)
		}
		if img.Bounds().Dx() != 30 {
			t.Errorf("%s: expected width 30, got %d", format, img.Bounds().Dx())
		}
	}
}
