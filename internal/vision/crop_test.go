package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func testFrame(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test frame: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestResizeFrame_Downscales(t *testing.T) {
	frame := testFrame(t, 400, 200)

	out, err := ResizeFrame(frame, 100)
	if err != nil {
		t.Fatalf("resize failed: %v", err)
	}

	w, h := decodeSize(t, out)
	if w != 100 {
		t.Errorf("expected width 100, got %d", w)
	}
	if h != 50 {
		t.Errorf("expected aspect-preserving height 50, got %d", h)
	}
}

func TestResizeFrame_SmallFrameUntouched(t *testing.T) {
	frame := testFrame(t, 80, 60)

	out, err := ResizeFrame(frame, 100)
	if err != nil {
		t.Fatalf("resize failed: %v", err)
	}

	w, h := decodeSize(t, out)
	if w != 80 || h != 60 {
		t.Errorf("expected dimensions preserved, got %dx%d", w, h)
	}
}

func TestResizeFrame_InvalidData(t *testing.T) {
	if _, err := ResizeFrame([]byte("not an image"), 100); err == nil {
		t.Error("expected error for undecodable data")
	}
}

func TestCropFace(t *testing.T) {
	frame := testFrame(t, 200, 200)

	out, err := CropFace(frame, []float64{50, 50, 150, 150}, 0)
	if err != nil {
		t.Fatalf("crop failed: %v", err)
	}

	w, h := decodeSize(t, out)
	if w != 100 || h != 100 {
		t.Errorf("expected 100x100 crop, got %dx%d", w, h)
	}
}

func TestCropFace_MarginClampsAtEdge(t *testing.T) {
	frame := testFrame(t, 100, 100)

	// Box at the corner; margin pushes past the frame and must clamp.
	out, err := CropFace(frame, []float64{0, 0, 40, 40}, 0.5)
	if err != nil {
		t.Fatalf("crop failed: %v", err)
	}

	w, h := decodeSize(t, out)
	if w != 60 || h != 60 {
		t.Errorf("expected clamped 60x60 crop, got %dx%d", w, h)
	}
}

func TestCropFace_BadBox(t *testing.T) {
	frame := testFrame(t, 100, 100)

	if _, err := CropFace(frame, []float64{10, 10}, 0); err == nil {
		t.Error("expected error for short bbox")
	}
	if _, err := CropFace(frame, []float64{50, 50, 40, 40}, 0); err == nil {
		t.Error("expected error for inverted bbox")
	}
	if _, err := CropFace(frame, []float64{500, 500, 600, 600}, 0); err == nil {
		t.Error("expected error for out-of-frame bbox")
	}
}
