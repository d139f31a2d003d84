package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ResizeFrame resizes a frame to fit within maxSize (width or height) while
// keeping aspect ratio. Frames already small enough are re-encoded as JPEG
// to ensure consistent format.
func ResizeFrame(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxSize && height <= maxSize {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return nil, fmt.Errorf("failed to encode frame: %w", err)
		}
		return buf.Bytes(), nil
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = int(float64(height) * float64(maxSize) / float64(width))
	} else {
		newHeight = maxSize
		newWidth = int(float64(width) * float64(maxSize) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode resized frame: %w", err)
	}

	return buf.Bytes(), nil
}

// CropFace extracts a face region from a frame. The box is expanded by
// margin (as a fraction of the box size) and clamped to the frame, so a
// detection at the frame edge still crops cleanly.
func CropFace(data []byte, bbox []float64, margin float64) ([]byte, error) {
	if len(bbox) != 4 {
		return nil, fmt.Errorf("bounding box must have 4 coordinates, got %d", len(bbox))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	x1, y1, x2, y2 := bbox[0], bbox[1], bbox[2], bbox[3]
	if x2 <= x1 || y2 <= y1 {
		return nil, fmt.Errorf("degenerate bounding box [%g %g %g %g]", x1, y1, x2, y2)
	}

	mx := (x2 - x1) * margin
	my := (y2 - y1) * margin
	rect := image.Rect(int(x1-mx), int(y1-my), int(x2+mx), int(y2+my))
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("bounding box [%g %g %g %g] lies outside the frame", x1, y1, x2, y2)
	}

	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(cropped, cropped.Bounds(), img, rect.Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode face crop: %w", err)
	}
	return buf.Bytes(), nil
}
