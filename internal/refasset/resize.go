package refasset

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"strconv"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// ResizeForVideo conforms an image reference to the fixed pixel size a video
// vendor expects, scaling to fit and centering on a canvas of exactly that
// size. Non-image payloads, already-matching images and anything that fails
// to decode pass through untouched.
func ResizeForVideo(data []byte, mimeType, size string) ([]byte, string) {
	if !strings.HasPrefix(mimeType, "image/") {
		return data, mimeType
	}
	targetW, targetH, ok := parseSize(size)
	if !ok {
		return data, mimeType
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, mimeType
	}
	b := img.Bounds()
	if b.Dx() == targetW && b.Dy() == targetH {
		return data, mimeType
	}

	scale := math.Min(float64(targetW)/float64(b.Dx()), float64(targetH)/float64(b.Dy()))
	w := int(math.Round(float64(b.Dx()) * scale))
	h := int(math.Round(float64(b.Dy()) * scale))
	xOff := (targetW - w) / 2
	yOff := (targetH - h) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	xdraw.CatmullRom.Scale(canvas, image.Rect(xOff, yOff, xOff+w, yOff+h), img, b, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return data, mimeType
	}
	return buf.Bytes(), "image/png"
}

func parseSize(size string) (int, int, bool) {
	wPart, hPart, found := strings.Cut(size, "x")
	if !found {
		return 0, 0, false
	}
	w, err := strconv.Atoi(wPart)
	if err != nil || w <= 0 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(hPart)
	if err != nil || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}
