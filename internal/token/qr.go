package token

import (
	"bytes"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

// DefaultImageSize matches the admin display width in pixels.
const DefaultImageSize = 256

// Image renders a token as a PNG QR code of size x size pixels.
// High error correction keeps the code scannable on small screens.
func Image(t Token, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultImageSize
	}
	raw, err := Encode(t)
	if err != nil {
		return nil, err
	}
	code, err := qr.Encode(raw, qr.H, qr.Auto)
	if err != nil {
		return nil, err
	}
	scaled, err := barcode.Scale(code, size, size)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
