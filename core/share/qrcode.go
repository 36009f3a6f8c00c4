package share

import (
	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"
)

// DefaultQRSize is the edge length of the QR code image in pixels.
const DefaultQRSize = 256

// QRCode renders the given link as PNG image.
func QRCode(link string, size int) ([]byte, error) {
	if link == "" {
		return nil, errors.New("empty link")
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode QR code")
	}
	return png, nil
}
