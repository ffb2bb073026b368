package scan

import (
	"fmt"
	"image"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/omr-tools/omr-scan/internal/geometry"
)

// qrRegionScale sizes the square decode window around a QR field origin:
// side = max(bubbleW, bubbleH) * qrRegionScale.
const qrRegionScale = 20

// QRResult is a decoded QR identity field. Corners, when present, are
// the finder pattern points relative to the decoded region.
type QRResult struct {
	Text    string
	Corners []geometry.Point
}

// QRDecoder reads a QR code out of a grayscale region. Implementations
// return an error for undecodable regions; the pipeline downgrades that
// to a warning and an empty response value.
type QRDecoder interface {
	Decode(region *image.Gray) (QRResult, error)
}

type zxingQRDecoder struct {
	reader gozxing.Reader
}

// NewQRDecoder returns the default zxing-backed decoder.
func NewQRDecoder() QRDecoder {
	return &zxingQRDecoder{reader: qrcode.NewQRCodeReader()}
}

func (d *zxingQRDecoder) Decode(region *image.Gray) (QRResult, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(region)
	if err != nil {
		return QRResult{}, fmt.Errorf("qr bitmap: %w", err)
	}
	res, err := d.reader.Decode(bmp, nil)
	if err != nil {
		return QRResult{}, fmt.Errorf("qr decode: %w", err)
	}
	out := QRResult{Text: strings.TrimSpace(res.GetText())}
	for _, p := range res.GetResultPoints() {
		out.Corners = append(out.Corners, geometry.Pt(p.GetX(), p.GetY()))
	}
	return out, nil
}
