package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// PNG converts images to and from PNG byte streams.
// Its Hash override digests the decoded pixel data,
// so that semantically equivalent images hash alike
// regardless of encoder settings.
type PNG struct{}

func (PNG) Encode(v any) ([]byte, error) {
	img, ok := v.(image.Image)
	if !ok {
		return nil, fmt.Errorf("encoding %T as png: %w", v, ErrUnsupported)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (PNG) Decode(b []byte) (any, error) {
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return img, nil
}

func init() {
	Default.Register("png", PNG{}, nil)
}

// Hash implements Hasher by digesting the raw pixels
// of the decoded image rather than the compressed stream.
func (p PNG) Hash(encoded []byte) []byte {
	v, err := p.Decode(encoded)
	if err != nil {
		return Digest(encoded)
	}
	img := v.(image.Image)
	bounds := img.Bounds()
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%dx%d:", bounds.Dx(), bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			buf.WriteByte(byte(r >> 8))
			buf.WriteByte(byte(g >> 8))
			buf.WriteByte(byte(b >> 8))
			buf.WriteByte(byte(a >> 8))
		}
	}
	return Digest(buf.Bytes())
}
