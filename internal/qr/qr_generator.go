package qr

import (
	"github.com/skip2/go-qrcode"
)

// Generator renders scan URLs as PNG images. Rendering is pure; the
// payload is always a check-in or access URL, never raw credential data.
type Generator struct {
	Size  int
	Level qrcode.RecoveryLevel
}

func NewGenerator() *Generator {
	return &Generator{Size: 256, Level: qrcode.Medium}
}

func (g *Generator) PNG(payload string) ([]byte, error) {
	return qrcode.Encode(payload, g.Level, g.Size)
}
