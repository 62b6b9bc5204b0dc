package signatures

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	_ "image/jpeg" // registra el decoder
	"image/png"
	"math"
	"strings"

	"golang.org/x/image/draw"
)

var (
	ErrInvalidImage = errors.New("invalid signature image")
	ErrTooLarge     = errors.New("signature image too large")
	ErrBlank        = errors.New("signature is blank")
)

const (
	MaxImageBytes = 2 << 20
	MaxWidth      = 600
	MaxHeight     = 300
	Padding       = 8

	maxSourceSide  = 4096
	alphaThreshold = 16
	whiteThreshold = 235
)

// Processed es la firma recortada lista para guardar en el borrador.
type Processed struct {
	DataURL string
	Width   int
	Height  int
}

// Process decodifica una firma (data URL o base64 de PNG/JPEG), la recorta al trazo con un
// margen, la reduce si excede MaxWidth x MaxHeight y la devuelve como data URL PNG.
func Process(input string) (Processed, error) {
	raw, err := decodePayload(input)
	if err != nil {
		return Processed{}, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Processed{}, ErrInvalidImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxSourceSide || cfg.Height > maxSourceSide {
		return Processed{}, ErrInvalidImage
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Processed{}, ErrInvalidImage
	}

	box, ok := inkBounds(src)
	if !ok {
		return Processed{}, ErrBlank
	}
	box = image.Rect(box.Min.X-Padding, box.Min.Y-Padding, box.Max.X+Padding, box.Max.Y+Padding).Intersect(src.Bounds())

	w, h := fit(box.Dx(), box.Dy(), MaxWidth, MaxHeight)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == box.Dx() && h == box.Dy() {
		draw.Draw(dst, dst.Bounds(), src, box.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, box, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return Processed{}, err
	}
	return Processed{
		DataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:   w,
		Height:  h,
	}, nil
}

func decodePayload(input string) ([]byte, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil, ErrInvalidImage
	}
	if strings.HasPrefix(s, "data:") {
		meta, payload, ok := strings.Cut(s, ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return nil, ErrInvalidImage
		}
		s = payload
	}
	// tamaño codificado aproximado antes de decodificar
	if base64.StdEncoding.DecodedLen(len(s)) > MaxImageBytes+3 {
		return nil, ErrTooLarge
	}

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, ErrInvalidImage
		}
	}
	if len(raw) > MaxImageBytes {
		return nil, ErrTooLarge
	}
	return raw, nil
}

// inkBounds: caja mínima de píxeles con tinta (opacos y no casi blancos).
func inkBounds(img image.Image) (image.Rectangle, bool) {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !isInk(img.At(x, y)) {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < minX || maxY < minY {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

func isInk(c color.Color) bool {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	if n.A <= alphaThreshold {
		return false
	}
	return !(n.R >= whiteThreshold && n.G >= whiteThreshold && n.B >= whiteThreshold)
}

// fit reduce (nunca agranda) manteniendo la proporción.
func fit(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}
