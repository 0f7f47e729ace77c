package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif" // decoders
	"image/jpeg"
	_ "image/png"
	"strings"
	"unicode"

	_ "golang.org/x/image/webp"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/yeisme/vistoria/pkg/internal/imagestore"
)

// prepared 可以直接嵌入 PDF 的图片.
type prepared struct {
	data        []byte
	kind        string // JPG, PNG, GIF
	width       int
	height      int
	placeholder bool
}

var nativeKinds = map[string]string{
	"jpeg": "JPG",
	"png":  "PNG",
	"gif":  "GIF",
}

// prepareImage 主渲染：jpeg/png/gif 原样嵌入，其余格式（webp）转码为 JPEG；无法解码时使用占位图.
func prepareImage(data []byte) prepared {
	if len(data) == 0 {
		return placeholderImage()
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return placeholderImage()
	}

	if kind, ok := nativeKinds[format]; ok {
		return prepared{data: data, kind: kind, width: cfg.Width, height: cfg.Height}
	}

	return safeImage(data)
}

// safeImage 安全模式：解码后铺白底重新编码为 JPEG.
func safeImage(data []byte) prepared {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return placeholderImage()
	}

	out, err := toJPEG(img)
	if err != nil {
		return placeholderImage()
	}

	b := img.Bounds()

	return prepared{data: out, kind: "JPG", width: b.Dx(), height: b.Dy()}
}

func toJPEG(img image.Image) ([]byte, error) {
	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func placeholderImage() prepared {
	img := imagestore.PlaceholderImage()
	if img == nil {
		return prepared{placeholder: true}
	}

	out, err := toJPEG(img)
	if err != nil {
		return prepared{placeholder: true}
	}

	b := img.Bounds()

	return prepared{data: out, kind: "JPG", width: b.Dx(), height: b.Dy(), placeholder: true}
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SafeFilename 去掉重音并把非 [A-Za-z0-9._-] 字符替换为下划线.
func SafeFilename(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder

	lastUnderscore := false

	for _, r := range strings.TrimSpace(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-'):
			b.WriteRune(r)

			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')

			lastUnderscore = true
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "relatorio"
	}

	return out
}
