package imagestore

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/yeisme/vistoria/pkg/errs"
	"github.com/yeisme/vistoria/pkg/internal/repository"
)

const placeholderText = "Foto não disponível"

// Served 对外返回的照片内容.
type Served struct {
	Data        []byte
	MimeType    string
	Placeholder bool
}

// Serve 返回照片内容：优先数据库中的二进制，其次文件产物，都没有时返回占位图.
// 照片行不存在时返回 NotFound.
func (s *Store) Serve(ctx context.Context, repo *repository.Repository, photoID uint) (*Served, error) {
	f, err := repo.GetPhotoWithData(ctx, photoID)
	if err != nil {
		return nil, err
	}

	mime := f.ContentType
	if mime == "" {
		mime = MimeFor(ExtOf(f.Filename))
	}

	if f.HasData() {
		return &Served{Data: f.ImagemData, MimeType: mime}, nil
	}

	if f.Filename != "" {
		data, err := s.blobs.Get(ctx, PhotoKey(f.Filename))
		if err == nil {
			return &Served{Data: data, MimeType: mime}, nil
		}

		s.logger.Warn().Err(errs.Wrap(err, errs.KindMediaMissing, "foto %d", photoID)).
			Str("filename", f.Filename).Msg("photo bytes missing, serving placeholder")
	}

	return &Served{Data: Placeholder(), MimeType: "image/png", Placeholder: true}, nil
}

// ServeTemp 返回暂存上传的内容（预览）.
func (s *Store) ServeTemp(ctx context.Context, tempID string) (*Served, error) {
	tf, err := s.FindTemp(ctx, tempID)
	if err != nil {
		return nil, err
	}

	return &Served{Data: tf.Data, MimeType: MimeFor(tf.Ext)}, nil
}

var (
	placeholderOnce sync.Once
	placeholderPNG  []byte
)

// Placeholder 固定的 "照片不可用" PNG，每次调用返回相同字节.
func Placeholder() []byte {
	placeholderOnce.Do(func() {
		placeholderPNG = renderPlaceholder(480, 360)
	})

	return placeholderPNG
}

// PlaceholderImage 解码后的占位图.
func PlaceholderImage() image.Image {
	img, _ := png.Decode(bytes.NewReader(Placeholder()))

	return img
}

func renderPlaceholder(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}}, image.Point{}, draw.Src)

	border := color.RGBA{R: 0xbb, G: 0xbb, B: 0xbb, A: 0xff}
	for x := 0; x < w; x++ {
		img.Set(x, 0, border)
		img.Set(x, h-1, border)
	}

	for y := 0; y < h; y++ {
		img.Set(0, y, border)
		img.Set(w-1, y, border)
	}

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 0x66, G: 0x66, B: 0x66, A: 0xff}),
		Face: face,
	}

	width := d.MeasureString(placeholderText)
	d.Dot = fixed.Point26_6{
		X: (fixed.I(w) - width) / 2,
		Y: fixed.I(h/2 + face.Ascent/2),
	}
	d.DrawString(placeholderText)

	var buf bytes.Buffer
	_ = png.Encode(&buf, img)

	return buf.Bytes()
}
