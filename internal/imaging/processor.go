package imaging

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/goliatone/go-publisher/internal/domain"
	"github.com/goliatone/go-publisher/internal/logging"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

const (
	mimeJPEG = "image/jpeg"
	mimePNG  = "image/png"

	downscaleFactor = 0.9
	minDimension    = 16
)

// ErrTooManyPixels rejects images whose declared dimensions exceed
// Limits.MaxPixels. The check runs on the header, before any decode.
var ErrTooManyPixels = errors.New("image dimensions exceed the pixel limit")

var decodable = map[string]bool{
	mimeJPEG:     true,
	mimePNG:      true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// Limits are the platform constraints images are normalized against.
type Limits struct {
	CoverMaxBytes   int
	CoverMaxWidth   int
	CoverAspect     float64
	ContentMaxBytes int
	QualityStart    int
	QualityMin      int
	QualityStep     int
	MaxPixels       int
}

// DefaultLimits match the WeChat thumb and uploadimg constraints.
func DefaultLimits() Limits {
	return Limits{
		CoverMaxBytes:   64 * 1024,
		CoverMaxWidth:   900,
		CoverAspect:     2.35,
		ContentMaxBytes: 1024 * 1024,
		QualityStart:    85,
		QualityMin:      60,
		QualityStep:     5,
		MaxPixels:       40_000_000,
	}
}

// Asset is a normalized image ready for upload.
type Asset struct {
	Filename    string
	Role        interfaces.MediaRole
	ContentType string
	Data        []byte
	Fingerprint string
}

// Key is the media cache key of the asset.
func (a Asset) Key() interfaces.MediaKey {
	return interfaces.MediaKey{Fingerprint: a.Fingerprint, Role: a.Role}
}

// Upload converts the asset to a platform upload payload.
func (a Asset) Upload() interfaces.MediaUpload {
	return interfaces.MediaUpload{
		Filename:    a.Filename,
		ContentType: a.ContentType,
		Data:        a.Data,
		Role:        a.Role,
	}
}

// Processor normalizes images to the configured Limits.
type Processor struct {
	limits Limits
	logger interfaces.Logger
}

func NewProcessor(limits Limits, logger interfaces.Logger) *Processor {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Processor{limits: limits, logger: logger}
}

// Normalize produces the platform-ready encoding of raw for role and
// fingerprints the result. Failures are *domain.ImageError.
func (p *Processor) Normalize(ctx context.Context, filename string, raw []byte, role interfaces.MediaRole) (Asset, error) {
	if len(raw) == 0 {
		return Asset{}, &domain.ImageError{Filename: filename, Reason: "image is empty"}
	}
	detected := mimetype.Detect(raw).String()
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	if !decodable[detected] {
		return Asset{}, &domain.ImageError{Filename: filename, Reason: fmt.Sprintf("unsupported format %s", detected)}
	}

	var (
		data []byte
		err  error
	)
	switch role {
	case interfaces.MediaRoleCover:
		data, err = p.normalizeCover(raw)
	case interfaces.MediaRoleContent:
		data, detected, err = p.normalizeContent(raw, detected)
	default:
		return Asset{}, &domain.ImageError{Filename: filename, Reason: fmt.Sprintf("unknown role %q", role)}
	}
	if err != nil {
		return Asset{}, &domain.ImageError{Filename: filename, Reason: "normalization failed", Err: err}
	}

	contentType := detected
	if role == interfaces.MediaRoleCover {
		contentType = mimeJPEG
	}
	asset := Asset{
		Filename:    NormalizedName(filename, contentType),
		Role:        role,
		ContentType: contentType,
		Data:        data,
		Fingerprint: Fingerprint(data),
	}

	p.logger.WithContext(ctx).Debug("imaging.normalized",
		"filename", filename,
		"role", string(role),
		"input_bytes", len(raw),
		"output_bytes", len(data),
		"fingerprint", asset.Fingerprint,
	)
	return asset, nil
}

// Fingerprint is the lowercase hex SHA-256 of data.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// decode reads the header first so oversized images never allocate a frame.
func (p *Processor) decode(raw []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if p.limits.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(p.limits.MaxPixels) {
		return nil, fmt.Errorf("%w: %dx%d > %d", ErrTooManyPixels, cfg.Width, cfg.Height, p.limits.MaxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	return img, err
}

func (p *Processor) normalizeCover(raw []byte) ([]byte, error) {
	img, err := p.decode(raw)
	if err != nil {
		return nil, err
	}
	crop := cropToAspect(img.Bounds(), p.limits.CoverAspect)
	width := min(crop.Dx(), p.limits.CoverMaxWidth)
	return p.fit(img, crop, width, p.limits.CoverMaxBytes)
}

// normalizeContent keeps JPEG and PNG within the byte ceiling untouched and
// re-encodes everything else as JPEG.
func (p *Processor) normalizeContent(raw []byte, detected string) ([]byte, string, error) {
	img, err := p.decode(raw)
	if err != nil {
		return nil, "", err
	}
	if (detected == mimeJPEG || detected == mimePNG) && len(raw) <= p.limits.ContentMaxBytes {
		return raw, detected, nil
	}
	data, err := p.fit(img, img.Bounds(), img.Bounds().Dx(), p.limits.ContentMaxBytes)
	return data, mimeJPEG, err
}

// fit encodes the crop region of img as JPEG no wider than width, walking
// the quality ladder before shrinking the image. The requested width is
// always tried; shrinking stops at minDimension.
func (p *Processor) fit(img image.Image, crop image.Rectangle, width, maxBytes int) ([]byte, error) {
	aspect := float64(crop.Dx()) / float64(crop.Dy())
	for {
		height := max(int(float64(width)/aspect+0.5), 1)
		frame := render(img, crop, width, height)
		for quality := p.limits.QualityStart; quality >= p.limits.QualityMin; quality -= p.limits.QualityStep {
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: quality}); err != nil {
				return nil, err
			}
			if buf.Len() <= maxBytes {
				return buf.Bytes(), nil
			}
		}
		next := int(float64(width) * downscaleFactor)
		if next < minDimension {
			break
		}
		width = next
	}
	return nil, fmt.Errorf("cannot fit under %d bytes", maxBytes)
}

// render scales the crop region of img onto an opaque white canvas.
func render(img image.Image, crop image.Rectangle, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Over, nil)
	return dst
}

// cropToAspect returns the largest centered rectangle of bounds with the
// given width/height ratio.
func cropToAspect(bounds image.Rectangle, aspect float64) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	if aspect <= 0 || w == 0 || h == 0 {
		return bounds
	}
	if float64(w)/float64(h) > aspect {
		cw := max(int(float64(h)*aspect+0.5), 1)
		x0 := bounds.Min.X + (w-cw)/2
		return image.Rect(x0, bounds.Min.Y, x0+cw, bounds.Max.Y)
	}
	ch := max(int(float64(w)/aspect+0.5), 1)
	y0 := bounds.Min.Y + (h-ch)/2
	return image.Rect(bounds.Min.X, y0, bounds.Max.X, y0+ch)
}

// NormalizedName is the upload filename for an image encoded as contentType.
func NormalizedName(filename, contentType string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "image"
	}
	ext := ".png"
	if contentType == mimeJPEG {
		ext = ".jpg"
	}
	return strings.TrimSuffix(base, path.Ext(base)) + ext
}
