package document

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const jpegQuality = 90

// Preprocessor shrinks large images before they are sent to a vision model.
type Preprocessor struct {
	maxDimension int
	logger       *zap.Logger
}

// NewPreprocessor creates an image preprocessor. Images whose longest side
// exceeds maxDimension are downscaled; zero disables resizing.
func NewPreprocessor(maxDimension int, logger *zap.Logger) *Preprocessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preprocessor{maxDimension: maxDimension, logger: logger}
}

// PrepareImage applies EXIF orientation and downscales the image. It returns
// the new bytes and MIME type, or the original input when the image cannot
// be decoded or needs no change.
func (p *Preprocessor) PrepareImage(data []byte, mimeType string) ([]byte, string) {
	if p.maxDimension <= 0 {
		return data, mimeType
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		p.logger.Debug("image not decodable, sending original", zap.String("mime", mimeType), zap.Error(err))
		return data, mimeType
	}
	if cfg.Width <= p.maxDimension && cfg.Height <= p.maxDimension {
		return data, mimeType
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		p.logger.Debug("image decode failed, sending original", zap.Error(err))
		return data, mimeType
	}
	img = imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		p.logger.Debug("image encode failed, sending original", zap.Error(err))
		return data, mimeType
	}

	p.logger.Debug("image downscaled",
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Int("bytes_before", len(data)),
		zap.Int("bytes_after", buf.Len()))
	return buf.Bytes(), "image/jpeg"
}
