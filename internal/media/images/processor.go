package images

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"

	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Info describes a captured image.
type Info struct {
	Format   string
	Width    int
	Height   int
	Size     int64
	BlurHash string
}

// Processor probes captured image bytes before they are staged.
type Processor struct {
	logger *slog.Logger
}

// NewProcessor creates a new Processor instance.
func NewProcessor(logger *slog.Logger) *Processor {
	return &Processor{logger: logger}
}

// Process decodes data and returns its dimensions, size and BlurHash.
// Returns an error when data is not a supported image format. A BlurHash
// failure is logged and leaves Info.BlurHash empty.
func (p *Processor) Process(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("unsupported image: %w", err)
	}

	info := Info{
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		Size:   int64(len(data)),
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		p.logger.Warn("failed to decode image for blurhash", "format", format, "error", err)
		return info, nil
	}
	if info.BlurHash, err = ComputeBlurHash(img); err != nil {
		p.logger.Warn("failed to compute blurhash", "format", format, "error", err)
	}

	p.logger.Debug("processed image",
		"format", format,
		"width", info.Width,
		"height", info.Height,
		"size", info.Size,
	)
	return info, nil
}
