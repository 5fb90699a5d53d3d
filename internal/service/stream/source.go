package stream

import (
	"context"
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"birdwatch/internal/config"
	"birdwatch/internal/logger"
)

var (
	ErrStreamUnavailable = errors.New("could not open video stream")
	ErrFrameReadFailure  = errors.New("could not read frame from stream")
)

// Source pulls single frames from a live video endpoint.
type Source struct {
	url    string
	logger *logger.Logger
}

func NewSource(config *config.Config, logger *logger.Logger) *Source {
	return &Source{url: config.StreamURL, logger: logger}
}

// Capture opens the stream, reads one frame and closes the stream again.
// The endpoint is reopened on every call so the frame is always live.
func (s *Source) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	capture, err := gocv.OpenVideoCapture(s.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamUnavailable, err)
	}
	defer capture.Close()

	if !capture.IsOpened() {
		return nil, fmt.Errorf("%w: %s", ErrStreamUnavailable, s.url)
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := capture.Read(&mat); !ok || mat.Empty() {
		return nil, ErrFrameReadFailure
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameReadFailure, err)
	}

	s.logger.Info("Captured frame %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}
