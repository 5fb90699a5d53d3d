package storage

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"birdwatch/internal/config"
	"birdwatch/internal/logger"
	"birdwatch/internal/model"
)

const (
	// FilePrefix starts every capture filename.
	FilePrefix = "user"
	// TimestampLayout is the second-resolution part of a capture filename; milliseconds follow.
	TimestampLayout = "20060102_150405"
	// maxCollisionBumps bounds the millisecond bumps tried for one filename.
	maxCollisionBumps = 1000
)

var ErrEmptyImage = errors.New("empty image payload")

// CaptureStore writes captured frames to the capture directory.
type CaptureStore struct {
	dir     string
	quality int
	logger  *logger.Logger
	mu      sync.Mutex
	now     func() time.Time
}

// NewCaptureStore creates a CaptureStore. The directory is created on first write.
func NewCaptureStore(config *config.Config, logger *logger.Logger) *CaptureStore {
	return &CaptureStore{
		dir:     config.CaptureDirectory,
		quality: config.JPEGQuality,
		logger:  logger,
		now:     time.Now,
	}
}

// Dir returns the capture directory.
func (s *CaptureStore) Dir() string {
	return s.dir
}

// FileName builds the capture filename for a connection, kind and instant.
func FileName(connectionID string, kind model.ArtifactKind, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s_%03d.jpg",
		FilePrefix, connectionID, kind, t.Format(TimestampLayout), t.Nanosecond()/int(time.Millisecond))
}

// SaveImage encodes img as JPEG and writes it. It returns the full path.
func (s *CaptureStore) SaveImage(connectionID string, kind model.ArtifactKind, img image.Image) (string, error) {
	data, err := EncodeJPEG(img, s.quality)
	if err != nil {
		return "", err
	}
	return s.Save(connectionID, kind, data)
}

// Save writes already encoded JPEG bytes under a fresh filename. Existing files
// are never overwritten: on a name collision the timestamp moves forward by 1ms.
func (s *CaptureStore) Save(connectionID string, kind model.ArtifactKind, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create capture directory: %w", err)
	}

	t := s.now()
	for i := 0; i < maxCollisionBumps; i++ {
		fullpath := filepath.Join(s.dir, FileName(connectionID, kind, t))

		file, err := os.OpenFile(fullpath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			t = t.Add(time.Millisecond)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", fullpath, err)
		}

		if _, err := file.Write(data); err != nil {
			file.Close()
			os.Remove(fullpath)
			return "", fmt.Errorf("failed to write %s: %w", fullpath, err)
		}
		if err := file.Close(); err != nil {
			os.Remove(fullpath)
			return "", fmt.Errorf("failed to close %s: %w", fullpath, err)
		}

		s.logger.Info("Saved %s capture %s (%d bytes)", kind, filepath.Base(fullpath), len(data))
		return fullpath, nil
	}

	return "", fmt.Errorf("no free capture filename for connection %s", connectionID)
}

// EncodeJPEG encodes img as JPEG at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeImage decodes JPEG, PNG, GIF or WebP bytes.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// DecodeBase64Image decodes a base64 image, with or without a data URL prefix.
func DecodeBase64Image(payload string) (image.Image, error) {
	payload = strings.TrimSpace(payload)
	if i := strings.Index(payload, ";base64,"); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+len(";base64,"):]
	}
	if payload == "" {
		return nil, ErrEmptyImage
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return DecodeImage(raw)
}

// DataURL wraps JPEG bytes for direct use as an <img> source.
func DataURL(jpegData []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)
}
