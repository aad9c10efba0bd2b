package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrInvalidImage is returned when an uploaded file is not a supported image.
var ErrInvalidImage = errors.New("file is not a photo")

// MaxAvatarSide is the largest width/height kept after cropping.
const MaxAvatarSide = 250

// ImageProcessor crops an image file in place to at most maxSide on each
// dimension. Kept as an interface so handler tests can run with a fake.
type ImageProcessor interface {
	CropToSquare(path string, maxSide int) error
}

// ImagingProcessor is the default ImageProcessor backed by the imaging
// library.
type ImagingProcessor struct{}

// CropToSquare center-crops the image to at most maxSide per dimension and
// rewrites the file. Images already within bounds are rewritten unchanged.
func (ImagingProcessor) CropToSquare(path string, maxSide int) error {
	img, err := imaging.Open(path)
	if err != nil {
		return fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	bounds := img.Bounds()
	cropWidth := bounds.Dx()
	if cropWidth > maxSide {
		cropWidth = maxSide
	}
	cropHeight := bounds.Dy()
	if cropHeight > maxSide {
		cropHeight = maxSide
	}

	cropped := imaging.CropCenter(img, cropWidth, cropHeight)
	if err := imaging.Save(cropped, path); err != nil {
		return fmt.Errorf("failed to save cropped image %s: %w", path, err)
	}
	return nil
}

// AvatarService turns raw uploads into stored, square-cropped avatars.
type AvatarService struct {
	storeDir  string
	processor ImageProcessor
}

// NewAvatarService creates a new AvatarService. A nil processor falls back
// to the imaging-backed default.
func NewAvatarService(storeDir string, processor ImageProcessor) *AvatarService {
	if processor == nil {
		processor = ImagingProcessor{}
	}
	return &AvatarService{
		storeDir:  storeDir,
		processor: processor,
	}
}

// allowedImageTypes is what the content sniffer must report for an upload to
// be accepted. Extensions on the uploaded name are ignored; bytes decide.
var allowedImageTypes = []string{"image/png", "image/jpeg", "image/gif"}

// ProcessUpload sniffs the file at tempPath, moves it into the avatar store
// under a fresh name and crops it. Returns the stored file name. The temp
// file is always gone afterwards, whether the upload was accepted or not.
func (s *AvatarService) ProcessUpload(tempPath string) (string, error) {
	mtype, err := mimetype.DetectFile(tempPath)
	if err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to sniff upload: %w", err)
	}

	allowed := false
	for _, t := range allowedImageTypes {
		if mtype.Is(t) {
			allowed = true
			break
		}
	}
	if !allowed {
		os.Remove(tempPath)
		return "", ErrInvalidImage
	}

	if err := os.MkdirAll(s.storeDir, 0o755); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to create avatar dir: %w", err)
	}

	fileName := uuid.New().String() + mtype.Extension()
	destPath := filepath.Join(s.storeDir, fileName)
	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to move avatar into store: %w", err)
	}

	if err := s.processor.CropToSquare(destPath, MaxAvatarSide); err != nil {
		os.Remove(destPath)
		return "", ErrInvalidImage
	}
	return fileName, nil
}
