package platelbl

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register decoder.
	_ "image/jpeg" // Register decoder.
	_ "image/png"  // Register decoder.
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register decoder.
)

// decodeImageConfig opens the file at path and returns the results of image.DecodeConfig.
func decodeImageConfig(path string) (config image.Config, format string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer file.Close()

	return image.DecodeConfig(file)
}

// LoadImage reads and decodes the image at path. Errors wrap ErrUnreadableImage.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	defer f.Close()

	img, err := DecodeImage(f)
	if err != nil {
		return nil, fmt.Errorf("%w (%q)", err, path)
	}
	return img, nil
}

// DecodeImage reads and decodes an image from r with the registered decoders. Errors wrap
// ErrUnreadableImage.
func DecodeImage(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}

	if img, err := imaging.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	// Fallback for WebP variants the registered decoder does not handle.
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: unknown format", ErrUnreadableImage)
	}
	return img, nil
}

// SaveImage saves the image to path, encoding it as PNG, WebP or JPEG, depending on the file
// extension of path. The quality applies to JPEG and lossy WebP.
func SaveImage(path string, img image.Image, quality int, lossless bool) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return webp.Encode(f, img, &webp.Options{Lossless: lossless, Quality: float32(quality)})
	case ".png":
		return imaging.Save(img, path)
	default:
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// ImageExt returns the file extension, with the dot, for the output encoding enc.
func ImageExt(enc string) (string, error) {
	switch strings.ToLower(enc) {
	case "jpg", "jpeg":
		return ".jpg", nil
	case "png":
		return ".png", nil
	case "webp":
		return ".webp", nil
	}
	return "", fmt.Errorf("unsupported output encoding %q", enc)
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// CropImage returns the part of img inside r, clipped to the image bounds. The crop shares its
// data with img when the image type supports it and is a copy otherwise.
func CropImage(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	return imaging.Crop(img, r)
}

// IsImageFile reports whether path has a known image file extension.
func IsImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}

// ListImageFiles returns the image files directly in dirPath, sorted by name.
func ListImageFiles(dirPath string) ([]string, error) {
	files, err := filesByExtInDir(dirPath, "")
	if err != nil {
		return nil, err
	}

	images := files[:0]
	for _, f := range files {
		if IsImageFile(f) {
			images = append(images, f)
		}
	}
	return images, nil
}
