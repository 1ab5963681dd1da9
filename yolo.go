package platelbl

// YOLO (normalized center) specific functionality.

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// YOLOAnnotation is a single annotation within a YOLO label file. The coordinates are fractions
// of the image width and height.
type YOLOAnnotation struct {
	ClassID int
	XCenter float64
	YCenter float64
	Width   float64
	Height  float64
}

// YOLOAnnotatedFile defines the YOLO annotation structure for a single image.
type YOLOAnnotatedFile struct {
	Annotations []YOLOAnnotation
	BaseName    string // The label file name without the .txt extension.
	FilePath    string // The annotated image.
}

// Normalize converts the corner form annotation a of an image with the given dimensions to the
// normalized center form. The class id is the position of a.Label in vocab.
//
// No rounding is applied. Boxes that do not fit into the image are rejected with
// ErrBoxOutOfRange rather than clamped. The class is checked first: an annotation with an unknown
// label yields ErrUnknownClass even if its box is incomplete, a known one ErrIncompleteBox.
func Normalize(a Annotation, width, height int, vocab *Vocabulary) (YOLOAnnotation, error) {
	if width <= 0 || height <= 0 {
		return YOLOAnnotation{}, fmt.Errorf("%w: %dx%d", ErrDegenerateDimensions, width, height)
	}
	classID, ok := vocab.Index(a.Label)
	if !ok {
		return YOLOAnnotation{}, fmt.Errorf("%w: %q", ErrUnknownClass, a.Label)
	}
	if a.boolAttr(IncompleteBox) {
		return YOLOAnnotation{}, fmt.Errorf("%w: %q", ErrIncompleteBox, a.Label)
	}

	xmin, ymin, xmax, ymax := a.Coords[0], a.Coords[1], a.Coords[2], a.Coords[3]
	w, h := float64(width), float64(height)
	y := YOLOAnnotation{
		ClassID: classID,
		XCenter: ((xmin + xmax) / 2) / w,
		YCenter: ((ymin + ymax) / 2) / h,
		Width:   (xmax - xmin) / w,
		Height:  (ymax - ymin) / h,
	}

	for _, v := range [4]float64{y.XCenter, y.YCenter, y.Width, y.Height} {
		if !(v >= 0 && v <= 1) {
			return YOLOAnnotation{}, fmt.Errorf("%w: (%v,%v)(%v,%v) in %dx%d", ErrBoxOutOfRange,
					xmin, ymin, xmax, ymax, width, height)
		}
	}

	return y, nil
}

// Denormalize is the inverse of Normalize. It returns the absolute xmin, ymin, xmax, ymax.
func Denormalize(y YOLOAnnotation, width, height int) [4]float64 {
	w, h := float64(width), float64(height)
	halfW := y.Width * w / 2
	halfH := y.Height * h / 2
	cx := y.XCenter * w
	cy := y.YCenter * h
	return [4]float64{cx - halfW, cy - halfH, cx + halfW, cy + halfH}
}

// ToYOLO converts the intermediate representation for a single file to the YOLO format.
//
// Annotations that cannot be normalized, e.g. because their label is not in vocab, are skipped
// with a warning while the remaining annotations are converted. The number of skipped
// annotations is returned. An error wrapping ErrMalformedSource, e.g. for a known class without
// a complete box, means the file as a whole yields nothing.
func ToYOLO(fileData AnnotatedFile, vocab *Vocabulary) (YOLOAnnotatedFile, int, error) {
	baseName, err := fileData.labelBaseName()
	if err != nil {
		baseName = ""
	}
	yoloFileData := YOLOAnnotatedFile{
		Annotations: make([]YOLOAnnotation, 0, len(fileData.Annotations)),
		BaseName:    baseName,
		FilePath:    fileData.FilePath,
	}

	skipped := 0
	for _, a := range fileData.Annotations {
		y, err := Normalize(a, fileData.Width, fileData.Height, vocab)
		if errors.Is(err, ErrMalformedSource) {
			return YOLOAnnotatedFile{}, 0, err
		} else if err != nil {
			log.Warn().Str("file", fileData.SourcePath).Str("label", a.Label).Err(err).
					Msg("Skipping annotation")
			skipped++
			continue
		}
		yoloFileData.Annotations = append(yoloFileData.Annotations, y)
	}

	return yoloFileData, skipped, nil
}

// formatYOLOValue formats v with the fewest digits that parse back to exactly v.
func formatYOLOValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatYOLO serialises the annotations, one per line, as "class_id x_center y_center width
// height". There is no header and no trailing newline.
func FormatYOLO(annotations []YOLOAnnotation) string {
	lines := make([]string, len(annotations))
	for i, a := range annotations {
		lines[i] = strconv.Itoa(a.ClassID) + " " +
				formatYOLOValue(a.XCenter) + " " +
				formatYOLOValue(a.YCenter) + " " +
				formatYOLOValue(a.Width) + " " +
				formatYOLOValue(a.Height)
	}
	return strings.Join(lines, "\n")
}

// WriteYOLO writes data to dirPath, one <BaseName>.txt file per element. Elements without
// annotations are not written.
//
// Returns the number of files written.
func WriteYOLO(dirPath string, data []YOLOAnnotatedFile) (int, error) {
	dirInfo, err := os.Stat(dirPath)
	if err != nil || !dirInfo.IsDir() {
		return 0, fmt.Errorf("cannot access directory %q: %v", dirPath, err)
	}

	written := 0
	for _, fileData := range data {
		if len(fileData.Annotations) == 0 {
			continue
		}
		if fileData.BaseName == "" {
			return written, fmt.Errorf("missing label file name for %q", fileData.FilePath)
		}

		filePath := filepath.Join(dirPath, fileData.BaseName+".txt")
		if err := os.WriteFile(filePath, []byte(FormatYOLO(fileData.Annotations)), 0644); err != nil {
			return written, fmt.Errorf("cannot write file %q: %v", filePath, err)
		}
		written++
	}

	return written, nil
}

// ParseYOLOLine parses the five values of a single YOLO annotation.
func ParseYOLOLine(line string) (YOLOAnnotation, error) {
	tokens := strings.Fields(line)
	if len(tokens) != 5 {
		return YOLOAnnotation{}, fmt.Errorf("expected 5 values in %q, got %d", line, len(tokens))
	}

	// The class id may have been written as a float by other tools.
	id, err := strconv.ParseFloat(tokens[0], 64)
	if err != nil || id != float64(int(id)) {
		return YOLOAnnotation{}, fmt.Errorf("unexpected class id in %q", line)
	}

	var v [4]float64
	for i := 0; i < 4; i++ {
		if v[i], err = strconv.ParseFloat(tokens[i+1], 64); err != nil {
			return YOLOAnnotation{}, fmt.Errorf("unexpected values in %q: %v", line, err)
		}
	}

	return YOLOAnnotation{ClassID: int(id), XCenter: v[0], YCenter: v[1], Width: v[2], Height: v[3]},
			nil
}

// FromYOLO reads and parses YOLO label files from labelDir and matches them to the images in
// imageDir, whose dimensions are used to recover absolute coordinates. Class ids are mapped to
// labels with vocab. Label files without an image, or that fail to parse, are logged and counted
// in the summary.
func FromYOLO(labelDir, imageDir string, vocab *Vocabulary) ([]AnnotatedFile, Summary, error) {
	parse := func(labelPath, imagePath string) (AnnotatedFile, error) {
		return FromYOLOFile(labelPath, imagePath, vocab)
	}
	return parseLabelsWithOneToOneImages(labelDir, ".txt", imageDir, parse)
}

// FromYOLOFile parses the YOLO label file at labelPath, using the dimensions of the image at
// imagePath.
func FromYOLOFile(labelPath, imagePath string, vocab *Vocabulary) (AnnotatedFile, error) {
	img, _, err := decodeImageConfig(imagePath)
	if err != nil {
		return AnnotatedFile{}, err
	}

	lines, err := readLines(labelPath)
	if err != nil {
		return AnnotatedFile{}, err
	}

	fileData := AnnotatedFile{
		Annotations: make([]Annotation, 0, len(lines)),
		FilePath:    imagePath,
		SourcePath:  labelPath,
		Width:       img.Width,
		Height:      img.Height,
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		y, err := ParseYOLOLine(line)
		if err != nil {
			log.Warn().Str("file", labelPath).Err(err).Msg("Skipping annotation")
			continue
		}
		label, ok := vocab.Name(y.ClassID)
		if !ok {
			log.Warn().Str("file", labelPath).Int("class_id", y.ClassID).
					Msg("Skipping annotation with class id outside the vocabulary")
			continue
		}

		fileData.Annotations = append(fileData.Annotations, Annotation{
			Coords: Denormalize(y, img.Width, img.Height),
			Label:  label,
		})
	}

	return fileData, nil
}
