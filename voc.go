package platelbl

// Pascal VOC specific functionality.

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// VOCBndBox is the corner form bounding box of a VOC object. All four values are required.
type VOCBndBox struct {
	Xmin *float64 `xml:"xmin"`
	Ymin *float64 `xml:"ymin"`
	Xmax *float64 `xml:"xmax"`
	Ymax *float64 `xml:"ymax"`
}

// VOCObject is a single object annotation within a VOC document.
type VOCObject struct {
	Name      *string    `xml:"name"`
	Pose      string     `xml:"pose"`
	Truncated int        `xml:"truncated"`
	Difficult int        `xml:"difficult"`
	BndBox    *VOCBndBox `xml:"bndbox"`
}

// VOCSize is the image dimensions block of a VOC document.
type VOCSize struct {
	Width  *int `xml:"width"`
	Height *int `xml:"height"`
	Depth  int  `xml:"depth"`
}

// VOCAnnotatedFile defines the VOC annotation structure for a single image.
type VOCAnnotatedFile struct {
	XMLName  xml.Name    `xml:"annotation"`
	Folder   string      `xml:"folder"`
	Filename string      `xml:"filename"`
	Path     string      `xml:"path"`
	Size     *VOCSize    `xml:"size"`
	Objects  []VOCObject `xml:"object"`
}

// coords returns the corners of b, with NaN for missing values, and whether all four are set.
func (b *VOCBndBox) coords() ([4]float64, bool) {
	coords := [4]float64{math.NaN(), math.NaN(), math.NaN(), math.NaN()}
	if b == nil {
		return coords, false
	}

	complete := true
	for i, v := range [4]*float64{b.Xmin, b.Ymin, b.Xmax, b.Ymax} {
		if v == nil {
			complete = false
			continue
		}
		coords[i] = *v
	}
	return coords, complete
}

// ParseVOC decodes one VOC document from r into the intermediate representation.
//
// The returned errors wrap ErrMalformedSource when the document lacks the dimensions block, an
// object lacks its name, or a value cannot be parsed. In that case the document as a whole is
// unusable. Class names are not checked here, so an object with a missing or incomplete bndbox
// is kept with the IncompleteBox attribute; Normalize rejects it only if its class is known.
func ParseVOC(r io.Reader) (AnnotatedFile, error) {
	var vocData VOCAnnotatedFile
	if err := xml.NewDecoder(r).Decode(&vocData); err != nil {
		return AnnotatedFile{}, fmt.Errorf("%w: %v", ErrMalformedSource, err)
	}

	size := vocData.Size
	if size == nil {
		return AnnotatedFile{}, fmt.Errorf("%w: 'size' tag not found", ErrMalformedSource)
	}
	if size.Width == nil || size.Height == nil {
		return AnnotatedFile{}, fmt.Errorf("%w: 'size' lacks width or height", ErrMalformedSource)
	}
	if *size.Width <= 0 || *size.Height <= 0 {
		return AnnotatedFile{}, fmt.Errorf("%w: %dx%d", ErrDegenerateDimensions,
				*size.Width, *size.Height)
	}

	fileData := AnnotatedFile{
		Annotations: make([]Annotation, 0, len(vocData.Objects)),
		FilePath:    vocData.Filename,
		Width:       *size.Width,
		Height:      *size.Height,
	}
	for i, o := range vocData.Objects {
		if o.Name == nil {
			return AnnotatedFile{}, fmt.Errorf("%w: object %d has no name", ErrMalformedSource, i)
		}

		annotation := Annotation{
			Attributes: map[string]interface{}{
				Difficult: o.Difficult != 0,
				Truncated: o.Truncated != 0,
			},
			Label: *o.Name,
		}
		if o.Pose != "" {
			annotation.Attributes[Pose] = o.Pose
		}

		var complete bool
		annotation.Coords, complete = o.BndBox.coords()
		if !complete {
			annotation.Attributes[IncompleteBox] = true
		}
		fileData.Annotations = append(fileData.Annotations, annotation)
	}

	return fileData, nil
}

// FromVOCFile reads and parses the VOC document at path.
//
// If imageDir is not empty, the image path is resolved against it. Otherwise it is resolved
// against the directory of the document.
func FromVOCFile(path, imageDir string) (fileData AnnotatedFile, err error) {
	f, err := os.Open(path)
	if err != nil {
		return AnnotatedFile{}, err
	}
	defer closeWithErrCheck(f, &err)

	fileData, err = ParseVOC(f)
	if err != nil {
		return AnnotatedFile{}, err
	}
	fileData.SourcePath = path

	if fileData.FilePath != "" {
		dir := imageDir
		if dir == "" {
			dir = filepath.Dir(path)
		}
		fileData.FilePath = filepath.Join(dir, filepath.Base(fileData.FilePath))
	}

	return fileData, nil
}
