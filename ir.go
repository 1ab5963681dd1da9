package platelbl

// The intermediate annotation metadata representation.

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/rs/zerolog/log"
)

// Keys for known annotation attributes.
const (
	Difficult = "Difficult" // VOC <difficult>. Type bool.
	Truncated = "Truncated" // VOC <truncated>. Type bool.
	Pose      = "Pose"      // VOC <pose>, e.g. "Frontal". Type string.

	// IncompleteBox is set if the source lacked box coordinates; the missing ones are NaN.
	// Type bool.
	IncompleteBox = "IncompleteBox"
)

// Annotation is the intermediate representation of an object label in corner form.
type Annotation struct {
	Attributes map[string]interface{} // Additional attributes of this annotation.
	Coords     [4]float64             // Absolute xmin, ymin, xmax, ymax offsets from the top-left corner.
	Label      string
}

// Width is the object width from a.Coords.
func (a Annotation) Width() float64 {
	return a.Coords[2] - a.Coords[0]
}

// Height is the object height from a.Coords.
func (a Annotation) Height() float64 {
	return a.Coords[3] - a.Coords[1]
}

// boolAttr returns the attribute k as bool, false if it is missing or of another type.
func (a Annotation) boolAttr(k string) bool {
	v, _ := a.Attributes[k].(bool)
	return v
}

// AnnotatedFile is the intermediate representation of file metadata.
//
// All annotations of a file share the image dimensions Width and Height.
type AnnotatedFile struct {
	Annotations []Annotation // The annotations.
	FilePath    string       // The annotated image.
	SourcePath  string       // The annotation document the data was parsed from, if any.
	Width       int          // Image width in pixels.
	Height      int          // Image height in pixels.
}

// labelBaseName returns the base name, without extension, that output label files for f use.
// The annotation document takes precedence over the image file.
func (f *AnnotatedFile) labelBaseName() (string, error) {
	path := f.SourcePath
	if path == "" {
		path = f.FilePath
	}
	_, baseNoExt, _, err := splitPath(path)
	return baseNoExt, err
}

// AnnotatedFiles is the annotation metadata for a list of files.
type AnnotatedFiles []AnnotatedFile

// MapLabels replaces label (sub-)strings with substitution values, as specified in mappings.
//
// The format of mappings is old=new.
func (data *AnnotatedFiles) MapLabels(mappings []string) error {
	if len(mappings) == 0 {
		return nil
	}

	// Extract the individual old and new strings to map between.
	replacements := make([]struct{ old, new string }, len(mappings))
	for i, v := range mappings {
		a := strings.Split(v, "=")
		if len(a) != 2 || a[0] == "" {
			return fmt.Errorf("invalid mapping: %v", v)
		}

		replacements[i].old = a[0]
		replacements[i].new = a[1]
	}

	// Apply the replacements, in order, to all labels.
	count := 0
	for _, f := range *data {
		for i := range f.Annotations {
			a := &f.Annotations[i]

			oldLabel := a.Label
			for _, r := range replacements {
				a.Label = strings.Replace(a.Label, r.old, r.new, -1)
			}

			if a.Label != oldLabel {
				count++
			}
		}
	}

	log.Info().Int("changed", count).Msg("Applied label mappings")
	return nil
}

// Filter filters out annotations which do not match any of the given labelNames or have a
// bounding box with less than minBboxWidth or minBboxHeight.
//
// If requireLabel is true, files that have no annotations left are removed as well. The relative
// order of the remaining files and annotations is preserved.
func (data *AnnotatedFiles) Filter(labelNames []string, minBboxWidth, minBboxHeight float64,
		requireLabel bool) {

	inList := func(v string, l []string) bool {
		for _, val := range l {
			if val == v {
				return true
			}
		}
		return false
	}

	numFiles := len(*data)
	numLabelsBeforeFilter := 0
	numLabelsAfterFilter := 0

	files := (*data)[:0]
	for _, d := range *data {
		numLabelsBeforeFilter += len(d.Annotations)

		kept := d.Annotations[:0]
		for _, a := range d.Annotations {
			if minBboxWidth > a.Width() || minBboxHeight > a.Height() {
				continue
			}
			if len(labelNames) > 0 && !inList(a.Label, labelNames) {
				continue
			}
			kept = append(kept, a)
		}
		d.Annotations = kept
		numLabelsAfterFilter += len(kept)

		if requireLabel && len(kept) == 0 {
			continue
		}
		files = append(files, d)
	}
	*data = files

	log.Info().
		Int("labels", numLabelsBeforeFilter-numLabelsAfterFilter).
		Int("files", numFiles-len(*data)).
		Msg("Filtered out annotations")
}

// Split randomly splits the data into multiple datasets, e.g. train and valid.
//
// The cumulativeSplits specify the cumulative distribution according to which the data is split
// into the returned datasets. Its values must add up to 100! The same seed and input always
// produce the same split.
func (data *AnnotatedFiles) Split(cumulativeSplits []int, seed int64) ([]AnnotatedFiles, error) {
	datasets := make([]AnnotatedFiles, len(cumulativeSplits))

	// Allocate slightly more than the expected size for each dataset.
	var sum int
	for i, s := range cumulativeSplits {
		if s < sum {
			return nil, fmt.Errorf("the split percentages must be cumulative")
		}
		percent := s - sum
		datasets[i] = make(AnnotatedFiles, 0, int(1.05*float64(percent)/100*float64(len(*data))))
		sum = s
	}
	if sum != 100 {
		return nil, fmt.Errorf("the split percentages do not add up to 100")
	}

	rng := rand.New(rand.NewSource(seed))

outer:
	for _, d := range *data {
		r := rng.Intn(100)
		for i, s := range cumulativeSplits {
			if r < s {
				datasets[i] = append(datasets[i], d)
				continue outer
			}
		}
	}

	return datasets, nil
}
