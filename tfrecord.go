package platelbl

// TFRecord object detection specific functionality.

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/golang/protobuf/proto"
	"github.com/rs/zerolog/log"
	"github.com/ryszard/tfutils/go/example"
	"github.com/ryszard/tfutils/go/tfrecord"
	"github.com/ryszard/tfutils/proto/tensorflow/core/example" // package tensorflow
)

// TFFeatureMap maps feature names to their values. Values must be convertible to
// tensorflow.Feature.
type TFFeatureMap map[string]interface{}

// TFRecordAnnotatedFile defines the TFRecord annotation structure for a single file.
type TFRecordAnnotatedFile struct {
	Annotations TFFeatureMap
	FilePath    string
}

// tfRecordLabelID is the TFRecord class label for a vocabulary id. The TensorFlow object
// detection API reserves 0 for the background class.
func tfRecordLabelID(classID int) int64 {
	return int64(classID) + 1
}

// toTFRecord converts the intermediate representation for a single file to the TFRecord format.
// Annotations with labels outside vocab or boxes outside the image are skipped. A known class
// without a complete box fails the whole file.
func toTFRecord(fileData AnnotatedFile, vocab *Vocabulary) (TFRecordAnnotatedFile, error) {
	// Get the image format, and the dimensions unless the annotation source provided them.
	img, format, err := decodeImageConfig(fileData.FilePath)
	if err != nil {
		return TFRecordAnnotatedFile{}, fmt.Errorf("failed to decode the image metadata: %v", err)
	}
	width, height := fileData.Width, fileData.Height
	if width <= 0 || height <= 0 {
		width, height = img.Width, img.Height
	}

	// Read the image data.
	imgData, err := os.ReadFile(fileData.FilePath)
	if err != nil {
		return TFRecordAnnotatedFile{}, fmt.Errorf("failed to read the image: %v", err)
	}

	// Prepare the feature map for the per file data.
	f := make(map[string]interface{}, 16)
	f["image/height"] = height
	f["image/width"] = width
	f["image/filename"] = fileData.FilePath
	f["image/source_id"] = fileData.FilePath
	f["image/encoded"] = imgData
	f["image/format"] = format

	// Prepare the per label data.
	numLabels := len(fileData.Annotations)
	xmins := make([]float32, 0, numLabels)
	ymins := make([]float32, 0, numLabels)
	xmaxs := make([]float32, 0, numLabels)
	ymaxs := make([]float32, 0, numLabels)
	classes := make([]string, 0, numLabels)
	classIDs := make([]int64, 0, numLabels)
	difficult := make([]int64, 0, numLabels)
	truncated := make([]int64, 0, numLabels)
	for _, a := range fileData.Annotations {
		// Normalize validates the label and the box against the image.
		y, err := Normalize(a, width, height, vocab)
		if errors.Is(err, ErrMalformedSource) {
			return TFRecordAnnotatedFile{}, err
		} else if err != nil {
			log.Warn().Str("file", fileData.FilePath).Str("label", a.Label).Err(err).
					Msg("Skipping annotation")
			continue
		}

		xmins = append(xmins, float32(a.Coords[0]/float64(width)))
		ymins = append(ymins, float32(a.Coords[1]/float64(height)))
		xmaxs = append(xmaxs, float32(a.Coords[2]/float64(width)))
		ymaxs = append(ymaxs, float32(a.Coords[3]/float64(height)))
		classes = append(classes, a.Label)
		classIDs = append(classIDs, tfRecordLabelID(y.ClassID))
		difficult = append(difficult, boolToInt64(a.boolAttr(Difficult)))
		truncated = append(truncated, boolToInt64(a.boolAttr(Truncated)))
	}
	f["image/object/bbox/xmin"] = xmins
	f["image/object/bbox/ymin"] = ymins
	f["image/object/bbox/xmax"] = xmaxs
	f["image/object/bbox/ymax"] = ymaxs
	f["image/object/class/text"] = classes
	f["image/object/class/label"] = classIDs
	f["image/object/difficult"] = difficult
	f["image/object/truncated"] = truncated

	return TFRecordAnnotatedFile{
		Annotations: f,
		FilePath:    fileData.FilePath,
	}, nil
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// WriteTFRecord does a streaming conversion, serialisation and file write for the annotation data
// to one or more TFRecord files stored under recordFilePath (with suffixes added when numShards>1).
//
// The label map for vocab is written to labelMapPath.
func WriteTFRecord(recordFilePath, labelMapPath string, data []AnnotatedFile, vocab *Vocabulary,
		numShards int) (err error) {

	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("conversion to TensorFlow Example failed: %v", e)
		}
	}()

	if numShards <= 0 {
		numShards = 1
	}

	fmtShardSuffix := func(idx int) string {
		return fmt.Sprintf("-%05d-of-%05d", idx, numShards)
	}

	var shardFile *os.File
	defer func() {
		if shardFile != nil {
			closeWithErrCheck(shardFile, &err)
		}
	}()
	shardSize := int(math.Ceil(float64(len(data)) / float64(numShards)))
	shardIdx := -1

	// Convert and serialise one data element at a time.
	for i, fileData := range data {
		// Check if a new shard file needs to be opened for writing.
		if i%shardSize == 0 {
			shardIdx++

			// Close the previous shard file.
			if shardFile != nil {
				if err := shardFile.Close(); err != nil {
					return err
				}
				shardFile = nil
			}

			// Create the new shard file.
			shardPath := recordFilePath
			if numShards > 1 {
				shardPath += fmtShardSuffix(shardIdx)
			}
			f, err := os.Create(shardPath)
			if err != nil {
				return fmt.Errorf("failed to create shard at %q: %v", shardPath, err)
			}
			shardFile = f
		}

		// Convert the file data to an example.
		tfFileData, err := toTFRecord(fileData, vocab)
		if err != nil {
			log.Warn().Str("file", fileData.FilePath).Err(err).Msg("Failed to convert")
			continue
		}
		tfExample := example.New(tfFileData.Annotations)

		// Write the example.
		if err := writeTFRecordExample(shardFile, tfExample); err != nil {
			return fmt.Errorf("failed to write example: %v", err)
		}
	}

	return saveTFRecordLabelMap(labelMapPath, vocab)
}

// writeTFRecordExample serialises the example and writes it as a TFRecord to w.
func writeTFRecordExample(w io.Writer, e *tensorflow.Example) error {
	enc, err := proto.Marshal(e)
	if err != nil {
		return err
	}

	return tfrecord.Write(w, enc)
}

// formatTFRecordLabelMap formats the vocabulary as a StringIntLabelMap in prototxt format.
func formatTFRecordLabelMap(vocab *Vocabulary) string {
	var s string
	for i, name := range vocab.Names() {
		s += "item {\n" +
				"  name: " + strconv.Quote(name) + "\n" +
				"  id: " + strconv.FormatInt(tfRecordLabelID(i), 10) + "\n" +
				"}\n"
	}
	return s
}

// saveTFRecordLabelMap writes the label map for vocab to path.
func saveTFRecordLabelMap(path string, vocab *Vocabulary) error {
	if err := os.WriteFile(path, []byte(formatTFRecordLabelMap(vocab)), 0644); err != nil {
		return fmt.Errorf("failed to write the label map %q: %v", path, err)
	}
	return nil
}
