package platelbl

// Directory level conversion of VOC annotations.

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
)

// Summary counts the outcome of a batch conversion.
type Summary struct {
	Found          int // Annotation documents found.
	Converted      int // Documents that produced at least one output record.
	Empty          int // Valid documents that produced no output record.
	Failed         int // Documents that could not be parsed.
	SkippedObjects int // Objects skipped within otherwise valid documents.
}

// String formats the summary for log output.
func (s Summary) String() string {
	return fmt.Sprintf("converted %d/%d files (%d empty, %d failed, %d objects skipped)",
		s.Converted, s.Found, s.Empty, s.Failed, s.SkippedObjects)
}

// ConvertVOC parses the VOC document at path and converts it to the YOLO format.
//
// Objects with labels outside vocab, or with boxes exceeding the image, are skipped and counted in
// the second return value. An error is returned only if the document as a whole is unusable; it
// never panics.
func ConvertVOC(path string, vocab *Vocabulary) (yoloData YOLOAnnotatedFile, skipped int,
		err error) {

	defer func() {
		if e := recover(); e != nil {
			yoloData, skipped = YOLOAnnotatedFile{}, 0
			err = fmt.Errorf("%w: %v", ErrMalformedSource, e)
		}
	}()

	fileData, err := FromVOCFile(path, "")
	if err != nil {
		return YOLOAnnotatedFile{}, 0, err
	}

	return ToYOLO(fileData, vocab)
}

// FromVOC reads and parses all VOC documents (*.xml) in labelDir. If imageDir is not empty, the
// image paths are resolved against it.
//
// Documents that fail to parse are logged, counted in the summary and left out of the result;
// they do not abort the batch. The files are parsed concurrently but returned in path order.
func FromVOC(labelDir, imageDir string) ([]AnnotatedFile, Summary, error) {
	labelFiles, err := filesByExtInDir(labelDir, ".xml")
	if err != nil {
		return nil, Summary{}, err
	}
	log.Info().Int("files", len(labelFiles)).Str("dir", labelDir).Msg("Parsing VOC labels")

	parsed := make([]AnnotatedFile, len(labelFiles))
	errs := make([]error, len(labelFiles))

	// Limit the number of goroutines in flight.
	numTasks := 2 * runtime.NumCPU()
	if len(labelFiles) < numTasks {
		numTasks = len(labelFiles)
	}
	workQueue := make(chan int, 2*numTasks)

	var wg sync.WaitGroup
	wg.Add(numTasks)
	for i := 0; i < numTasks; i++ {
		go func() {
			defer wg.Done()
			for idx := range workQueue {
				parsed[idx], errs[idx] = parseVOCFileSafe(labelFiles[idx], imageDir)
			}
		}()
	}

	// Feed the work queue.
	for i := range labelFiles {
		workQueue <- i
	}
	close(workQueue)
	wg.Wait()

	summary := Summary{Found: len(labelFiles)}
	data := make([]AnnotatedFile, 0, len(labelFiles))
	for i, path := range labelFiles {
		if errs[i] != nil {
			log.Warn().Str("file", path).Err(errs[i]).Msg("Error while parsing, skipping")
			summary.Failed++
			continue
		}
		data = append(data, parsed[i])
	}

	return data, summary, nil
}

// parseVOCFileSafe is FromVOCFile, with panics reported as ErrMalformedSource.
func parseVOCFileSafe(path, imageDir string) (fileData AnnotatedFile, err error) {
	defer func() {
		if e := recover(); e != nil {
			fileData = AnnotatedFile{}
			err = fmt.Errorf("%w: %v", ErrMalformedSource, e)
		}
	}()
	return FromVOCFile(path, imageDir)
}

// ConvertVOCDir converts all VOC documents in annotationDir to YOLO label files in outputDir,
// which is created if necessary. Only documents yielding at least one record produce a file.
//
// Per file problems are logged and counted in the returned summary. An error is returned only if
// annotationDir cannot be read or the output cannot be written.
func ConvertVOCDir(annotationDir, outputDir string, vocab *Vocabulary) (Summary, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return Summary{}, fmt.Errorf("cannot create directory %q: %v", outputDir, err)
	}

	data, summary, err := FromVOC(annotationDir, "")
	if err != nil {
		return summary, err
	}

	yoloData, skipped, failed := ToYOLOFiles(data, vocab)
	summary.SkippedObjects = skipped
	summary.Failed += failed

	written, err := WriteYOLO(outputDir, yoloData)
	summary.Converted = written
	summary.Empty = len(yoloData) - written
	if err != nil {
		return summary, err
	}

	log.Info().Str("dir", annotationDir).Msg(summary.String())
	return summary, nil
}

// ToYOLOFiles applies ToYOLO to all elements of data. It returns the converted files, the total
// number of skipped annotations and the number of files left out because ToYOLO failed.
func ToYOLOFiles(data []AnnotatedFile, vocab *Vocabulary) (yoloData []YOLOAnnotatedFile,
		skipped, failed int) {

	yoloData = make([]YOLOAnnotatedFile, 0, len(data))
	for _, fileData := range data {
		y, n, err := ToYOLO(fileData, vocab)
		if err != nil {
			log.Warn().Str("file", fileData.SourcePath).Err(err).Msg("Error while converting, skipping")
			failed++
			continue
		}
		yoloData = append(yoloData, y)
		skipped += n
	}
	return yoloData, skipped, failed
}
