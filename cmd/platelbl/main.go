// Converts Pascal VOC (and YOLO) bounding box labels to YOLO or TFRecord training data.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sensorable/platelbl"
)

var (
	convertFrom format // The source format.
	convertTo   format // The target format.

	imageDirPath             string   // The input directory with the labeled images.
	labelDirPath             string   // The input label directory.
	labelOutFileOrDirPaths   []string // The output label dir or file path(s), depending on the format.
	labelOutSplits           []int    // The cumulative split percentages for the output datasets.
	splitSeed                int64    // The random seed for -split.
	tfRecordLabelMapFilePath string   // The TFRecord label map file.
	numShardFiles            int      // The number of shard files to create.

	vocab *platelbl.Vocabulary // The class vocabulary from -classes or -classes-file.

	labelMappings string // A comma-separated string of label mappings.

	filterLabels        string  // A comma-separated string of labels to keep (empty keeps all).
	filterRequireLabel  bool    // Filter out files with no labels (after other filters).
	filterMinBboxWidth  float64 // The minimum bounding box width.
	filterMinBboxHeight float64 // The minimum bounding box height.
)

type format int

// The known label formats.
const (
	Unknown format = iota // If an unknown format is specified.
	TFRecord
	VOC // Pascal VOC XML
	YOLO
)

func formatFrom(s string) format {
	switch s {
	case "tfrecord":
		return TFRecord
	case "voc":
		return VOC
	case "yolo":
		return YOLO
	}
	return Unknown
}

func init() {
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage of %s:\n", filepath.Base(os.Args[0]))
		_, _ = fmt.Fprintln(os.Stderr, "  voc input options:\t\t-labels <dir> [-images <dir>]")
		_, _ = fmt.Fprintln(os.Stderr, "  yolo input options:\t\t-labels <dir> -images <dir>")
		_, _ = fmt.Fprintln(os.Stderr, "  yolo output options:\t\t-labels-out <dir>")
		_, _ = fmt.Fprintln(os.Stderr, "  tfrecord output options:\t-labels-out <file>"+
				" -tfrecord-label-map-file [-num-shards]")
		_, _ = fmt.Fprintln(os.Stderr, "  all:\t\t\t\t-classes <name,...> | -classes-file <file>")
		_, _ = fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
	}

	printUsageAndExit := func(msg ...interface{}) {
		log.Error().Msg(fmt.Sprint(msg...))
		flag.Usage()
		os.Exit(1)
	}

	// Format arguments.
	from := flag.String("from", "voc", "The source `format` {voc, yolo}")
	to := flag.String("to", "yolo", "The target `format` {yolo, tfrecord}")
	verbose := flag.Bool("verbose", false, "Log debug information")

	// Path arguments.
	flag.StringVar(&imageDirPath, "images", imageDirPath,
		"The `path` to the image input directory (required for yolo input and tfrecord output)")
	flag.StringVar(&labelDirPath, "labels", labelDirPath,
		"The `path` to the label input directory")
	outPaths := flag.String("labels-out", "",
		"The comma-separated paths (`path[,...]`) to the label output directories (yolo) or"+
				" files (tfrecord); must be one path per value in flag -split")
	outSplits := flag.String("split", "100",
		"The comma-separated output split percentages (`percent[,...]`) to divide labels into,"+
				" e.g. 80,20 for train and valid; must add up to 100%")
	seed := flag.Int64("seed", 0, "The random seed for -split (0 uses the current time)")
	flag.StringVar(&tfRecordLabelMapFilePath, "tfrecord-label-map-file", tfRecordLabelMapFilePath,
		"The TFRecord label map file `path`")
	flag.IntVar(&numShardFiles, "num-shards", 1,
		"The number of shard files to create (tfrecord only)")

	// Vocabulary arguments.
	classes := flag.String("classes", "",
		"Comma-separated, ordered list of class `names`; the position is the class id")
	classesFile := flag.String("classes-file", "",
		"The `path` to a file with one class name per line (alternative to -classes)")

	// Conversion and filter arguments.
	flag.StringVar(&labelMappings, "map-labels", labelMappings,
		"Comma-separated list of old=new label (sub-)string replacements")
	flag.StringVar(&filterLabels, "filter-labels", filterLabels,
		"Comma-separated list of labels to keep (after map-labels; empty string keeps all)")
	flag.BoolVar(&filterRequireLabel, "require-label", filterRequireLabel,
		"Require at least one label (after filters) to keep the file")
	flag.Float64Var(&filterMinBboxWidth, "min-bbox-width", filterMinBboxWidth,
		"The min. required width in `pixels` for object bounding boxes")
	flag.Float64Var(&filterMinBboxHeight, "min-bbox-height", filterMinBboxHeight,
		"The min. required height in `pixels` for object bounding boxes")

	// Parse and validate flags.
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	convertFrom = formatFrom(*from)
	convertTo = formatFrom(*to)
	if convertFrom != VOC && convertFrom != YOLO {
		printUsageAndExit("Unsupported input format")
	} else if convertTo != YOLO && convertTo != TFRecord {
		printUsageAndExit("Unsupported output format")
	}

	// Validate input arguments.
	if labelDirPath == "" || (convertFrom == YOLO && imageDirPath == "") {
		printUsageAndExit("Missing label or image input path argument")
	}

	// Load the vocabulary.
	var err error
	switch {
	case *classes != "" && *classesFile != "":
		printUsageAndExit("Only one of -classes and -classes-file may be given")
	case *classes != "":
		vocab, err = platelbl.NewVocabulary(strings.Split(*classes, ",")...)
	case *classesFile != "":
		vocab, err = platelbl.LoadVocabulary(*classesFile)
	default:
		printUsageAndExit("Missing -classes or -classes-file")
	}
	if err != nil {
		printUsageAndExit("Invalid class vocabulary: ", err)
	}

	// Validate output split arguments.
	if *outPaths == "" {
		printUsageAndExit("Missing label output path argument")
	}
	labelOutFileOrDirPaths = strings.Split(*outPaths, ",")
	splits := strings.Split(*outSplits, ",")
	if len(splits) != len(labelOutFileOrDirPaths) {
		printUsageAndExit("The number of output datasets defined by -split and the number of" +
				" paths in -labels-out must match")
	}

	// Parse splits as cumulative int percentages.
	var splitSum int
	for _, v := range splits {
		if i, err := strconv.Atoi(v); err != nil || i < 0 || i > 100 {
			printUsageAndExit("Invalid value in -split: ", v)
		} else {
			splitSum += i
			labelOutSplits = append(labelOutSplits, splitSum)
		}
	}
	if splitSum != 100 {
		printUsageAndExit("The values in -split must add up to 100%")
	}
	splitSeed = *seed
	if splitSeed == 0 {
		splitSeed = time.Now().UnixNano()
	}

	// Validate other output arguments.
	if convertTo == TFRecord && tfRecordLabelMapFilePath == "" {
		printUsageAndExit("Missing -tfrecord-label-map-file argument")
	}

	// Clean path arguments.
	if imageDirPath != "" {
		imageDirPath = filepath.Clean(imageDirPath)
	}
	labelDirPath = filepath.Clean(labelDirPath)
	for i, v := range labelOutFileOrDirPaths {
		labelOutFileOrDirPaths[i] = filepath.Clean(v)
		if labelDirPath == labelOutFileOrDirPaths[i] {
			printUsageAndExit("The label input and output paths cannot be identical")
		}
	}
}

func main() {
	// Parse input.
	var data []platelbl.AnnotatedFile
	var summary platelbl.Summary
	var err error
	switch convertFrom {
	case VOC:
		data, summary, err = platelbl.FromVOC(labelDirPath, imageDirPath)
	case YOLO:
		data, summary, err = platelbl.FromYOLO(labelDirPath, imageDirPath, vocab)
	default:
		err = fmt.Errorf("unsupported input format")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse the input")
	}

	af := platelbl.AnnotatedFiles(data)

	// Map labels.
	if len(labelMappings) > 0 {
		if err := af.MapLabels(strings.Split(labelMappings, ",")); err != nil {
			log.Fatal().Err(err).Msg("Failed to map labels")
		}
	}

	// Apply filters.
	var labelNames []string
	if filterLabels != "" {
		labelNames = strings.Split(filterLabels, ",")
	}
	if len(labelNames) > 0 || filterRequireLabel || filterMinBboxWidth > 0 ||
			filterMinBboxHeight > 0 {
		af.Filter(labelNames, filterMinBboxWidth, filterMinBboxHeight, filterRequireLabel)
	}

	// Split data into output datasets.
	var datasets []platelbl.AnnotatedFiles
	if len(labelOutSplits) == 1 {
		datasets = []platelbl.AnnotatedFiles{af}
	} else {
		if datasets, err = af.Split(labelOutSplits, splitSeed); err != nil {
			log.Fatal().Err(err).Msg("Failed to split the dataset")
		}
	}

	// Write output datasets.
	for i, data := range datasets {
		outPath := labelOutFileOrDirPaths[i]
		switch convertTo {
		case YOLO:
			if err = os.MkdirAll(outPath, 0755); err != nil {
				break
			}
			yoloData, skipped, failed := platelbl.ToYOLOFiles(data, vocab)
			summary.SkippedObjects += skipped
			summary.Failed += failed

			var written int
			written, err = platelbl.WriteYOLO(outPath, yoloData)
			summary.Converted += written
			summary.Empty += len(yoloData) - written
		case TFRecord:
			err = platelbl.WriteTFRecord(outPath, tfRecordLabelMapFilePath, data, vocab,
				numShardFiles)
			summary.Converted += len(data)
		default:
			err = fmt.Errorf("unsupported output format")
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Conversion failed")
		}

		log.Info().Int("files", len(data)).Str("path", outPath).Msg("Successfully wrote labels")
	}

	log.Info().Msg("Successfully " + summary.String())
}
