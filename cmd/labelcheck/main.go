// Draws the YOLO labels of randomly sampled images, for visual verification of a dataset.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sensorable/platelbl"
	"github.com/sensorable/platelbl/vision"
)

func main() {
	var (
		imageDir    string
		labelDir    string
		classes     string
		classesFile string
		outputDir   string
		numSamples  int
		seed        int64
		verbose     bool
	)

	flag.StringVar(&imageDir, "images", "", "The `path` to the image directory")
	flag.StringVar(&labelDir, "labels", "", "The `path` to the YOLO label directory")
	flag.StringVar(&classes, "classes", "", "Comma-separated, ordered list of class `names`")
	flag.StringVar(&classesFile, "classes-file", "", "The `path` to a file with one class name per"+
			" line (alternative to -classes)")
	flag.StringVar(&outputDir, "output-dir", "", "Output directory for the overlay images")
	flag.IntVar(&numSamples, "n", 5, "The number of images to sample")
	flag.Int64Var(&seed, "seed", 0, "The random seed (0 uses the current time)")
	flag.BoolVar(&verbose, "verbose", false, "Print debug information")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if imageDir == "" || labelDir == "" || outputDir == "" || numSamples < 1 ||
			(classes == "") == (classesFile == "") {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s -images <dir> -labels <dir> -output-dir <dir>"+
				" (-classes <names> | -classes-file <file>) [options]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	var vocab *platelbl.Vocabulary
	var err error
	if classes != "" {
		vocab, err = platelbl.NewVocabulary(strings.Split(classes, ",")...)
	} else {
		vocab, err = platelbl.LoadVocabulary(classesFile)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid class vocabulary")
	}

	images, err := platelbl.ListImageFiles(imageDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list images")
	}
	if len(images) == 0 {
		log.Fatal().Str("dir", imageDir).Msg("No images found")
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create the output directory")
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(images), func(i, j int) { images[i], images[j] = images[j], images[i] })
	if numSamples < len(images) {
		images = images[:numSamples]
	}

	for idx, imagePath := range images {
		status := fmt.Sprintf("[%d/%d] ", idx+1, len(images))
		outPath, err := checkImage(imagePath, labelDir, outputDir, vocab)
		if err != nil {
			fmt.Printf("%sfailed (%s): %v\n", status, filepath.Base(imagePath), err)
			continue
		}
		fmt.Printf("%sdrew labels -> %s\n", status, outPath)
	}
}

// checkImage draws the labels of the image at imagePath and writes the result to outputDir. A
// missing label file yields the undecorated image.
func checkImage(imagePath, labelDir, outputDir string, vocab *platelbl.Vocabulary) (string,
		error) {

	img, err := platelbl.LoadImage(imagePath)
	if err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	labelPath := filepath.Join(labelDir, base+".txt")

	var boxes []vision.Box
	if _, err := os.Stat(labelPath); os.IsNotExist(err) {
		log.Warn().Str("image", imagePath).Msg("No label file for image")
	} else {
		fileData, err := platelbl.FromYOLOFile(labelPath, imagePath, vocab)
		if err != nil {
			return "", err
		}
		boxes = vision.BoxesFromAnnotations(fileData)
	}

	overlay, err := vision.DrawBoxes(img, boxes)
	if err != nil {
		return "", err
	}

	outPath := filepath.Join(outputDir, base+"_check.png")
	return outPath, platelbl.SaveImage(outPath, overlay, 100, true)
}
