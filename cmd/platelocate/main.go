// Locates licence plates in images and writes the plate crops.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sensorable/platelbl"
	"github.com/sensorable/platelbl/internal/config"
	"github.com/sensorable/platelbl/vision"
)

func main() {
	var (
		configPath string
		outputDir  string
		outFormat  string
		writeMask  bool
		debug      bool
		dryRun     bool
		verbose    bool
	)

	flag.StringVar(&configPath, "config", "", "JSON config file with locator and output settings")
	flag.StringVar(&outputDir, "output-dir", "", "Output directory for plate crops (default: next"+
			" to the input image)")
	flag.StringVar(&outFormat, "format", "", "Output image format {jpg, png, webp} (overrides config)")
	flag.BoolVar(&writeMask, "mask", false, "Also write the quadrilateral mask as a PNG")
	flag.BoolVar(&debug, "debug", false, "Also write an overlay image with the located quadrilateral")
	flag.BoolVar(&dryRun, "dry-run", false, "Do not write any output images")
	flag.BoolVar(&verbose, "verbose", false, "Print debug information")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	args := flag.Args()
	if len(args) == 0 {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options] image_files_or_dirs...\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if outFormat != "" {
		cfg.Output.Format = outFormat
	}
	ext, err := platelbl.ImageExt(cfg.Output.Format)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid output format")
	}

	locator, err := vision.NewWithParams(cfg.Locator)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid locator parameters")
	}

	// Expand directories.
	var inputFiles []string
	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil && info.IsDir() {
			files, err := platelbl.ListImageFiles(arg)
			if err != nil {
				log.Error().Err(err).Str("dir", arg).Msg("Failed to list directory")
				continue
			}
			inputFiles = append(inputFiles, files...)
		} else {
			inputFiles = append(inputFiles, arg)
		}
	}

	if outputDir != "" && !dryRun {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			log.Fatal().Err(err).Msg("Failed to create the output directory")
		}
	}

	out := outputWriter{
		dir:      outputDir,
		ext:      ext,
		quality:  cfg.Output.Quality,
		lossless: cfg.Output.Lossless,
	}

	total := len(inputFiles)
	var found, unreadable int
	for idx, filename := range inputFiles {
		status := fmt.Sprintf("[%d/%d] ", idx+1, total)

		img, err := platelbl.LoadImage(filename)
		var res vision.Result
		if err == nil {
			res, err = locator.Locate(img)
		}
		if err != nil {
			if errors.Is(err, platelbl.ErrUnreadableImage) {
				unreadable++
			}
			fmt.Printf("%sunreadable (%s): %v\n", status, filepath.Base(filename), err)
			continue
		}

		if debug && !dryRun {
			if err := out.writeOverlay(filename, img, res); err != nil {
				log.Error().Err(err).Str("file", filename).Msg("Failed to write the overlay")
			}
		}

		if !res.Found {
			fmt.Printf("%sno plate (%s)\n", status, filepath.Base(filename))
			continue
		}
		found++

		dest := "(no output)"
		if !dryRun {
			if dest, err = out.writeCrop(filename, res); err != nil {
				log.Error().Err(err).Str("file", filename).Msg("Failed to write the crop")
				dest = "(failed)"
			}
			if writeMask {
				if err := out.writeMask(filename, res); err != nil {
					log.Error().Err(err).Str("file", filename).Msg("Failed to write the mask")
				}
			}
		}

		b := res.Bounds
		fmt.Printf("%sfound %dx%d at (%d,%d) -> %s\n", status, b.Dx(), b.Dy(), b.Min.X, b.Min.Y, dest)
	}

	log.Info().Int("found", found).Int("total", total).Msg("Done")
	if total > 0 && unreadable == total {
		os.Exit(2)
	}
}

// outputWriter derives output paths from input paths and writes the output images.
type outputWriter struct {
	dir      string
	ext      string
	quality  int
	lossless bool
}

func (w outputWriter) path(inputPath, suffix, ext string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath)) + suffix + ext
	if w.dir != "" {
		return filepath.Join(w.dir, base)
	}
	return filepath.Join(filepath.Dir(inputPath), base)
}

func (w outputWriter) writeCrop(inputPath string, res vision.Result) (string, error) {
	p := w.path(inputPath, "_plate", w.ext)
	return p, platelbl.SaveImage(p, res.Crop, w.quality, w.lossless)
}

func (w outputWriter) writeMask(inputPath string, res vision.Result) error {
	return platelbl.SaveImage(w.path(inputPath, "_mask", ".png"), res.Mask, w.quality, true)
}

func (w outputWriter) writeOverlay(inputPath string, img image.Image, res vision.Result) error {
	overlay, err := vision.DrawResult(img, res)
	if err != nil {
		return err
	}
	return platelbl.SaveImage(w.path(inputPath, "_debug", w.ext), overlay, w.quality, w.lossless)
}
