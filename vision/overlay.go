package vision

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/sensorable/platelbl"
)

var (
	boxColor  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	quadColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// Box is a labelled rectangle to draw, in image coordinates.
type Box struct {
	Rect  image.Rectangle
	Label string
}

// BoxesFromAnnotations converts the annotations of fileData to pixel boxes. Coordinates are
// truncated towards zero.
func BoxesFromAnnotations(fileData platelbl.AnnotatedFile) []Box {
	boxes := make([]Box, len(fileData.Annotations))
	for i, a := range fileData.Annotations {
		boxes[i] = Box{
			Rect: image.Rect(int(math.Trunc(a.Coords[0])), int(math.Trunc(a.Coords[1])),
				int(math.Trunc(a.Coords[2])), int(math.Trunc(a.Coords[3]))),
			Label: a.Label,
		}
	}
	return boxes
}

// DrawBoxes returns a copy of img with the boxes and their labels drawn on it. No window is
// opened; displaying the result is up to the caller.
func DrawBoxes(img image.Image, boxes []Box) (image.Image, error) {
	mat, err := imageToMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	offset := img.Bounds().Min
	for _, b := range boxes {
		r := b.Rect.Sub(offset)
		gocv.Rectangle(&mat, r, boxColor, 2)
		if b.Label != "" {
			gocv.PutText(&mat, b.Label, image.Point{X: r.Min.X, Y: r.Min.Y - 10},
				gocv.FontHersheySimplex, 0.7, boxColor, 2)
		}
	}

	return matToImage(mat)
}

// DrawResult returns a copy of img with the located quadrilateral and its bounding rectangle drawn
// on it. Images without a plate are returned as an unmodified copy.
func DrawResult(img image.Image, res Result) (image.Image, error) {
	mat, err := imageToMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	if res.Found {
		offset := img.Bounds().Min
		pts := make([]image.Point, len(res.Quad))
		for i, p := range res.Quad {
			pts[i] = p.Sub(offset)
		}
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
		defer pv.Close()

		gocv.Polylines(&mat, pv, true, quadColor, 2)
		gocv.Rectangle(&mat, res.Bounds.Sub(offset), boxColor, 1)
	}

	return matToImage(mat)
}

func matToImage(mat gocv.Mat) (image.Image, error) {
	out, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert the overlay: %v", err)
	}
	return out, nil
}
