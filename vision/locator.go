// Package vision locates rectangular licence plates in photographs with a classical, non-learned
// OpenCV pipeline, and renders boxes onto images for visual verification.
//
// The locator reduces the image to gray, smooths it with an edge preserving bilateral filter,
// detects edges with Canny, ranks the traced contours by area and accepts the first of the
// largest contours whose polygon approximation has exactly four vertices. The plate is cropped
// to that quadrilateral's bounding rectangle.
package vision

import (
	"image"
	"image/color"
	"sort"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/sensorable/platelbl"
)

// ErrUnreadableImage is returned for a missing, empty or undecodable input image.
var ErrUnreadableImage = platelbl.ErrUnreadableImage

// Quad is a quadrilateral in image coordinates, in polygon approximation order.
type Quad [4]image.Point

// Result is the outcome of a single Locate call. Found is false if no plate shaped contour was
// located, which is a normal outcome for images without a clearly separable quadrilateral.
type Result struct {
	Found      bool
	Quad       Quad
	Bounds     image.Rectangle // Axis aligned bounding rectangle of Quad, in input coordinates.
	Crop       image.Image     // The input image inside Bounds.
	Mask       *image.Gray     // Filled Quad polygon, 255 inside and 0 outside, over Bounds.
	Candidates int             // Number of ranked contours examined.
}

// Locator finds licence plate candidates. It holds no state besides its parameters and may be
// used concurrently.
type Locator struct {
	params Params
}

// New creates a Locator with the default parameters.
func New() *Locator {
	return &Locator{params: DefaultParams()}
}

// NewWithParams creates a Locator with custom parameters.
func NewWithParams(params Params) (*Locator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Locator{params: params}, nil
}

// Params returns the parameters of l.
func (l *Locator) Params() Params {
	return l.params
}

// LocateFile loads the image at path and locates the plate in it.
func (l *Locator) LocateFile(path string) (Result, error) {
	img, err := platelbl.LoadImage(path)
	if err != nil {
		return Result{}, err
	}
	return l.Locate(img)
}

// Locate finds the plate in img.
//
// An error, wrapping ErrUnreadableImage, is only returned if img is unusable. A valid image
// without a plate yields a Result with Found set to false.
func (l *Locator) Locate(img image.Image) (Result, error) {
	src, err := imageToMat(img)
	if err != nil {
		return Result{}, err
	}
	defer src.Close()

	p := l.params

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	smoothed := gocv.NewMat()
	defer smoothed.Close()
	gocv.BilateralFilter(gray, &smoothed, p.Diameter, p.SigmaColor, p.SigmaSpace)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(smoothed, &edges, p.CannyLow, p.CannyHigh)

	quad, examined, found := l.findQuad(edges)
	log.Debug().Int("examined", examined).Bool("found", found).Msg("Quadrilateral filter")
	if !found {
		return Result{Candidates: examined}, nil
	}

	// Mask and bounding rectangle in Mat coordinates.
	mask, rect := quadMask(quad, edges.Rows(), edges.Cols())

	// Translate to the coordinates of img.
	offset := img.Bounds().Min
	for i := range quad {
		quad[i] = quad[i].Add(offset)
	}
	bounds := rect.Add(offset)
	mask.Rect = bounds

	return Result{
		Found:      true,
		Quad:       quad,
		Bounds:     bounds,
		Crop:       platelbl.CropImage(img, bounds),
		Mask:       mask,
		Candidates: examined,
	}, nil
}

// findQuad traces the contours of the edge map, ranks them by area and returns the first of the
// top K whose polygon approximation has exactly four vertices.
func (l *Locator) findQuad(edges gocv.Mat) (quad Quad, examined int, found bool) {
	hierarchy := gocv.NewMat()
	defer hierarchy.Close()

	contours := gocv.FindContoursWithParams(edges, &hierarchy, gocv.RetrievalTree,
			gocv.ChainApproxSimple)
	defer contours.Close()

	areas := make([]float64, contours.Size())
	for i := range areas {
		areas[i] = gocv.ContourArea(contours.At(i))
	}

	for _, idx := range rankByArea(areas, l.params.TopK) {
		examined++
		c := contours.At(idx)
		perimeter := gocv.ArcLength(c, true)

		approx := gocv.ApproxPolyDP(c, l.params.ApproxRatio*perimeter, true)
		points := approx.ToPoints()
		approx.Close()

		log.Debug().Int("contour", idx).Float64("area", areas[idx]).Int("vertices", len(points)).
				Msg("Approximated contour")
		if len(points) == 4 {
			copy(quad[:], points)
			return quad, examined, true
		}
	}

	return Quad{}, examined, false
}

// rankByArea returns the indices of the k largest areas, largest first. Equal areas keep their
// original order.
func rankByArea(areas []float64, k int) []int {
	idx := make([]int, len(areas))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return areas[idx[a]] > areas[idx[b]]
	})

	if k < 0 {
		k = 0
	}
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}

// quadMask fills quad into a rows x cols mask and returns the mask inside the bounding rectangle of
// quad, together with that rectangle clipped to the mask.
func quadMask(quad Quad, rows, cols int) (*image.Gray, image.Rectangle) {
	mask := gocv.Zeros(rows, cols, gocv.MatTypeCV8UC1)
	defer mask.Close()

	pv := gocv.NewPointsVectorFromPoints([][]image.Point{quad[:]})
	defer pv.Close()
	gocv.DrawContours(&mask, pv, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	rect := gocv.BoundingRect(pv.At(0)).Intersect(image.Rect(0, 0, cols, rows))

	gray := image.NewGray(rect)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			gray.Pix[gray.PixOffset(x, y)] = mask.GetUCharAt(y, x)
		}
	}
	return gray, rect
}
