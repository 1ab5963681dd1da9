package vision

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"github.com/sensorable/platelbl"
)

// imageToMat converts img to a BGR OpenCV Mat. The Mat origin is img.Bounds().Min.
func imageToMat(img image.Image) (gocv.Mat, error) {
	if img == nil || img.Bounds().Empty() {
		return gocv.Mat{}, fmt.Errorf("%w: empty image", platelbl.ErrUnreadableImage)
	}

	// Clone into a tightly packed NRGBA buffer with origin (0,0).
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()

	mat, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, nrgba.Pix)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", platelbl.ErrUnreadableImage, err)
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(mat, &bgr, gocv.ColorRGBAToBGR)
	return bgr, nil
}
