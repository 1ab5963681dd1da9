package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/sensorable/platelbl"
)

func TestBoxesFromAnnotations(t *testing.T) {
	fileData := platelbl.AnnotatedFile{
		Width:  100,
		Height: 100,
		Annotations: []platelbl.Annotation{
			{Label: "licence", Coords: [4]float64{10.9, 10.2, 30.7, 30}},
		},
	}

	boxes := BoxesFromAnnotations(fileData)
	if len(boxes) != 1 {
		t.Fatalf("BoxesFromAnnotations() got %d boxes, want 1", len(boxes))
	}
	if want := image.Rect(10, 10, 30, 30); boxes[0].Rect != want || boxes[0].Label != "licence" {
		t.Errorf("BoxesFromAnnotations() = %+v, want %v licence", boxes[0], want)
	}
}

func TestDrawBoxes(t *testing.T) {
	img := uniformImage(100, 80)
	out, err := DrawBoxes(img, []Box{{Rect: image.Rect(20, 30, 60, 50), Label: "licence"}})
	if err != nil {
		t.Fatalf("DrawBoxes() error = %v", err)
	}
	if !out.Bounds().Eq(img.Bounds()) {
		t.Errorf("DrawBoxes() bounds = %v, want %v", out.Bounds(), img.Bounds())
	}

	r, g, b, _ := out.At(40, 30).RGBA()
	if r>>8 != 0 || g>>8 != 255 || b>>8 != 0 {
		t.Errorf("DrawBoxes() box edge = %v, want green", out.At(40, 30))
	}

	// The input is left unmodified.
	if c := img.RGBAAt(40, 30); c != (color.RGBA{R: 128, G: 128, B: 128, A: 255}) {
		t.Errorf("DrawBoxes() modified the input: %v", c)
	}
}

func TestDrawBoxesWithoutBoxes(t *testing.T) {
	img := uniformImage(30, 20)
	out, err := DrawBoxes(img, nil)
	if err != nil {
		t.Fatalf("DrawBoxes() error = %v", err)
	}
	r, _, _, _ := out.At(5, 5).RGBA()
	if r>>8 < 120 || r>>8 > 136 {
		t.Errorf("DrawBoxes() without boxes changed pixel to %v", out.At(5, 5))
	}
}
