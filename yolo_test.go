package platelbl

import (
	"errors"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func testVocabulary(t *testing.T) *Vocabulary {
	t.Helper()
	v, err := NewVocabulary("licence", "licence-plate", "license-plate", "plate", "number-plate")
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestNormalize(t *testing.T) {
	vocab := testVocabulary(t)
	tests := []struct {
		name          string
		a             Annotation
		width, height int
		want          YOLOAnnotation
		wantErr       error
	}{
		{
			name:  "centered box",
			a:     Annotation{Label: "licence", Coords: [4]float64{10, 10, 30, 30}},
			width: 100, height: 100,
			want: YOLOAnnotation{ClassID: 0, XCenter: 0.2, YCenter: 0.2, Width: 0.2, Height: 0.2},
		},
		{
			name:  "full frame",
			a:     Annotation{Label: "plate", Coords: [4]float64{0, 0, 200, 50}},
			width: 200, height: 50,
			want: YOLOAnnotation{ClassID: 3, XCenter: 0.5, YCenter: 0.5, Width: 1, Height: 1},
		},
		{
			name:  "unknown class",
			a:     Annotation{Label: "car", Coords: [4]float64{10, 10, 30, 30}},
			width: 100, height: 100,
			wantErr: ErrUnknownClass,
		},
		{
			name:  "box exceeds image",
			a:     Annotation{Label: "licence", Coords: [4]float64{80, 10, 130, 30}},
			width: 100, height: 100,
			wantErr: ErrBoxOutOfRange,
		},
		{
			name:  "inverted box",
			a:     Annotation{Label: "licence", Coords: [4]float64{30, 10, 10, 30}},
			width: 100, height: 100,
			wantErr: ErrBoxOutOfRange,
		},
		{
			name:  "not a number",
			a:     Annotation{Label: "licence", Coords: [4]float64{math.NaN(), 10, 30, 30}},
			width: 100, height: 100,
			wantErr: ErrBoxOutOfRange,
		},
		{
			name: "unknown class with incomplete box",
			a: Annotation{Label: "car", Coords: [4]float64{math.NaN(), 1, 2, 3},
				Attributes: map[string]interface{}{IncompleteBox: true}},
			width: 100, height: 100,
			wantErr: ErrUnknownClass,
		},
		{
			name: "known class with incomplete box",
			a: Annotation{Label: "plate", Coords: [4]float64{math.NaN(), 1, 2, 3},
				Attributes: map[string]interface{}{IncompleteBox: true}},
			width: 100, height: 100,
			wantErr: ErrIncompleteBox,
		},
		{
			name:  "zero width image",
			a:     Annotation{Label: "licence", Coords: [4]float64{10, 10, 30, 30}},
			width: 0, height: 100,
			wantErr: ErrDegenerateDimensions,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.a, tt.width, tt.height, vocab)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Normalize() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeStaysInUnitRange(t *testing.T) {
	vocab := testVocabulary(t)
	const w, h = 640, 480
	for xmin := 0.0; xmin < w; xmin += 37.5 {
		for ymin := 0.0; ymin < h; ymin += 29.25 {
			a := Annotation{Label: "plate", Coords: [4]float64{xmin, ymin, xmin + (w-xmin)/3, ymin + (h-ymin)/5}}
			y, err := Normalize(a, w, h, vocab)
			if err != nil {
				t.Fatalf("Normalize(%v) error = %v", a.Coords, err)
			}
			for _, v := range []float64{y.XCenter, y.YCenter, y.Width, y.Height} {
				if v < 0 || v > 1 {
					t.Fatalf("Normalize(%v) = %+v, value outside [0,1]", a.Coords, y)
				}
			}
		}
	}
}

func TestDenormalizeRoundTrip(t *testing.T) {
	vocab := testVocabulary(t)
	boxes := [][4]float64{
		{10, 10, 30, 30},
		{0, 0, 640, 480},
		{123.5, 77.25, 301, 99.75},
		{1, 2, 3, 4},
	}
	for _, coords := range boxes {
		y, err := Normalize(Annotation{Label: "licence", Coords: coords}, 640, 480, vocab)
		if err != nil {
			t.Fatalf("Normalize(%v) error = %v", coords, err)
		}
		got := Denormalize(y, 640, 480)
		for i := range got {
			if math.Abs(got[i]-coords[i]) > 1e-9 {
				t.Errorf("Denormalize(Normalize(%v)) = %v", coords, got)
				break
			}
		}
	}
}

func TestToYOLOSkipsUnknownClasses(t *testing.T) {
	vocab := testVocabulary(t)
	fileData := AnnotatedFile{
		Annotations: []Annotation{
			{Label: "car", Coords: [4]float64{0, 0, 50, 50}},
			{Label: "plate", Coords: [4]float64{10, 10, 30, 30}},
			{Label: "licence", Coords: [4]float64{90, 90, 120, 95}},
		},
		SourcePath: "/labels/car2.xml",
		FilePath:   "/images/car2.png",
		Width:      100,
		Height:     100,
	}

	got, skipped, err := ToYOLO(fileData, vocab)
	if err != nil {
		t.Fatalf("ToYOLO() error = %v", err)
	}
	if skipped != 2 {
		t.Errorf("ToYOLO() skipped = %d, want 2", skipped)
	}
	if got.BaseName != "car2" {
		t.Errorf("ToYOLO() BaseName = %q, want %q", got.BaseName, "car2")
	}
	if len(got.Annotations) != 1 || got.Annotations[0].ClassID != 3 {
		t.Errorf("ToYOLO() annotations = %+v, want only the plate", got.Annotations)
	}
}

func TestFormatYOLO(t *testing.T) {
	tests := []struct {
		name        string
		annotations []YOLOAnnotation
		want        string
	}{
		{name: "empty", annotations: nil, want: ""},
		{
			name:        "single",
			annotations: []YOLOAnnotation{{ClassID: 0, XCenter: 0.2, YCenter: 0.2, Width: 0.2, Height: 0.2}},
			want:        "0 0.2 0.2 0.2 0.2",
		},
		{
			name: "multiple without trailing newline",
			annotations: []YOLOAnnotation{
				{ClassID: 1, XCenter: 0.5, YCenter: 0.5, Width: 1, Height: 1},
				{ClassID: 4, XCenter: 0.125, YCenter: 0.75, Width: 0.0625, Height: 0.03125},
			},
			want: "1 0.5 0.5 1 1\n4 0.125 0.75 0.0625 0.03125",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatYOLO(tt.annotations); got != tt.want {
				t.Errorf("FormatYOLO() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseYOLOLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    YOLOAnnotation
		wantErr bool
	}{
		{
			name: "valid",
			line: "0 0.2 0.2 0.2 0.2",
			want: YOLOAnnotation{ClassID: 0, XCenter: 0.2, YCenter: 0.2, Width: 0.2, Height: 0.2},
		},
		{
			name: "float class id",
			line: "3.0 0.5 0.5 1 1",
			want: YOLOAnnotation{ClassID: 3, XCenter: 0.5, YCenter: 0.5, Width: 1, Height: 1},
		},
		{name: "fractional class id", line: "1.5 0.5 0.5 1 1", wantErr: true},
		{name: "too few values", line: "0 0.5 0.5 1", wantErr: true},
		{name: "too many values", line: "0 0.5 0.5 1 1 1", wantErr: true},
		{name: "not a number", line: "0 x 0.5 1 1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseYOLOLine(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseYOLOLine() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseYOLOLine() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func writeTestPNG(t *testing.T, path string, width, height int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, width, height))); err != nil {
		t.Fatal(err)
	}
}

func TestWriteYOLOFromYOLO(t *testing.T) {
	vocab := testVocabulary(t)
	imageDir := t.TempDir()
	labelDir := t.TempDir()
	writeTestPNG(t, filepath.Join(imageDir, "car1.png"), 200, 100)
	writeTestPNG(t, filepath.Join(imageDir, "car2.png"), 200, 100)

	data := []YOLOAnnotatedFile{
		{
			BaseName:    "car1",
			Annotations: []YOLOAnnotation{{ClassID: 3, XCenter: 0.5, YCenter: 0.5, Width: 0.25, Height: 0.5}},
		},
		{BaseName: "car2"},
	}
	written, err := WriteYOLO(labelDir, data)
	if err != nil {
		t.Fatalf("WriteYOLO() error = %v", err)
	}
	if written != 1 {
		t.Errorf("WriteYOLO() = %d, want 1", written)
	}
	if _, err := os.Stat(filepath.Join(labelDir, "car2.txt")); !os.IsNotExist(err) {
		t.Errorf("WriteYOLO() wrote a file without annotations")
	}

	// A label file without an image is counted as failed.
	if err := os.WriteFile(filepath.Join(labelDir, "orphan.txt"), []byte("0 0.5 0.5 0.1 0.1"),
		0644); err != nil {
		t.Fatal(err)
	}

	parsed, summary, err := FromYOLO(labelDir, imageDir, vocab)
	if err != nil {
		t.Fatalf("FromYOLO() error = %v", err)
	}
	if summary.Found != 2 || summary.Failed != 1 {
		t.Errorf("FromYOLO() summary = %+v, want 2 found and 1 failed", summary)
	}
	if len(parsed) != 1 {
		t.Fatalf("FromYOLO() got %d files, want 1", len(parsed))
	}
	got := parsed[0]
	if got.Width != 200 || got.Height != 100 {
		t.Errorf("FromYOLO() dimensions = %dx%d, want 200x100", got.Width, got.Height)
	}
	if len(got.Annotations) != 1 {
		t.Fatalf("FromYOLO() got %d annotations, want 1", len(got.Annotations))
	}
	a := got.Annotations[0]
	if want := [4]float64{75, 25, 125, 75}; a.Label != "plate" || a.Coords != want {
		t.Errorf("FromYOLO() annotation = %q %v, want %q %v", a.Label, a.Coords, "plate", want)
	}
}

func TestToYOLOSingleClass(t *testing.T) {
	vocab, err := NewVocabulary("plate")
	if err != nil {
		t.Fatal(err)
	}
	fileData := AnnotatedFile{
		SourcePath:  "car.xml",
		Width:       100,
		Height:      200,
		Annotations: []Annotation{{Label: "plate", Coords: [4]float64{10, 20, 30, 60}}},
	}

	got, skipped, err := ToYOLO(fileData, vocab)
	if err != nil {
		t.Fatalf("ToYOLO() error = %v", err)
	}
	if skipped != 0 {
		t.Errorf("ToYOLO() skipped = %d, want 0", skipped)
	}
	if s := FormatYOLO(got.Annotations); s != "0 0.2 0.2 0.2 0.2" {
		t.Errorf("ToYOLO() = %q, want %q", s, "0 0.2 0.2 0.2 0.2")
	}
}
