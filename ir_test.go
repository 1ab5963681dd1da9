package platelbl

import (
	"fmt"
	"reflect"
	"testing"
)

func testFiles() AnnotatedFiles {
	return AnnotatedFiles{
		{
			FilePath: "a.png", Width: 100, Height: 100,
			Annotations: []Annotation{
				{Label: "licence_plate", Coords: [4]float64{0, 0, 50, 20}},
				{Label: "car", Coords: [4]float64{0, 0, 100, 100}},
			},
		},
		{
			FilePath: "b.png", Width: 100, Height: 100,
			Annotations: []Annotation{
				{Label: "licence_plate", Coords: [4]float64{10, 10, 14, 12}},
			},
		},
		{FilePath: "c.png", Width: 100, Height: 100},
	}
}

func labels(data AnnotatedFiles) [][]string {
	var out [][]string
	for _, f := range data {
		l := []string{}
		for _, a := range f.Annotations {
			l = append(l, a.Label)
		}
		out = append(out, l)
	}
	return out
}

func TestMapLabels(t *testing.T) {
	data := testFiles()
	if err := data.MapLabels([]string{"_=-", "licence-plate=plate"}); err != nil {
		t.Fatalf("MapLabels() error = %v", err)
	}
	want := [][]string{{"plate", "car"}, {"plate"}, {}}
	if got := labels(data); !reflect.DeepEqual(got, want) {
		t.Errorf("MapLabels() = %v, want %v", got, want)
	}
}

func TestMapLabelsInvalid(t *testing.T) {
	data := testFiles()
	for _, m := range []string{"plate", "=plate", "a=b=c"} {
		if err := data.MapLabels([]string{m}); err == nil {
			t.Errorf("MapLabels(%q) expected an error", m)
		}
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name         string
		labelNames   []string
		minW, minH   float64
		requireLabel bool
		want         [][]string
	}{
		{name: "no filter", want: [][]string{{"licence_plate", "car"}, {"licence_plate"}, {}}},
		{
			name:       "by label",
			labelNames: []string{"licence_plate"},
			want:       [][]string{{"licence_plate"}, {"licence_plate"}, {}},
		},
		{
			name: "by size",
			minW: 5,
			minH: 5,
			want: [][]string{{"licence_plate", "car"}, {}, {}},
		},
		{
			name:         "by size requiring a label",
			minW:         5,
			minH:         5,
			requireLabel: true,
			want:         [][]string{{"licence_plate", "car"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := testFiles()
			data.Filter(tt.labelNames, tt.minW, tt.minH, tt.requireLabel)
			if got := labels(data); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Filter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	var data AnnotatedFiles
	for i := 0; i < 200; i++ {
		data = append(data, AnnotatedFile{FilePath: fmt.Sprintf("%03d.png", i)})
	}

	first, err := data.Split([]int{80, 100}, 42)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	second, err := data.Split([]int{80, 100}, 42)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Split() with the same seed returned different datasets")
	}

	if n := len(first[0]) + len(first[1]); n != len(data) {
		t.Errorf("Split() returned %d files, want %d", n, len(data))
	}
	if len(first[0]) < len(first[1]) {
		t.Errorf("Split() train set has %d files, valid set %d", len(first[0]), len(first[1]))
	}
}

func TestSplitInvalid(t *testing.T) {
	data := testFiles()
	for _, splits := range [][]int{{50, 90}, {60, 40}} {
		if _, err := data.Split(splits, 1); err == nil {
			t.Errorf("Split(%v) expected an error", splits)
		}
	}
}
