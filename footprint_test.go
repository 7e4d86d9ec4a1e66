package segprep

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

func testFootprint() (Footprint, [6]float64) {
	fp := Footprint{
		ID:     "lod_01",
		Extent: orb.Bound{Min: orb.Point{500000, 4000000}, Max: orb.Point{500100, 4000200}},
		ResX:   0.5,
		ResY:   0.5,
		Srid:   32633,
		Width:  200,
		Height: 400,
	}
	return fp, footprintTransform(fp)
}

func TestValidateFootprint(t *testing.T) {
	fp, gt := testFootprint()
	if err := validateFootprint(fp, gt); err != nil {
		t.Fatal(err)
	}
}

func TestValidateFootprintRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(fp *Footprint, gt *[6]float64)
	}{
		{"rotated transform", func(fp *Footprint, gt *[6]float64) { gt[2] = 0.1 }},
		{"sheared transform", func(fp *Footprint, gt *[6]float64) { gt[4] = -0.1 }},
		{"zero grid", func(fp *Footprint, gt *[6]float64) { fp.Width = 0 }},
		{"negative resolution", func(fp *Footprint, gt *[6]float64) { fp.ResY = -0.5 }},
		{"degenerate extent", func(fp *Footprint, gt *[6]float64) { fp.Extent.Max = fp.Extent.Min }},
	}
	for _, c := range cases {
		fp, gt := testFootprint()
		c.mutate(&fp, &gt)
		if err := validateFootprint(fp, gt); !errors.Is(err, ErrInvalidFootprint) {
			t.Fatalf("%s: want ErrInvalidFootprint, got %v", c.name, err)
		}
	}
}
