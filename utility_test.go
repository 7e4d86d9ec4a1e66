package segprep

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestGridSize(t *testing.T) {
	ext := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{100, 50}}
	w, h := gridSize(ext, 0.5, 0.5)
	if w != 200 || h != 100 {
		t.Fatalf("want 200x100, got %dx%d", w, h)
	}
	// 浮点范围四舍五入到最近整数像素
	ext = orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10.02, 9.98}}
	w, h = gridSize(ext, 0.1, 0.1)
	if w != 100 || h != 100 {
		t.Fatalf("want 100x100 after rounding, got %dx%d", w, h)
	}
}

func TestFootprintTransform(t *testing.T) {
	fp := Footprint{
		Extent: orb.Bound{Min: orb.Point{500000, 4000000}, Max: orb.Point{500100, 4000200}},
		ResX:   0.5,
		ResY:   0.5,
	}
	gt := footprintTransform(fp)
	want := [6]float64{500000, 0.5, 0, 4000200, 0, -0.5}
	if gt != want {
		t.Fatalf("want %v, got %v", want, gt)
	}
}

func TestWindowTransform(t *testing.T) {
	fp := Footprint{
		Extent: orb.Bound{Min: orb.Point{500000, 4000000}, Max: orb.Point{500100, 4000200}},
		ResX:   0.5,
		ResY:   0.5,
	}
	gt := windowTransform(fp, 100, 40)
	if gt[0] != 500050 || gt[3] != 4000180 {
		t.Fatalf("bad window origin: %v", gt)
	}
	if gt[1] != 0.5 || gt[5] != -0.5 {
		t.Fatalf("window must keep footprint resolution: %v", gt)
	}
}

func TestBoundOfTransformRoundTrip(t *testing.T) {
	fp := Footprint{
		Extent: orb.Bound{Min: orb.Point{500000, 4000000}, Max: orb.Point{500100, 4000200}},
		ResX:   0.5,
		ResY:   0.5,
		Width:  200,
		Height: 400,
	}
	got := boundOfTransform(footprintTransform(fp), fp.Width, fp.Height)
	if got != fp.Extent {
		t.Fatalf("want %v, got %v", fp.Extent, got)
	}
}

func TestBoundsToBound(t *testing.T) {
	b := boundsToBound([4]float64{1, 2, 3, 4})
	if b.Min != (orb.Point{1, 2}) || b.Max != (orb.Point{3, 4}) {
		t.Fatalf("bad bound: %v", b)
	}
}

func TestPointsToWkt(t *testing.T) {
	wkt := PointsToWkt(0, 1, 0, 1)
	want := "POLYGON((0.000000 0.000000, 0.000000 1.000000, 1.000000 1.000000, 1.000000 0.000000, 0.000000 0.000000))"
	if wkt != want {
		t.Fatalf("want %s, got %s", want, wkt)
	}
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}
	if BoundToWkt(b) != want {
		t.Fatal("BoundToWkt disagrees with PointsToWkt")
	}
}
