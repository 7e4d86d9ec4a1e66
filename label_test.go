package segprep

import (
	"math"
	"testing"
)

func TestBoundaryMask(t *testing.T) {
	// 4×4，左右各半
	labels := []uint8{
		1, 1, 2, 2,
		1, 1, 2, 2,
		1, 1, 2, 2,
		1, 1, 2, 2,
	}
	mask := boundaryMask(labels, 4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := x == 1 || x == 2
			if mask[y*4+x] != want {
				t.Fatalf("mask[%d,%d] = %v, want %v", y, x, mask[y*4+x], want)
			}
		}
	}
}

func TestBoundaryMaskUniform(t *testing.T) {
	labels := make([]uint8, 25)
	for _, m := range boundaryMask(labels, 5, 5) {
		if m {
			t.Fatal("uniform raster should have no boundary")
		}
	}
}

func TestChamferDistance(t *testing.T) {
	mask := make([]bool, 25)
	mask[2*5+2] = true // 中心单点
	dist := chamferDistance(mask, 5, 5)
	cases := []struct {
		x, y int
		want float64
	}{
		{2, 2, 0},
		{3, 2, 1},
		{2, 0, 2},
		{3, 3, math.Sqrt2},
		{0, 0, 2 * math.Sqrt2},
	}
	for _, c := range cases {
		if got := dist[c.y*5+c.x]; math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("dist[%d,%d] = %f, want %f", c.y, c.x, got, c.want)
		}
	}
}

func TestCarveBorder(t *testing.T) {
	// 6×6左右各半，边界列2/3距离0，列1/4距离1，列0/5距离2
	w, h := 6, 6
	labels := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 3; x < w; x++ {
			labels[y*w+x] = 1
		}
	}
	carved := carveBorder(labels, w, h, 1.5, 255)
	if carved != 24 {
		t.Fatalf("want 24 carved pixels, got %d", carved)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := labels[y*w+x]
			if x >= 1 && x <= 4 {
				if v != 255 {
					t.Fatalf("pixel %d,%d should be carved, got %d", y, x, v)
				}
			} else if v == 255 {
				t.Fatalf("pixel %d,%d should be untouched", y, x)
			}
		}
	}
}

func TestCarveBorderDisabled(t *testing.T) {
	labels := []uint8{0, 1, 0, 1}
	if carved := carveBorder(labels, 2, 2, 0, 255); carved != 0 {
		t.Fatalf("zero border width should carve nothing, got %d", carved)
	}
}

func TestOrderPolygonsArea(t *testing.T) {
	polys := []LabelPolygon{
		{FID: 1, Area: 10},
		{FID: 2, Area: 30},
		{FID: 3, Area: 20},
	}
	ordered := orderPolygons(polys, OverlapArea)
	if ordered[0].FID != 2 || ordered[1].FID != 3 || ordered[2].FID != 1 {
		t.Fatalf("bad area ordering: %+v", ordered)
	}
	// 原切片不被改动
	if polys[0].FID != 1 || polys[2].FID != 3 {
		t.Fatal("input slice was mutated")
	}
}

func TestOrderPolygonsOrder(t *testing.T) {
	polys := []LabelPolygon{
		{FID: 1, Area: 10},
		{FID: 2, Area: 30},
	}
	ordered := orderPolygons(polys, OverlapOrder)
	if ordered[0].FID != 1 || ordered[1].FID != 2 {
		t.Fatalf("order priority should keep input order: %+v", ordered)
	}
}

func TestBorderWidthPx(t *testing.T) {
	if got := borderWidthPx(1, 0.5, 0.5); got != 2 {
		t.Fatalf("want 2px, got %f", got)
	}
	if got := borderWidthPx(3, 1, 2); got != 2 {
		t.Fatalf("want 2px with mixed res, got %f", got)
	}
}
