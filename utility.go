package segprep

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

func PointsToWkt(x1, x2, y1, y2 float64) string {
	return fmt.Sprintf("POLYGON((%[1]f %[3]f, %[1]f %[4]f, %[2]f %[4]f, %[2]f %[3]f, %[1]f %[3]f))", x1, x2, y1, y2)
}

func BoundToWkt(b orb.Bound) string {
	return PointsToWkt(b.Min[0], b.Max[0], b.Min[1], b.Max[1])
}

// 由范围和分辨率推导像素尺寸：width = round(extent.width / res)
func gridSize(ext orb.Bound, resX, resY float64) (w, h int) {
	w = int(math.Round((ext.Max[0] - ext.Min[0]) / resX))
	h = int(math.Round((ext.Max[1] - ext.Min[1]) / resY))
	return
}

// footprint的标准仿射变换（北朝上）
func footprintTransform(fp Footprint) [6]float64 {
	return [6]float64{fp.Extent.Min[0], fp.ResX, 0, fp.Extent.Max[1], 0, -fp.ResY}
}

// 窗口左上角偏移对应的仿射变换
func windowTransform(fp Footprint, x, y int) [6]float64 {
	return [6]float64{
		fp.Extent.Min[0] + float64(x)*fp.ResX, fp.ResX, 0,
		fp.Extent.Max[1] - float64(y)*fp.ResY, 0, -fp.ResY,
	}
}

// 由仿射变换和像素尺寸反推地理范围
func boundOfTransform(gt [6]float64, w, h int) orb.Bound {
	x0, y0 := gt[0], gt[3]
	x1 := gt[0] + gt[1]*float64(w)
	y1 := gt[3] + gt[5]*float64(h)
	return orb.Bound{
		Min: orb.Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max: orb.Point{math.Max(x0, x1), math.Max(y0, y1)},
	}
}

func boundsToBound(b [4]float64) orb.Bound {
	return orb.Bound{Min: orb.Point{b[0], b[1]}, Max: orb.Point{b[2], b[3]}}
}

// 将范围从一个坐标系转换到另一个，取转换后多边形的包络
func (g *GdalToolbox) transformBound(b orb.Bound, srid, tSrid int) (ret orb.Bound, err error) {
	if srid == tSrid {
		ret = b
		return
	}
	ref, err := g.getSridRef(srid)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrReprojection, err)
		return
	}
	tRef, err := g.getSridRef(tSrid)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrReprojection, err)
		return
	}
	geo, err := g.parseWKT(BoundToWkt(b), ref)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrReprojection, err)
		return
	}
	defer geo.Destroy()
	if err = geo.TransformTo(tRef); err != nil {
		err = fmt.Errorf("%w: %v", ErrReprojection, err)
		return
	}
	env := geo.Envelope()
	ret = orb.Bound{
		Min: orb.Point{env.MinX(), env.MinY()},
		Max: orb.Point{env.MaxX(), env.MaxY()},
	}
	return
}
