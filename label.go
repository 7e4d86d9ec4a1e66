package segprep

import (
	"fmt"
	"math"
	"sort"

	"github.com/wgdzlh/segprep/log"

	gdal "github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

// 将图斑按基准范围烧录为单通道类别栅格。未覆盖像素保持背景值；
// 相交图斑为空时输出全背景栅格，不算错误。
func (g *GdalToolbox) RasterizeLabels(fp Footprint, polys []LabelPolygon, cfg *Config, out string) (layer RasterLayer, err error) {
	ds, err := gdal.Create(gdal.GTiff, out, 1, gdal.Byte, fp.Width, fp.Height,
		gdal.CreationOption(GTIFF_COMPRESSION))
	if err != nil {
		err = fmt.Errorf("create label raster: %w", err)
		return
	}
	defer ds.Close()
	gt := footprintTransform(fp)
	if err = ds.SetGeoTransform(gt); err != nil {
		return
	}
	sr, err := gdal.NewSpatialRefFromEPSG(fp.Srid)
	if err != nil {
		err = fmt.Errorf("%w: epsg %d: %v", ErrReprojection, fp.Srid, err)
		return
	}
	defer sr.Close()
	if err = ds.SetSpatialRef(sr); err != nil {
		return
	}
	band := ds.Bands()[0]
	if err = band.Fill(float64(cfg.Background), 0); err != nil {
		return
	}
	if err = band.SetNoData(float64(cfg.Background)); err != nil {
		return
	}

	ordered := orderPolygons(polys, cfg.Overlap)
	var geom *Geometry
	for _, p := range ordered {
		if geom, err = gdal.NewGeometryFromWKB(p.Geom, sr); err != nil {
			err = fmt.Errorf("%w: fid %d: %v", ErrGeometry, p.FID, err)
			return
		}
		err = ds.RasterizeGeometry(geom, gdal.Values(float64(p.Class)))
		geom.Close()
		if err != nil {
			err = fmt.Errorf("%w: fid %d: %v", ErrGeometry, p.FID, err)
			return
		}
	}

	if cfg.UnknownBorder > 0 && len(ordered) > 0 {
		if err = g.carveUnknownBorder(band, fp, cfg); err != nil {
			return
		}
	}

	layer = RasterLayer{
		Path:         out,
		Width:        fp.Width,
		Height:       fp.Height,
		Bands:        1,
		DataType:     gdal.Byte,
		GeoTransform: gt,
		NoData:       float64(cfg.Background),
		HasNoData:    true,
	}
	log.Info(g.logTag+"labels rasterized", zap.String("footprint", fp.ID),
		zap.Int("polygons", len(ordered)), zap.String("out", out))
	return
}

// 类别交界两侧的像素不可靠，按配置宽度置为未知值
func (g *GdalToolbox) carveUnknownBorder(band gdal.Band, fp Footprint, cfg *Config) (err error) {
	buf := make([]uint8, fp.Width*fp.Height)
	if err = band.IO(gdal.IORead, 0, 0, buf, fp.Width, fp.Height); err != nil {
		return
	}
	borderPx := borderWidthPx(cfg.UnknownBorder, fp.ResX, fp.ResY)
	carved := carveBorder(buf, fp.Width, fp.Height, borderPx, cfg.Ignore)
	if carved == 0 {
		return
	}
	log.Info(g.logTag+"unknown border carved", zap.String("footprint", fp.ID),
		zap.Float64("borderPx", borderPx), zap.Int("pixels", carved))
	return band.IO(gdal.IOWrite, 0, 0, buf, fp.Width, fp.Height)
}

// 地图单位的边界宽度换算为像素（取两轴分辨率均值）
func borderWidthPx(border, resX, resY float64) float64 {
	return border / ((resX + resY) / 2)
}

// 烧录优先级排序。area策略按面积降序（小图斑后烧录故覆盖大图斑）；
// order策略维持输入次序，后者覆盖前者。均为稳定排序，保证结果可复现。
func orderPolygons(polys []LabelPolygon, prio OverlapPriority) []LabelPolygon {
	ordered := make([]LabelPolygon, len(polys))
	copy(ordered, polys)
	if prio == OverlapArea {
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Area > ordered[j].Area
		})
	}
	return ordered
}

// 就地将距类别边界borderPx以内的像素置为ignore，返回改写像素数
func carveBorder(labels []uint8, w, h int, borderPx float64, ignore uint8) (carved int) {
	if borderPx <= 0 {
		return
	}
	mask := boundaryMask(labels, w, h)
	dist := chamferDistance(mask, w, h)
	for i := range labels {
		if dist[i] < borderPx && labels[i] != ignore {
			labels[i] = ignore
			carved++
		}
	}
	return
}

// 与任一4邻域像素类别不同的像素即边界（边缘按复制填充处理）
func boundaryMask(labels []uint8, w, h int) []bool {
	mask := make([]bool, len(labels))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			v := labels[i]
			if x > 0 && labels[i-1] != v ||
				x < w-1 && labels[i+1] != v ||
				y > 0 && labels[i-w] != v ||
				y < h-1 && labels[i+w] != v {
				mask[i] = true
			}
		}
	}
	return mask
}

// 两遍chamfer距离变换（正交1、对角√2），近似欧氏距离
func chamferDistance(mask []bool, w, h int) []float64 {
	const diag = math.Sqrt2
	dist := make([]float64, len(mask))
	for i, m := range mask {
		if m {
			dist[i] = 0
		} else {
			dist[i] = math.Inf(1)
		}
	}
	// 正向扫描：左上到右下
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			d := dist[i]
			if x > 0 && dist[i-1]+1 < d {
				d = dist[i-1] + 1
			}
			if y > 0 {
				if dist[i-w]+1 < d {
					d = dist[i-w] + 1
				}
				if x > 0 && dist[i-w-1]+diag < d {
					d = dist[i-w-1] + diag
				}
				if x < w-1 && dist[i-w+1]+diag < d {
					d = dist[i-w+1] + diag
				}
			}
			dist[i] = d
		}
	}
	// 反向扫描：右下到左上
	for y := h - 1; y >= 0; y-- {
		for x := w - 1; x >= 0; x-- {
			i := y*w + x
			d := dist[i]
			if x < w-1 && dist[i+1]+1 < d {
				d = dist[i+1] + 1
			}
			if y < h-1 {
				if dist[i+w]+1 < d {
					d = dist[i+w] + 1
				}
				if x < w-1 && dist[i+w+1]+diag < d {
					d = dist[i+w+1] + diag
				}
				if x > 0 && dist[i+w-1]+diag < d {
					d = dist[i+w-1] + diag
				}
			}
			dist[i] = d
		}
	}
	return dist
}
