package segprep

import (
	"fmt"

	"github.com/wgdzlh/segprep/log"
	"github.com/wgdzlh/segprep/utils"

	gdal "github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

// 扫描lod影像目录，构建基准范围注册表。基准影像自身的地理参考是footprint的唯一权威来源。
// 任一影像打不开或范围退化都视为输入数据损坏，整批终止。
func (g *GdalToolbox) BuildFootprints(lodDir string) (fps []Footprint, err error) {
	files, err := utils.ListRasterFiles(lodDir)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidFootprint, err)
		return
	}
	if len(files) == 0 {
		err = fmt.Errorf("%w: no reference rasters in %s", ErrInvalidFootprint, lodDir)
		return
	}
	fps = make([]Footprint, 0, len(files))
	var fp Footprint
	for _, f := range files {
		if fp, err = g.readFootprint(f); err != nil {
			log.Error(g.logTag+"bad footprint descriptor", zap.String("file", f), zap.Error(err))
			return
		}
		fps = append(fps, fp)
	}
	log.Info(g.logTag+"footprint registry built", zap.Int("count", len(fps)))
	return
}

func (g *GdalToolbox) readFootprint(path string) (fp Footprint, err error) {
	sds, err := gdal.Open(path, gdal.RasterOnly())
	if err != nil {
		err = fmt.Errorf("%w: open %s: %v", ErrInvalidFootprint, path, err)
		return
	}
	defer sds.Close()
	st := sds.Structure()
	gt, err := sds.GeoTransform()
	if err != nil {
		err = fmt.Errorf("%w: %s has no geotransform: %v", ErrInvalidFootprint, path, err)
		return
	}
	srid, err := g.sridOfProjection(sds.Projection())
	if err != nil {
		err = fmt.Errorf("%w: %s: %v", ErrInvalidFootprint, path, err)
		return
	}
	fp = Footprint{
		ID:     utils.GetFilenameWithoutExt(path),
		Path:   path,
		Extent: boundOfTransform(gt, st.SizeX, st.SizeY),
		ResX:   gt[1],
		ResY:   -gt[5],
		Srid:   srid,
		Width:  st.SizeX,
		Height: st.SizeY,
	}
	if err = validateFootprint(fp, gt); err != nil {
		return
	}
	log.Info(g.logTag+"footprint registered", zap.String("id", fp.ID),
		zap.Int("width", fp.Width), zap.Int("height", fp.Height),
		zap.Float64("resX", fp.ResX), zap.Float64("resY", fp.ResY), zap.Int("srid", fp.Srid))
	return
}

func validateFootprint(fp Footprint, gt [6]float64) error {
	// 旋转/错切的仿射变换无法用范围+分辨率描述，拒绝
	if gt[2] != 0 || gt[4] != 0 {
		return fmt.Errorf("%w: %s has rotated geotransform", ErrInvalidFootprint, fp.ID)
	}
	if fp.Width <= 0 || fp.Height <= 0 {
		return fmt.Errorf("%w: %s has zero-area pixel grid", ErrInvalidFootprint, fp.ID)
	}
	if fp.ResX <= 0 || fp.ResY <= 0 {
		return fmt.Errorf("%w: %s has non-positive resolution", ErrInvalidFootprint, fp.ID)
	}
	if fp.Extent.Max[0] <= fp.Extent.Min[0] || fp.Extent.Max[1] <= fp.Extent.Min[1] {
		return fmt.Errorf("%w: %s has degenerate extent", ErrInvalidFootprint, fp.ID)
	}
	return nil
}
