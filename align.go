package segprep

import (
	"fmt"
	"strconv"

	"github.com/wgdzlh/segprep/log"
	"github.com/wgdzlh/segprep/utils"

	gdal "github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

// 定位footprint对应的源栅格：Dir为单个栅格/VRT时整幅使用，为目录时按主文件名匹配
func resolveSourcePath(src SourceSpec, fp Footprint) (path string) {
	if utils.IsRasterFile(src.Dir) {
		return src.Dir
	}
	return utils.FindRasterByStem(src.Dir, fp.ID)
}

// 将任意源栅格裁剪、重投影、重采样到footprint坐标框架，未覆盖区域以nodata填充。
// 输出尺寸与仿射变换严格等于footprint。源与footprint完全不相交时返回ErrNoCoverage。
func (g *GdalToolbox) AlignSource(fp Footprint, src SourceSpec, out string) (layer RasterLayer, err error) {
	path := resolveSourcePath(src, fp)
	if path == "" {
		err = fmt.Errorf("%w: source %s has no raster for footprint %s", ErrNoCoverage, src.Name, fp.ID)
		return
	}
	sds, err := gdal.Open(path, gdal.RasterOnly())
	if err != nil {
		err = fmt.Errorf("open source %s: %w", path, err)
		return
	}
	defer sds.Close()

	srcSrid, err := g.sridOfProjection(sds.Projection())
	if err != nil {
		err = fmt.Errorf("%w: source %s: %v", ErrReprojection, path, err)
		return
	}
	// 覆盖检查在源坐标系下进行，避免对整幅源做无谓的warp
	wantExt, err := g.transformBound(fp.Extent, fp.Srid, srcSrid)
	if err != nil {
		return
	}
	srcBounds, err := sds.Bounds()
	if err != nil {
		err = fmt.Errorf("source %s bounds: %w", path, err)
		return
	}
	if !wantExt.Intersects(boundsToBound(srcBounds)) {
		err = fmt.Errorf("%w: source %s does not intersect footprint %s", ErrNoCoverage, src.Name, fp.ID)
		return
	}

	switches := []string{
		"-te", ftoa(fp.Extent.Min[0]), ftoa(fp.Extent.Min[1]), ftoa(fp.Extent.Max[0]), ftoa(fp.Extent.Max[1]),
		"-ts", strconv.Itoa(fp.Width), strconv.Itoa(fp.Height),
		"-t_srs", "epsg:" + strconv.Itoa(fp.Srid),
		"-r", string(src.Resample),
		"-dstnodata", ftoa(src.NoData),
		"-overwrite",
	}
	ods, err := gdal.Warp(out, []*Dataset{sds}, switches)
	if err != nil {
		log.Error(g.logTag+"warp failed", zap.String("source", path),
			zap.String("footprint", fp.ID), zap.Error(err))
		err = fmt.Errorf("%w: warp %s: %v", ErrReprojection, src.Name, err)
		return
	}
	defer ods.Close()
	st := ods.Structure()
	gt, err := ods.GeoTransform()
	if err != nil {
		return
	}
	layer = RasterLayer{
		Path:         out,
		Width:        st.SizeX,
		Height:       st.SizeY,
		Bands:        st.NBands,
		DataType:     st.DataType,
		GeoTransform: gt,
		NoData:       src.NoData,
		HasNoData:    true,
	}
	log.Info(g.logTag+"source aligned", zap.String("source", src.Name),
		zap.String("footprint", fp.ID), zap.Int("bands", layer.Bands),
		zap.String("resample", string(src.Resample)))
	return
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
