package segprep

import (
	"fmt"

	"github.com/wgdzlh/segprep/log"

	gdal "github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

// 全部通道均为Byte时保持Byte，否则统一提升为Float32（偏差数据为连续值）
func stackDataType(layers []RasterLayer) gdal.DataType {
	for _, l := range layers {
		if l.DataType != gdal.Byte {
			return gdal.Float32
		}
	}
	return gdal.Byte
}

// 将已对齐的各源按配置次序拼成一个多通道栅格。通道次序在整个运行中固定，
// 同一通道下标在所有footprint中含义一致。任一输入尺寸与footprint不符即报错。
func (g *GdalToolbox) StackChannels(fp Footprint, layers []RasterLayer, out string) (layer RasterLayer, err error) {
	if len(layers) == 0 {
		err = fmt.Errorf("%w: no channels to stack for %s", ErrChannelMismatch, fp.ID)
		return
	}
	total := 0
	for _, l := range layers {
		if l.Width != fp.Width || l.Height != fp.Height {
			err = fmt.Errorf("%w: %s is %dx%d, footprint %s wants %dx%d",
				ErrChannelMismatch, l.Path, l.Width, l.Height, fp.ID, fp.Width, fp.Height)
			return
		}
		total += l.Bands
	}
	dt := stackDataType(layers)
	ods, err := gdal.Create(gdal.GTiff, out, total, dt, fp.Width, fp.Height,
		gdal.CreationOption(GTIFF_COMPRESSION, "BIGTIFF=IF_SAFER"))
	if err != nil {
		err = fmt.Errorf("create stack raster: %w", err)
		return
	}
	defer ods.Close()
	gt := footprintTransform(fp)
	if err = ods.SetGeoTransform(gt); err != nil {
		return
	}
	sr, err := gdal.NewSpatialRefFromEPSG(fp.Srid)
	if err != nil {
		err = fmt.Errorf("%w: epsg %d: %v", ErrReprojection, fp.Srid, err)
		return
	}
	defer sr.Close()
	if err = ods.SetSpatialRef(sr); err != nil {
		return
	}

	outBands := ods.Bands()
	idx := 0
	for _, l := range layers {
		if err = g.copyLayerBands(l, outBands[idx:idx+l.Bands], fp, dt); err != nil {
			return
		}
		idx += l.Bands
	}

	layer = RasterLayer{
		Path:         out,
		Width:        fp.Width,
		Height:       fp.Height,
		Bands:        total,
		DataType:     dt,
		GeoTransform: gt,
		NoData:       layers[0].NoData,
		HasNoData:    layers[0].HasNoData,
	}
	log.Info(g.logTag+"channels stacked", zap.String("footprint", fp.ID),
		zap.Int("bands", total), zap.String("out", out))
	return
}

// 按条带逐波段拷贝，控制内存占用；GDAL在读写时自动完成类型转换
func (g *GdalToolbox) copyLayerBands(l RasterLayer, dst []gdal.Band, fp Footprint, dt gdal.DataType) (err error) {
	sds, err := gdal.Open(l.Path, gdal.RasterOnly())
	if err != nil {
		err = fmt.Errorf("open aligned layer %s: %w", l.Path, err)
		return
	}
	defer sds.Close()
	srcBands := sds.Bands()
	if len(srcBands) != len(dst) {
		err = fmt.Errorf("%w: %s band count changed", ErrChannelMismatch, l.Path)
		return
	}
	var (
		bufB []uint8
		bufF []float32
	)
	if dt == gdal.Byte {
		bufB = make([]uint8, fp.Width*CopyStripRows)
	} else {
		bufF = make([]float32, fp.Width*CopyStripRows)
	}
	for bi := range srcBands {
		if l.HasNoData {
			if err = dst[bi].SetNoData(l.NoData); err != nil {
				return
			}
		}
		for y := 0; y < fp.Height; y += CopyStripRows {
			rows := CopyStripRows
			if y+rows > fp.Height {
				rows = fp.Height - y
			}
			if dt == gdal.Byte {
				buf := bufB[:fp.Width*rows]
				if err = srcBands[bi].IO(gdal.IORead, 0, y, buf, fp.Width, rows); err != nil {
					return
				}
				if err = dst[bi].IO(gdal.IOWrite, 0, y, buf, fp.Width, rows); err != nil {
					return
				}
			} else {
				buf := bufF[:fp.Width*rows]
				if err = srcBands[bi].IO(gdal.IORead, 0, y, buf, fp.Width, rows); err != nil {
					return
				}
				if err = dst[bi].IO(gdal.IOWrite, 0, y, buf, fp.Width, rows); err != nil {
					return
				}
			}
		}
	}
	return
}
