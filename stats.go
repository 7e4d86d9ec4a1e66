package segprep

import (
	"fmt"
	"math"

	"github.com/wgdzlh/segprep/log"
	"github.com/wgdzlh/segprep/utils"

	gdal "github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

// 单通道统计量
type ChannelStats struct {
	Min  float64
	Max  float64
	Mean float64
	Std  float64
}

type FileStats struct {
	Path  string
	Bands []ChannelStats
}

// 数据集级汇总：各文件统计量的极值与均值（用于归一化参数选择）
type StatsReport struct {
	Files   []FileStats
	MaxMax  float64
	MinMin  float64
	MaxMean float64
	MaxStd  float64
	AvgMin  float64
	AvgMax  float64
	AvgMean float64
	AvgStd  float64
}

// Welford流式统计，按条带读取时逐段累积
type statsAcc struct {
	n    int64
	min  float64
	max  float64
	mean float64
	m2   float64
}

func newStatsAcc() statsAcc {
	return statsAcc{min: math.Inf(1), max: math.Inf(-1)}
}

func (a *statsAcc) add(v float64) {
	a.n++
	if v < a.min {
		a.min = v
	}
	if v > a.max {
		a.max = v
	}
	d := v - a.mean
	a.mean += d / float64(a.n)
	a.m2 += d * (v - a.mean)
}

func (a *statsAcc) stats() ChannelStats {
	s := ChannelStats{Min: a.min, Max: a.max, Mean: a.mean}
	if a.n > 0 {
		s.Std = math.Sqrt(a.m2 / float64(a.n))
	}
	return s
}

// 逐文件计算各通道的min/max/mean/std，divideBy用于统计前的整体缩放（如16bit转换）
func (g *GdalToolbox) ComputeRasterStats(dir string, divideBy float64) (rep StatsReport, err error) {
	if divideBy == 0 {
		divideBy = 1
	}
	files, err := utils.ListRasterFiles(dir)
	if err != nil {
		return
	}
	rep.MinMin = math.Inf(1)
	rep.MaxMax = math.Inf(-1)
	rep.MaxMean = math.Inf(-1)
	rep.MaxStd = math.Inf(-1)
	var fs FileStats
	for _, f := range files {
		if fs, err = g.fileStats(f, divideBy); err != nil {
			log.Warn(g.logTag+"stats failed for file", zap.String("file", f), zap.Error(err))
			err = nil
			continue
		}
		rep.Files = append(rep.Files, fs)
		for _, b := range fs.Bands {
			rep.MinMin = math.Min(rep.MinMin, b.Min)
			rep.MaxMax = math.Max(rep.MaxMax, b.Max)
			rep.MaxMean = math.Max(rep.MaxMean, b.Mean)
			rep.MaxStd = math.Max(rep.MaxStd, b.Std)
			rep.AvgMin += b.Min
			rep.AvgMax += b.Max
			rep.AvgMean += b.Mean
			rep.AvgStd += b.Std
		}
	}
	var total int
	for _, fs := range rep.Files {
		total += len(fs.Bands)
	}
	if total == 0 {
		err = fmt.Errorf("%w: no readable rasters in %s", ErrEmptyDataset, dir)
		return
	}
	rep.AvgMin /= float64(total)
	rep.AvgMax /= float64(total)
	rep.AvgMean /= float64(total)
	rep.AvgStd /= float64(total)
	log.Info(g.logTag+"raster stats computed", zap.String("dir", dir),
		zap.Int("files", len(rep.Files)), zap.Float64("maxMax", rep.MaxMax),
		zap.Float64("minMin", rep.MinMin))
	return
}

func (g *GdalToolbox) fileStats(path string, divideBy float64) (fs FileStats, err error) {
	sds, err := gdal.Open(path, gdal.RasterOnly())
	if err != nil {
		return
	}
	defer sds.Close()
	st := sds.Structure()
	fs.Path = path
	buf := make([]float64, st.SizeX*CopyStripRows)
	for _, band := range sds.Bands() {
		acc := newStatsAcc()
		for y := 0; y < st.SizeY; y += CopyStripRows {
			rows := CopyStripRows
			if y+rows > st.SizeY {
				rows = st.SizeY - y
			}
			strip := buf[:st.SizeX*rows]
			if err = band.IO(gdal.IORead, 0, y, strip, st.SizeX, rows); err != nil {
				return
			}
			for _, v := range strip {
				acc.add(v / divideBy)
			}
		}
		fs.Bands = append(fs.Bands, acc.stats())
	}
	return
}
