package segprep

import (
	"fmt"
	"path/filepath"

	"github.com/wgdzlh/segprep/log"

	gdal "github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

// 一个切片窗口。X/Y为左上角像素偏移，DataW/DataH为窗口内有效数据尺寸，
// drop策略下恒等于patch尺寸，pad策略下边缘窗口可能更小。
type patchWindow struct {
	X, Y         int
	DataW, DataH int
}

// 按行优先、从(0,0)起以stride步进枚举切片窗口。
// 完整窗口直接产出；越界窗口按策略丢弃（drop）或保留待补齐（pad）。
func enumeratePatches(width, height, pw, ph, stride int, policy EdgePolicy) (wins []patchWindow) {
	if width <= 0 || height <= 0 || pw <= 0 || ph <= 0 || stride <= 0 {
		return
	}
	for y := 0; y < height; y += stride {
		dh := ph
		if y+ph > height {
			if policy == EdgeDrop {
				break
			}
			dh = height - y
		}
		for x := 0; x < width; x += stride {
			dw := pw
			if x+pw > width {
				if policy == EdgeDrop {
					break
				}
				dw = width - x
			}
			wins = append(wins, patchWindow{X: x, Y: y, DataW: dw, DataH: dh})
		}
	}
	return
}

func allEqualU8(buf []uint8, v uint8) bool {
	for _, b := range buf {
		if b != v {
			return false
		}
	}
	return true
}

func allEqualF32(buf []float32, v float32) bool {
	for _, b := range buf {
		if b != v {
			return false
		}
	}
	return true
}

// 空样本判定：标签全为背景，或每个通道都整窗等于自身的nodata哨兵值。
// 未定义nodata的通道视为有数据。
func isEmptyPatch(lbl []uint8, background uint8, imgBufs [][]float32, nodata []float32, hasNodata []bool) bool {
	if allEqualU8(lbl, background) {
		return true
	}
	for bi, buf := range imgBufs {
		if !hasNodata[bi] || !allEqualF32(buf, nodata[bi]) {
			return false
		}
	}
	return true
}

// 将对齐后的(多通道影像, 标签)对切成固定尺寸的训练样本，影像与标签成对落盘。
// 每个窗口只在自身处理期间驻留内存。
func (g *GdalToolbox) SplitPatches(fp Footprint, stack, label RasterLayer, cfg *Config, imgDir, lblDir string) (ids []PatchID, err error) {
	if stack.Width != fp.Width || stack.Height != fp.Height ||
		label.Width != fp.Width || label.Height != fp.Height {
		err = fmt.Errorf("%w: stack/label dims disagree with footprint %s", ErrChannelMismatch, fp.ID)
		return
	}
	if ids, err = g.splitPatches(fp, stack, label, cfg, imgDir, lblDir); err != nil {
		return
	}
	log.Info(g.logTag+"patches split", zap.String("footprint", fp.ID), zap.Int("patches", len(ids)))
	return
}

func (g *GdalToolbox) splitPatches(fp Footprint, stack, label RasterLayer, cfg *Config, imgDir, lblDir string) (ids []PatchID, err error) {
	sds, err := gdal.Open(stack.Path, gdal.RasterOnly())
	if err != nil {
		err = fmt.Errorf("open stack %s: %w", stack.Path, err)
		return
	}
	defer sds.Close()
	lds, err := gdal.Open(label.Path, gdal.RasterOnly())
	if err != nil {
		err = fmt.Errorf("open label %s: %w", label.Path, err)
		return
	}
	defer lds.Close()

	var (
		pw, ph    = cfg.PatchWidth, cfg.PatchHeight
		wins      = enumeratePatches(fp.Width, fp.Height, pw, ph, cfg.Stride, cfg.EdgePolicy)
		imgBands  = sds.Bands()
		lblBand   = lds.Bands()[0]
		lblBuf    = make([]uint8, pw*ph)
		imgBufs   = make([][]float32, len(imgBands))
		nodata    = make([]float32, len(imgBands))
		hasNodata = make([]bool, len(imgBands))
		skipped   = 0
		byteStack = stack.DataType == gdal.Byte
	)
	// 每个波段沿用自身的nodata哨兵值（各源的配置可以不同）
	for bi, band := range imgBands {
		imgBufs[bi] = make([]float32, pw*ph)
		if nd, ok := band.NoData(); ok {
			nodata[bi] = float32(nd)
			hasNodata[bi] = true
		}
	}
	for _, win := range wins {
		// 标签窗口，pad区域以背景值填充
		if err = readWindowU8(lblBand, win, pw, ph, cfg.Background, lblBuf); err != nil {
			return
		}
		for bi, band := range imgBands {
			if err = readWindowF32(band, win, pw, ph, nodata[bi], imgBufs[bi]); err != nil {
				return
			}
		}
		if cfg.SkipEmpty && isEmptyPatch(lblBuf, cfg.Background, imgBufs, nodata, hasNodata) {
			skipped++
			continue
		}
		id := PatchID{Footprint: fp.ID, Row: win.Y, Col: win.X}
		imgOut := filepath.Join(imgDir, id.String()+".tif")
		lblOut := filepath.Join(lblDir, id.String()+".tif")
		if err = g.writeImagePatch(fp, win, imgBufs, pw, ph, byteStack, nodata, hasNodata, imgOut); err != nil {
			return
		}
		if err = g.writeLabelPatch(fp, win, label, lblBuf, pw, ph, lblOut); err != nil {
			return
		}
		ids = append(ids, id)
	}
	if skipped > 0 {
		log.Info(g.logTag+"empty patches skipped", zap.String("footprint", fp.ID), zap.Int("skipped", skipped))
	}
	return
}

// 读取一个窗口到pw×ph缓冲。有效区域外（pad补齐部分）预填fill值。
func readWindowU8(band gdal.Band, win patchWindow, pw, ph int, fill uint8, buf []uint8) (err error) {
	if win.DataW == pw && win.DataH == ph {
		return band.IO(gdal.IORead, win.X, win.Y, buf, pw, ph)
	}
	sub := make([]uint8, win.DataW*win.DataH)
	if err = band.IO(gdal.IORead, win.X, win.Y, sub, win.DataW, win.DataH); err != nil {
		return
	}
	for i := range buf {
		buf[i] = fill
	}
	for y := 0; y < win.DataH; y++ {
		copy(buf[y*pw:y*pw+win.DataW], sub[y*win.DataW:(y+1)*win.DataW])
	}
	return
}

func readWindowF32(band gdal.Band, win patchWindow, pw, ph int, fill float32, buf []float32) (err error) {
	if win.DataW == pw && win.DataH == ph {
		return band.IO(gdal.IORead, win.X, win.Y, buf, pw, ph)
	}
	sub := make([]float32, win.DataW*win.DataH)
	if err = band.IO(gdal.IORead, win.X, win.Y, sub, win.DataW, win.DataH); err != nil {
		return
	}
	for i := range buf {
		buf[i] = fill
	}
	for y := 0; y < win.DataH; y++ {
		copy(buf[y*pw:y*pw+win.DataW], sub[y*win.DataW:(y+1)*win.DataW])
	}
	return
}

func (g *GdalToolbox) writeImagePatch(fp Footprint, win patchWindow, bufs [][]float32, pw, ph int, asByte bool, nodata []float32, hasNodata []bool, out string) (err error) {
	dt := gdal.Float32
	if asByte {
		dt = gdal.Byte
	}
	pds, err := gdal.Create(gdal.GTiff, out, len(bufs), dt, pw, ph,
		gdal.CreationOption(GTIFF_COMPRESSION))
	if err != nil {
		err = fmt.Errorf("create patch %s: %w", out, err)
		return
	}
	defer pds.Close()
	if err = pds.SetGeoTransform(windowTransform(fp, win.X, win.Y)); err != nil {
		return
	}
	sr, err := gdal.NewSpatialRefFromEPSG(fp.Srid)
	if err != nil {
		return
	}
	defer sr.Close()
	if err = pds.SetSpatialRef(sr); err != nil {
		return
	}
	for bi, band := range pds.Bands() {
		if hasNodata[bi] {
			if err = band.SetNoData(float64(nodata[bi])); err != nil {
				return
			}
		}
		if err = band.IO(gdal.IOWrite, 0, 0, bufs[bi], pw, ph); err != nil {
			return
		}
	}
	return
}

func (g *GdalToolbox) writeLabelPatch(fp Footprint, win patchWindow, label RasterLayer, buf []uint8, pw, ph int, out string) (err error) {
	pds, err := gdal.Create(gdal.GTiff, out, 1, gdal.Byte, pw, ph,
		gdal.CreationOption(GTIFF_COMPRESSION))
	if err != nil {
		err = fmt.Errorf("create label patch %s: %w", out, err)
		return
	}
	defer pds.Close()
	if err = pds.SetGeoTransform(windowTransform(fp, win.X, win.Y)); err != nil {
		return
	}
	sr, err := gdal.NewSpatialRefFromEPSG(fp.Srid)
	if err != nil {
		return
	}
	defer sr.Close()
	if err = pds.SetSpatialRef(sr); err != nil {
		return
	}
	band := pds.Bands()[0]
	if label.HasNoData {
		if err = band.SetNoData(label.NoData); err != nil {
			return
		}
	}
	return band.IO(gdal.IOWrite, 0, 0, buf, pw, ph)
}
