package segprep

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wgdzlh/segprep/log"
	"github.com/wgdzlh/segprep/utils"

	gdal "github.com/airbusgeo/godal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	stageLabels  = "labels"
	stageAlign   = "align"
	stageStack   = "stack"
	stagePatches = "patches"
)

type Pipeline struct {
	cfg    *Config
	g      *GdalToolbox
	logTag string
}

func NewPipeline(cfg *Config) (p *Pipeline, err error) {
	if err = cfg.Validate(); err != nil {
		return
	}
	p = &Pipeline{
		cfg:    cfg,
		g:      NewGdalToolbox(filepath.Join(cfg.OutDir, DIR_SCRATCH)),
		logTag: "Pipeline:",
	}
	return
}

func (p *Pipeline) ensureOutDirs() (err error) {
	for _, d := range []string{
		filepath.Join(p.cfg.OutDir, DIR_FOOTPRINTS),
		filepath.Join(p.cfg.OutDir, DIR_PATCH_IMAGES),
		filepath.Join(p.cfg.OutDir, DIR_PATCH_LABELS),
		filepath.Join(p.cfg.OutDir, DIR_SCRATCH),
	} {
		if err = os.MkdirAll(d, os.ModePerm); err != nil {
			return
		}
	}
	return
}

// 执行完整流水线：footprint级并行展开，单footprint内各阶段严格串行，
// 全部worker结束后统一写清单。单footprint失败只记录，不中断整批。
func (p *Pipeline) Run(ctx context.Context) (rep *RunReport, err error) {
	fps, err := p.g.BuildFootprints(p.cfg.LodDir)
	if err != nil {
		return
	}
	if err = p.ensureOutDirs(); err != nil {
		return
	}
	defer os.RemoveAll(filepath.Join(p.cfg.OutDir, DIR_SCRATCH))

	rep = &RunReport{Footprints: len(fps)}
	var (
		mu sync.Mutex
		eg errgroup.Group
	)
	eg.SetLimit(p.cfg.Workers)
	for _, fp := range fps {
		// 取消后不再派发新的footprint任务
		if ctx.Err() != nil {
			break
		}
		fp := fp
		eg.Go(func() error {
			ids, stage, e := p.processFootprint(ctx, fp)
			mu.Lock()
			defer mu.Unlock()
			if e != nil {
				rep.Failures = append(rep.Failures, FootprintFailure{ID: fp.ID, Stage: stage, Err: e})
				log.Warn(p.logTag+"footprint failed", zap.String("footprint", fp.ID),
					zap.String("stage", stage), zap.Error(e))
				return nil
			}
			rep.Patches = append(rep.Patches, ids...)
			return nil
		})
	}
	_ = eg.Wait()
	if err = ctx.Err(); err != nil {
		return
	}
	if rep.Train, rep.Val, err = WriteManifests(p.cfg.OutDir, rep.Patches, p.cfg.SplitFraction, p.cfg.SplitSeed); err != nil {
		return
	}
	log.Info(p.logTag+"run finished", zap.Int("footprints", rep.Footprints),
		zap.Int("patches", len(rep.Patches)), zap.Int("failed", len(rep.Failures)),
		zap.Int("train", rep.Train), zap.Int("val", rep.Val))
	return
}

// 单个footprint的完整处理：标签→对齐→堆叠→切片，全部在独立scratch目录内进行，
// 成功后才整体发布。失败的footprint不会留下半成品进入清单。
func (p *Pipeline) processFootprint(ctx context.Context, fp Footprint) (ids []PatchID, stage string, err error) {
	scratch, err := p.g.newScratchDir()
	if err != nil {
		stage = stageLabels
		return
	}
	defer os.RemoveAll(scratch)

	stage = stageLabels
	polys, err := p.g.ReadLabelPolygons(p.cfg.Geopackage, p.cfg.Attribute, fp.Extent, fp.Srid)
	if err != nil {
		return
	}
	label, err := p.g.RasterizeLabels(fp, polys, p.cfg, filepath.Join(scratch, LABEL_TIF))
	if err != nil {
		return
	}
	if err = ctx.Err(); err != nil {
		return
	}

	stage = stageAlign
	layers := make([]RasterLayer, 0, len(p.cfg.Sources))
	var layer RasterLayer
	for _, src := range p.cfg.Sources {
		out := filepath.Join(scratch, fmt.Sprintf(ALIGNED_TIF_TMPL, src.Name))
		if layer, err = p.g.AlignSource(fp, src, out); err != nil {
			return
		}
		layers = append(layers, layer)
		if err = ctx.Err(); err != nil {
			return
		}
	}

	stage = stageStack
	stack, err := p.g.StackChannels(fp, layers, filepath.Join(scratch, IMAGE_TIF))
	if err != nil {
		return
	}
	if err = ctx.Err(); err != nil {
		return
	}

	stage = stagePatches
	imgDir := filepath.Join(scratch, "img")
	lblDir := filepath.Join(scratch, "lbl")
	if err = os.MkdirAll(imgDir, os.ModePerm); err != nil {
		return
	}
	if err = os.MkdirAll(lblDir, os.ModePerm); err != nil {
		return
	}
	if ids, err = p.g.SplitPatches(fp, stack, label, p.cfg, imgDir, lblDir); err != nil {
		return
	}

	err = p.publishFootprint(fp, scratch, imgDir, lblDir, ids)
	return
}

// scratch目录与OutDir同盘，rename为原子移动。先发布footprint级产物再发布切片对。
func (p *Pipeline) publishFootprint(fp Footprint, scratch, imgDir, lblDir string, ids []PatchID) (err error) {
	fpDir := filepath.Join(p.cfg.OutDir, DIR_FOOTPRINTS, fp.ID)
	if err = os.MkdirAll(fpDir, os.ModePerm); err != nil {
		return
	}
	for _, f := range []string{IMAGE_TIF, LABEL_TIF} {
		if err = os.Rename(filepath.Join(scratch, f), filepath.Join(fpDir, f)); err != nil {
			return
		}
	}
	for _, id := range ids {
		name := id.String() + ".tif"
		if err = os.Rename(filepath.Join(imgDir, name),
			filepath.Join(p.cfg.OutDir, DIR_PATCH_IMAGES, name)); err != nil {
			return
		}
		if err = os.Rename(filepath.Join(lblDir, name),
			filepath.Join(p.cfg.OutDir, DIR_PATCH_LABELS, name)); err != nil {
			return
		}
	}
	return
}

// 以下为各阶段的独立入口，供分步执行（等价于原流程的按步跳过）。

// 仅生成各footprint的标签栅格
func (p *Pipeline) RunLabels(ctx context.Context) (fails []FootprintFailure, err error) {
	return p.runPerFootprint(ctx, stageLabels, func(fp Footprint, scratch string) error {
		polys, e := p.g.ReadLabelPolygons(p.cfg.Geopackage, p.cfg.Attribute, fp.Extent, fp.Srid)
		if e != nil {
			return e
		}
		if _, e = p.g.RasterizeLabels(fp, polys, p.cfg, filepath.Join(scratch, LABEL_TIF)); e != nil {
			return e
		}
		return p.publishFile(fp, scratch, LABEL_TIF)
	})
}

// 仅对齐并堆叠各footprint的影像通道
func (p *Pipeline) RunAlign(ctx context.Context) (fails []FootprintFailure, err error) {
	return p.runPerFootprint(ctx, stageAlign, func(fp Footprint, scratch string) error {
		layers := make([]RasterLayer, 0, len(p.cfg.Sources))
		for _, src := range p.cfg.Sources {
			out := filepath.Join(scratch, fmt.Sprintf(ALIGNED_TIF_TMPL, src.Name))
			layer, e := p.g.AlignSource(fp, src, out)
			if e != nil {
				return e
			}
			layers = append(layers, layer)
		}
		if _, e := p.g.StackChannels(fp, layers, filepath.Join(scratch, IMAGE_TIF)); e != nil {
			return e
		}
		return p.publishFile(fp, scratch, IMAGE_TIF)
	})
}

// 仅切片：从已发布的footprint产物读取影像与标签
func (p *Pipeline) RunPatches(ctx context.Context) (ids []PatchID, fails []FootprintFailure, err error) {
	var mu sync.Mutex
	fails, err = p.runPerFootprint(ctx, stagePatches, func(fp Footprint, scratch string) error {
		fpDir := filepath.Join(p.cfg.OutDir, DIR_FOOTPRINTS, fp.ID)
		stack, e := p.g.readRasterLayer(filepath.Join(fpDir, IMAGE_TIF))
		if e != nil {
			return e
		}
		label, e := p.g.readRasterLayer(filepath.Join(fpDir, LABEL_TIF))
		if e != nil {
			return e
		}
		imgDir := filepath.Join(scratch, "img")
		lblDir := filepath.Join(scratch, "lbl")
		if e = os.MkdirAll(imgDir, os.ModePerm); e != nil {
			return e
		}
		if e = os.MkdirAll(lblDir, os.ModePerm); e != nil {
			return e
		}
		pids, e := p.g.SplitPatches(fp, stack, label, p.cfg, imgDir, lblDir)
		if e != nil {
			return e
		}
		for _, id := range pids {
			name := id.String() + ".tif"
			if e = os.Rename(filepath.Join(imgDir, name),
				filepath.Join(p.cfg.OutDir, DIR_PATCH_IMAGES, name)); e != nil {
				return e
			}
			if e = os.Rename(filepath.Join(lblDir, name),
				filepath.Join(p.cfg.OutDir, DIR_PATCH_LABELS, name)); e != nil {
				return e
			}
		}
		mu.Lock()
		ids = append(ids, pids...)
		mu.Unlock()
		return nil
	})
	return
}

// 仅写清单：扫描已发布的切片目录重建标识集合
func (p *Pipeline) RunManifests() (nTrain, nVal int, err error) {
	files, err := utils.ListRasterFiles(filepath.Join(p.cfg.OutDir, DIR_PATCH_IMAGES))
	if err != nil {
		return
	}
	ids := make([]PatchID, 0, len(files))
	for _, f := range files {
		if id, ok := ParsePatchID(utils.GetFilenameWithoutExt(f)); ok {
			ids = append(ids, id)
		}
	}
	return WriteManifests(p.cfg.OutDir, ids, p.cfg.SplitFraction, p.cfg.SplitSeed)
}

// 仅统计：对已发布的切片影像计算通道统计量
func (p *Pipeline) RunStats(divideBy float64) (StatsReport, error) {
	return p.g.ComputeRasterStats(filepath.Join(p.cfg.OutDir, DIR_PATCH_IMAGES), divideBy)
}

func (p *Pipeline) runPerFootprint(ctx context.Context, stage string, fn func(fp Footprint, scratch string) error) (fails []FootprintFailure, err error) {
	fps, err := p.g.BuildFootprints(p.cfg.LodDir)
	if err != nil {
		return
	}
	if err = p.ensureOutDirs(); err != nil {
		return
	}
	defer os.RemoveAll(filepath.Join(p.cfg.OutDir, DIR_SCRATCH))
	var (
		mu sync.Mutex
		eg errgroup.Group
	)
	eg.SetLimit(p.cfg.Workers)
	for _, fp := range fps {
		if ctx.Err() != nil {
			break
		}
		fp := fp
		eg.Go(func() error {
			scratch, e := p.g.newScratchDir()
			if e == nil {
				defer os.RemoveAll(scratch)
				e = fn(fp, scratch)
			}
			if e != nil {
				mu.Lock()
				fails = append(fails, FootprintFailure{ID: fp.ID, Stage: stage, Err: e})
				mu.Unlock()
				log.Warn(p.logTag+"footprint failed", zap.String("footprint", fp.ID),
					zap.String("stage", stage), zap.Error(e))
			}
			return nil
		})
	}
	_ = eg.Wait()
	err = ctx.Err()
	return
}

func (p *Pipeline) publishFile(fp Footprint, scratch, name string) (err error) {
	fpDir := filepath.Join(p.cfg.OutDir, DIR_FOOTPRINTS, fp.ID)
	if err = os.MkdirAll(fpDir, os.ModePerm); err != nil {
		return
	}
	return os.Rename(filepath.Join(scratch, name), filepath.Join(fpDir, name))
}

// 从已落盘的栅格重建图层元信息
func (g *GdalToolbox) readRasterLayer(path string) (layer RasterLayer, err error) {
	sds, err := gdal.Open(path, gdal.RasterOnly())
	if err != nil {
		err = fmt.Errorf("open raster %s: %w", path, err)
		return
	}
	defer sds.Close()
	st := sds.Structure()
	gt, err := sds.GeoTransform()
	if err != nil {
		return
	}
	layer = RasterLayer{
		Path:         path,
		Width:        st.SizeX,
		Height:       st.SizeY,
		Bands:        st.NBands,
		DataType:     st.DataType,
		GeoTransform: gt,
	}
	if nd, ok := sds.Bands()[0].NoData(); ok {
		layer.NoData = nd
		layer.HasNoData = true
	}
	return
}
