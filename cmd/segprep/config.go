package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/wgdzlh/segprep"
)

// 从ini配置构建流水线配置，channel_order的排列决定全局通道次序
func loadConfig(path string) (cfg *segprep.Config, err error) {
	v := viper.New()
	// fraction显式为0时全部进验证集，未配置时由Validate取默认值
	v.SetDefault("split.fraction", -1.0)
	v.SetConfigFile(path)
	if strings.HasSuffix(path, ".ini") {
		v.SetConfigType("ini")
	}
	if err = v.ReadInConfig(); err != nil {
		err = fmt.Errorf("read config %s: %w", path, err)
		return
	}
	cfg = &segprep.Config{
		LodDir:        v.GetString("dataset.lod_dir"),
		OutDir:        v.GetString("dataset.out_dir"),
		Geopackage:    v.GetString("dataset.geopackage"),
		Attribute:     v.GetString("dataset.attribute"),
		Background:    uint8(v.GetUint("dataset.background_value")),
		Ignore:        uint8(v.GetUint("dataset.ignore_value")),
		UnknownBorder: v.GetFloat64("dataset.unknown_border"),
		Overlap:       segprep.OverlapPriority(v.GetString("dataset.overlap_priority")),
		PatchWidth:    v.GetInt("patch.patch_width"),
		PatchHeight:   v.GetInt("patch.patch_height"),
		Stride:        v.GetInt("patch.stride"),
		EdgePolicy:    segprep.EdgePolicy(v.GetString("patch.edge_policy")),
		SkipEmpty:     v.GetBool("patch.skip_empty"),
		SplitFraction: v.GetFloat64("split.fraction"),
		SplitSeed:     v.GetInt64("split.seed"),
		Workers:       v.GetInt("run.workers"),
	}
	for _, name := range strings.Split(v.GetString("dataset.channel_order"), ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		sec := "source." + name
		cfg.Sources = append(cfg.Sources, segprep.SourceSpec{
			Name:     name,
			Dir:      v.GetString(sec + ".dir"),
			Resample: segprep.ResampleMethod(v.GetString(sec + ".resample")),
			NoData:   v.GetFloat64(sec + ".nodata"),
		})
	}
	return
}
