package segprep

import (
	"fmt"

	gdal "github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
)

type GdalGeo = []byte

type EdgePolicy string

const (
	EdgeDrop EdgePolicy = "drop" // 不足整块的边缘窗口丢弃
	EdgePad  EdgePolicy = "pad"  // 以nodata/背景值补齐到整块
)

type OverlapPriority string

const (
	OverlapArea  OverlapPriority = "area"  // 面积小的图斑后烧录（覆盖大图斑）
	OverlapOrder OverlapPriority = "order" // 按输入次序，后者覆盖前者
)

type ResampleMethod string

const (
	ResampleNearest  ResampleMethod = "near"
	ResampleBilinear ResampleMethod = "bilinear"
	ResampleCubic    ResampleMethod = "cubic"
)

// 基准范围：每张lod影像定义一个，所有通道与标签都必须对齐到它
type Footprint struct {
	ID     string    // lod影像主文件名
	Path   string    // lod影像路径
	Extent orb.Bound // 地理范围（目标坐标系下）
	ResX   float64
	ResY   float64
	Srid   int
	Width  int
	Height int
}

// 对齐后的单个栅格图层元信息（像素数据留在文件中，按窗口读取）
type RasterLayer struct {
	Path         string
	Width        int
	Height       int
	Bands        int
	DataType     gdal.DataType
	GeoTransform [6]float64
	NoData       float64
	HasNoData    bool
}

// 标签矢量图斑
type LabelPolygon struct {
	Geom  GdalGeo // WKB（已转换到基准坐标系）
	Class uint8
	Area  float64
	FID   int64
}

// 通道源配置，Sources的排列即全局通道次序
type SourceSpec struct {
	Name     string
	Dir      string // 目录（按footprint主名匹配）或单个栅格/VRT路径
	Resample ResampleMethod
	NoData   float64
}

type Config struct {
	LodDir     string
	OutDir     string
	Geopackage string // 标签矢量源（gpkg或shp）
	Attribute  string // 类别字段名

	Background    uint8
	Ignore        uint8   // 未知边界像素写入值
	UnknownBorder float64 // 类别交界处未知边界宽度（地图单位），0为关闭
	Overlap       OverlapPriority

	Sources []SourceSpec

	PatchWidth  int
	PatchHeight int
	Stride      int
	EdgePolicy  EdgePolicy
	SkipEmpty   bool

	SplitFraction float64 // 训练集占比，显式0表示全部进验证集；负值视为未设置，取默认值
	SplitSeed     int64

	Workers int
}

// 校验并填充缺省值
func (c *Config) Validate() error {
	if c.LodDir == "" || c.OutDir == "" {
		return fmt.Errorf("%w: lod_dir and out_dir are required", ErrBadConfig)
	}
	if c.Geopackage == "" || c.Attribute == "" {
		return fmt.Errorf("%w: label source and class attribute are required", ErrBadConfig)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: at least one channel source is required", ErrBadConfig)
	}
	seen := map[string]struct{}{}
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.Name == "" || s.Dir == "" {
			return fmt.Errorf("%w: source name and dir are required", ErrBadConfig)
		}
		if _, ok := seen[s.Name]; ok {
			return fmt.Errorf("%w: duplicate source %q", ErrBadConfig, s.Name)
		}
		seen[s.Name] = struct{}{}
		switch s.Resample {
		case "":
			s.Resample = ResampleNearest
		case ResampleNearest, ResampleBilinear, ResampleCubic:
		default:
			return fmt.Errorf("%w: unknown resample method %q", ErrBadConfig, s.Resample)
		}
	}
	if c.PatchWidth <= 0 || c.PatchHeight <= 0 {
		return fmt.Errorf("%w: patch size must be positive", ErrBadConfig)
	}
	if c.Stride == 0 {
		c.Stride = c.PatchWidth
	}
	if c.Stride < 0 {
		return fmt.Errorf("%w: stride must be positive", ErrBadConfig)
	}
	switch c.EdgePolicy {
	case "":
		c.EdgePolicy = EdgeDrop
	case EdgeDrop, EdgePad:
	default:
		return fmt.Errorf("%w: unknown edge policy %q", ErrBadConfig, c.EdgePolicy)
	}
	switch c.Overlap {
	case "":
		c.Overlap = OverlapArea
	case OverlapArea, OverlapOrder:
	default:
		return fmt.Errorf("%w: unknown overlap priority %q", ErrBadConfig, c.Overlap)
	}
	if c.SplitFraction > 1 {
		return fmt.Errorf("%w: split fraction must be in [0,1]", ErrBadConfig)
	}
	if c.SplitFraction < 0 {
		c.SplitFraction = DefaultSplitFraction
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	return nil
}

// 训练样本标识：footprint + 窗口左上角像素偏移
type PatchID struct {
	Footprint string
	Row       int // y方向像素偏移
	Col       int // x方向像素偏移
}

func (p PatchID) String() string {
	return fmt.Sprintf("%s_%d_%d", p.Footprint, p.Row, p.Col)
}

// 单个footprint的失败记录，不中断整批
type FootprintFailure struct {
	ID    string
	Stage string
	Err   error
}

type RunReport struct {
	Footprints int
	Patches    []PatchID
	Failures   []FootprintFailure
	Train      int
	Val        int
}
