package segprep

import "runtime"

const (
	SHP_DRIVER_NAME  = "ESRI Shapefile"
	GPKG_DRIVER_NAME = "GPKG"

	FILE_EXT_SHP  = ".shp"
	FILE_EXT_GPKG = ".gpkg"

	DIR_FOOTPRINTS    = "footprints"
	DIR_PATCH_IMAGES  = "patches/images"
	DIR_PATCH_LABELS  = "patches/labels"
	DIR_SCRATCH       = ".tmp"
	IMAGE_TIF         = "image.tif"
	LABEL_TIF         = "label.tif"
	MANIFEST_ALL      = "all.txt"
	MANIFEST_TRAIN    = "train.txt"
	MANIFEST_VAL      = "val.txt"
	ALIGNED_TIF_TMPL  = "aligned_%s.tif"
	GTIFF_COMPRESSION = "COMPRESS=LZW"

	DefaultSplitFraction = 0.8

	// 逐条带拷贝的行数，控制堆叠/统计时的内存占用
	CopyStripRows = 512

	ErrColumnMissingTemplate = `矢量文件中缺失【%s】字段`
)

var DefaultWorkers = runtime.NumCPU()
