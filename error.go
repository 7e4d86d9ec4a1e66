package segprep

import "errors"

var (
	ErrInvalidFootprint = errors.New("invalid footprint descriptor")
	ErrGeometry         = errors.New("label geometry cannot be rasterized")
	ErrNoCoverage       = errors.New("source raster has no coverage of footprint")
	ErrReprojection     = errors.New("invalid reprojection parameters")
	ErrChannelMismatch  = errors.New("channel dimensions disagree with footprint")
	ErrEmptyDataset     = errors.New("no patches produced")

	ErrBadConfig      = errors.New("bad pipeline config")
	ErrGdalDriverOpen = errors.New("gdal driver open err")
	ErrVoidSrid       = errors.New("vector layer with void srid")
	ErrClassValue     = errors.New("class attribute out of byte range")
)
