package segprep

import (
	"fmt"
	"strings"

	"github.com/wgdzlh/segprep/log"
	"github.com/wgdzlh/segprep/utils"

	ogr "github.com/lukeroth/gdal"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

func vectorDriverName(path string) string {
	if strings.HasSuffix(strings.ToLower(path), FILE_EXT_SHP) {
		return SHP_DRIVER_NAME
	}
	return GPKG_DRIVER_NAME
}

// 读取与footprint范围相交的标签图斑，几何统一转换到目标坐标系，类别取自attr字段。
// 字段缺失值的图斑直接剔除（与原始数据清洗规则一致），类别超出byte范围视为标签源损坏。
func (g *GdalToolbox) ReadLabelPolygons(path, attr string, ext orb.Bound, tSrid int) (ret []LabelPolygon, err error) {
	driver := ogr.OGRDriverByName(vectorDriverName(path))
	ds, ok := driver.Open(path, 0)
	if !ok {
		err = ErrGdalDriverOpen
		return
	}
	defer ds.Destroy()
	layer := ds.LayerByIndex(0)
	def := layer.Definition()
	attrIdx := def.FieldIndex(attr)
	if attrIdx < 0 {
		// 部分shp的字段名为GBK编码
		if gbk, e := utils.Utf8StrToGbk(attr); e == nil {
			attrIdx = def.FieldIndex(gbk)
		}
		if attrIdx < 0 {
			err = fmt.Errorf(ErrColumnMissingTemplate, attr)
			return
		}
	}
	srid, err := g.getSrid(layer.SpatialReference())
	if err != nil {
		return
	}
	// 空间过滤在图层自身坐标系下进行
	filterExt := ext
	if srid != tSrid {
		if filterExt, err = g.transformBound(ext, tSrid, srid); err != nil {
			return
		}
	}
	layer.SetSpatialFilterRect(filterExt.Min[0], filterExt.Min[1], filterExt.Max[0], filterExt.Max[1])

	var (
		trans   ogr.CoordinateTransform
		feature *ogr.Feature
		geo     ogr.Geometry
		wkb     []byte
		class   int
		dropped int
		e       error
		gc      []destroyable
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	if srid != tSrid {
		var tRef ogr.SpatialReference
		if tRef, err = g.getSridRef(tSrid); err != nil {
			return
		}
		trans = ogr.CreateCoordinateTransform(layer.SpatialReference(), tRef)
		gc = append(gc, trans)
	}
	n := 128
	if nf, _ := layer.FeatureCount(false); nf > 0 {
		n = nf
	}
	ret = make([]LabelPolygon, 0, n)
	for {
		if feature = layer.NextFeature(); feature == nil {
			break
		}
		gc = append(gc, *feature)
		if !feature.IsFieldSet(attrIdx) {
			dropped++
			continue
		}
		class = feature.FieldAsInteger(attrIdx)
		if class < 0 || class > 255 {
			err = fmt.Errorf("%w: fid %d has class %d", ErrClassValue, feature.FID(), class)
			return
		}
		geo = feature.Geometry()
		if !geo.IsValid() {
			err = fmt.Errorf("%w: invalid polygon fid %d in %s", ErrGeometry, feature.FID(), path)
			return
		}
		if srid != tSrid {
			if e = geo.Transform(trans); e != nil {
				err = fmt.Errorf("%w: fid %d: %v", ErrReprojection, feature.FID(), e)
				return
			}
		}
		if wkb, e = geo.ToWKB(); e != nil {
			err = fmt.Errorf("%w: fid %d: %v", ErrGeometry, feature.FID(), e)
			return
		}
		ret = append(ret, LabelPolygon{
			Geom:  wkb,
			Class: uint8(class),
			Area:  geo.Area(),
			FID:   feature.FID(),
		})
	}
	if dropped > 0 {
		log.Info(g.logTag+"dropped polygons with unset class attribute",
			zap.String("file", path), zap.Int("dropped", dropped))
	}
	log.Info(g.logTag+"label polygons read", zap.String("file", path),
		zap.Int("srid", srid), zap.Int("count", len(ret)))
	return
}
