package segprep

import (
	"strconv"
	"sync"

	"github.com/wgdzlh/segprep/log"
	"github.com/wgdzlh/segprep/utils"

	gdal "github.com/airbusgeo/godal"
	ogr "github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

type Dataset = gdal.Dataset
type Geometry = gdal.Geometry

type GdalToolbox struct {
	refMap map[int]ogr.SpatialReference
	rLock  sync.Mutex
	tmpDir string
	logTag string
}

// 由GDAL库C语言创建的内存对象，需要手动调用Destroy回收
type destroyable interface {
	Destroy()
}

var registerOnce sync.Once

// 初始化GDAL工具箱，tmpDir为可选的临时目录路径（未提供的话为当前目录）
func NewGdalToolbox(tmpDir ...string) *GdalToolbox {
	registerOnce.Do(gdal.RegisterAll)
	g := &GdalToolbox{
		refMap: map[int]ogr.SpatialReference{},
		logTag: "GdalToolbox:",
	}
	if len(tmpDir) > 0 && tmpDir[0] != "" {
		g.tmpDir = tmpDir[0]
	}
	return g
}

// 在工具箱临时目录下创建uuid命名的独立scratch目录
func (g *GdalToolbox) newScratchDir() (string, error) {
	return utils.GetUniqSubDir(g.tmpDir)
}

// 获取srid对应的坐标系（可复用，故无需回收）
func (g *GdalToolbox) getSridRef(srid int) (ref ogr.SpatialReference, err error) {
	g.rLock.Lock()
	defer g.rLock.Unlock()
	ref, ok := g.refMap[srid]
	if ok {
		return
	}
	ref = ogr.CreateSpatialReference("")
	if err = ref.FromEPSG(srid); err != nil {
		log.Error(g.logTag+"set ref srid failed", zap.Int("srid", srid), zap.Error(err))
		ref.Destroy()
		return
	}
	// 数据轴次序固定为(经度,纬度)/(东,北)传统GIS次序，避免转换时次序倒置
	ref.SetAxisMappingStrategy(ogr.OAMS_TraditionalGisOrder)
	g.refMap[srid] = ref
	return
}

func (g *GdalToolbox) getSrid(sp ogr.SpatialReference) (srid int, err error) {
	rawId, ok := sp.AttrValue("AUTHORITY", 1)
	if !ok {
		err = ErrVoidSrid
		return
	}
	srid, err = strconv.Atoi(rawId)
	return
}

// 从投影WKT解析srid
func (g *GdalToolbox) sridOfProjection(wkt string) (srid int, err error) {
	sp := ogr.CreateSpatialReference(wkt)
	defer sp.Destroy()
	if err = sp.AutoIdentifyEPSG(); err != nil {
		log.Warn(g.logTag+"auto identify epsg failed", zap.Error(err))
	}
	return g.getSrid(sp)
}

func (g *GdalToolbox) parseWKB(wkb GdalGeo, ref ogr.SpatialReference) (ret ogr.Geometry, err error) {
	ret, err = ogr.CreateFromWKB(wkb, ref, len(wkb))
	if err != nil {
		log.Error(g.logTag+"parse wkb failed", zap.Error(err))
	}
	return
}

func (g *GdalToolbox) parseWKT(wkt string, ref ogr.SpatialReference) (ret ogr.Geometry, err error) {
	ret, err = ogr.CreateFromWKT(wkt, ref)
	if err != nil {
		log.Error(g.logTag+"parse wkt failed", zap.Error(err))
	}
	return
}
