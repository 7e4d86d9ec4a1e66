package utils

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	FILE_EXT_TIF  = ".tif"
	FILE_EXT_TIFF = ".tiff"
	FILE_EXT_VRT  = ".vrt"
	FILE_EXT_TXT  = ".txt"

	UTF8  = "UTF8"
	UTF_8 = "UTF-8"
)

func GetUniqSubDir(parentPath string) (path string, err error) {
	path = filepath.Join(parentPath, uuid.NewString())
	err = os.MkdirAll(path, os.ModePerm)
	return
}

func GetFilenameWithoutExt(path string) (name string) {
	name = filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(path))
	return
}

func IsRasterFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case FILE_EXT_TIF, FILE_EXT_TIFF, FILE_EXT_VRT:
		return true
	}
	return false
}

// 列出目录下所有栅格文件（tif/tiff/vrt），按文件名排序以保证遍历次序稳定
func ListRasterFiles(dir string) (files []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !IsRasterFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return
}

// 按主文件名在目录中查找对应栅格，找不到时返回空串
func FindRasterByStem(dir, stem string) (path string) {
	for _, ext := range []string{FILE_EXT_TIF, FILE_EXT_TIFF, FILE_EXT_VRT} {
		p := filepath.Join(dir, stem+ext)
		if _, err := os.Stat(p); err == nil {
			path = p
			return
		}
	}
	return
}
