package segprep

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/wgdzlh/segprep/log"

	"go.uber.org/zap"
)

// 切分指派只取决于样本标识集合、比例和种子：先按标识排序再做带种子的洗牌，
// 与worker完成次序无关，重跑必得同一划分。
func AssignSplit(ids []PatchID, frac float64, seed int64) (train, val []PatchID) {
	n := len(ids)
	if n == 0 {
		return
	}
	shuffled := make([]PatchID, n)
	copy(shuffled, ids)
	sort.Slice(shuffled, func(i, j int) bool {
		return shuffled[i].String() < shuffled[j].String()
	})
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	nTrain := int(math.Round(frac * float64(n)))
	if nTrain > n {
		nTrain = n
	}
	train = shuffled[:nTrain]
	val = shuffled[nTrain:]
	return
}

// 写出all/train/val三个清单，每行一个样本标识。数据集为空是致命错误。
func WriteManifests(dir string, ids []PatchID, frac float64, seed int64) (nTrain, nVal int, err error) {
	if len(ids) == 0 {
		err = ErrEmptyDataset
		return
	}
	all := make([]PatchID, len(ids))
	copy(all, ids)
	sort.Slice(all, func(i, j int) bool {
		return all[i].String() < all[j].String()
	})
	train, val := AssignSplit(ids, frac, seed)
	if err = writeIDList(filepath.Join(dir, MANIFEST_ALL), all); err != nil {
		return
	}
	if err = writeIDList(filepath.Join(dir, MANIFEST_TRAIN), train); err != nil {
		return
	}
	if err = writeIDList(filepath.Join(dir, MANIFEST_VAL), val); err != nil {
		return
	}
	nTrain, nVal = len(train), len(val)
	log.Info("manifests written", zap.String("dir", dir),
		zap.Int("train", nTrain), zap.Int("val", nVal), zap.Int64("seed", seed))
	return
}

func writeIDList(path string, ids []PatchID) error {
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(id.String())
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), os.ModePerm)
}

// 从样本标识文本解析PatchID（manifests子命令独立运行时使用）
func ParsePatchID(s string) (id PatchID, ok bool) {
	i := strings.LastIndexByte(s, '_')
	if i < 0 {
		return
	}
	j := strings.LastIndexByte(s[:i], '_')
	if j < 0 {
		return
	}
	col, e1 := strconv.Atoi(s[i+1:])
	row, e2 := strconv.Atoi(s[j+1 : i])
	if e1 != nil || e2 != nil {
		return
	}
	id = PatchID{Footprint: s[:j], Row: row, Col: col}
	ok = true
	return
}
