package segprep

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func makeIDs(n int) []PatchID {
	ids := make([]PatchID, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, PatchID{
			Footprint: fmt.Sprintf("lod_%02d", i%10),
			Row:       (i / 10) * 512,
			Col:       (i % 7) * 512,
		})
	}
	return ids
}

func TestAssignSplitCounts(t *testing.T) {
	train, val := AssignSplit(makeIDs(1000), 0.8, 42)
	if len(train) != 800 || len(val) != 200 {
		t.Fatalf("want 800/200, got %d/%d", len(train), len(val))
	}
}

func TestAssignSplitDeterministic(t *testing.T) {
	ids := makeIDs(1000)
	t1, v1 := AssignSplit(ids, 0.8, 42)
	t2, v2 := AssignSplit(ids, 0.8, 42)
	for i := range t1 {
		if t1[i] != t2[i] {
			t.Fatalf("train differs on rerun at %d: %v vs %v", i, t1[i], t2[i])
		}
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("val differs on rerun at %d: %v vs %v", i, v1[i], v2[i])
		}
	}
}

// 划分只取决于标识集合，与输入排列（即worker完成次序）无关
func TestAssignSplitOrderIndependent(t *testing.T) {
	ids := makeIDs(1000)
	t1, _ := AssignSplit(ids, 0.8, 42)
	shuffled := make([]PatchID, len(ids))
	copy(shuffled, ids)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	t2, _ := AssignSplit(shuffled, 0.8, 42)
	for i := range t1 {
		if t1[i] != t2[i] {
			t.Fatalf("train depends on input order at %d", i)
		}
	}
}

func TestAssignSplitDisjointExhaustive(t *testing.T) {
	ids := makeIDs(333)
	train, val := AssignSplit(ids, 0.8, 1)
	seen := make(map[PatchID]int, len(ids))
	for _, id := range train {
		seen[id]++
	}
	for _, id := range val {
		seen[id]++
	}
	if len(seen) != len(ids) {
		t.Fatalf("split lost ids: %d of %d", len(seen), len(ids))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("id %v assigned %d times", id, n)
		}
	}
}

func TestAssignSplitSeedChanges(t *testing.T) {
	ids := makeIDs(100)
	t1, _ := AssignSplit(ids, 0.8, 42)
	t2, _ := AssignSplit(ids, 0.8, 43)
	same := true
	for i := range t1 {
		if t1[i] != t2[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different seeds produced identical shuffles")
	}
}

func TestAssignSplitEdges(t *testing.T) {
	if train, val := AssignSplit(nil, 0.8, 42); train != nil || val != nil {
		t.Fatal("empty input should yield empty splits")
	}
	train, val := AssignSplit(makeIDs(5), 1, 42)
	if len(train) != 5 || len(val) != 0 {
		t.Fatalf("frac 1 should assign all to train, got %d/%d", len(train), len(val))
	}
	train, val = AssignSplit(makeIDs(5), 0, 42)
	if len(train) != 0 || len(val) != 5 {
		t.Fatalf("frac 0 should assign all to val, got %d/%d", len(train), len(val))
	}
}

func TestWriteManifestsEmpty(t *testing.T) {
	if _, _, err := WriteManifests(t.TempDir(), nil, 0.8, 42); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("want ErrEmptyDataset, got %v", err)
	}
}

func readManifest(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	s := strings.TrimRight(string(b), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestWriteManifestsFiles(t *testing.T) {
	dir := t.TempDir()
	ids := makeIDs(10)
	nTrain, nVal, err := WriteManifests(dir, ids, 0.8, 42)
	if err != nil {
		t.Fatal(err)
	}
	if nTrain != 8 || nVal != 2 {
		t.Fatalf("want 8/2, got %d/%d", nTrain, nVal)
	}
	all := readManifest(t, filepath.Join(dir, MANIFEST_ALL))
	train := readManifest(t, filepath.Join(dir, MANIFEST_TRAIN))
	val := readManifest(t, filepath.Join(dir, MANIFEST_VAL))
	if len(all) != len(ids) || len(train) != nTrain || len(val) != nVal {
		t.Fatalf("bad listing lengths: %d/%d/%d", len(all), len(train), len(val))
	}
	if !sort.StringsAreSorted(all) {
		t.Fatal("all.txt must be sorted")
	}
	// train/val互斥且合并后恰为全集，每行都是合法的样本标识
	seen := make(map[string]bool, len(all))
	for _, line := range append(append([]string{}, train...), val...) {
		if _, ok := ParsePatchID(line); !ok {
			t.Fatalf("unparsable manifest line %q", line)
		}
		if seen[line] {
			t.Fatalf("id %q in both manifests", line)
		}
		seen[line] = true
	}
	for _, line := range all {
		if !seen[line] {
			t.Fatalf("id %q missing from train/val", line)
		}
	}
}

func TestParsePatchID(t *testing.T) {
	// footprint主名本身可以含下划线
	cases := []PatchID{
		{Footprint: "lod_01", Row: 512, Col: 1024},
		{Footprint: "tile", Row: 0, Col: 0},
		{Footprint: "a_b_c", Row: 9216, Col: 272},
	}
	for _, want := range cases {
		got, ok := ParsePatchID(want.String())
		if !ok || got != want {
			t.Fatalf("round trip failed: %q -> %+v (ok=%v)", want.String(), got, ok)
		}
	}
	for _, bad := range []string{"", "noid", "one_two", "a_b_c_"} {
		if _, ok := ParsePatchID(bad); ok {
			t.Fatalf("parse should fail for %q", bad)
		}
	}
}
