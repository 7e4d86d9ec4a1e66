package segprep

import (
	"os"
	"path/filepath"
	"testing"
)

func TestToolboxScratchDirs(t *testing.T) {
	tmp := t.TempDir()
	g := NewGdalToolbox(tmp)
	if g == nil {
		t.Fatal()
	}
	a, err := g.newScratchDir()
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.newScratchDir()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("scratch dirs must be unique")
	}
	for _, d := range []string{a, b} {
		if filepath.Dir(d) != tmp {
			t.Fatalf("scratch dir %s not under %s", d, tmp)
		}
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			t.Fatalf("scratch dir %s not created: %v", d, err)
		}
	}
}
