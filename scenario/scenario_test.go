package scenario

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultLayout(t *testing.T) {
	sc := Default()
	if len(sc.Targets) != 4 || len(sc.Obstacles) != 4 {
		t.Fatalf("expected 4 targets and 4 obstacles, got %d/%d", len(sc.Targets), len(sc.Obstacles))
	}
	set := sc.Items()
	if set.FoodCount() != 4 {
		t.Fatalf("expected 4 food targets, got %d", set.FoodCount())
	}
	if set.Obstacles[0].Name != "Sofa Leg of Doom" || set.Obstacles[0].Width != 100 {
		t.Fatalf("unexpected first obstacle %+v", set.Obstacles[0])
	}
}

func TestParseFillsDefaults(t *testing.T) {
	sc, err := Parse([]byte(`
name: hallway
obstacles:
  - {x: 10, y: 20, width: 30, height: 40}
targets:
  - {x: 5, y: 6, label: Lost Pretzel}
`))
	if err != nil {
		t.Fatal(err)
	}
	if sc.Map.Width != 800 || sc.Map.Height != 600 {
		t.Fatalf("expected default map size, got %+v", sc.Map)
	}
	if sc.Obstacles[0].ID != "o1" || sc.Obstacles[0].Kind != "furniture" {
		t.Fatalf("unexpected obstacle defaults %+v", sc.Obstacles[0])
	}
	if sc.Targets[0].ID != "t1" || sc.Targets[0].Kind != "crumb" {
		t.Fatalf("unexpected target defaults %+v", sc.Targets[0])
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"syntax":    "obstacles: [",
		"size":      "obstacles:\n  - {id: a, width: 0, height: 5}",
		"duplicate": "obstacles:\n  - {id: a, width: 1, height: 1}\ntargets:\n  - {id: a}",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestMarshalRoundTripKeepsLayout(t *testing.T) {
	data, err := Default().Marshal()
	if err != nil {
		t.Fatal(err)
	}
	sc, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Targets[3].Label != "Butter Mountain" || sc.Obstacles[3].Kind != "liquid" {
		t.Fatalf("layout changed: %+v", sc)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "map.yaml")
	if err := os.WriteFile(path, []byte("name: first\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	// unrelated files are ignored
	os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("name: other\n"), 0o644)
	if err := os.WriteFile(path, []byte("name: second\ntargets:\n  - {x: 1, y: 2}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case sc := <-w.Events:
		if sc.Name != "second" || len(sc.Targets) != 1 {
			t.Fatalf("unexpected reload %+v", sc)
		}
	case err := <-w.Errors:
		t.Fatalf("watcher error: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload event")
	}
}
