package midirec_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chinenual/midirec"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := midirec.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	for i, cc := range cfg.CC {
		if cc.CC != 2+i || cc.Is14Bit || cc.Range != midirec.Range0To10 {
			t.Fatalf("unexpected default for CC#%d: %+v", i+1, cc)
		}
	}
}

func TestConfigSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "midirec.yml")
	cfg := midirec.DefaultConfig()
	cfg.Path = "takes/take.mid"
	cfg.AlignToFirstNote = true
	cfg.AutoIncrement = false
	cfg.ModWheel14Bit = true
	cfg.CC[3] = midirec.CCConfig{CC: 74, Is14Bit: true, Range: midirec.RangeMinus1To1}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := midirec.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded != cfg {
		t.Fatalf("loaded config differs, got %+v, expected %+v", loaded, cfg)
	}
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yml")
	if err := os.WriteFile(path, []byte("path: out.mid\nalignToFirstNote: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := midirec.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Path != "out.mid" || !cfg.AlignToFirstNote {
		t.Fatalf("fields from the file were not applied: %+v", cfg)
	}
	if !cfg.AutoIncrement || cfg.Tempo != midirec.DefaultTempo || cfg.CC != midirec.DefaultCCConfig() {
		t.Fatalf("missing fields should keep defaults: %+v", cfg)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	if err := os.WriteFile(path, []byte("cc: [{cc: 200, range: 1}, {cc: 3, range: 1}, {cc: 4, range: 1}, {cc: 5, range: 1}, {cc: 6, range: 1}]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := midirec.LoadConfig(path); !errors.Is(err, midirec.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestClampTempo(t *testing.T) {
	cases := []struct{ in, out float64 }{
		{120, 120}, {0, midirec.MinTempo}, {-30, midirec.MinTempo}, {5000, midirec.MaxTempo},
	}
	for _, c := range cases {
		if got := midirec.ClampTempo(c.in); got != c.out {
			t.Errorf("ClampTempo(%v) = %v, expected %v", c.in, got, c.out)
		}
	}
}
