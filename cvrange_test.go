package midirec_test

import (
	"testing"

	"github.com/chinenual/midirec"
	"gopkg.in/yaml.v3"
)

func TestRangeBounds(t *testing.T) {
	for i := midirec.RangeMinus10To10; i <= midirec.Range0To1; i++ {
		r := i.Range()
		if got := r.To7Bit(r.Low); got != 0 {
			t.Errorf("%v: To7Bit(low) = %v, expected 0", i, got)
		}
		if got := r.To7Bit(r.High); got != midirec.Max7Bit {
			t.Errorf("%v: To7Bit(high) = %v, expected 127", i, got)
		}
		if got := r.To14Bit(r.Low); got != 0 {
			t.Errorf("%v: To14Bit(low) = %v, expected 0", i, got)
		}
		if got := r.To14Bit(r.High); got != midirec.Max14Bit {
			t.Errorf("%v: To14Bit(high) = %v, expected 16383", i, got)
		}
		if got := r.To7Bit(r.High + 3); got != midirec.Max7Bit {
			t.Errorf("%v: To7Bit should clamp above the range, got %v", i, got)
		}
		if got := r.To7Bit(r.Low - 3); got != 0 {
			t.Errorf("%v: To7Bit should clamp below the range, got %v", i, got)
		}
	}
}

func TestBipolarCentre(t *testing.T) {
	r := midirec.RangeMinus5To5.Range()
	if got := r.To14Bit(0); got != 8192 {
		t.Fatalf("0 V on -5..5 should map to 8192, got %v", got)
	}
}

func TestRangeNames(t *testing.T) {
	names := midirec.RangeNames()
	if names[midirec.RangeMinus10To10] != "-10 to 10" || names[midirec.Range0To3] != "  0 to  3" {
		t.Fatalf("unexpected range names: %q", names)
	}
	names[0] = "changed"
	if midirec.RangeMinus10To10.String() != "-10 to 10" {
		t.Fatalf("RangeNames should return a copy")
	}
}

func TestSplit14Bit(t *testing.T) {
	for _, v := range []int{0, 1, 127, 128, 8192, 16383} {
		msb, lsb := midirec.Split14Bit(v)
		if msb < 0 || msb > 127 || lsb < 0 || lsb > 127 {
			t.Fatalf("split of %v out of 7 bit range: %v %v", v, msb, lsb)
		}
		if msb<<7|lsb != v {
			t.Fatalf("split of %v does not recombine: %v %v", v, msb, lsb)
		}
	}
}

func TestScaleInplaceMatchesScalar(t *testing.T) {
	r := midirec.Range0To10.Range()
	volts := []float32{-1, 0, 1.3, 2.2, 5.1, 7.77, 10, 12}
	batch := make([]float32, len(volts))
	copy(batch, volts)
	r.ScaleInplace(batch, midirec.Max7Bit)
	for i, v := range volts {
		if int(batch[i]) != r.To7Bit(v) {
			t.Errorf("voltage %v: batch %v, scalar %v", v, batch[i], r.To7Bit(v))
		}
	}
}

func TestVoltageInvertsConversion(t *testing.T) {
	for i := midirec.RangeMinus10To10; i <= midirec.Range0To1; i++ {
		r := i.Range()
		for v := 0; v <= midirec.Max7Bit; v++ {
			if got := r.To7Bit(r.Voltage(v, midirec.Max7Bit)); got != v {
				t.Fatalf("range %v: 7 bit %v came back as %v", i, v, got)
			}
		}
		for v := 0; v <= midirec.Max14Bit; v += 97 {
			if got := r.To14Bit(r.Voltage(v, midirec.Max14Bit)); got != v {
				t.Fatalf("range %v: 14 bit %v came back as %v", i, v, got)
			}
		}
	}
}

func TestRangeIndexYAML(t *testing.T) {
	type wrapper struct {
		R midirec.RangeIndex `yaml:"r"`
	}
	b, err := yaml.Marshal(wrapper{R: midirec.RangeMinus5To5})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var w wrapper
	if err := yaml.Unmarshal(b, &w); err != nil || w.R != midirec.RangeMinus5To5 {
		t.Fatalf("round trip through %q failed: %v %v", string(b), w.R, err)
	}
	if err := yaml.Unmarshal([]byte("r: 0 to 3"), &w); err != nil || w.R != midirec.Range0To3 {
		t.Fatalf("could not unmarshal name: %v %v", w.R, err)
	}
	if err := yaml.Unmarshal([]byte("r: 6"), &w); err != nil || w.R != midirec.RangeMinus1To1 {
		t.Fatalf("could not unmarshal index: %v %v", w.R, err)
	}
	if err := yaml.Unmarshal([]byte("r: 42"), &w); err == nil {
		t.Fatalf("expected an error for an out of range index")
	}
	if err := yaml.Unmarshal([]byte("r: sideways"), &w); err == nil {
		t.Fatalf("expected an error for an unknown name")
	}
}
