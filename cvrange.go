package midirec

import (
	"fmt"
	"math"
	"strings"

	"github.com/viterin/vek/vek32"
	"gopkg.in/yaml.v3"
)

type (
	// CVRange is the voltage span that is mapped onto the full range of a 7
	// or 14 bit MIDI value. Voltages outside the span are clamped.
	CVRange struct {
		Low  float32
		High float32
	}

	// RangeIndex selects one of the predefined CVRanges. It is what gets
	// persisted in the configuration.
	RangeIndex int
)

const (
	RangeMinus10To10 RangeIndex = iota
	Range0To10
	RangeMinus5To5
	Range0To5
	RangeMinus3To3
	Range0To3
	RangeMinus1To1
	Range0To1
	numRanges
)

const (
	Max7Bit  = 127
	Max14Bit = 16383
)

var cvRanges = [numRanges]CVRange{
	{-10, 10},
	{0, 10},
	{-5, 5},
	{0, 5},
	{-3, 3},
	{0, 3},
	{-1, 1},
	{0, 1},
}

var cvRangeNames = [numRanges]string{
	"-10 to 10",
	"  0 to 10",
	" -5 to  5",
	"  0 to  5",
	" -3 to  3",
	"  0 to  3",
	" -1 to  1",
	"  0 to  1",
}

// Range returns the CVRange for the index; invalid indices return the 0 to
// 10 V range.
func (i RangeIndex) Range() CVRange {
	if i < 0 || i >= numRanges {
		return cvRanges[Range0To10]
	}
	return cvRanges[i]
}

func (i RangeIndex) Valid() bool {
	return i >= 0 && i < numRanges
}

// String returns the display name used in menus, e.g. "  0 to 10".
func (i RangeIndex) String() string {
	if !i.Valid() {
		return fmt.Sprintf("RangeIndex(%d)", int(i))
	}
	return cvRangeNames[i]
}

// RangeNames lists the display names in index order.
func RangeNames() []string {
	ret := make([]string, len(cvRangeNames))
	copy(ret, cvRangeNames[:])
	return ret
}

func (i RangeIndex) MarshalYAML() (any, error) {
	if !i.Valid() {
		return nil, fmt.Errorf("invalid CV range index %d", int(i))
	}
	return strings.TrimSpace(cvRangeNames[i]), nil
}

// UnmarshalYAML accepts either the trimmed display name ("-5 to 5") or the
// numeric index.
func (i *RangeIndex) UnmarshalYAML(value *yaml.Node) error {
	var n int
	if err := value.Decode(&n); err == nil {
		if !RangeIndex(n).Valid() {
			return fmt.Errorf("CV range index %d out of range", n)
		}
		*i = RangeIndex(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("CV range must be a name or an index: %w", err)
	}
	wanted := strings.Join(strings.Fields(s), " ")
	for k, name := range cvRangeNames {
		if strings.Join(strings.Fields(name), " ") == wanted {
			*i = RangeIndex(k)
			return nil
		}
	}
	return fmt.Errorf("unknown CV range %q", s)
}

func (r CVRange) scale(voltage float32, max int) int {
	v := math.Round(float64((voltage - r.Low) / (r.High - r.Low) * float32(max)))
	if v < 0 {
		return 0
	}
	if v > float64(max) {
		return max
	}
	return int(v)
}

func (r CVRange) To7Bit(voltage float32) int {
	return r.scale(voltage, Max7Bit)
}

func (r CVRange) To14Bit(voltage float32) int {
	return r.scale(voltage, Max14Bit)
}

// Split14Bit splits a 14 bit value into its most and least significant 7
// bit halves.
func Split14Bit(value int) (msb, lsb int) {
	return (value >> 7) & 0x7f, value & 0x7f
}

// ScaleInplace converts a batch of voltages into whole numbers in [0, max],
// overwriting volts. It does not allocate, so the caller can keep volts as a
// scratch buffer for the audio thread.
func (r CVRange) ScaleInplace(volts []float32, max int) []float32 {
	if len(volts) == 0 {
		return volts
	}
	vek32.AddNumber_Inplace(volts, -r.Low)
	vek32.MulNumber_Inplace(volts, float32(max)/(r.High-r.Low))
	vek32.Round_Inplace(volts)
	vek32.MaximumNumber_Inplace(volts, 0)
	vek32.MinimumNumber_Inplace(volts, float32(max))
	return volts
}

// Voltage is the inverse of To7Bit and To14Bit: the voltage that converts
// back to value when the whole number range is [0, limit].
func (r CVRange) Voltage(value, limit int) float32 {
	value = max(min(value, limit), 0)
	return r.Low + float32(value)/float32(limit)*(r.High-r.Low)
}
