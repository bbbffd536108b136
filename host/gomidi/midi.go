// Package gomidi feeds a live MIDI input port into a host.NoteInput using
// the rtmidi driver of gomidi. It needs cgo.
package gomidi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chinenual/midirec/host"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type Input struct {
	driver *rtmididrv.Driver
	in     drivers.In
	stop   func()
}

var ErrNoInput = errors.New("no MIDI input found")

// Ports lists the names of the available input ports.
func Ports() ([]string, error) {
	driver, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("could not open MIDI driver: %w", err)
	}
	defer driver.Close()
	ins, err := driver.Ins()
	if err != nil {
		return nil, fmt.Errorf("could not list MIDI inputs: %w", err)
	}
	ret := make([]string, len(ins))
	for i, in := range ins {
		ret[i] = in.String()
	}
	return ret, nil
}

// Open listens to the first input whose name starts with namePrefix, or to
// the first input at all if namePrefix is empty, and hands every message to
// notes.
func Open(notes *host.NoteInput, namePrefix string) (*Input, error) {
	driver, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("could not open MIDI driver: %w", err)
	}
	ins, err := driver.Ins()
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("could not list MIDI inputs: %w", err)
	}
	for _, in := range ins {
		if !strings.HasPrefix(in.String(), namePrefix) {
			continue
		}
		if err := in.Open(); err != nil {
			driver.Close()
			return nil, fmt.Errorf("opening MIDI input %v failed: %w", in, err)
		}
		stop, err := midi.ListenTo(in, notes.Handle)
		if err != nil {
			in.Close()
			driver.Close()
			return nil, fmt.Errorf("listening to MIDI input %v failed: %w", in, err)
		}
		return &Input{driver: driver, in: in, stop: stop}, nil
	}
	driver.Close()
	if namePrefix == "" {
		return nil, ErrNoInput
	}
	return nil, fmt.Errorf("%w starting with %q", ErrNoInput, namePrefix)
}

func (i *Input) String() string {
	return i.in.String()
}

func (i *Input) Close() {
	i.stop()
	if i.in.IsOpen() {
		i.in.Close()
	}
	i.driver.Close()
}
