//go:build !cgo

package cmd

import (
	"errors"

	"github.com/chinenual/midirec/host"
)

var errNoCgo = errors.New("built without cgo, MIDI input is not available")

func NewMIDIInput(notes *host.NoteInput, port string) (MIDIInput, error) {
	// with no cgo, we cannot use MIDI, so return a null input
	return NullMIDIInput{}, errNoCgo
}

func MIDIPorts() ([]string, error) {
	return nil, errNoCgo
}
