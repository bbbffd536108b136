//go:build cgo

package cmd

import (
	"github.com/chinenual/midirec/host"
	"github.com/chinenual/midirec/host/gomidi"
)

func NewMIDIInput(notes *host.NoteInput, port string) (MIDIInput, error) {
	in, err := gomidi.Open(notes, port)
	if err != nil {
		return nil, err
	}
	return in, nil
}

func MIDIPorts() ([]string, error) {
	return gomidi.Ports()
}
