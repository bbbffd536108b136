// Package smfsink accumulates recorded events into Standard MIDI File tracks
// and writes them with gomidi.
package smfsink

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/chinenual/midirec"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Sink implements midirec.Sink. It is used by a single worker goroutine and
// is not safe for concurrent use.
type Sink struct {
	tracks []track
	tpq    int
}

type track struct {
	events smf.Track
	last   int64 // absolute tick of the last event, for delta times
}

func New() *Sink {
	s := &Sink{}
	s.Clear()
	return s
}

// Clear starts over with NumTracks empty tracks, each named after its
// recorder input.
func (s *Sink) Clear() {
	s.tpq = midirec.TicksPerQuarter
	s.tracks = s.tracks[:0]
	for i := 0; i < midirec.NumTracks; i++ {
		var t track
		t.events.Add(0, smf.MetaTrackSequenceName(fmt.Sprintf("Track %d", i+1)))
		s.tracks = append(s.tracks, t)
	}
}

func (s *Sink) SetTicksPerQuarter(n int) {
	s.tpq = n
}

func (s *Sink) AddEvent(track int, tick int64, msg []byte) {
	s.add(track, tick, slices.Clone(msg))
}

func (s *Sink) AddTempoMarker(track int, tick int64, bpm float64) {
	s.add(track, tick, smf.MetaTempo(bpm))
}

func (s *Sink) add(track int, tick int64, msg []byte) {
	if track < 0 || track >= len(s.tracks) {
		return
	}
	t := &s.tracks[track]
	delta := max(tick-t.last, 0)
	t.events.Add(uint32(delta), msg)
	t.last += delta
}

// DeleteTrack removes a track; the tracks after it move down by one.
func (s *Sink) DeleteTrack(track int) {
	if track < 0 || track >= len(s.tracks) {
		return
	}
	s.tracks = slices.Delete(s.tracks, track, track+1)
}

// Len returns the number of tracks left.
func (s *Sink) Len() int {
	return len(s.tracks)
}

// Write writes the tracks as a format 1 file, creating the directory if
// needed. The sink keeps its contents, so Write may be retried.
func (s *Sink) Write(path string) error {
	mf := smf.New()
	mf.TimeFormat = smf.MetricTicks(s.tpq)
	for i := range s.tracks {
		t := slices.Clone(s.tracks[i].events)
		t.Close(0)
		if err := mf.Add(t); err != nil {
			return fmt.Errorf("could not add track %d: %w", i, err)
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("could not create directory %v: %w", dir, err)
		}
	}
	if err := mf.WriteFile(path); err != nil {
		return fmt.Errorf("could not write %v: %w", path, err)
	}
	return nil
}
