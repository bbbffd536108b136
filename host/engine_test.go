package host_test

import (
	"path/filepath"
	"testing"

	"github.com/chinenual/midirec"
	"github.com/chinenual/midirec/host"
	"github.com/chinenual/midirec/smfsink"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const sampleRate = 48000

type sliceSource struct {
	events []host.MIDIEvent
	index  int
}

func (s *sliceSource) NextEvent(frame int) (host.MIDIEvent, bool) {
	if s.index < len(s.events) && s.events[s.index].Frame <= frame {
		s.index++
		return s.events[s.index-1], true
	}
	return host.MIDIEvent{}, false
}

type recorded struct {
	tick int64
	msg  midi.Message
}

func newEngine(t *testing.T, expanders int) (*host.Engine, string) {
	t.Helper()
	cfg := midirec.DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "take.mid")
	return host.NewEngine(sampleRate, cfg, smfsink.New(), nil, expanders, 1, 4), cfg.Path
}

// record runs one block of events with the run gate high, stops and returns
// the channel messages of the written file, per track.
func record(t *testing.T, e *host.Engine, path string, frames int, events ...host.MIDIEvent) [][]recorded {
	t.Helper()
	e.SetRunGate(true)
	e.Process(frames, &sliceSource{events: events})
	e.SetRunGate(false)
	e.Process(1, nil)
	e.Recorder.Wait()
	if res := e.Recorder.LastFile(); res == nil || res.Err != nil {
		t.Fatalf("recording failed: %+v", res)
	}
	mf, err := smf.ReadFile(path)
	if err != nil {
		t.Fatalf("could not read %v: %v", path, err)
	}
	var ret [][]recorded
	for _, track := range mf.Tracks {
		var msgs []recorded
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			if !ev.Message.IsMeta() {
				msgs = append(msgs, recorded{tick, midi.Message(ev.Message)})
			}
		}
		ret = append(ret, msgs)
	}
	return ret
}

func event(frame int, msg midi.Message) host.MIDIEvent {
	ev := host.MIDIEvent{Frame: frame}
	ev.Message.Len = uint8(copy(ev.Message.Data[:], msg))
	return ev
}

func TestEngineRecordsMIDINote(t *testing.T) {
	e, path := newEngine(t, 0)
	tracks := record(t, e, path, sampleRate,
		event(0, midi.NoteOn(0, 64, 127)),
		event(sampleRate/2, midi.NoteOff(0, 64)),
	)
	if len(tracks) != 1 || len(tracks[0]) != 2 {
		t.Fatalf("expected one track with two messages, got %v", tracks)
	}
	var ch, key, vel uint8
	on, off := tracks[0][0], tracks[0][1]
	if !on.msg.GetNoteStart(&ch, &key, &vel) || key != 64 || vel != 127 || on.tick != 0 {
		t.Errorf("expected note on of key 64 at tick 0, got %v at %v", on.msg, on.tick)
	}
	if !off.msg.GetNoteEnd(&ch, &key) || key != 64 || off.tick != 960 {
		t.Errorf("expected note off of key 64 at tick 960, got %v at %v", off.msg, off.tick)
	}
}

func TestEngineRoutesControllersToExpander(t *testing.T) {
	e, path := newEngine(t, 2)
	tracks := record(t, e, path, 100, event(0, midi.ControlChange(0, 3, 100)))
	if len(tracks) != 1 || len(tracks[0]) != 1 {
		t.Fatalf("expected a single controller, got %v", tracks)
	}
	var ch, cc, val uint8
	if got := tracks[0][0]; !got.msg.GetControlChange(&ch, &cc, &val) || cc != 3 || val != 100 || got.tick != 0 {
		t.Fatalf("expected CC 3 = 100 at tick 0, got %v at %v", got.msg, got.tick)
	}
}

func TestEngineDetachedExpanderIsSilent(t *testing.T) {
	e, path := newEngine(t, 1)
	e.Detach(0)
	tracks := record(t, e, path, 100,
		event(0, midi.NoteOn(0, 60, 100)),
		event(0, midi.ControlChange(0, 3, 100)),
	)
	if len(tracks) != 1 || len(tracks[0]) != 2 {
		t.Fatalf("expected only the note, got %v", tracks)
	}
}

func TestEngineTempo(t *testing.T) {
	e, path := newEngine(t, 0)
	e.SetTempo(60)
	tracks := record(t, e, path, sampleRate,
		event(0, midi.NoteOn(0, 60, 100)),
		event(sampleRate/2, midi.NoteOff(0, 60)),
	)
	if got := tracks[0][1].tick; got != 480 {
		t.Fatalf("half a second at 60 BPM should be tick 480, got %v", got)
	}
}

func TestEngineExec(t *testing.T) {
	e, _ := newEngine(t, 0)
	ran := false
	e.Exec() <- func() { ran = true }
	e.Process(1, nil)
	if !ran {
		t.Fatalf("the function sent to Exec did not run")
	}
	if e.Frame() != 1 {
		t.Fatalf("expected frame 1, got %v", e.Frame())
	}
}
