//go:build plugin

package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/chinenual/midirec"
	"github.com/chinenual/midirec/host"
	"github.com/chinenual/midirec/recorder"
	"github.com/chinenual/midirec/smfsink"
	"gopkg.in/yaml.v3"
	"pipelined.dev/audio/vst2"
)

const (
	PLUGIN_ID   = 0x4d52_4543 // "MREC"
	PLUGIN_NAME = "midirec"
)

// VSTIProcessContext hands the MIDI events of one block to the engine at
// their frame offsets.
type VSTIProcessContext struct {
	events     []vst2.MIDIEvent
	eventIndex int
	host       vst2.Host
}

func (c *VSTIProcessContext) NextEvent(frame int) (event host.MIDIEvent, ok bool) {
	if c.eventIndex >= len(c.events) || int(c.events[c.eventIndex].DeltaFrames) > frame {
		return host.MIDIEvent{}, false
	}
	ev := c.events[c.eventIndex]
	c.eventIndex++
	event.Frame = int(ev.DeltaFrames)
	event.Message.Len = uint8(copy(event.Message.Data[:], ev.Data[:]))
	return event, true
}

// transport returns the host's tempo and whether it is playing.
func (c *VSTIProcessContext) transport() (bpm, sampleRate float64, playing bool) {
	timeInfo := c.host.GetTimeInfo(vst2.TempoValid)
	if timeInfo == nil {
		return 0, 0, false
	}
	if timeInfo.Flags&vst2.TempoValid != 0 {
		bpm = timeInfo.Tempo
	}
	return bpm, timeInfo.SampleRate, timeInfo.Flags&vst2.TransportPlaying != 0
}

func configPath() string {
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "midirec", "config.yml")
	}
	return ""
}

func init() {
	var (
		version = int32(100)
	)
	vst2.PluginAllocator = func(h vst2.Host) (vst2.Plugin, vst2.Dispatcher) {
		cfg, err := midirec.LoadConfig(configPath())
		if err != nil {
			cfg = midirec.DefaultConfig()
		}
		broker := recorder.NewBroker()
		go broker.LogAlerts(log.Default())
		engine := host.NewEngine(44100, cfg, smfsink.New(), broker, 1, midirec.NumTracks, midirec.MaxChannels)
		context := VSTIProcessContext{host: h}
		return vst2.Plugin{
				UniqueID:       PLUGIN_ID,
				Version:        version,
				InputChannels:  0,
				OutputChannels: 2,
				Name:           PLUGIN_NAME,
				Vendor:         "chinenual/midirec",
				Category:       vst2.PluginCategorySynth,
				Flags:          vst2.PluginIsSynth,
				ProcessFloatFunc: func(in, out vst2.FloatBuffer) {
					bpm, sampleRate, playing := context.transport()
					if sampleRate > 0 {
						engine.SetSampleRate(int(sampleRate))
					}
					engine.SetTempo(bpm)
					engine.SetRunGate(playing)
					engine.Process(out.Frames, &context)
					for ch := 0; ch < 2; ch++ {
						clear(out.Channel(ch))
					}
					context.events = context.events[:0] // reset buffer, but keep the allocated memory
					context.eventIndex = 0
				},
			}, vst2.Dispatcher{
				CanDoFunc: func(pcds vst2.PluginCanDoString) vst2.CanDoResponse {
					switch pcds {
					case vst2.PluginCanReceiveEvents, vst2.PluginCanReceiveMIDIEvent, vst2.PluginCanReceiveTimeInfo:
						return vst2.YesCanDo
					}
					return vst2.NoCanDo
				},
				ProcessEventsFunc: func(ev *vst2.EventsPtr) {
					for i := 0; i < ev.NumEvents(); i++ {
						a := ev.Event(i)
						switch v := a.(type) {
						case *vst2.MIDIEvent:
							context.events = append(context.events, *v)
						}
					}
				},
				CloseFunc: func() {
					// the host no longer calls process; finish the recording
					// on this thread
					engine.Recorder.SetRun(false)
					engine.SetRunGate(false)
					engine.Process(1, nil)
					engine.Recorder.Wait()
					recorder.TrySend(broker.CloseLogger, struct{}{})
				},
				GetChunkFunc: func(isPreset bool) []byte {
					b, err := yaml.Marshal(engine.Recorder.Config())
					if err != nil {
						return nil
					}
					return b
				},
				SetChunkFunc: func(data []byte, isPreset bool) {
					cfg := engine.Recorder.Config()
					if err := yaml.Unmarshal(data, &cfg); err != nil || cfg.Validate() != nil {
						return
					}
					engine.Recorder.SetConfig(cfg)
					for _, x := range engine.Expanders {
						x.SetConfig(cfg.CC)
					}
				},
			}

	}
}

func main() {}
