package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/chinenual/midirec"
	"github.com/chinenual/midirec/cmd"
	"github.com/chinenual/midirec/host"
	"github.com/chinenual/midirec/oto"
	"github.com/chinenual/midirec/recorder"
	"github.com/chinenual/midirec/smfsink"
	"github.com/chinenual/midirec/version"
)

func defaultConfigPath() string {
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "midirec", "config.yml")
	}
	return "midirec.yml"
}

func main() {
	configPath := flag.String("config", defaultConfigPath(), "YAML configuration `file`. Missing fields keep their defaults.")
	outPath := flag.String("o", "", "Destination MIDI file. May be a template, e.g. 'takes/{{ now | date \"20060102-150405\" }}.mid'. Overrides the configuration.")
	overwrite := flag.Bool("overwrite", false, "Overwrite the destination instead of numbering new takes.")
	align := flag.Bool("align", false, "Start the clock at the first note instead of when recording starts.")
	tempo := flag.Float64("tempo", 0, "Tempo in BPM. Defaults to the configured tempo.")
	midiInput := flag.String("midi-input", "", "Connect the first MIDI input whose name starts with this prefix.")
	listPorts := flag.Bool("l", false, "List MIDI inputs and exit.")
	tracks := flag.Int("tracks", 1, "Number of MIDI channels, starting from channel 1, patched to tracks up front.")
	voices := flag.Int("voices", 8, "Polyphony per track.")
	expanders := flag.Int("expanders", 1, "Number of CC expanders chained to the recorder.")
	sampleRate := flag.Int("rate", 48000, "Audio sample rate of the clock.")
	listen := flag.String("listen", ":10000", "Address of the remote control server. Empty disables it.")
	record := flag.Bool("r", false, "Start recording immediately.")
	save := flag.Bool("save", false, "Save the effective configuration and exit.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if *listPorts {
		ports, err := cmd.MIDIPorts()
		if err != nil {
			log.Fatal(err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		os.Exit(0)
	}

	cfg, err := midirec.LoadConfig(*configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || isFlagPassed("config") {
			log.Fatal(err)
		}
		cfg = midirec.DefaultConfig()
	}
	if *outPath != "" {
		cfg.Path = *outPath
	}
	if isFlagPassed("overwrite") {
		cfg.AutoIncrement = !*overwrite
	}
	if isFlagPassed("align") {
		cfg.AlignToFirstNote = *align
	}
	if *tempo > 0 {
		cfg.Tempo = *tempo
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if *save {
		if err := cfg.Save(*configPath); err != nil {
			log.Fatal(err)
		}
		log.Printf("configuration saved to %v", *configPath)
		os.Exit(0)
	}
	if cfg.Path == "" {
		log.Printf("warning: %v; recordings will not start until one is set with -o or PUT /config", midirec.ErrNoPath)
	}

	broker := recorder.NewBroker()
	go broker.LogAlerts(log.Default())
	engine := host.NewEngine(*sampleRate, cfg, smfsink.New(), broker, *expanders, *tracks, *voices)

	input, err := cmd.NewMIDIInput(engine.Notes, *midiInput)
	if err != nil {
		log.Printf("no MIDI input: %v", err)
		input = cmd.NullMIDIInput{}
	} else {
		log.Printf("MIDI input: %v", input)
	}
	defer input.Close()

	driver, err := oto.NewDriver(engine, engine.Notes, *sampleRate)
	if err != nil {
		log.Fatal(err)
	}

	if *listen != "" {
		srv := &http.Server{Addr: *listen, Handler: newRouter(engine)}
		go func() {
			log.Printf("remote control on %v", *listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("remote control server: %v", err)
			}
		}()
		defer srv.Close()
	}

	if *record {
		engine.Recorder.SetRun(true)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	<-interrupt
	log.Print("stopping")
	stop(engine.Recorder)
	if err := driver.Close(); err != nil {
		log.Print(err)
	}
	recorder.TrySend(broker.CloseLogger, struct{}{})
	select {
	case <-broker.FinishedLogger:
	case <-time.After(3 * time.Second):
	}
}

// stop releases the run button, waits for the audio thread to notice and
// then for the file to be written.
func stop(rec *recorder.Recorder) {
	rec.SetRun(false)
	deadline := time.Now().Add(time.Second)
	for rec.State() != recorder.Idle && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	rec.Wait()
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
