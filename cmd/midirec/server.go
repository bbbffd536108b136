package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chinenual/midirec"
	"github.com/chinenual/midirec/host"
	"github.com/chinenual/midirec/recorder"
	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

// execTimeout bounds how long a request waits for the audio thread. If the
// audio device is not running, nothing will ever execute the request.
const execTimeout = 2 * time.Second

type (
	server struct {
		engine *host.Engine
	}

	statusResponse struct {
		State    string `json:"state"`
		Frame    int64  `json:"frame"`
		Stalls   int64  `json:"stalls"`
		LastFile string `json:"lastFile,omitempty"`
		Tracks   int    `json:"tracks,omitempty"`
		Error    string `json:"error,omitempty"`
	}

	portRequest struct {
		Expander  int       `json:"expander"` // -1 for the recorder itself
		Track     int       `json:"track"`
		Column    int       `json:"column"`
		Connected bool      `json:"connected"`
		Voltages  []float32 `json:"voltages"`
	}
)

func newRouter(e *host.Engine) *mux.Router {
	s := &server{engine: e}
	router := mux.NewRouter()
	router.Use(cors)
	router.HandleFunc("/status", s.handleStatus).Methods("GET")
	router.HandleFunc("/record/start", s.handleRun(func(r *recorder.Recorder) { r.SetRun(true) })).Methods("POST", "OPTIONS")
	router.HandleFunc("/record/stop", s.handleRun(func(r *recorder.Recorder) { r.SetRun(false) })).Methods("POST", "OPTIONS")
	router.HandleFunc("/record/toggle", s.handleRun(func(r *recorder.Recorder) { r.ToggleRun() })).Methods("POST", "OPTIONS")
	router.HandleFunc("/ports", s.handlePorts).Methods("POST", "OPTIONS")
	router.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	router.HandleFunc("/config", s.handlePutConfig).Methods("PUT", "OPTIONS")
	router.HandleFunc("/", handleRoot).Methods("GET")
	return router
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		// Handle pre-flight OPTIONS request
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) status() statusResponse {
	rec := s.engine.Recorder
	ret := statusResponse{State: rec.State().String(), Stalls: rec.Stalls()}
	if res := rec.LastFile(); res != nil {
		ret.LastFile = res.Path
		ret.Tracks = res.Tracks
		if res.Err != nil {
			ret.Error = res.Err.Error()
		}
	}
	// the frame counter belongs to the audio thread
	frame := make(chan int64, 1)
	if recorder.TrySend(s.engine.Exec(), func() { frame <- s.engine.Frame() }) {
		if f, ok := recorder.TimeoutReceive(frame, execTimeout); ok {
			ret.Frame = f
		}
	}
	return ret
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

// handleRun changes the run button; the recorder reacts on the next sample.
func (s *server) handleRun(f func(*recorder.Recorder)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f(s.engine.Recorder)
		writeJSON(w, http.StatusAccepted, s.status())
	}
}

// handlePorts connects, disconnects or sets the voltages of a port, as if a
// cable had been patched.
func (s *server) handlePorts(w http.ResponseWriter, r *http.Request) {
	var req portRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON input", http.StatusBadRequest)
		return
	}
	if len(req.Voltages) > midirec.MaxChannels {
		http.Error(w, fmt.Sprintf("at most %d voltages", midirec.MaxChannels), http.StatusBadRequest)
		return
	}
	done := make(chan error, 1)
	sent := recorder.TrySend(s.engine.Exec(), func() {
		p := s.engine.Port(req.Expander, req.Track, req.Column)
		if p == nil {
			done <- fmt.Errorf("no port at expander %d, track %d, column %d", req.Expander, req.Track, req.Column)
			return
		}
		if !req.Connected {
			p.Disconnect()
		} else {
			p.Connected = true
			p.Channels = max(len(req.Voltages), 1)
			copy(p.Voltages[:], req.Voltages)
		}
		s.engine.PortsChanged()
		done <- nil
	})
	var err error
	ok := false
	if sent {
		err, ok = recorder.TimeoutReceive(done, execTimeout)
	}
	switch {
	case !ok:
		http.Error(w, "audio thread is not running", http.StatusServiceUnavailable)
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	b, err := yaml.Marshal(s.engine.Recorder.Config())
	if err != nil {
		http.Error(w, fmt.Sprintf("Error marshaling config: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// handlePutConfig replaces the configuration; the recorder applies it when
// the next recording starts, the expanders immediately.
func (s *server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Could not read body", http.StatusBadRequest)
		return
	}
	cfg := s.engine.Recorder.Config()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		http.Error(w, fmt.Sprintf("Invalid YAML: %v", err), http.StatusBadRequest)
		return
	}
	if err := cfg.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.engine.Recorder.SetConfig(cfg)
	for _, x := range s.engine.Expanders {
		x.SetConfig(cfg.CC)
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("midirec server. POST /record/start, /record/stop or /record/toggle; GET /status."))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
