package recorder_test

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/chinenual/midirec/recorder"
)

func TestNilBrokerDiscards(t *testing.T) {
	var b *recorder.Broker
	if b.Post(recorder.Alert{Name: recorder.AlertArmed}) {
		t.Fatalf("a nil broker should not accept alerts")
	}
}

func TestBrokerDropsWhenFull(t *testing.T) {
	b := recorder.NewBroker()
	for i := 0; i < cap(b.ToLogger); i++ {
		if !b.Post(recorder.Alert{Name: recorder.AlertStalled}) {
			t.Fatalf("alert %v dropped below capacity", i)
		}
	}
	if b.Post(recorder.Alert{Name: recorder.AlertStalled}) {
		t.Fatalf("posting to a full broker should not block or succeed")
	}
}

func TestLogAlertsDrainsOnClose(t *testing.T) {
	b := recorder.NewBroker()
	var buf bytes.Buffer
	b.Post(recorder.Alert{Name: recorder.AlertRecording, Value: 120})
	b.Post(recorder.Alert{Name: recorder.AlertWritten, Message: "take.mid"})
	recorder.TrySend(b.CloseLogger, struct{}{})
	go b.LogAlerts(log.New(&buf, "", 0))
	select {
	case <-b.FinishedLogger:
	case <-time.After(3 * time.Second):
		t.Fatalf("logger did not finish")
	}
	out := buf.String()
	if !strings.Contains(out, "recording at 120.00 BPM") || !strings.Contains(out, "take.mid") {
		t.Fatalf("queued alerts were not logged: %q", out)
	}
}
