package recorder

import (
	"fmt"
	"log"
	"time"
)

type (
	// Broker carries alerts out of the audio thread. The audio thread must
	// not format strings, take locks or do I/O, so it only posts fixed size
	// Alert values with TrySend; if the channel is full the alert is dropped.
	// A logging goroutine formats and prints them.
	//
	// For closing the logging goroutine, the broker has two channels:
	// CloseLogger has a capacity of 1, so sending struct{}{} to it with
	// TrySend never blocks; if it is already full, someone else has already
	// requested closing. FinishedLogger is closed when the goroutine has
	// exited; wait on it with a timeout:
	//    select {
	//      case <-FinishedLogger:
	//      case <-time.After(3 * time.Second):
	//    }
	Broker struct {
		ToLogger       chan Alert
		CloseLogger    chan struct{}
		FinishedLogger chan struct{}
	}

	// Alert is a condition worth reporting to the user. Alerts posted from
	// the audio thread only use constant names and numeric fields; Message
	// is filled in by the worker goroutine.
	Alert struct {
		Name     string
		Priority AlertPriority
		Track    int
		Value    float64
		Message  string
	}

	AlertPriority int
)

const (
	Info AlertPriority = iota
	Warning
	Error
)

// Alert names.
const (
	AlertNoPath               = "NoPath"
	AlertArmed                = "Armed"
	AlertRecording            = "Recording"
	AlertStopped              = "Stopped"
	AlertWritten              = "Written"
	AlertWriteFailed          = "WriteFailed"
	AlertNothingRecorded      = "NothingRecorded"
	AlertExpanderConnected    = "ExpanderConnected"
	AlertExpanderDisconnected = "ExpanderDisconnected"
	AlertStalled              = "Stalled"
	AlertPendingFull          = "PendingFull"
)

func NewBroker() *Broker {
	return &Broker{
		ToLogger:       make(chan Alert, 1024),
		CloseLogger:    make(chan struct{}, 1),
		FinishedLogger: make(chan struct{}),
	}
}

// Post sends an alert without blocking. A nil broker discards everything.
func (b *Broker) Post(a Alert) bool {
	if b == nil {
		return false
	}
	return TrySend(b.ToLogger, a)
}

// LogAlerts prints alerts to l until CloseLogger receives a value. Alerts
// still queued at that point are printed before FinishedLogger is closed.
func (b *Broker) LogAlerts(l *log.Logger) {
	defer close(b.FinishedLogger)
	for {
		select {
		case a := <-b.ToLogger:
			l.Print(a.String())
		case <-b.CloseLogger:
			for {
				select {
				case a := <-b.ToLogger:
					l.Print(a.String())
				default:
					return
				}
			}
		}
	}
}

func (p AlertPriority) String() string {
	switch p {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

func (a Alert) String() string {
	switch a.Name {
	case AlertNoPath:
		return fmt.Sprintf("[%v] recording not started: no destination path configured", a.Priority)
	case AlertArmed:
		return fmt.Sprintf("[%v] armed at %.2f BPM, waiting for the first note", a.Priority, a.Value)
	case AlertRecording:
		return fmt.Sprintf("[%v] recording at %.2f BPM", a.Priority, a.Value)
	case AlertStopped:
		return fmt.Sprintf("[%v] recording stopped after %d ticks", a.Priority, int64(a.Value))
	case AlertExpanderConnected, AlertExpanderDisconnected:
		return fmt.Sprintf("[%v] %s", a.Priority, a.Message)
	case AlertStalled:
		return fmt.Sprintf("[%v] audio thread waited for the file writer %d times", a.Priority, int64(a.Value))
	case AlertPendingFull:
		return fmt.Sprintf("[%v] track %d: too many controller changes in one sample, some were dropped", a.Priority, a.Track+1)
	}
	if a.Message != "" {
		return fmt.Sprintf("[%v] %s: %s", a.Priority, a.Name, a.Message)
	}
	return fmt.Sprintf("[%v] %s", a.Priority, a.Name)
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive is a helper function to block until a value is received from a
// channel, or timing out after t. ok will be false if the timeout occurred or
// if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
