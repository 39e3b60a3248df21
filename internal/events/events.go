package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Op identifies which operation an event belongs to.
type Op string

const (
	OpInstall   Op = "install"
	OpUninstall Op = "uninstall"
)

// Event is a progress notification emitted while an operation runs.
type Event interface {
	Kind() string
}

// Accepted is emitted when an operation has been accepted and work begins.
type Accepted struct {
	OperationID string    `json:"operationId"`
	Op          Op        `json:"op"`
	Package     string    `json:"package"`
	Version     string    `json:"version,omitempty"`
	At          time.Time `json:"at"`
}

func (Accepted) Kind() string { return "accepted" }

// Executing is emitted immediately before the blocking wait on the
// installer process. Installers can run for minutes; this is the last
// event until the process exits.
type Executing struct {
	OperationID string    `json:"operationId"`
	Op          Op        `json:"op"`
	Package     string    `json:"package"`
	Command     string    `json:"command"`
	At          time.Time `json:"at"`
}

func (Executing) Kind() string { return "executing" }

// Succeeded is emitted when the installer exits with success.
type Succeeded struct {
	OperationID string    `json:"operationId"`
	Op          Op        `json:"op"`
	Package     string    `json:"package"`
	Version     string    `json:"version,omitempty"`
	At          time.Time `json:"at"`
}

func (Succeeded) Kind() string { return "succeeded" }

// Failed is emitted when the installer exits with a non-zero code or
// cannot be launched at all.
type Failed struct {
	OperationID string    `json:"operationId"`
	Op          Op        `json:"op"`
	Package     string    `json:"package"`
	ExitCode    int       `json:"exitCode"`
	Reason      string    `json:"reason,omitempty"`
	LogPath     string    `json:"logPath,omitempty"`
	At          time.Time `json:"at"`
}

func (Failed) Kind() string { return "failed" }

// Sink consumes events. Implementations must not block the caller.
type Sink interface {
	Publish(e Event)
}

// Bus fans events out to every attached sink.
type Bus struct {
	mu    sync.RWMutex
	sinks []Sink
}

func NewBus() *Bus {
	return &Bus{}
}

// Attach registers a sink. Sinks attached after events were published
// do not see past events.
func (b *Bus) Attach(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()

	for _, s := range sinks {
		s.Publish(e)
	}
}

// NewOperationID returns a fresh correlation ID for one operation.
func NewOperationID() string {
	return uuid.NewString()
}
