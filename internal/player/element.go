package player

import "sync"

// Event is a media element notification
type Event string

const (
	EventTimeUpdate     Event = "timeupdate"
	EventLoadedMetadata Event = "loadedmetadata"
	EventEnded          Event = "ended"
	EventPlayFailed     Event = "playfailed"
)

// ParseEvent maps a notification name to an Event
func ParseEvent(name string) (Event, bool) {
	switch ev := Event(name); ev {
	case EventTimeUpdate, EventLoadedMetadata, EventEnded, EventPlayFailed:
		return ev, true
	}
	return "", false
}

// Snapshot is the element state reported with a notification. Duration is NaN
// until metadata has loaded.
type Snapshot struct {
	CurrentTime float64
	Duration    float64
}

// Listener receives element notifications
type Listener func(Snapshot)

// Element is the playable media element a Player drives
type Element interface {
	// On registers l for ev and returns the function that removes it
	On(ev Event, l Listener) (off func())
	Play() error
	Pause() error
}

// Command is an instruction for the element's real counterpart
type Command string

const (
	CommandPlay  Command = "play"
	CommandPause Command = "pause"
)

// RemoteElement stands in for a media element that lives elsewhere (the browser).
// Notifications arrive through Dispatch; Play and Pause are forwarded to send.
type RemoteElement struct {
	mu        sync.Mutex
	nextID    int
	listeners map[Event]map[int]Listener
	send      func(Command) error
}

var _ Element = (*RemoteElement)(nil)

// NewRemoteElement creates an element whose commands go to send. A nil send drops them.
func NewRemoteElement(send func(Command) error) *RemoteElement {
	return &RemoteElement{
		listeners: make(map[Event]map[int]Listener),
		send:      send,
	}
}

func (e *RemoteElement) On(ev Event, l Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	if e.listeners[ev] == nil {
		e.listeners[ev] = make(map[int]Listener)
	}
	e.listeners[ev][id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.listeners[ev], id)
			if len(e.listeners[ev]) == 0 {
				delete(e.listeners, ev)
			}
		})
	}
}

// Dispatch delivers a notification to every listener registered for ev
func (e *RemoteElement) Dispatch(ev Event, s Snapshot) {
	e.mu.Lock()
	ls := make([]Listener, 0, len(e.listeners[ev]))
	for _, l := range e.listeners[ev] {
		ls = append(ls, l)
	}
	e.mu.Unlock()

	for _, l := range ls {
		l(s)
	}
}

func (e *RemoteElement) Play() error {
	return e.command(CommandPlay)
}

func (e *RemoteElement) Pause() error {
	return e.command(CommandPause)
}

func (e *RemoteElement) command(c Command) error {
	if e.send == nil {
		return nil
	}
	return e.send(c)
}

// ListenerCount returns the number of registered listeners across all events
func (e *RemoteElement) ListenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ls := range e.listeners {
		n += len(ls)
	}
	return n
}
