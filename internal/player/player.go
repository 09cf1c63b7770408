// Package player implements the media player widget: a play/pause toggle, an
// elapsed/duration readout and a progress bar bound to a media Element.
package player

import (
	"errors"
	"math"
	"sync"
)

// VideoErrorText replaces the video control once playback has failed
const VideoErrorText = "Error loading video. Please try refreshing the page."

// ErrUnavailable is returned by Toggle once a video player has failed
var ErrUnavailable = errors.New("player unavailable")

// Variant selects audio or video behavior
type Variant string

const (
	VariantAudio Variant = "audio"
	VariantVideo Variant = "video"
)

// PlaybackSession is the state of one rendered player. TotalDuration is NaN
// until metadata loads.
type PlaybackSession struct {
	Source          string
	CurrentPosition float64
	TotalDuration   float64
	IsPlaying       bool
}

// Download is the optional save affordance
type Download struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// View is the render-ready state of a player. It never carries NaN.
type View struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Src       string    `json:"src"`
	Variant   Variant   `json:"variant"`
	Playing   bool      `json:"playing"`
	Elapsed   string    `json:"elapsed"`
	Duration  string    `json:"duration"`
	Progress  float64   `json:"progress"`
	Download  *Download `json:"download,omitempty"`
	Failed    bool      `json:"failed"`
	ErrorText string    `json:"errorText,omitempty"`
}

// Option configures a Player
type Option func(*Player)

// WithDownload enables the download affordance
func WithDownload(url, name string) Option {
	return func(p *Player) {
		p.download = &Download{URL: url, Name: name}
	}
}

// WithVariant selects the video variant
func WithVariant(v Variant) Option {
	return func(p *Player) {
		p.variant = v
	}
}

// WithOnChange registers a callback invoked after every state change
func WithOnChange(fn func(View)) Option {
	return func(p *Player) {
		p.onChange = fn
	}
}

// WithOnUnmount registers a callback invoked once when the player unmounts
func WithOnUnmount(fn func()) Option {
	return func(p *Player) {
		p.onUnmount = fn
	}
}

// Player binds a PlaybackSession to an Element.
type Player struct {
	mu sync.Mutex

	id       string
	title    string
	variant  Variant
	el       Element
	download *Download

	session PlaybackSession
	failed  bool
	mounted bool
	offs    []func()

	onChange  func(View)
	onUnmount func()
}

// New creates an unmounted player for src
func New(id, title, src string, el Element, opts ...Option) *Player {
	p := &Player{
		id:      id,
		title:   title,
		variant: VariantAudio,
		el:      el,
		session: PlaybackSession{
			Source:        src,
			TotalDuration: math.NaN(),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Player) ID() string { return p.id }

// Mount subscribes to the element's notifications. Calling it twice is a no-op.
func (p *Player) Mount() {
	p.mu.Lock()
	if p.mounted {
		p.mu.Unlock()
		return
	}
	p.mounted = true
	p.mu.Unlock()

	offs := []func(){
		p.el.On(EventTimeUpdate, p.onTimeUpdate),
		p.el.On(EventLoadedMetadata, p.onLoadedMetadata),
		p.el.On(EventEnded, p.onEnded),
		p.el.On(EventPlayFailed, p.onPlayFailed),
	}

	p.mu.Lock()
	p.offs = offs
	p.mu.Unlock()
}

// Unmount removes every listener registered by Mount.
func (p *Player) Unmount() {
	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		return
	}
	p.mounted = false
	offs := p.offs
	p.offs = nil
	p.session.IsPlaying = false
	onUnmount := p.onUnmount
	p.onUnmount = nil
	p.mu.Unlock()

	for _, off := range offs {
		off()
	}
	if onUnmount != nil {
		onUnmount()
	}
}

// Toggle plays a paused player and pauses a playing one.
func (p *Player) Toggle() error {
	p.mu.Lock()
	if p.failed {
		p.mu.Unlock()
		return ErrUnavailable
	}
	playing := p.session.IsPlaying
	p.mu.Unlock()

	if playing {
		if err := p.el.Pause(); err != nil {
			return err
		}
		p.update(func(s *PlaybackSession) { s.IsPlaying = false })
		return nil
	}

	if err := p.el.Play(); err != nil {
		p.fail()
		return err
	}
	p.update(func(s *PlaybackSession) { s.IsPlaying = true })
	return nil
}

// Session returns a copy of the playback state
func (p *Player) Session() PlaybackSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// View returns the render-ready state
func (p *Player) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

func (p *Player) viewLocked() View {
	v := View{
		ID:       p.id,
		Title:    p.title,
		Src:      p.session.Source,
		Variant:  p.variant,
		Playing:  p.session.IsPlaying,
		Elapsed:  FormatTime(p.session.CurrentPosition),
		Duration: FormatTime(p.session.TotalDuration),
		Progress: Progress(p.session.CurrentPosition, p.session.TotalDuration),
		Failed:   p.failed,
	}
	if p.download != nil {
		d := *p.download
		v.Download = &d
	}
	if p.failed {
		v.ErrorText = VideoErrorText
	}
	return v
}

func (p *Player) onTimeUpdate(s Snapshot) {
	p.update(func(ps *PlaybackSession) {
		if durationKnown(s.Duration) && !durationKnown(ps.TotalDuration) {
			ps.TotalDuration = s.Duration
		}
		ps.CurrentPosition = clampPosition(s.CurrentTime, ps.TotalDuration)
	})
}

func (p *Player) onLoadedMetadata(s Snapshot) {
	p.update(func(ps *PlaybackSession) {
		ps.TotalDuration = s.Duration
		ps.CurrentPosition = clampPosition(ps.CurrentPosition, ps.TotalDuration)
	})
}

func (p *Player) onEnded(Snapshot) {
	p.update(func(ps *PlaybackSession) { ps.IsPlaying = false })
}

func (p *Player) onPlayFailed(Snapshot) {
	p.fail()
}

// fail stops playback; the video variant additionally locks into its error state
func (p *Player) fail() {
	p.mu.Lock()
	p.session.IsPlaying = false
	if p.variant == VariantVideo {
		p.failed = true
	}
	v := p.viewLocked()
	fn := p.onChange
	p.mu.Unlock()

	if fn != nil {
		fn(v)
	}
}

func (p *Player) update(mutate func(*PlaybackSession)) {
	p.mu.Lock()
	mutate(&p.session)
	v := p.viewLocked()
	fn := p.onChange
	p.mu.Unlock()

	if fn != nil {
		fn(v)
	}
}

func clampPosition(pos, duration float64) float64 {
	if !finite(pos) || pos < 0 {
		return 0
	}
	if finite(duration) && duration >= 0 && pos > duration {
		return duration
	}
	return pos
}
