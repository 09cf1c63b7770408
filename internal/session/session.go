// Package session binds one browser session to its workflow controller, its
// uploader and the players rendered for the current results.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/contentenhancer/web/internal/client"
	"github.com/contentenhancer/web/internal/config"
	"github.com/contentenhancer/web/internal/media"
	"github.com/contentenhancer/web/internal/model"
	"github.com/contentenhancer/web/internal/player"
	"github.com/contentenhancer/web/internal/uploader"
	"github.com/contentenhancer/web/internal/workflow"
)

// Player ids
const (
	OriginalPlayerID = "original"
	EnhancedPlayerID = "enhanced"
)

var ErrPlayerNotFound = errors.New("player not found")

// Publisher pushes session updates to the connected browser tabs
type Publisher interface {
	PublishState(sessionID string, state interface{})
	PublishCommand(sessionID, playerID, action string)
}

// ClipView is one generated short card
type ClipView struct {
	Player player.View `json:"player"`
	Script string      `json:"script"`
}

// State is everything the page renders
type State struct {
	Enhancement    model.ProcessingRequest `json:"enhancement"`
	Shorts         model.ProcessingRequest `json:"shorts"`
	UploadDisabled bool                    `json:"uploadDisabled"`
	ShortsDisabled bool                    `json:"shortsDisabled"`
	Accept         string                  `json:"accept"`
	Original       *player.View            `json:"original,omitempty"`
	Enhanced       *player.View            `json:"enhanced,omitempty"`
	Clips          []ClipView              `json:"clips"`
}

type slot struct {
	key    string
	player *player.Player
	el     *player.RemoteElement
	script string
}

// wanted describes a player the current snapshot calls for
type wanted struct {
	id     string
	key    string
	title  string
	src    string
	script string
	clip   bool
	opts   []player.Option
}

// Session is the server-side state of one page view.
type Session struct {
	ID         string
	Controller *workflow.Controller
	Uploader   *uploader.FileUploader

	store media.Store
	pub   Publisher

	mu       sync.Mutex
	slots    map[string]*slot
	clipIDs  []string
	lastSeen time.Time
	closed   bool
}

// Deps are the collaborators shared by every session
type Deps struct {
	Store     media.Store
	Enhancer  client.AudioEnhancer
	Shorts    client.ShortsGenerator
	Upload    *config.UploadConfig
	Publisher Publisher
}

func newSession(id string, d Deps) *Session {
	s := &Session{
		ID:       id,
		store:    d.Store,
		pub:      d.Publisher,
		slots:    make(map[string]*slot),
		lastSeen: time.Now(),
	}
	s.Controller = workflow.New(d.Store, d.Enhancer, d.Shorts, workflow.WithOnChange(s.sync))
	s.Uploader = uploader.New(d.Upload, s.Controller.SelectAudio, uploader.WithDisabled(func() bool {
		return s.Controller.Busy(model.KindEnhancement)
	}))
	return s
}

// Touch marks the session as active
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// HandleEvent routes a media element notification from the browser to its player.
// A nil duration means metadata has not loaded.
func (s *Session) HandleEvent(playerID, name string, currentTime float64, duration *float64) error {
	ev, ok := player.ParseEvent(name)
	if !ok {
		return fmt.Errorf("unknown media event %q", name)
	}

	s.mu.Lock()
	sl, ok := s.slots[playerID]
	s.mu.Unlock()
	if !ok {
		return ErrPlayerNotFound
	}

	d := math.NaN()
	if duration != nil {
		d = *duration
	}
	sl.el.Dispatch(ev, player.Snapshot{CurrentTime: currentTime, Duration: d})
	return nil
}

// Toggle presses the play/pause control of a player
func (s *Session) Toggle(playerID string) error {
	s.mu.Lock()
	sl, ok := s.slots[playerID]
	s.mu.Unlock()
	if !ok {
		return ErrPlayerNotFound
	}
	return sl.player.Toggle()
}

// State returns the render-ready state
func (s *Session) State() State {
	snap := s.Controller.Snapshot()

	st := State{
		Enhancement:    snap.Enhancement,
		Shorts:         snap.Shorts,
		UploadDisabled: snap.Enhancement.InFlight(),
		ShortsDisabled: snap.Shorts.InFlight(),
		Accept:         s.Uploader.Accept(),
		Clips:          []ClipView{},
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sl, ok := s.slots[OriginalPlayerID]; ok {
		v := sl.player.View()
		st.Original = &v
	}
	if sl, ok := s.slots[EnhancedPlayerID]; ok {
		v := sl.player.View()
		st.Enhanced = &v
	}
	for _, id := range s.clipIDs {
		sl := s.slots[id]
		st.Clips = append(st.Clips, ClipView{Player: sl.player.View(), Script: sl.script})
	}
	return st
}

// sync reconciles the mounted players with a controller snapshot. Players whose
// source is unchanged keep their playback state.
func (s *Session) sync(snap workflow.Snapshot) {
	var want []wanted
	if snap.Original != nil {
		src := snap.Original
		want = append(want, wanted{
			id:    OriginalPlayerID,
			key:   src.ID,
			title: "Original Recording",
			src:   src.URL,
			opts:  []player.Option{player.WithOnUnmount(s.releaser(src.ID))},
		})
	}
	if snap.Enhanced != nil {
		src := snap.Enhanced
		want = append(want, wanted{
			id:    EnhancedPlayerID,
			key:   src.ID,
			title: "Enhanced Recording",
			src:   src.URL,
			opts: []player.Option{
				player.WithDownload(src.DownloadURL, media.DownloadFileName),
				player.WithOnUnmount(s.releaser(src.ID)),
			},
		})
	}
	for i, clip := range snap.Clips {
		want = append(want, wanted{
			id:     fmt.Sprintf("short-%d", i),
			key:    fmt.Sprintf("%d:%d:%s", snap.Shorts.Seq, i, clip.VideoURL),
			title:  "Generated Short",
			src:    clip.VideoURL,
			script: clip.Script,
			clip:   true,
			opts:   []player.Option{player.WithVariant(player.VariantVideo)},
		})
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	keep := make(map[string]bool, len(want))
	for _, w := range want {
		keep[w.id] = true
	}

	var stale []*slot
	for id, sl := range s.slots {
		if !keep[id] {
			stale = append(stale, sl)
			delete(s.slots, id)
		}
	}

	clipIDs := make([]string, 0, len(snap.Clips))
	var fresh []*slot
	for _, w := range want {
		if w.clip {
			clipIDs = append(clipIDs, w.id)
		}
		if cur, ok := s.slots[w.id]; ok {
			if cur.key == w.key {
				continue
			}
			stale = append(stale, cur)
		}
		sl := s.newSlot(w)
		s.slots[w.id] = sl
		fresh = append(fresh, sl)
	}
	s.clipIDs = clipIDs
	s.mu.Unlock()

	for _, sl := range stale {
		sl.player.Unmount()
	}
	for _, sl := range fresh {
		sl.player.Mount()
	}
	s.publish()
}

func (s *Session) newSlot(w wanted) *slot {
	id := w.id
	el := player.NewRemoteElement(func(cmd player.Command) error {
		if s.pub != nil {
			s.pub.PublishCommand(s.ID, id, string(cmd))
		}
		return nil
	})
	opts := append([]player.Option{player.WithOnChange(func(player.View) { s.publish() })}, w.opts...)
	return &slot{
		key:    w.key,
		player: player.New(w.id, w.title, w.src, el, opts...),
		el:     el,
		script: w.script,
	}
}

func (s *Session) releaser(id string) func() {
	return func() {
		s.store.Release(context.Background(), id)
	}
}

func (s *Session) publish() {
	if s.pub == nil {
		return
	}
	s.pub.PublishState(s.ID, s.State())
}

// Close abandons in-flight requests and unmounts every player
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	slots := s.slots
	s.slots = make(map[string]*slot)
	s.clipIDs = nil
	s.mu.Unlock()

	s.Controller.Close()
	for _, sl := range slots {
		sl.player.Unmount()
	}
}
