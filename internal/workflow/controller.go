// Package workflow sequences the two page flows: select audio -> enhance, and
// submit URL -> generate shorts.
//
// Each submission of a kind is tagged with a sequence number. A completion whose
// sequence is no longer current is dropped and any source it produced is released,
// so a late completion never overwrites a newer result. Only one request of each
// kind is in flight at a time.
package workflow

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/contentenhancer/web/internal/client"
	"github.com/contentenhancer/web/internal/media"
	"github.com/contentenhancer/web/internal/model"
)

// User-facing failure messages. The underlying cause is only logged.
const (
	AudioFailureMessage = "Failed to process audio. Please try again."
	VideoFailureMessage = "Failed to process video. Please try again."
)

// ErrBusy is returned when a request of the same kind is still in flight.
var ErrBusy = errors.New("workflow: request already in flight")

// Snapshot is a copy of the controller state
type Snapshot struct {
	Enhancement model.ProcessingRequest `json:"enhancement"`
	Shorts      model.ProcessingRequest `json:"shorts"`
	Original    *model.Source           `json:"original,omitempty"`
	Enhanced    *model.Source           `json:"enhanced,omitempty"`
	Clips       []model.ShortClip       `json:"clips"`
}

// Option configures a Controller
type Option func(*Controller)

// WithOnChange registers a callback invoked with the latest snapshot after every
// state change. Calls are serialized.
func WithOnChange(fn func(Snapshot)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// Controller owns the state of one workflow instance.
type Controller struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	store    media.Store
	enhancer client.AudioEnhancer
	shorts   client.ShortsGenerator
	onChange func(Snapshot)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool

	enhancement model.ProcessingRequest
	shortsReq   model.ProcessingRequest
	original    *model.Source
	enhanced    *model.Source
	clips       []model.ShortClip
}

// New creates an idle controller
func New(store media.Store, enhancer client.AudioEnhancer, shorts client.ShortsGenerator, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		store:       store,
		enhancer:    enhancer,
		shorts:      shorts,
		ctx:         ctx,
		cancel:      cancel,
		enhancement: model.ProcessingRequest{Kind: model.KindEnhancement, Status: model.StatusIdle},
		shortsReq:   model.ProcessingRequest{Kind: model.KindShorts, Status: model.StatusIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SelectAudio starts an enhancement of file. The original is registered as a
// playable source before the backend is called. ErrBusy is returned while the
// previous enhancement is still in flight.
func (c *Controller) SelectAudio(file *model.UploadedFile) error {
	if file == nil || len(file.Data) == 0 {
		return client.Validation("enhance", "no audio file selected")
	}

	original, putErr := c.store.Put(c.ctx, file.Name, file.ContentType, file.Data)

	now := time.Now()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if original != nil {
			c.store.Release(context.Background(), original.ID)
		}
		return context.Canceled
	}
	if c.enhancement.InFlight() {
		c.mu.Unlock()
		if original != nil {
			c.store.Release(context.Background(), original.ID)
		}
		return ErrBusy
	}
	superseded := c.sourcesLocked()
	c.enhancement = model.ProcessingRequest{
		Kind:        model.KindEnhancement,
		Seq:         c.enhancement.Seq + 1,
		Status:      model.StatusSubmitting,
		SubmittedAt: &now,
	}
	seq := c.enhancement.Seq
	c.original = original
	c.enhanced = nil
	c.mu.Unlock()

	c.release(superseded)

	if putErr != nil {
		c.completeEnhancement(seq, nil, putErr)
		return nil
	}

	c.notify()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		src, err := c.enhancer.Enhance(c.ctx, file)
		c.completeEnhancement(seq, src, err)
	}()
	return nil
}

// SubmitURL starts a shorts generation. A blank URL is rejected without a request,
// and ErrBusy is returned while the previous generation is still in flight.
func (c *Controller) SubmitURL(videoURL string) error {
	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		return client.Validation("shorts", "YouTube URL is required")
	}

	now := time.Now()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return context.Canceled
	}
	if c.shortsReq.InFlight() {
		c.mu.Unlock()
		return ErrBusy
	}
	c.shortsReq = model.ProcessingRequest{
		Kind:        model.KindShorts,
		Seq:         c.shortsReq.Seq + 1,
		Status:      model.StatusSubmitting,
		SubmittedAt: &now,
	}
	seq := c.shortsReq.Seq
	c.clips = nil
	c.mu.Unlock()

	c.notify()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		clips, err := c.shorts.GenerateShorts(c.ctx, videoURL)
		c.completeShorts(seq, clips, err)
	}()
	return nil
}

func (c *Controller) completeEnhancement(seq uint64, src *model.Source, err error) {
	now := time.Now()

	c.mu.Lock()
	if c.closed || seq != c.enhancement.Seq {
		c.mu.Unlock()
		log.Printf("[workflow] discarding stale enhancement #%d", seq)
		if src != nil {
			c.store.Release(context.Background(), src.ID)
		}
		return
	}
	c.enhancement.CompletedAt = &now
	if err != nil {
		c.enhancement.Status = model.StatusFailed
		c.enhancement.Error = AudioFailureMessage
		c.enhanced = nil
	} else {
		c.enhancement.Status = model.StatusSucceeded
		c.enhancement.Error = ""
		c.enhanced = src
	}
	c.mu.Unlock()

	if err != nil {
		log.Printf("[workflow] enhancement #%d failed: %v", seq, err)
	}
	c.notify()
}

func (c *Controller) completeShorts(seq uint64, clips []model.ShortClip, err error) {
	now := time.Now()

	c.mu.Lock()
	if c.closed || seq != c.shortsReq.Seq {
		c.mu.Unlock()
		log.Printf("[workflow] discarding stale shorts request #%d", seq)
		return
	}
	c.shortsReq.CompletedAt = &now
	if err != nil {
		c.shortsReq.Status = model.StatusFailed
		c.shortsReq.Error = VideoFailureMessage
		c.clips = nil
	} else {
		c.shortsReq.Status = model.StatusSucceeded
		c.shortsReq.Error = ""
		c.clips = clips
	}
	c.mu.Unlock()

	if err != nil {
		log.Printf("[workflow] shorts request #%d failed: %v", seq, err)
	}
	c.notify()
}

// Busy reports whether a request of kind is in flight
func (c *Controller) Busy(kind model.RequestKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch kind {
	case model.KindEnhancement:
		return c.enhancement.InFlight()
	case model.KindShorts:
		return c.shortsReq.InFlight()
	}
	return false
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Enhancement: c.enhancement,
		Shorts:      c.shortsReq,
		Clips:       make([]model.ShortClip, len(c.clips)),
	}
	copy(s.Clips, c.clips)
	if c.original != nil {
		o := *c.original
		s.Original = &o
	}
	if c.enhanced != nil {
		e := *c.enhanced
		s.Enhanced = &e
	}
	return s
}

// Wait blocks until every started request has completed
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close abandons in-flight requests and releases the current sources.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sources := c.sourcesLocked()
	c.original = nil
	c.enhanced = nil
	c.mu.Unlock()

	c.cancel()
	c.release(sources)
}

func (c *Controller) sourcesLocked() []*model.Source {
	var out []*model.Source
	if c.original != nil {
		out = append(out, c.original)
	}
	if c.enhanced != nil {
		out = append(out, c.enhanced)
	}
	return out
}

func (c *Controller) release(sources []*model.Source) {
	for _, src := range sources {
		c.store.Release(context.Background(), src.ID)
	}
}

func (c *Controller) notify() {
	if c.onChange == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.onChange(c.Snapshot())
}
