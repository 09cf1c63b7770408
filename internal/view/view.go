// Package view renders the page and the incremental updates pushed over the
// session socket.
//
// The page is split into keyed sections. A section is re-rendered in the browser
// only when its key changes, so media elements survive the frequent position
// updates, which travel as per-player patches instead.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strings"

	"github.com/contentenhancer/web/internal/player"
	"github.com/contentenhancer/web/internal/session"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static/*
var staticFiles embed.FS

// Section ids, matching the container element ids on the page
const (
	SectionAudioStatus  = "audio-status"
	SectionOriginal     = "original"
	SectionEnhanced     = "enhanced"
	SectionShortsStatus = "shorts-status"
	SectionClips        = "clips"
)

// Indicator texts
const (
	EnhancingText = "Enhancing your audio..."
	ShortsText    = "Generating shorts..."
	WaitText      = "This may take a few moments"
)

// Section is one independently replaceable block of markup
type Section struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	HTML string `json:"html"`
}

// Patch carries the fast-changing fields of one player
type Patch struct {
	ID       string  `json:"id"`
	Playing  bool    `json:"playing"`
	Elapsed  string  `json:"elapsed"`
	Duration string  `json:"duration"`
	Progress float64 `json:"progress"`
	Failed   bool    `json:"failed"`
}

// Update is the payload of a state message
type Update struct {
	Sections       []Section `json:"sections"`
	Players        []Patch   `json:"players"`
	UploadDisabled bool      `json:"uploadDisabled"`
	ShortsDisabled bool      `json:"shortsDisabled"`
}

// PageData is the input of the full page
type PageData struct {
	Title    string
	Sections map[string]PageSection
	State    session.State
}

// PageSection is a pre-rendered section embedded in the page
type PageSection struct {
	Key  string
	HTML template.HTML
}

// Indicator is the input of the processing indicator
type Indicator struct {
	Visible bool
	Text    string
	Detail  string
}

type statusData struct {
	Error     string
	Indicator Indicator
}

// Renderer executes the embedded templates
type Renderer struct {
	tpl *template.Template
}

// NewRenderer parses the embedded templates
func NewRenderer() (*Renderer, error) {
	tpl, err := template.New("page").Funcs(template.FuncMap{
		"pct":        func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
		"videoError": func() string { return player.VideoErrorText },
	}).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tpl: tpl}, nil
}

// Static returns the embedded script and stylesheet
func Static() (fs.FS, error) {
	return fs.Sub(staticFiles, "static")
}

// Page writes the full page for st
func (r *Renderer) Page(w io.Writer, st session.State) error {
	up, err := r.Update(st)
	if err != nil {
		return err
	}
	data := PageData{
		Title:    "Content Enhancer",
		Sections: make(map[string]PageSection, len(up.Sections)),
		State:    st,
	}
	for _, s := range up.Sections {
		data.Sections[s.ID] = PageSection{Key: s.Key, HTML: template.HTML(s.HTML)}
	}
	return r.tpl.ExecuteTemplate(w, "page.html", data)
}

// Update renders every section of st together with the player patches
func (r *Renderer) Update(st session.State) (Update, error) {
	up := Update{
		UploadDisabled: st.UploadDisabled,
		ShortsDisabled: st.ShortsDisabled,
		Players:        []Patch{},
	}

	audioStatus := statusData{
		Error:     st.Enhancement.Error,
		Indicator: Indicator{Visible: st.Enhancement.InFlight(), Text: EnhancingText, Detail: WaitText},
	}
	shortsStatus := statusData{
		Error:     st.Shorts.Error,
		Indicator: Indicator{Visible: st.Shorts.InFlight(), Text: ShortsText, Detail: WaitText},
	}

	sections := []struct {
		id, key, tpl string
		data         interface{}
	}{
		{SectionAudioStatus, statusKey(audioStatus), "status", audioStatus},
		{SectionOriginal, playerKey(st.Original), "audio-player", st.Original},
		{SectionEnhanced, playerKey(st.Enhanced), "audio-player", st.Enhanced},
		{SectionShortsStatus, statusKey(shortsStatus), "status", shortsStatus},
		{SectionClips, clipsKey(st.Shorts.Seq, st.Clips), "clips", st.Clips},
	}

	for _, s := range sections {
		html, err := r.render(s.tpl, s.data)
		if err != nil {
			return Update{}, err
		}
		up.Sections = append(up.Sections, Section{ID: s.id, Key: s.key, HTML: html})
	}

	for _, v := range []*player.View{st.Original, st.Enhanced} {
		if v != nil {
			up.Players = append(up.Players, patch(*v))
		}
	}
	for _, c := range st.Clips {
		up.Players = append(up.Players, patch(c.Player))
	}
	return up, nil
}

func (r *Renderer) render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := r.tpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func patch(v player.View) Patch {
	return Patch{
		ID:       v.ID,
		Playing:  v.Playing,
		Elapsed:  v.Elapsed,
		Duration: v.Duration,
		Progress: v.Progress,
		Failed:   v.Failed,
	}
}

func statusKey(s statusData) string {
	return fmt.Sprintf("%t|%s", s.Indicator.Visible, s.Error)
}

func playerKey(v *player.View) string {
	if v == nil {
		return "none"
	}
	return v.ID + "|" + v.Src
}

func clipsKey(seq uint64, clips []session.ClipView) string {
	parts := make([]string, 0, len(clips)+1)
	parts = append(parts, fmt.Sprint(seq))
	for _, c := range clips {
		parts = append(parts, c.Player.ID+"="+c.Player.Src)
	}
	return strings.Join(parts, "|")
}
