package handler

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/contrib/websocket"

	"github.com/contentenhancer/web/internal/model"
	"github.com/contentenhancer/web/internal/player"
	"github.com/contentenhancer/web/internal/session"
	"github.com/contentenhancer/web/internal/view"
	ws "github.com/contentenhancer/web/internal/websocket"
	"github.com/contentenhancer/web/pkg/response"
)

type SocketHandler struct {
	sessions *session.Manager
	hub      *ws.Hub
	renderer *view.Renderer
}

func NewSocketHandler(sessions *session.Manager, hub *ws.Hub, renderer *view.Renderer) *SocketHandler {
	return &SocketHandler{
		sessions: sessions,
		hub:      hub,
		renderer: renderer,
	}
}

// Serve handles GET /ws/session
func (h *SocketHandler) Serve(c *websocket.Conn) {
	sid, _ := c.Locals("sessionId").(string)
	if sid == "" {
		return
	}
	sess := h.sessions.Get(sid)

	var initial interface{}
	if up, err := h.renderer.Update(sess.State()); err == nil {
		initial = up
	}

	h.hub.HandleConnection(c, sid, initial, func(raw []byte) {
		sess.Touch()
		h.dispatch(sess, raw)
	})
}

func (h *SocketHandler) dispatch(sess *session.Session, raw []byte) {
	var msg model.WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	switch msg.Type {
	case model.WSMessageTypePlayer:
		var ev model.WSPlayerEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return
		}
		if err := sess.HandleEvent(ev.PlayerID, ev.Event, ev.CurrentTime, ev.Duration); err != nil && !errors.Is(err, session.ErrPlayerNotFound) {
			log.Printf("[ws] session %s: %v", sess.ID, err)
		}

	case model.WSMessageTypeToggle:
		var t model.WSToggle
		if err := json.Unmarshal(raw, &t); err != nil {
			return
		}
		if err := sess.Toggle(t.PlayerID); err != nil {
			code := response.CodeServiceError
			switch {
			case errors.Is(err, session.ErrPlayerNotFound):
				code = response.CodeNotFound
			case errors.Is(err, player.ErrUnavailable):
				code = response.CodeBusy
			}
			h.hub.PublishError(sess.ID, code, err.Error())
		}
	}
}

// Publisher renders session state into view updates before pushing them
type Publisher struct {
	hub      *ws.Hub
	renderer *view.Renderer
}

var _ session.Publisher = (*Publisher)(nil)

func NewPublisher(hub *ws.Hub, renderer *view.Renderer) *Publisher {
	return &Publisher{hub: hub, renderer: renderer}
}

func (p *Publisher) PublishState(sessionID string, state interface{}) {
	if p.hub.Subscribers(sessionID) == 0 {
		return
	}
	st, ok := state.(session.State)
	if !ok {
		p.hub.PublishState(sessionID, state)
		return
	}
	up, err := p.renderer.Update(st)
	if err != nil {
		log.Printf("[ws] render update for %s: %v", sessionID, err)
		return
	}
	p.hub.PublishState(sessionID, up)
}

func (p *Publisher) PublishCommand(sessionID, playerID, action string) {
	p.hub.PublishCommand(sessionID, playerID, action)
}
