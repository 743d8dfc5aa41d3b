package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"RPGMixer/core/catalog"
	"RPGMixer/core/engine"
	"RPGMixer/core/mixer"
	"RPGMixer/core/playback"
	"RPGMixer/logger"
	"RPGMixer/model"

	"github.com/gorilla/websocket"
)

const clientSendBuffer = 64

// CatalogView is the catalog as the control surface lists it for one context.
type CatalogView struct {
	Context  string              `json:"context"`
	Music    []catalog.MusicGroup `json:"music"`
	Ambience []model.Track        `json:"ambience"`
	SFX      []catalog.SFXGroup   `json:"sfx"`
}

// ControlHandler exposes store intents and state over HTTP and websocket.
type ControlHandler struct {
	mixer    *mixer.Mixer
	hub      *StateHub
	upgrader websocket.Upgrader
}

// NewControlHandler 创建控制处理器
func NewControlHandler(m *mixer.Mixer, hub *StateHub) *ControlHandler {
	return &ControlHandler{
		mixer: m,
		hub:   hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// intentStatus maps intent errors onto HTTP status codes.
func intentStatus(err error) int {
	switch {
	case errors.Is(err, mixer.ErrUnknownAction),
		errors.Is(err, mixer.ErrMissingField),
		errors.Is(err, mixer.ErrWrongType),
		errors.Is(err, playback.ErrInvalidMode):
		return http.StatusBadRequest
	case errors.Is(err, mixer.ErrUnknownTrack),
		errors.Is(err, playback.ErrUnknownLayer),
		errors.Is(err, playback.ErrUnknownPreset):
		return http.StatusNotFound
	case errors.Is(err, playback.ErrNoActivePreset),
		errors.Is(err, playback.ErrNothingToResume):
		return http.StatusConflict
	case errors.Is(err, engine.ErrLoopStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IntentHandler 执行一个操作
func (h *ControlHandler) IntentHandler(w http.ResponseWriter, r *http.Request) {
	var in mixer.Intent
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := h.mixer.Apply(in)
	if err != nil {
		logger.Debug("[Control] 操作被拒绝",
			logger.String("action", in.Action),
			logger.String("operator", OperatorFromContext(r.Context())),
			logger.ErrorField(err))
		http.Error(w, err.Error(), intentStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// StateHandler 获取当前期望状态
func (h *ControlHandler) StateHandler(w http.ResponseWriter, r *http.Request) {
	st, err := h.mixer.State()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// CatalogHandler lists the catalog grouped for the current context, or for
// the context named by the query parameter.
func (h *ControlHandler) CatalogHandler(w http.ResponseWriter, r *http.Request) {
	var view CatalogView
	err := h.mixer.Do(func(s *playback.Store) error {
		st := s.State()
		ctx := r.URL.Query().Get("context")
		if ctx == "" {
			ctx = st.Context
		}
		tracks := s.Catalog()
		view = CatalogView{
			Context:  ctx,
			Music:    catalog.MusicGroups(tracks, ctx, st.Orders),
			Ambience: catalog.Ambience(tracks, ctx),
			SFX:      catalog.SFXGroups(tracks, ctx, st.Orders),
		}
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// WebSocketHandler 升级连接并推送状态，客户端可发送 intent 消息
func (h *ControlHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket 升级失败", logger.ErrorField(err))
		return
	}

	client := &Client{
		Hub:      h.hub,
		Conn:     conn,
		Send:     make(chan []byte, clientSendBuffer),
		Operator: OperatorFromContext(r.Context()),
	}
	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump(context.Background(), h.handleMessage)
}

func (h *ControlHandler) handleMessage(ctx context.Context, c *Client, msg *WSMessage) {
	if msg.Type != MsgTypeIntent {
		c.SendMessage(MsgTypeError, map[string]string{"error": "unsupported message type " + string(msg.Type)})
		return
	}
	var in mixer.Intent
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		c.SendMessage(MsgTypeError, map[string]string{"error": "invalid intent"})
		return
	}
	res, err := h.mixer.Apply(in)
	if err != nil {
		c.SendMessage(MsgTypeError, map[string]string{"action": in.Action, "error": err.Error()})
		return
	}
	c.SendMessage(MsgTypeResult, res)
}
