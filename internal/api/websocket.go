package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/maplayer"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/service"
	"github.com/sells-group/zoning-cli/internal/session"
	"github.com/sells-group/zoning-cli/internal/workflow"
)

const (
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeTimeout   = 10 * time.Second
	maxMessageSize = 64 << 10
	sendBuffer     = 64

	// DefaultWidth is the viewport width assumed when a client sends none.
	DefaultWidth = 1024
)

// Client message types.
const (
	MsgPointerDown    = "pointerdown"
	MsgClick          = "click"
	MsgEnter          = "enter"
	MsgMove           = "move"
	MsgLeave          = "leave"
	MsgKeyDown        = "keydown"
	MsgKeyUp          = "keyup"
	MsgBlur           = "blur"
	MsgResize         = "resize"
	MsgToggleMode     = "toggle_mode"
	MsgSetTarget      = "set_target"
	MsgClearSelection = "clear_selection"
	MsgRequestUpdate  = "request_update"
	MsgConfirm        = "confirm"
	MsgCancel         = "cancel"
	MsgDismiss        = "dismiss"
	MsgReload         = "reload"
)

// Server message types.
const (
	MsgSnapshot = "snapshot"
	MsgError    = "error"
)

// Message is a client-to-server WebSocket message.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// PointerData is the payload of pointer, hover and move messages.
type PointerData struct {
	GestureID uint64         `json:"gestureId"`
	ParcelID  model.ParcelID `json:"parcelId"`
	Shift     bool           `json:"shift"`
	X         float64        `json:"x"`
	Y         float64        `json:"y"`
}

// KeyData is the payload of keydown and keyup messages.
type KeyData struct {
	Key string `json:"key"`
}

// ResizeData is the payload of resize messages.
type ResizeData struct {
	Width int `json:"width"`
}

// ValueData is the payload of set_target and dismiss messages.
type ValueData struct {
	Value string `json:"value"`
}

// SnapshotMessage carries a session snapshot. The layer is omitted when the
// client already has the current revision.
type SnapshotMessage struct {
	Type string           `json:"type"`
	Data session.Snapshot `json:"data"`
}

// ErrorMessage reports a rejected client message.
type ErrorMessage struct {
	Type    string `json:"type"`
	Request string `json:"request,omitempty"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Hub owns the live WebSocket map sessions.
type Hub struct {
	svc      service.ParcelDataService
	cfg      session.Config
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu    sync.Mutex
	conns map[*wsConn]struct{}
	wg    sync.WaitGroup
}

// NewHub creates a hub whose sessions run against svc.
func NewHub(svc service.ParcelDataService, cfg session.Config, allowedOrigins []string) *Hub {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	return &Hub{
		svc: svc,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log:   zap.L().With(zap.String("component", "ws")),
		conns: make(map[*wsConn]struct{}),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// Count returns the number of open sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Shutdown closes every connection and waits for their sessions to stop.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	for c := range h.conns {
		_ = c.ws.Close()
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// ServeHTTP upgrades the request and runs a map session for the connection.
// An optional width query parameter sets the initial viewport width.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := h.cfg
	if raw := r.URL.Query().Get("width"); raw != "" {
		width, err := strconv.Atoi(raw)
		if err != nil || width <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid request parameters", "width must be a positive integer")
			return
		}
		cfg.Width = width
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := session.New(h.svc, cfg)
	c := newWSConn(ws, sess, h.log.With(zap.String("session_id", sess.ID())))

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	unsubscribe, err := sess.Subscribe(c.pushSnapshot)
	if err != nil {
		c.log.Error("subscribe failed", zap.Error(err))
		unsubscribe = func() {}
	}
	c.log.Info("map session opened", zap.Int("width", cfg.Width))
	sess.Load()

	go c.writePump()
	c.readPump()

	unsubscribe()
	if err := sess.Close(); err != nil {
		c.log.Warn("session close", zap.Error(err))
	}
	close(c.done)

	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	h.wg.Done()
	c.log.Info("map session closed")
}

type wsConn struct {
	ws   *websocket.Conn
	sess *session.Session
	log  *zap.Logger

	// errs queues error replies. Snapshots are full state, so only the
	// newest unsent one is kept in latest and wake signals the write pump.
	errs chan []byte
	wake chan struct{}
	done chan struct{}

	mu     sync.Mutex
	latest *session.Snapshot

	// Owned by the write pump.
	sentLayer bool
	sentRev   uint64
}

func newWSConn(ws *websocket.Conn, sess *session.Session, log *zap.Logger) *wsConn {
	return &wsConn{
		ws:   ws,
		sess: sess,
		log:  log,
		errs: make(chan []byte, sendBuffer),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// pushSnapshot runs on the session loop and never blocks. A snapshot the
// write pump has not picked up yet is replaced by the newer one.
func (c *wsConn) pushSnapshot(snap session.Snapshot) {
	c.mu.Lock()
	c.latest = &snap
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// nextSnapshot encodes the pending snapshot, if any. The layer is included
// only when the client does not hold its revision yet.
func (c *wsConn) nextSnapshot() ([]byte, bool) {
	c.mu.Lock()
	snap := c.latest
	c.latest = nil
	c.mu.Unlock()
	if snap == nil {
		return nil, false
	}

	withLayer := snap.Layer != nil && (!c.sentLayer || snap.LayerRevision != c.sentRev)
	if !withLayer {
		snap.Layer = nil
	}
	data, err := json.Marshal(SnapshotMessage{Type: MsgSnapshot, Data: *snap})
	if err != nil {
		c.log.Error("encode snapshot", zap.Error(err))
		return nil, false
	}
	if withLayer {
		c.sentLayer = true
		c.sentRev = snap.LayerRevision
	}
	return data, true
}

func (c *wsConn) sendError(request, code, message string) {
	data, err := json.Marshal(ErrorMessage{Type: MsgError, Request: request, Error: code, Message: message})
	if err != nil {
		return
	}
	select {
	case c.errs <- data:
	default:
		c.log.Warn("send buffer full, error dropped", zap.String("error", code))
	}
}

func (c *wsConn) readPump() {
	defer c.ws.Close() //nolint:errcheck

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("", "invalid_message", "message must be a JSON object with a type")
			continue
		}
		if err := c.handle(msg); err != nil {
			if errors.Is(err, session.ErrClosed) {
				return
			}
			code, text := classify(err)
			c.sendError(msg.Type, code, text)
		}
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.wake:
			data, ok := c.nextSnapshot()
			if !ok {
				continue
			}
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		case data := <-c.errs:
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.write(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (c *wsConn) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

var errBadPayload = eris.New("invalid payload")

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errBadPayload
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errBadPayload
	}
	return nil
}

// handle dispatches one client message to the session.
func (c *wsConn) handle(msg Message) error {
	s := c.sess
	switch msg.Type {
	case MsgPointerDown, MsgClick:
		var p PointerData
		if err := decodeData(msg.Data, &p); err != nil {
			return err
		}
		ev := maplayer.PointerEvent{
			GestureID: p.GestureID,
			Parcel:    p.ParcelID,
			Shift:     p.Shift,
			At:        maplayer.Point{X: p.X, Y: p.Y},
			Time:      time.Now(),
		}
		if msg.Type == MsgPointerDown {
			_, err := s.PointerDown(ev)
			return err
		}
		_, err := s.Click(ev)
		return err
	case MsgEnter:
		var p PointerData
		if err := decodeData(msg.Data, &p); err != nil {
			return err
		}
		_, err := s.Enter(p.ParcelID, maplayer.Point{X: p.X, Y: p.Y})
		return err
	case MsgLeave:
		var p PointerData
		if err := decodeData(msg.Data, &p); err != nil {
			return err
		}
		_, err := s.Leave(p.ParcelID)
		return err
	case MsgMove:
		var p PointerData
		if err := decodeData(msg.Data, &p); err != nil {
			return err
		}
		return s.Emit(maplayer.Event{Kind: maplayer.EventPointerMove, At: maplayer.Point{X: p.X, Y: p.Y}})
	case MsgKeyDown, MsgKeyUp:
		var k KeyData
		if err := decodeData(msg.Data, &k); err != nil {
			return err
		}
		kind := maplayer.EventKeyDown
		if msg.Type == MsgKeyUp {
			kind = maplayer.EventKeyUp
		}
		return s.Emit(maplayer.Event{Kind: kind, Key: k.Key})
	case MsgBlur:
		return s.Emit(maplayer.Event{Kind: maplayer.EventBlur})
	case MsgResize:
		var rd ResizeData
		if err := decodeData(msg.Data, &rd); err != nil {
			return err
		}
		if rd.Width <= 0 {
			return errBadPayload
		}
		return s.Emit(maplayer.Event{Kind: maplayer.EventResize, Width: rd.Width})
	case MsgToggleMode:
		_, err := s.ToggleMode()
		return err
	case MsgSetTarget:
		var v ValueData
		if err := decodeData(msg.Data, &v); err != nil {
			return err
		}
		return s.SetTarget(v.Value)
	case MsgClearSelection:
		return s.ClearSelection()
	case MsgRequestUpdate:
		return s.RequestUpdate()
	case MsgConfirm:
		return s.Confirm()
	case MsgCancel:
		return s.Cancel()
	case MsgDismiss:
		var v ValueData
		if err := decodeData(msg.Data, &v); err != nil {
			return err
		}
		return s.Dismiss(v.Value)
	case MsgReload:
		return s.Reload()
	default:
		return errUnknownType
	}
}

var errUnknownType = eris.New("unknown message type")

func classify(err error) (code, message string) {
	switch {
	case errors.Is(err, errBadPayload):
		return "invalid_payload", "message data is missing or malformed"
	case errors.Is(err, errUnknownType):
		return "unknown_type", "unknown message type"
	case errors.Is(err, session.ErrNotLoaded):
		return "not_loaded", "parcel data has not loaded"
	case errors.Is(err, workflow.ErrBusy):
		return "busy", "an update is already in progress"
	case errors.Is(err, workflow.ErrNotReady):
		return "not_ready", "select parcels and a zoning type first"
	case errors.Is(err, workflow.ErrNotConfirming):
		return "not_confirming", "there is no pending update to confirm"
	default:
		return "rejected", err.Error()
	}
}
