package websocket

import (
	"canvas-studio/canvas"
	"canvas-studio/core"
	"canvas-studio/handlers/auth"
	"canvas-studio/sessions"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/engine.io/v2/utils"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

var (
	errNotJoined   = errors.New("join a canvas first")
	errBadArgument = errors.New("event payload is missing or malformed")
)

type (
	// Hub streams a canvas session over Socket.IO. Every socket watching a
	// session sits in a room named after the session id.
	Hub struct {
		srv *socketio.Server
		reg *sessions.Registry

		mu      sync.RWMutex
		members map[socketio.SocketId]string // socket -> session id
		viewers map[string]int               // session id -> sockets
	}

	WheelEvent struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		DeltaY float64 `json:"deltaY"`
	}
)

// NewHub creates the Socket.IO server. Serve must be called before clients
// connect; the hub can be handed to the registry as its notifier before that.
func NewHub() *Hub {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	localhostOrigin := regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)
	opts.SetCors(&types.Cors{
		Origin:      []any{localhostOrigin},
		Credentials: true,
	})
	return &Hub{
		srv:     socketio.NewServer(nil, opts),
		members: make(map[socketio.SocketId]string),
		viewers: make(map[string]int),
	}
}

// Viewers returns how many sockets watch each session.
func (h *Hub) Viewers() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.viewers))
	for k, v := range h.viewers {
		out[k] = v
	}
	return out
}

// Notify sends a notice to every socket watching the session.
func (h *Hub) Notify(sessionID string, notice core.Notice) {
	if err := h.srv.To(socketio.Room(sessionID)).Emit("notice", notice); err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Warn("Failed to emit notice")
	}
}

// PushFrame sends the current frame of the session to its room. It is the
// registry's change hook.
func (h *Hub) PushFrame(sessionID string) {
	if h.reg == nil {
		return
	}
	ws, err := h.reg.Get(sessionID)
	if err != nil {
		return
	}
	h.emitFrame(sessionID, ws.Frame())
}

func (h *Hub) emitFrame(sessionID string, frame canvas.Frame) {
	if err := h.srv.To(socketio.Room(sessionID)).Emit("frame", frame); err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Warn("Failed to emit frame")
	}
}

func (h *Hub) sessionOf(id socketio.SocketId) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sessionID, ok := h.members[id]
	return sessionID, ok
}

// join records the socket as watching sessionID and returns the session it
// watched before, or "" if there was none or it is the same one.
func (h *Hub) join(id socketio.SocketId, sessionID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev, ok := h.members[id]
	if ok {
		if prev == sessionID {
			return ""
		}
		h.leaveLocked(id)
	}
	h.members[id] = sessionID
	h.viewers[sessionID]++
	return prev
}

func (h *Hub) leave(id socketio.SocketId) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(id)
}

func (h *Hub) leaveLocked(id socketio.SocketId) {
	sessionID, ok := h.members[id]
	if !ok {
		return
	}
	delete(h.members, id)
	if h.viewers[sessionID] <= 1 {
		delete(h.viewers, sessionID)
	} else {
		h.viewers[sessionID]--
	}
}

// Serve registers the event handlers and returns the server to mount.
func (h *Hub) Serve(reg *sessions.Registry) *socketio.Server {
	h.reg = reg

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	h.srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		me := socket.Id()
		utils.Log().Printf("socket %v connected\n", me)

		// join-canvas(token): authorise with the session token and start
		// receiving frames.
		socket.On("join-canvas", func(datas ...any) {
			ack, args := extractAck(datas)
			token, _ := firstString(args)
			claims, err := auth.ParseJWT(token)
			if err != nil {
				respond(socket, ack, "join-canvas-ack", errorPayload(errors.New("invalid token")), err)
				return
			}
			ws, err := reg.Get(claims.SessionID)
			if err != nil {
				respond(socket, ack, "join-canvas-ack", errorPayload(err), err)
				return
			}

			room := socketio.Room(ws.ID())
			if prev := h.join(me, ws.ID()); prev != "" {
				socket.Leave(socketio.Room(prev))
				utils.Log().Printf("socket %v left canvas %v\n", me, prev)
			}
			socket.Join(room)
			utils.Log().Printf("socket %v joined canvas %v\n", me, room)

			respond(socket, ack, "join-canvas-ack", okPayload(map[string]any{"viewers": h.Viewers()[ws.ID()]}), nil)
			_ = socket.Emit("frame", ws.Frame())
		})

		socket.On("pointer", func(datas ...any) {
			var ev canvas.PointerEvent
			h.handle(socket, datas, "pointer-ack", &ev, func(s *canvas.Session) error {
				return s.Dispatch(ev)
			})
		})

		socket.On("key", func(datas ...any) {
			var ev canvas.KeyEvent
			h.handle(socket, datas, "key-ack", &ev, func(s *canvas.Session) error {
				s.HandleKey(ev)
				return nil
			})
		})

		socket.On("wheel", func(datas ...any) {
			var ev WheelEvent
			h.handle(socket, datas, "wheel-ack", &ev, func(s *canvas.Session) error {
				s.Wheel(core.Point{X: ev.X, Y: ev.Y}, ev.DeltaY)
				return nil
			})
		})

		socket.On("disconnecting", func(datas ...any) {
			if sessionID, ok := h.sessionOf(me); ok {
				utils.Log().Printf("socket %v leaving canvas %v\n", me, sessionID)
			}
			h.leave(me)
		})

		socket.On("disconnect", func(datas ...any) {
			socket.RemoveAllListeners("")
			socket.Disconnect(true)
		})
	})

	return h.srv
}

// handle decodes the first event argument into dst, runs fn on the socket's
// session and sends the resulting frame to everyone watching it.
func (h *Hub) handle(socket *socketio.Socket, datas []any, ackEvent string, dst any, fn func(s *canvas.Session) error) {
	ack, args := extractAck(datas)
	sessionID, ok := h.sessionOf(socket.Id())
	if !ok {
		respond(socket, ack, ackEvent, errorPayload(errNotJoined), errNotJoined)
		return
	}
	if len(args) == 0 {
		respond(socket, ack, ackEvent, errorPayload(errBadArgument), errBadArgument)
		return
	}
	if err := decodeArg(args[0], dst); err != nil {
		respond(socket, ack, ackEvent, errorPayload(err), err)
		return
	}
	ws, err := h.reg.Get(sessionID)
	if err != nil {
		respond(socket, ack, ackEvent, errorPayload(err), err)
		return
	}

	var frame canvas.Frame
	err = ws.Do(func(s *canvas.Session) error {
		err := fn(s)
		frame = s.Frame()
		return err
	})
	h.emitFrame(sessionID, frame)
	if err != nil {
		respond(socket, ack, ackEvent, errorPayload(err), err)
		return
	}
	if ack != nil {
		ack(nil, okPayload(nil))
	}
}

// decodeArg converts a decoded Socket.IO argument (maps, strings or raw JSON)
// into dst.
func decodeArg(arg any, dst any) error {
	var raw []byte
	switch v := arg.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		var err error
		if raw, err = json.Marshal(v); err != nil {
			return fmt.Errorf("%w: %v", errBadArgument, err)
		}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", errBadArgument, err)
	}
	return nil
}

func firstString(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok
}
