package canvases

import (
	"canvas-studio/canvas"
	"canvas-studio/core"
	"canvas-studio/handlers/auth"
	"canvas-studio/middleware"
	"canvas-studio/sessions"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	CreateSessionRequest struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}

	CreateSessionResponse struct {
		ID    string       `json:"id"`
		Token string       `json:"token"`
		Frame canvas.Frame `json:"frame"`
	}

	WheelRequest struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		DeltaY float64 `json:"deltaY"`
	}

	ToolRequest struct {
		Tool string `json:"tool"`
	}

	ZoomRequest struct {
		Action string `json:"action"` // "in" | "out" | "reset"
	}

	PanRequest struct {
		DX float64 `json:"dx"`
		DY float64 `json:"dy"`
	}

	KeyResponse struct {
		Handled bool         `json:"handled"`
		Frame   canvas.Frame `json:"frame"`
	}
)

// HandleCreateSession starts an empty canvas and hands out the token that
// authorises every further request on it.
func HandleCreateSession(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The body is optional.
		var req CreateSessionRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		ws := reg.Create(core.Size{Width: req.Width, Height: req.Height})
		token, err := auth.CreateJWT(ws.ID())
		if err != nil {
			logrus.WithError(err).WithField("session_id", ws.ID()).Error("Failed to create session token")
			reg.Delete(ws.ID())
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create session token"})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, CreateSessionResponse{ID: ws.ID(), Token: token, Frame: ws.Frame()})
	}
}

func HandleGetFrame(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := workspace(w, r, reg)
		if !ok {
			return
		}
		render.JSON(w, r, ws.Frame())
	}
}

func HandleDeleteSession(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := workspace(w, r, reg)
		if !ok {
			return
		}
		reg.Delete(ws.ID())
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandlePointer(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev canvas.PointerEvent
		if err := render.DecodeJSON(r.Body, &ev); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid pointer event"})
			return
		}
		update(w, r, reg, func(s *canvas.Session) error { return s.Dispatch(ev) })
	}
}

func HandleKey(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev canvas.KeyEvent
		if err := render.DecodeJSON(r.Body, &ev); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid key event"})
			return
		}
		ws, ok := workspace(w, r, reg)
		if !ok {
			return
		}

		var resp KeyResponse
		_ = ws.Do(func(s *canvas.Session) error {
			resp.Handled = s.HandleKey(ev)
			resp.Frame = s.Frame()
			return nil
		})
		render.JSON(w, r, resp)
	}
}

func HandleWheel(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WheelRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid wheel event"})
			return
		}
		update(w, r, reg, func(s *canvas.Session) error {
			s.Wheel(core.Point{X: req.X, Y: req.Y}, req.DeltaY)
			return nil
		})
	}
}

func HandleTool(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ToolRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		tool, ok := canvas.ParseTool(req.Tool)
		if !ok {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Unknown tool"})
			return
		}
		update(w, r, reg, func(s *canvas.Session) error { return s.SetTool(tool) })
	}
}

func HandleZoom(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ZoomRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		var apply func(s *canvas.Session)
		switch req.Action {
		case "in":
			apply = func(s *canvas.Session) { s.ZoomAtCenter(canvas.ZoomIn) }
		case "out":
			apply = func(s *canvas.Session) { s.ZoomAtCenter(canvas.ZoomOut) }
		case "reset":
			apply = func(s *canvas.Session) { s.ResetZoom() }
		default:
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Zoom action must be in, out or reset"})
			return
		}
		update(w, r, reg, func(s *canvas.Session) error {
			apply(s)
			return nil
		})
	}
}

func HandlePan(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PanRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		update(w, r, reg, func(s *canvas.Session) error {
			return s.PanBy(core.Point{X: req.DX, Y: req.DY})
		})
	}
}

// HandleViewport records a new window size.
func HandleViewport(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var size core.Size
		if err := render.DecodeJSON(r.Body, &size); err != nil || size.Width <= 0 || size.Height <= 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Viewport needs a positive width and height"})
			return
		}
		update(w, r, reg, func(s *canvas.Session) error {
			s.Resize(size)
			return nil
		})
	}
}

// workspace resolves the session named by the request's token.
func workspace(w http.ResponseWriter, r *http.Request, reg *sessions.Registry) (*sessions.Workspace, bool) {
	id, ok := middleware.SessionID(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "Session claims not found"})
		return nil, false
	}
	ws, err := reg.Get(id)
	if err != nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "Session not found"})
		return nil, false
	}
	return ws, true
}

// update runs fn on the session and answers with the resulting frame.
func update(w http.ResponseWriter, r *http.Request, reg *sessions.Registry, fn func(s *canvas.Session) error) {
	ws, ok := workspace(w, r, reg)
	if !ok {
		return
	}

	var frame canvas.Frame
	err := ws.Do(func(s *canvas.Session) error {
		err := fn(s)
		frame = s.Frame()
		return err
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, canvas.ErrPanInactive) {
			status = http.StatusConflict
		} else {
			logrus.WithError(err).WithField("session_id", ws.ID()).Error("Failed to apply canvas event")
		}
		render.Status(r, status)
		render.JSON(w, r, map[string]any{"error": err.Error(), "frame": frame})
		return
	}
	render.JSON(w, r, frame)
}
