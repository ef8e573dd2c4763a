package canvases

import (
	"canvas-studio/middleware"
	"canvas-studio/sessions"

	"github.com/go-chi/chi/v5"
)

// Register mounts the canvas API on r. Everything but session creation and
// export downloads needs the session token.
func Register(r chi.Router, reg *sessions.Registry) {
	r.Post("/sessions", HandleCreateSession(reg))
	r.Get("/exports/{id}", HandleDownload(reg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT)
		r.Route("/session", func(r chi.Router) {
			r.Get("/", HandleGetFrame(reg))
			r.Delete("/", HandleDeleteSession(reg))

			r.Post("/pointer", HandlePointer(reg))
			r.Post("/key", HandleKey(reg))
			r.Post("/wheel", HandleWheel(reg))
			r.Post("/tool", HandleTool(reg))
			r.Post("/zoom", HandleZoom(reg))
			r.Post("/pan", HandlePan(reg))
			r.Put("/viewport", HandleViewport(reg))

			r.Post("/uploads", HandleUpload(reg))
			r.Post("/generations", HandleGenerate(reg))
			r.Route("/exports", func(r chi.Router) {
				r.Get("/", HandleListExports(reg))
				r.Post("/", HandleExport(reg))
			})
		})
	})
}
