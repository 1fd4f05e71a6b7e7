package http

import (
	"net/http"

	"inkwell/internal/auth"
	"inkwell/internal/backup"
	"inkwell/internal/block"
	"inkwell/internal/config"
	"inkwell/internal/http/handler"
	mw "inkwell/internal/http/middleware"
	"inkwell/internal/note"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type Deps struct {
	DB       *gorm.DB
	JWT      *auth.JWT
	Jobs     *backup.Manager
	Exporter *backup.Exporter
	Source   backup.DataSource
}

func NewRouter(cfg config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ah := &handler.AuthHandler{DB: deps.DB, JWT: deps.JWT}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	me := &handler.MeHandler{DB: deps.DB}
	r.With(auth.RequireAuth(deps.JWT)).Get("/me", me.Me)

	noteSvc := &note.Service{DB: deps.DB}
	blockSvc := &block.Service{Store: block.NewStore(deps.DB)}

	noteH := &handler.NoteHandler{Svc: noteSvc}
	blockH := &handler.BlockHandler{Blocks: blockSvc, Notes: noteSvc}
	backupH := &handler.BackupHandler{Jobs: deps.Jobs, Exporter: deps.Exporter, Source: deps.Source}

	r.Route("/notes", func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.JWT))

		r.Post("/", noteH.Create)
		r.Get("/", noteH.List)
		r.Get("/{id}", noteH.Get)
		r.Put("/{id}", noteH.Update)
		r.Delete("/{id}", noteH.Delete)

		r.Get("/{id}/blocks", blockH.List)
		r.Post("/{id}/blocks", blockH.Create)
		r.Put("/{id}/blocks/reorder", blockH.Reorder)

		r.Post("/{id}/collaborators", noteH.Share)
		r.Get("/{id}/collaborators", noteH.Collaborators)
		r.Delete("/{id}/collaborators/{userID}", noteH.Revoke)
	})

	r.Route("/blocks", func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.JWT))

		r.Put("/{id}", blockH.Update)
		r.Delete("/{id}", blockH.Delete)
	})

	r.Route("/backup", func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.JWT))

		r.Post("/export", backupH.Export)
		r.Get("/status/{jobID}", backupH.Status)
		r.Get("/jobs", backupH.List)
	})

	return r
}
