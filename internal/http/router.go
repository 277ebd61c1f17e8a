package http

import (
	"net/http"

	"caseflow/internal/auth"
	"caseflow/internal/config"
	"caseflow/internal/http/handler"
	mw "caseflow/internal/http/middleware"
	"caseflow/internal/journal"
	"caseflow/internal/note"
	"caseflow/internal/review"
	"caseflow/internal/workspace"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

func NewRouter(cfg config.Config, db *gorm.DB, jwtSvc *auth.JWT) http.Handler {
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

	ah := &handler.AuthHandler{DB: db, JWT: jwtSvc}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	me := &handler.MeHandler{}
	r.With(auth.RequireAuth(jwtSvc)).Get("/me", me.Me)

	wsSvc := &workspace.Service{DB: db}
	noteSvc := &note.Service{DB: db}
	reviewSvc := &review.Service{DB: db}
	journalSvc := &journal.Service{DB: db}

	wsH := &handler.WorkspaceHandler{Svc: wsSvc}
	noteH := &handler.NoteHandler{Notes: noteSvc, Reviews: reviewSvc}
	reviewH := &handler.ReviewHandler{Svc: reviewSvc}
	journalH := &handler.JournalHandler{Svc: journalSvc}

	r.Route("/workspaces", func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))

		r.Post("/", wsH.Create)
		r.Get("/", wsH.List)

		r.Route("/{workspaceID}", func(r chi.Router) {
			r.Use(workspace.RequireMember(wsSvc))

			r.Post("/members", wsH.AddMember)

			r.Route("/notes", func(r chi.Router) {
				r.Post("/", noteH.Create)
				r.Get("/", noteH.List)
				r.Get("/{noteID}", noteH.Get)
				r.Put("/{noteID}", noteH.Update)
				r.Post("/{noteID}/publish", noteH.Publish)
				r.Post("/{noteID}/archive", noteH.Archive)
				r.Post("/{noteID}/review", reviewH.Submit)
			})

			r.Route("/reviews", func(r chi.Router) {
				r.Get("/", reviewH.List)
				r.Post("/{requestID}/assign", reviewH.Assign)
				r.Post("/{requestID}/verdict", reviewH.Verdict)
				r.Post("/{requestID}/comments", reviewH.Comment)
				r.Post("/{requestID}/reopen", reviewH.Reopen)
				r.Get("/{requestID}/actions", reviewH.Actions)
			})

			r.Route("/journals", func(r chi.Router) {
				r.Post("/generate", journalH.Generate)
				r.Get("/", journalH.List)
				r.Get("/{journalID}", journalH.Get)
				r.Post("/{journalID}/publish", journalH.Publish)
				r.Post("/{journalID}/archive", journalH.Archive)
			})
		})
	})

	return r
}
