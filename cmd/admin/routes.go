package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/justinas/nosurf"

	apperrors "go-element-manager/internal/errors"
	"go-element-manager/internal/policy"
)

// UserHeader names the authenticated manager user. Authentication itself
// happens in front of the admin server.
const UserHeader = "X-Manager-User"

type contextKey string

const actorKey contextKey = "actor"

// routes sets up the HTTP router for the admin application.
func (app *adminApplication) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	base := strings.TrimSuffix(app.cfg.ManagerURL, "/")
	manager := func(r chi.Router) {
		// Client scripts are public so the browser can cache them.
		fs := http.FileServer(http.FS(app.static))
		r.Handle("/assets/*", http.StripPrefix(base, fs))

		r.Group(func(r chi.Router) {
			r.Use(app.requireActor)

			r.With(app.csrf).Get("/element/chunk/update", app.chunkUpdateHandler)
			r.Get("/api/element/chunk/{id}", app.chunkAPIHandler)
		})
	}
	if base == "" {
		manager(r)
	} else {
		r.Route(base, manager)
	}

	return r
}

// requireActor resolves the manager user of the request. Unknown users get a
// 401 in the language their browser asks for.
func (app *adminApplication) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := app.cfg.Actor(strings.TrimSpace(r.Header.Get(UserHeader)))
		if !ok {
			app.logger.Warn("Rejected request without a known manager user", "path", r.URL.Path, "user", r.Header.Get(UserHeader))
			topics, _ := app.lexicon.Load(app.locale(r, policy.Actor{}))
			http.Error(w, topics.Get("not_authenticated", nil), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

func actorFrom(ctx context.Context) policy.Actor {
	actor, _ := ctx.Value(actorKey).(policy.Actor)
	return actor
}

// locale prefers the user's profile, then Accept-Language, then the
// configured default.
func (app *adminApplication) locale(r *http.Request, actor policy.Actor) string {
	return app.lexicon.Resolve(actor.Locale, r.Header.Get("Accept-Language"), app.cfg.Lexicon.DefaultLocale)
}

// csrf protects the HTML routes. Unsafe methods need the token rendered into
// the page.
func (app *adminApplication) csrf(next http.Handler) http.Handler {
	h := nosurf.New(next)
	h.SetBaseCookie(http.Cookie{
		Path:     app.cfg.ManagerURL,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.SetFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.logger.Warn("CSRF check failed", "path", r.URL.Path, "reason", nosurf.Reason(r))
		e := apperrors.AccessDenied()
		topics, _ := app.lexicon.Load(app.locale(r, actorFrom(r.Context())))
		http.Error(w, e.Localize(topics).Error(), http.StatusBadRequest)
	}))
	return h
}
