package main

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/justinas/nosurf"

	"go-element-manager/internal/assets"
	"go-element-manager/internal/controller"
	apperrors "go-element-manager/internal/errors"
	"go-element-manager/internal/lexicon"
)

// ChunkPageData holds all data needed for the chunk update template (layout
// plus content).
type ChunkPageData struct {
	Title       string
	Locale      string
	ManagerURL  string
	CSRFToken   string
	CurrentYear int
	Lex         *lexicon.Topics

	Form      *controller.EditFormData
	Head      template.HTML // registered scripts and the bootstrap block
	Prerender template.HTML // OnChunkFormPrerender output, injected verbatim
	RichText  template.HTML
}

// chunkResult is the outcome of running the chunk update action.
type chunkResult struct {
	action    *controller.ChunkUpdate
	topics    *lexicon.Topics
	form      *controller.EditFormData
	registry  *assets.Registry
	prerender string
}

// runChunkUpdate drives the action through the same steps for the HTML page
// and the JSON API. Returned errors are localized *apperrors.Error values.
func (app *adminApplication) runChunkUpdate(r *http.Request, id string) (*chunkResult, *apperrors.Error) {
	actor := actorFrom(r.Context())
	action := controller.NewChunkUpdate(app.controllerDeps(), actor, nil)

	topics, err := app.lexicon.Load(app.locale(r, actor), action.LanguageTopics()...)
	if err != nil {
		app.logger.Error("Failed to load lexicon topics", "error", err)
		return nil, apperrors.Internal(err)
	}
	action.SetTranslator(topics)

	if !action.CheckPermissions() {
		app.logger.Info("Chunk edit permission denied", "user", actor.Username)
		return nil, apperrors.AccessDenied().Localize(topics)
	}

	form, err := action.Process(r.Context(), id)
	if err != nil {
		return nil, apperrors.As(err).Localize(topics)
	}

	reg := assets.NewRegistry()
	if err := action.RegisterClientAssets(reg); err != nil {
		app.logger.Error("Failed to register client assets", "id", id, "error", err)
		return nil, apperrors.As(err).Localize(topics)
	}

	prerender, err := action.FirePostRenderEvents(r.Context())
	if err != nil {
		app.logger.Error("Failed to fire prerender events", "id", id, "error", err)
		return nil, apperrors.As(err).Localize(topics)
	}

	return &chunkResult{action: action, topics: topics, form: form, registry: reg, prerender: prerender}, nil
}

// chunkUpdateHandler serves the chunk edit page.
func (app *adminApplication) chunkUpdateHandler(w http.ResponseWriter, r *http.Request) {
	res, e := app.runChunkUpdate(r, r.URL.Query().Get("id"))
	if e != nil {
		if e.Kind == apperrors.KindInternal {
			app.logger.Error("Chunk update page failed", "error", e.Unwrap())
		}
		http.Error(w, e.Error(), e.HTTPStatus())
		return
	}

	data := ChunkPageData{
		Title:       res.action.PageTitle(),
		Locale:      res.topics.Locale(),
		ManagerURL:  app.cfg.ManagerURL,
		CSRFToken:   nosurf.Token(r),
		CurrentYear: time.Now().Year(),
		Lex:         res.topics,
		Form:        res.form,
		Head:        res.registry.Head(),
		Prerender:   template.HTML(res.prerender),
		RichText:    template.HTML(res.form.RichTextInitScript),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := app.views.Render(w, res.action.TemplateFile(), data); err != nil {
		app.logger.Error("Error executing chunk update template", "error", err, "id", res.form.Chunk.ID)
		http.Error(w, res.topics.Get(apperrors.KeyInternal, nil), http.StatusInternalServerError)
	}
}

// chunkResponse is the JSON body of the chunk API.
type chunkResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Object  any    `json:"object,omitempty"`
}

type chunkObject struct {
	Title                      string         `json:"title"`
	Record                     map[string]any `json:"record"`
	FormRender                 string         `json:"onChunkFormRender"`
	Prerender                  string         `json:"onChunkFormPrerender"`
	RichText                   string         `json:"onRichTextEditorInit"`
	CanUnlockElementProperties bool           `json:"unlock_element_properties"`
	Scripts                    []string       `json:"scripts"`
}

// chunkAPIHandler returns the same data as the edit page in JSON.
func (app *adminApplication) chunkAPIHandler(w http.ResponseWriter, r *http.Request) {
	res, e := app.runChunkUpdate(r, chi.URLParam(r, "id"))
	if e != nil {
		if e.Kind == apperrors.KindInternal {
			app.logger.Error("Chunk API failed", "error", e.Unwrap())
		}
		app.writeJSON(w, e.HTTPStatus(), chunkResponse{Message: e.Error(), Kind: string(e.Kind)})
		return
	}

	var scripts []string
	for _, entry := range res.registry.Entries() {
		if entry.Kind == assets.KindScript {
			scripts = append(scripts, entry.Value)
		}
	}

	app.writeJSON(w, http.StatusOK, chunkResponse{
		Success: true,
		Object: chunkObject{
			Title:                      res.action.PageTitle(),
			Record:                     res.form.Record(),
			FormRender:                 res.form.FormRenderScript,
			Prerender:                  res.prerender,
			RichText:                   res.form.RichTextInitScript,
			CanUnlockElementProperties: res.form.CanUnlockElementProperties,
			Scripts:                    scripts,
		},
	})
}

func (app *adminApplication) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		app.logger.Error("Failed to encode JSON response", "error", err)
	}
}
