// Package controller holds the manager page actions. Each action is built per
// request with its collaborators and the acting user, prepares the data the
// view needs and registers the client assets the page loads.
package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/template"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "go-element-manager/internal/errors"
	"go-element-manager/internal/events"
	"go-element-manager/internal/model"
	"go-element-manager/internal/policy"
	"go-element-manager/internal/storage"
)

var tracer = otel.Tracer("go-element-manager/internal/controller")

// ChunkUpdateTemplate is the view template of the chunk edit page.
const ChunkUpdateTemplate = "element/chunk/update.tpl"

const chunkPageXType = "modx-page-chunk-update"

var chunkUpdateTopics = []string{"chunk", "category", "propertyset", "element"}

// Client scripts of the chunk update page, relative to the manager URL. The
// grids must load before the panel and the panel before the page script.
var chunkUpdateScripts = []string{
	"assets/modext/widgets/core/modx.grid.local.property.js",
	"assets/modext/widgets/element/modx.grid.element.properties.js",
	"assets/modext/widgets/element/modx.panel.chunk.js",
	"assets/modext/sections/element/chunk/update.js",
}

var bootstrapTmpl = template.Must(template.New("bootstrap").Parse(`<script type="text/javascript">
// <![CDATA[
Ext.onReady(function() {
    MODx.load({
        xtype: {{.XType}}
        ,chunk: {{.ID}}
        ,record: {{.Record}}
    });
});
MODx.onChunkFormRender = "{{.FormRender}}";
MODx.perm.unlock_element_properties = {{.Unlock}};
// ]]>
</script>`))

// ChunkLoader fetches a chunk by id.
type ChunkLoader interface {
	LoadChunk(ctx context.Context, id string) (*model.Chunk, error)
}

// PolicyChecker answers global permission and per-record policy questions.
type PolicyChecker interface {
	Check(actor policy.Actor, policyName string, target *model.Chunk) bool
}

// EventDispatcher runs the listeners registered for an event.
type EventDispatcher interface {
	Dispatch(ctx context.Context, name events.Name, p events.Payload) ([]string, error)
}

// AssetRegistry receives the page's client-side scripts.
type AssetRegistry interface {
	AddStartupScript(url string)
	AddStartupHTMLBlock(html string)
}

// Settings are the configuration values the action reads.
type Settings struct {
	UseEditor  bool
	ManagerURL string
}

// Deps bundles the collaborators shared across requests.
type Deps struct {
	Store    ChunkLoader
	Policy   PolicyChecker
	Events   EventDispatcher
	Settings Settings
	Logger   *slog.Logger
}

// EditFormData is everything the chunk edit form renders.
type EditFormData struct {
	Chunk                      *model.Chunk
	FormRenderScript           string
	RichTextInitScript         string
	Properties                 []model.PropertyRow
	CanUnlockElementProperties bool
}

// Record is the serialized chunk handed to the client, with the property
// list replaced by display rows.
func (d *EditFormData) Record() map[string]any {
	m := d.Chunk.ToMap()
	rows := d.Properties
	if rows == nil {
		rows = []model.PropertyRow{}
	}
	m["properties"] = rows
	return m
}

// ChunkUpdate prepares the edit form of one chunk.
type ChunkUpdate struct {
	deps  Deps
	actor policy.Actor
	trans apperrors.Translator

	permChecked bool
	data        *EditFormData
}

// NewChunkUpdate creates the action for one request.
func NewChunkUpdate(deps Deps, actor policy.Actor, trans apperrors.Translator) *ChunkUpdate {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ChunkUpdate{deps: deps, actor: actor, trans: trans}
}

// SetTranslator replaces the translator, typically once the topics named by
// LanguageTopics have been loaded.
func (c *ChunkUpdate) SetTranslator(t apperrors.Translator) {
	c.trans = t
}

// CheckPermissions reports whether the actor may edit chunks at all. Process
// refuses to run until this has returned true.
func (c *ChunkUpdate) CheckPermissions() bool {
	c.permChecked = c.deps.Policy.Check(c.actor, policy.PermEditChunk, nil)
	return c.permChecked
}

// Process loads the chunk and assembles its edit form. Failures are
// *apperrors.Error values, localized with the action's translator.
func (c *ChunkUpdate) Process(ctx context.Context, id string) (*EditFormData, error) {
	ctx, span := tracer.Start(ctx, "controller.ChunkUpdate.Process")
	defer span.End()
	span.SetAttributes(attribute.String("chunk.id", id), attribute.String("actor", c.actor.Username))

	data, err := c.process(ctx, id)
	if err != nil {
		e := apperrors.As(err).Localize(c.trans)
		span.SetStatus(codes.Error, string(e.Kind))
		c.deps.Logger.Info("Chunk edit refused", "id", id, "user", c.actor.Username, "kind", e.Kind, "error", err)
		return nil, e
	}
	c.data = data
	return data, nil
}

func (c *ChunkUpdate) process(ctx context.Context, id string) (*EditFormData, error) {
	if !c.permChecked {
		return nil, apperrors.AccessDenied()
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.Validation(apperrors.KeyChunkNotSpecified)
	}

	loadCtx, span := tracer.Start(ctx, "storage.LoadChunk")
	chunk, err := c.deps.Store.LoadChunk(loadCtx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound(apperrors.KeyChunkNotFound, id)
		}
		return nil, apperrors.Internal(fmt.Errorf("load chunk %s: %w", id, err))
	}

	if !c.deps.Policy.Check(c.actor, policy.PolicyView, chunk) {
		return nil, apperrors.AccessDenied()
	}
	if chunk.Locked && !c.deps.Policy.Check(c.actor, policy.PermEditLocked, nil) {
		return nil, apperrors.Locked(apperrors.KeyChunkLocked)
	}

	payload := events.Payload{ID: chunk.ID, Mode: events.ModeUpdate, Chunk: chunk}

	rendered, err := c.deps.Events.Dispatch(ctx, events.OnChunkFormRender, payload)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("dispatch %s: %w", events.OnChunkFormRender, err))
	}

	richText := ""
	if c.deps.Settings.UseEditor {
		rtPayload := payload
		rtPayload.Elements = []string{"post"}
		out, err := c.deps.Events.Dispatch(ctx, events.OnRichTextEditorInit, rtPayload)
		if err != nil {
			return nil, apperrors.Internal(fmt.Errorf("dispatch %s: %w", events.OnRichTextEditorInit, err))
		}
		richText = events.Join(out)
	}

	return &EditFormData{
		Chunk:                      chunk,
		FormRenderScript:           escapeScriptString(events.Join(rendered)),
		RichTextInitScript:         richText,
		Properties:                 model.PropertyRows(chunk.Properties),
		CanUnlockElementProperties: c.deps.Policy.Check(c.actor, policy.PermUnlockElementProperties, nil),
	}, nil
}

// escapeScriptString prepares listener markup for a double-quoted script
// string: quotes are backslash-escaped and line breaks removed. Backslashes
// pass through untouched, so listeners that emit them own the result; plugins
// written for the MODX manager rely on exactly this transformation.
func escapeScriptString(s string) string {
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", "")
	return strings.ReplaceAll(s, "\r", "")
}

// FirePostRenderEvents dispatches OnChunkFormPrerender. Its output is injected
// into the page as-is.
func (c *ChunkUpdate) FirePostRenderEvents(ctx context.Context) (string, error) {
	if c.data == nil {
		return "", apperrors.Internalf("post render events fired before a successful Process")
	}
	chunk := c.data.Chunk
	out, err := c.deps.Events.Dispatch(ctx, events.OnChunkFormPrerender, events.Payload{
		ID:    chunk.ID,
		Mode:  events.ModeUpdate,
		Chunk: chunk,
	})
	if err != nil {
		return "", apperrors.Internal(fmt.Errorf("dispatch %s: %w", events.OnChunkFormPrerender, err))
	}
	return events.Join(out), nil
}

// PageTitle is "<Chunk>: <name>" in the actor's language.
func (c *ChunkUpdate) PageTitle() string {
	label := "chunk"
	if c.trans != nil {
		label = c.trans.Get("chunk", nil)
	}
	if c.data == nil {
		return label
	}
	return label + ": " + c.data.Chunk.Name
}

// TemplateFile names the view template of the page.
func (c *ChunkUpdate) TemplateFile() string {
	return ChunkUpdateTemplate
}

// LanguageTopics lists the lexicon topics the view needs.
func (c *ChunkUpdate) LanguageTopics() []string {
	return append([]string(nil), chunkUpdateTopics...)
}

// RegisterClientAssets registers the page scripts followed by the inline
// bootstrap block. Only valid after a successful Process.
func (c *ChunkUpdate) RegisterClientAssets(reg AssetRegistry) error {
	if c.data == nil {
		return apperrors.Internalf("client assets registered before a successful Process")
	}
	for _, script := range chunkUpdateScripts {
		reg.AddStartupScript(c.deps.Settings.ManagerURL + script)
	}
	block, err := c.bootstrap()
	if err != nil {
		return apperrors.Internal(err)
	}
	reg.AddStartupHTMLBlock(block)
	return nil
}

func (c *ChunkUpdate) bootstrap() (string, error) {
	record, err := json.Marshal(c.data.Record())
	if err != nil {
		return "", fmt.Errorf("encode chunk record: %w", err)
	}
	xtype, _ := json.Marshal(chunkPageXType)
	id, _ := json.Marshal(c.data.Chunk.ID)

	unlock := 0
	if c.data.CanUnlockElementProperties {
		unlock = 1
	}

	var buf bytes.Buffer
	err = bootstrapTmpl.Execute(&buf, map[string]any{
		"XType":      string(xtype),
		"ID":         string(id),
		"Record":     string(record),
		"FormRender": c.data.FormRenderScript,
		"Unlock":     unlock,
	})
	if err != nil {
		return "", fmt.Errorf("render bootstrap: %w", err)
	}
	return buf.String(), nil
}
