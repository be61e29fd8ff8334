package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	ghhtml "github.com/yuin/goldmark/renderer/html"

	"matchbook/internal/contextutil"
	"matchbook/internal/profile"
	"matchbook/internal/recordstore"
	"matchbook/internal/storage"
)

// PageHandler renders a profile detail page as HTML. Introduction and
// comment notes are written in markdown by matchmakers, so they go through
// goldmark before display.
type PageHandler struct {
	store    recordstore.Store
	parser   goldmark.Markdown
	template *template.Template
}

// pageSection is one rendered notes section.
type pageSection struct {
	Label   string
	Content template.HTML
}

// pageData holds template data for the profile page.
type pageData struct {
	Profile      *profile.Profile
	CoverURL     string
	Introduction []pageSection
	Comments     []pageSection
}

// NewPageHandler creates a handler for profile detail pages.
func NewPageHandler(store recordstore.Store) *PageHandler {
	tmpl := template.Must(template.New("profile").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Profile.Name}}</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
      margin: 0 auto;
      padding: 2rem;
      max-width: 720px;
      line-height: 1.7;
      color: #1f2937;
    }
    header {
      margin-bottom: 2rem;
      border-bottom: 1px solid #e5e7eb;
      padding-bottom: 1.5rem;
    }
    h1 { margin-top: 0; font-size: 2rem; }
    .meta { color: #6b7280; font-size: 0.95rem; }
    img.cover { max-width: 240px; border-radius: 12px; }
    section {
      border: 1px solid #e5e7eb;
      border-radius: 12px;
      padding: 1.25rem;
      margin-bottom: 1rem;
    }
    section h2 { margin-top: 0; font-size: 1.1rem; color: #374151; }
    blockquote {
      border-left: 4px solid #93c5fd;
      padding-left: 1rem;
      margin-left: 0;
      color: #4b5563;
    }
  </style>
</head>
<body>
  <header>
    <h1>{{.Profile.Name}}</h1>
    <p class="meta">
      {{if .Profile.Gender}}{{.Profile.Gender}}{{end}}
      {{if .Profile.Age}}&middot; {{.Profile.Age}} years{{end}}
      {{if .Profile.Height}}&middot; {{.Profile.Height}}cm{{end}}
      {{if .Profile.MaritalStatus}}&middot; {{.Profile.MaritalStatus}}{{end}}
    </p>
    {{if .CoverURL}}<img class="cover" src="{{.CoverURL}}" alt="cover">{{end}}
    {{if .Profile.MatchRequirement}}<p>{{.Profile.MatchRequirement}}</p>{{end}}
  </header>
  {{range .Introduction}}
  <section>
    <h2>{{.Label}}</h2>
    {{.Content}}
  </section>
  {{end}}
  {{range .Comments}}
  <section>
    <h2>{{.Label}}</h2>
    {{.Content}}
  </section>
  {{end}}
</body>
</html>`))

	return &PageHandler{
		store: store,
		parser: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Linkify,
				extension.Typographer,
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
			goldmark.WithRendererOptions(
				ghhtml.WithHardWraps(),
			),
		),
		template: tmpl,
	}
}

// ServeHTTP renders the requested profile as an HTML page.
func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		http.Error(w, "profile id is required", http.StatusBadRequest)
		return
	}

	p, err := h.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}
		logger.ErrorContext(ctx, "failed to load profile page", "id", id, "error", err)
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}

	intro, err := h.renderNotes(p.Introduction)
	if err != nil {
		logger.ErrorContext(ctx, "failed to render introduction", "id", id, "error", err)
		http.Error(w, "failed to render profile", http.StatusInternalServerError)
		return
	}
	comments, err := h.renderNotes(p.Comments)
	if err != nil {
		logger.ErrorContext(ctx, "failed to render comments", "id", id, "error", err)
		http.Error(w, "failed to render profile", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Profile:      p,
		CoverURL:     p.CoverURL,
		Introduction: intro,
		Comments:     comments,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.template.Execute(w, data); err != nil {
		logger.ErrorContext(ctx, "failed to execute profile template", "id", id, "error", err)
	}
}

func (h *PageHandler) renderNotes(notes profile.Notes) ([]pageSection, error) {
	labels := make([]string, 0, len(notes))
	for label := range notes {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	sections := make([]pageSection, 0, len(labels))
	for _, label := range labels {
		var buf bytes.Buffer
		if err := h.parser.Convert([]byte(notes[label]), &buf); err != nil {
			return nil, fmt.Errorf("convert markdown: %w", err)
		}
		sections = append(sections, pageSection{
			Label:   label,
			Content: template.HTML(buf.String()),
		})
	}
	return sections, nil
}
