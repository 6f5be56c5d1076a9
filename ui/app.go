package ui

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gogrid/app"
	"gogrid/domain/core"
	"gogrid/internal"
	"gogrid/internal/errors"
	"gogrid/internal/render"
	"gogrid/internal/summary"
)

//go:embed templates/*.html
var embeddedFiles embed.FS

// App is the read-only grid viewer
type App struct {
	router     *chi.Mux
	grids      *app.GridService
	templates  *template.Template
	defaultKey core.GridKey
	logger     *internal.Logger
}

// Config holds viewer configuration
type Config struct {
	Port       string
	DefaultKey core.GridKey
}

// NewApp creates the viewer over an existing grid service
func NewApp(grids *app.GridService, config Config, logger *internal.Logger) (*App, error) {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if config.DefaultKey == "" {
		config.DefaultKey = core.DefaultGridKey
	}

	funcMap := template.FuncMap{
		"num": func(v float64) string { return fmt.Sprintf("%.4g", v) },
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	a := &App{
		router:     chi.NewRouter(),
		grids:      grids,
		templates:  templates,
		defaultKey: config.DefaultKey,
		logger:     logger.With("Viewer"),
	}

	a.setupMiddleware()
	a.setupRoutes()

	return a, nil
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/", a.handleIndex)
	a.router.Route("/grids/{key}", func(r chi.Router) {
		r.Get("/", a.handleGridPage)
		r.Get("/markdown", a.handleGridMarkdown)
		r.Get("/summary", a.handleGridSummary)
	})
}

// ServeHTTP implements http.Handler
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Start starts the viewer
func (a *App) Start(port string) error {
	a.logger.Info("starting viewer on http://localhost:%s", port)
	return http.ListenAndServe(":"+port, a.router)
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/grids/"+a.defaultKey.String(), http.StatusFound)
}

type gridPage struct {
	Key     core.GridKey
	Table   template.HTML
	Summary summary.GridSummary
	Seq     uint64
	Version int64
}

func (a *App) handleGridPage(w http.ResponseWriter, r *http.Request) {
	key, ok := a.gridKey(w, r)
	if !ok {
		return
	}

	view, err := a.grids.Recompute(r.Context(), key)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.renderTemplate(w, "grid.html", gridPage{
		Key:     key,
		Table:   template.HTML(render.HTML(view.Result)),
		Summary: summary.Summarize(view.Result),
		Seq:     view.Seq,
		Version: view.Version,
	})
}

func (a *App) handleGridMarkdown(w http.ResponseWriter, r *http.Request) {
	key, ok := a.gridKey(w, r)
	if !ok {
		return
	}

	view, err := a.grids.Recompute(r.Context(), key)
	if err != nil {
		a.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	fmt.Fprint(w, render.Markdown(view.Result))
}

func (a *App) handleGridSummary(w http.ResponseWriter, r *http.Request) {
	key, ok := a.gridKey(w, r)
	if !ok {
		return
	}

	out, err := a.grids.Summary(r.Context(), key)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *App) gridKey(w http.ResponseWriter, r *http.Request) (core.GridKey, bool) {
	key, err := core.ParseGridKey(chi.URLParam(r, "key"))
	if err != nil {
		a.writeError(w, errors.InvalidInput(err.Error()))
		return "", false
	}
	return key, true
}

func (a *App) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "UNKNOWN" {
		code = errors.CodeForDomain(err)
	}
	a.writeJSON(w, statusForCode(code), map[string]string{"error": err.Error(), "code": code})
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to write response: %v", err)
	}
}
