package ui

import (
	"bytes"
	"net/http"
	"strings"
)

// renderTemplate executes a template into a buffer first so a failure can
// still produce an error response
func (a *App) renderTemplate(w http.ResponseWriter, templateName string, data interface{}) {
	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		a.logger.Error("template error for %s: %v (data %T)", templateName, err, data)
		http.Error(w, "template rendering failed", http.StatusInternalServerError)
		return
	}

	if !strings.Contains(buf.String(), "</html>") {
		a.logger.Warn("rendered template %s appears truncated", templateName)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		a.logger.Error("error writing template response: %v", err)
	}
}
