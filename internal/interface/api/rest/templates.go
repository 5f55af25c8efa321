package rest

import (
	"embed"
	"fmt"
	"html/template"
	"time"
)

const (
	viewShare = "share.html"
	viewError = "error.html"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded share and error views for gin.SetHTMLTemplate.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"humanBytes": humanBytes,
		"humanTime":  func(t time.Time) string { return t.UTC().Format("Jan 2, 2006 15:04 MST") },
		"rfc3339":    func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	}).ParseFS(templateFS, "templates/*.html")
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

type errorView struct {
	Title   string
	Message string
}
