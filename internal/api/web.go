package api

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/schedchat/schedchat/internal/schedule"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

const (
	// maxUploadSize bounds the whole POST / body.
	maxUploadSize = 32 << 20
	uploadField   = "files"
	questionField = "input_text"
)

type page struct {
	tmpl *template.Template
}

// pageView is the data rendered by index.html.tmpl.
type pageView struct {
	InputText string
	Lines     []string
	Error     string
}

func newPage() (*page, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}
	return &page{tmpl: tmpl}, nil
}

func (p *page) render(w http.ResponseWriter, code int, v pageView) {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, "index.html.tmpl", v); err != nil {
		slog.Error("rendering page", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	buf.WriteTo(w)
}

func handleIndex(p *page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.render(w, http.StatusOK, pageView{Lines: []string{}})
	}
}

func handleAsk(p *page, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		defer r.Body.Close()

		uploads, err := parseAskForm(r)
		if err != nil {
			p.render(w, http.StatusBadRequest, pageView{Lines: []string{}, Error: "Error: " + err.Error()})
			return
		}

		question := r.FormValue(questionField)
		view := pageView{InputText: question, Lines: []string{}}

		res, err := deps.Assistant.Answer(r.Context(), question, uploads)
		if err != nil {
			deps.Logger.Warn("answering question failed", "error", err)
			view.Error = "Error: " + err.Error()
			p.render(w, http.StatusOK, view)
			return
		}
		view.Lines = res.Lines
		p.render(w, http.StatusOK, view)
	}
}

// parseAskForm parses a multipart or urlencoded form and returns the
// uploaded schedule files. File inputs submitted without a file are dropped.
func parseAskForm(r *http.Request) ([]schedule.Upload, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return nil, r.ParseForm()
	}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.New("upload exceeds 32 MiB limit")
		}
		return nil, err
	}
	if r.MultipartForm == nil {
		return nil, nil
	}
	files := r.MultipartForm.File[uploadField]
	kept := files[:0]
	for _, fh := range files {
		if fh.Filename != "" {
			kept = append(kept, fh)
		}
	}
	return schedule.UploadsFromMultipart(kept), nil
}
