package server

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/jrsteele09/speakwise-web/users"
	"github.com/rs/zerolog"
)

//go:embed templates/*
var templateFiles embed.FS

var viewNames = []string{
	"index.html",
	"signin.html",
	"signup.html",
	"loading.html",
	"forbidden.html",
	"dashboard.html",
	"profile_complete.html",
	"callback.html",
}

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a template from the embedded filesystem
func ParseTemplate(name string) (*template.Template, error) {
	content, err := fs.ReadFile(TemplateFilesFS(), name)
	if err != nil {
		return nil, err
	}
	return template.New(name).Parse(string(content))
}

type views struct {
	templates map[string]*template.Template
}

func parseViews() (*views, error) {
	v := &views{templates: make(map[string]*template.Template, len(viewNames))}
	for _, name := range viewNames {
		tmpl, err := ParseTemplate(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		v.templates[name] = tmpl
	}
	return v, nil
}

// pageData is the model shared by every page template
type pageData struct {
	AppName       string
	Title         string
	Authenticated bool
	User          *users.Summary
	Error         string
	Notice        string
	Email         string
	Roles         []users.RoleType
	Role          users.RoleType
	Required      []users.RoleType
	Actual        users.RoleType
	Message       string
	RefreshAfter  int
	RefreshTo     string
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	tmpl, ok := s.views.templates[name]
	if !ok {
		zerolog.Ctx(r.Context()).Error().Str("template", name).Msg("Unknown template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	data.AppName = s.config.GetAppName()

	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		zerolog.Ctx(r.Context()).Err(err).Str("template", name).Msg("Failed to render template")
	}
}
