package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"
	"unicode/utf8"

	"cacoblog/internal/detail"
	"cacoblog/internal/models"
	"cacoblog/internal/store"

	"github.com/dustin/go-humanize"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.html
var templateFS embed.FS

const excerptLength = 300

// pager is a pagination block whose links are Base followed by the page number.
type pager struct {
	store.Pagination
	Base string
}

type viewData struct {
	Title      string
	Session    *models.Session
	Flash      string
	FlashError bool
	Data       interface{}
}

func parseTemplates() (map[string]*template.Template, error) {
	policy := bluemonday.UGCPolicy()

	funcs := template.FuncMap{
		"render": func(content string) template.HTML {
			return template.HTML(policy.Sanitize(content))
		},
		"excerpt": func(content string) template.HTML {
			if utf8.RuneCountInString(content) > excerptLength {
				runes := []rune(content)
				content = string(runes[:excerptLength]) + "…"
			}
			return template.HTML(policy.Sanitize(content))
		},
		"ago": func(t time.Time) string {
			return humanize.Time(t)
		},
		"date": func(t time.Time) string {
			return t.Format("02.01.2006 15:04")
		},
		"bytes": func(n int64) string {
			if n <= 0 {
				return "∞"
			}
			return humanize.IBytes(uint64(n))
		},
		"canEdit": func(session *models.Session, item models.Item) bool {
			return detail.CanEdit(session, item)
		},
	}

	pages := []string{"home", "login", "write", "post"}
	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		tpl, err := template.New(page).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/partials.html",
			"templates/"+page+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора шаблона %s: %w", page, err)
		}
		templates[page] = tpl
	}

	return templates, nil
}

// render executes the page into a buffer so a template error never leaves
// a half-written response.
func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, page string, data viewData) {
	tpl, ok := h.templates[page]
	if !ok {
		h.serverError(w, r, fmt.Errorf("шаблон %s не найден", page))
		return
	}

	if data.Session == nil {
		if c := clientFrom(r.Context()); c != nil {
			data.Session = c.Session.Current()
		}
	}
	if data.Flash == "" {
		data.Flash, data.FlashError = h.popFlash(r)
	}

	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		h.serverError(w, r, fmt.Errorf("ошибка отрисовки шаблона %s: %w", page, err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
