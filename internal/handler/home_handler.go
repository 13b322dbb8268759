package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"cacoblog/internal/models"
	"cacoblog/internal/store"

	"github.com/gorilla/mux"
)

type homeData struct {
	Posts []models.Post
	Pager pager
	Error string
}

// pageParam reads a 1-based page number; anything else is page 1.
func pageParam(r *http.Request, key string) int {
	page, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func listPath(page int) string {
	if page <= 1 {
		return "/"
	}
	return "/?page=" + strconv.Itoa(page)
}

// Home shows one page of posts to a signed-in visitor and the sign-in form
// to everyone else.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := clientFrom(ctx)

	if !c.Session.IsAuthenticated() {
		h.render(w, r, http.StatusOK, "login", viewData{
			Title: "Вход",
			Data:  loginData{Mode: modeSignIn},
		})
		return
	}

	requested := pageParam(r, "page")
	page, err := c.Posts.FetchPage(ctx, requested)

	data := homeData{}
	switch {
	case err == nil:
		if requested > page.TotalPages {
			http.Redirect(w, r, listPath(page.TotalPages), http.StatusSeeOther)
			return
		}
	case errors.Is(err, store.ErrSuperseded):
	default:
		data.Error = userMessage(err)
	}

	data.Posts = page.Items
	data.Pager = pager{Pagination: c.Posts.Pagination(), Base: "/?page="}

	h.render(w, r, http.StatusOK, "home", viewData{Title: "Посты", Data: data})
}

// DeleteFromList removes a post from the page the visitor is looking at and
// returns to the page that remains.
func (h *Handlers) DeleteFromList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := clientFrom(ctx)

	session := c.Session.Current()
	if session == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	id := mux.Vars(r)["id"]
	requested := pageParam(r, "page")

	if c.Posts.Snapshot().PageNumber != requested {
		if _, err := c.Posts.FetchPage(ctx, requested); err != nil && !errors.Is(err, store.ErrSuperseded) {
			h.flashError(r, userMessage(err))
			http.Redirect(w, r, listPath(requested), http.StatusSeeOther)
			return
		}
	}

	page, err := c.Posts.Delete(ctx, session, id)

	var writeErr *store.WriteError
	if errors.As(err, &writeErr) {
		h.flashError(r, userMessage(err))
		http.Redirect(w, r, listPath(requested), http.StatusSeeOther)
		return
	}

	h.flash(r, "Пост удален")
	http.Redirect(w, r, listPath(page.PageNumber), http.StatusSeeOther)
}
