package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"cacoblog/internal/client"
	"cacoblog/internal/detail"
	"cacoblog/internal/form"
	"cacoblog/internal/models"
	"cacoblog/internal/store"

	"github.com/gorilla/mux"
)

type postData struct {
	Message        string
	ReturnPath     string
	From           string
	Post           models.Post
	CanEdit        bool
	CommentCount   int
	CommentError   string
	Comments       []models.Comment
	Pager          pager
	EditingComment *models.Comment
}

// postPath is the detail URL keeping the list page the visitor came from
// and, when above 1, the comment page.
func postPath(id, from string, commentPage int) string {
	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if commentPage > 1 {
		q.Set("page", strconv.Itoa(commentPage))
	}
	path := "/post/" + id
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return path
}

func commentScope(c *client.Client, postID string) {
	c.Comments.SetScope(models.Filter{PostID: postID})
}

// PostPage shows a post with one page of its comments.
func (h *Handlers) PostPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := clientFrom(ctx)

	id := mux.Vars(r)["id"]
	from := r.URL.Query().Get("from")
	data := postData{From: from, ReturnPath: detail.ReturnPath(from)}

	view := detail.New[models.Post](h.posts, detail.PostMessages, h.log)
	switch view.Load(ctx, id) {
	case detail.StatusNotFound:
		data.Message = view.Message()
		h.render(w, r, http.StatusNotFound, "post", viewData{Title: "Пост не найден", Data: data})
		return
	case detail.StatusFailed:
		data.Message = view.Message()
		h.render(w, r, http.StatusInternalServerError, "post", viewData{Title: "Ошибка", Data: data})
		return
	}

	session := c.Session.Current()
	data.Post = view.Item()
	data.CanEdit = view.CanEdit(session)

	commentScope(c, id)
	requested := pageParam(r, "page")
	comments, err := c.Comments.FetchPage(ctx, requested)
	if err == nil && requested > comments.TotalPages {
		comments, err = c.Comments.FetchPage(ctx, comments.TotalPages)
	}
	if err != nil && !errors.Is(err, store.ErrSuperseded) {
		data.CommentError = userMessage(err)
	}

	data.Comments = comments.Items
	data.CommentCount = comments.TotalCount
	data.Pager = pager{
		Pagination: c.Comments.Pagination(),
		Base:       "/post/" + id + "?from=" + url.QueryEscape(from) + "&page=",
	}

	var editing *models.Comment
	if editID := r.URL.Query().Get("editComment"); editID != "" {
		for i := range comments.Items {
			if comments.Items[i].ID == editID && detail.CanEdit(session, comments.Items[i]) {
				editing = &comments.Items[i]
				break
			}
		}
	}
	c.Comments.SetEditing(editing)
	data.EditingComment = editing

	h.render(w, r, http.StatusOK, "post", viewData{Title: data.Post.Title, Data: data})
}

// DeletePost removes the post shown on its detail page and returns to the list.
func (h *Handlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := clientFrom(ctx)

	session := c.Session.Current()
	if session == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	id := mux.Vars(r)["id"]
	from := r.URL.Query().Get("from")

	view := detail.New[models.Post](h.posts, detail.PostMessages, h.log)
	if view.Load(ctx, id) != detail.StatusLoaded {
		h.flashError(r, view.Message())
		http.Redirect(w, r, detail.ReturnPath(from), http.StatusSeeOther)
		return
	}

	if err := view.Delete(ctx, session); err != nil {
		h.log.Warn("не удалось удалить пост",
			slog.String("id", id),
			slog.String("error", err.Error()))
		h.flashError(r, userMessage(err))
		http.Redirect(w, r, postPath(id, from, 0), http.StatusSeeOther)
		return
	}

	h.flash(r, "Пост удален")
	http.Redirect(w, r, detail.ReturnPath(from), http.StatusSeeOther)
}

// SaveComment adds a comment to the post or saves the one being edited.
func (h *Handlers) SaveComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := clientFrom(ctx)

	id := mux.Vars(r)["id"]
	from := r.URL.Query().Get("from")

	session := c.Session.Current()
	if session == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+formOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.flashError(r, tooLargeMessage(h.maxUpload))
			http.Redirect(w, r, postPath(id, from, 0), http.StatusSeeOther)
			return
		}
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	commentScope(c, id)

	if cid := r.FormValue("id"); cid != "" {
		editing := c.Comments.Editing()
		if editing == nil || editing.ID != cid {
			comment, err := h.comments.GetByID(ctx, cid)
			if err != nil || comment.PostID != id {
				h.flashError(r, userMessage(models.ErrNotFound))
				http.Redirect(w, r, postPath(id, from, 0), http.StatusSeeOther)
				return
			}
			if !detail.CanEdit(session, comment) {
				h.flashError(r, userMessage(models.ErrForbidden))
				http.Redirect(w, r, postPath(id, from, 0), http.StatusSeeOther)
				return
			}
			c.Comments.SetEditing(&comment)
		}
	} else {
		c.Comments.SetEditing(nil)
	}

	image, closeImage, err := imageInput(r)
	if err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	defer closeImage()

	page, err := c.CommentForm.Submit(ctx, session, form.Input{
		Content: r.FormValue("content"),
		Image:   image,
	})

	if state, _ := c.CommentForm.Outcome(); state == form.StateFailed || errors.Is(err, form.ErrBusy) {
		h.flashError(r, userMessage(err))
		http.Redirect(w, r, postPath(id, from, page.PageNumber), http.StatusSeeOther)
		return
	}
	if err != nil {
		h.log.Warn("комментарий сохранен, но список не обновлен", slog.String("error", err.Error()))
	}

	h.flash(r, "Комментарий сохранен")
	http.Redirect(w, r, postPath(id, from, page.PageNumber), http.StatusSeeOther)
}

// DeleteComment removes a comment from the comment page being viewed.
func (h *Handlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := clientFrom(ctx)

	vars := mux.Vars(r)
	id, cid := vars["id"], vars["cid"]
	from := r.URL.Query().Get("from")
	requested := pageParam(r, "page")

	session := c.Session.Current()
	if session == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	commentScope(c, id)
	if c.Comments.Snapshot().PageNumber != requested {
		if _, err := c.Comments.FetchPage(ctx, requested); err != nil && !errors.Is(err, store.ErrSuperseded) {
			h.flashError(r, userMessage(err))
			http.Redirect(w, r, postPath(id, from, requested), http.StatusSeeOther)
			return
		}
	}

	page, err := c.Comments.Delete(ctx, session, cid)

	var writeErr *store.WriteError
	if errors.As(err, &writeErr) {
		h.flashError(r, userMessage(err))
		http.Redirect(w, r, postPath(id, from, requested), http.StatusSeeOther)
		return
	}

	h.flash(r, "Комментарий удален")
	http.Redirect(w, r, postPath(id, from, page.PageNumber), http.StatusSeeOther)
}
