package handlers

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"cacoblog/internal/detail"
	"cacoblog/internal/form"
	"cacoblog/internal/models"

	"github.com/dustin/go-humanize"
)

// multipart parts beyond the image itself
const formOverhead = 1 << 20

type writeData struct {
	Editing   *models.Post
	Title     string
	Content   string
	Error     string
	MaxUpload int64
}

// WritePage shows the post form, prefilled when ?edit= names the visitor's
// own post.
func (h *Handlers) WritePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := clientFrom(ctx)

	session := c.Session.Current()
	if session == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	data := writeData{MaxUpload: h.maxUpload}

	if id := r.URL.Query().Get("edit"); id != "" {
		post, ok := h.loadEditablePost(w, r, session, id)
		if !ok {
			return
		}
		c.Posts.SetEditing(&post)
		data.Editing = &post
		data.Title = post.Title
		data.Content = post.Content
	} else {
		c.Posts.SetEditing(nil)
	}

	h.render(w, r, http.StatusOK, "write", viewData{Title: "Новый пост", Data: data})
}

// Write publishes a new post or saves the one being edited.
func (h *Handlers) Write(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := clientFrom(ctx)

	session := c.Session.Current()
	if session == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	data := writeData{MaxUpload: h.maxUpload}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+formOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			data.Error = tooLargeMessage(h.maxUpload)
			h.render(w, r, http.StatusRequestEntityTooLarge, "write", viewData{Title: "Новый пост", Data: data})
			return
		}
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	data.Title = r.FormValue("title")
	data.Content = r.FormValue("content")

	if id := r.FormValue("id"); id != "" {
		editing := c.Posts.Editing()
		if editing == nil || editing.ID != id {
			post, ok := h.loadEditablePost(w, r, session, id)
			if !ok {
				return
			}
			c.Posts.SetEditing(&post)
		}
	} else {
		c.Posts.SetEditing(nil)
	}
	data.Editing = c.Posts.Editing()

	image, closeImage, err := imageInput(r)
	if err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	defer closeImage()

	updating := data.Editing != nil
	page, err := c.PostForm.Submit(ctx, session, form.Input{
		Title:   data.Title,
		Content: data.Content,
		Image:   image,
	})

	if state, _ := c.PostForm.Outcome(); state == form.StateFailed || errors.Is(err, form.ErrBusy) {
		data.Error = userMessage(err)
		status := http.StatusUnprocessableEntity
		if !errors.Is(err, models.ErrValidation) && !errors.Is(err, models.ErrUpload) {
			status = http.StatusBadGateway
		}
		h.render(w, r, status, "write", viewData{Title: "Новый пост", Data: data})
		return
	}
	if err != nil {
		h.log.Warn("пост сохранен, но список не обновлен", slog.String("error", err.Error()))
	}

	if updating {
		h.flash(r, "Пост обновлен")
		http.Redirect(w, r, listPath(page.PageNumber), http.StatusSeeOther)
		return
	}
	h.flash(r, "Пост опубликован")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// loadEditablePost fetches id and checks authorship. On failure it has
// already answered the request.
func (h *Handlers) loadEditablePost(w http.ResponseWriter, r *http.Request, session *models.Session, id string) (models.Post, bool) {
	view := detail.New[models.Post](h.posts, detail.PostMessages, h.log)
	if view.Load(r.Context(), id) != detail.StatusLoaded {
		h.flashError(r, view.Message())
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return models.Post{}, false
	}
	if !view.CanEdit(session) {
		h.flashError(r, userMessage(models.ErrForbidden))
		http.Redirect(w, r, "/post/"+id, http.StatusSeeOther)
		return models.Post{}, false
	}
	return view.Item(), true
}

func tooLargeMessage(limit int64) string {
	return "Файл слишком большой. Максимальный размер: " + humanize.IBytes(uint64(limit))
}

// imageInput returns the uploaded image part, or nil when none was chosen.
func imageInput(r *http.Request) (*models.ImageFile, func(), error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	if header.Size == 0 {
		file.Close()
		return nil, func() {}, nil
	}
	return imageFile(file, header), func() { file.Close() }, nil
}

func imageFile(file multipart.File, header *multipart.FileHeader) *models.ImageFile {
	return &models.ImageFile{
		Name:   header.Filename,
		Size:   header.Size,
		Reader: file,
	}
}
