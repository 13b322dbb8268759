package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"cacoblog/internal/client"
	"cacoblog/internal/gateway/gatewaytest"
	"cacoblog/internal/logger"
	"cacoblog/internal/metrics"
	"cacoblog/internal/middleware"
	"cacoblog/internal/models"
	"cacoblog/internal/service"

	"github.com/alexedwards/scs/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
}

type fakeDB struct{ err error }

func (f fakeDB) HealthCheck(ctx context.Context) error { return f.err }

type fakeSchema struct {
	missing []string
	err     error
}

func (f fakeSchema) MissingTables(ctx context.Context) ([]string, error) { return f.missing, f.err }

type testApp struct {
	t        *testing.T
	srv      *httptest.Server
	posts    *gatewaytest.Table[models.Post]
	comments *gatewaytest.Table[models.Comment]
	storage  *gatewaytest.Storage
	registry *client.Registry
}

type appOptions struct {
	cacheSize int
	authRate  int
	db        HealthChecker
	schema    fakeSchema
}

func newTestApp(t *testing.T, opts appOptions) *testApp {
	t.Helper()

	if opts.cacheSize == 0 {
		opts.cacheSize = 16
	}
	if opts.authRate == 0 {
		opts.authRate = 100
	}
	if opts.db == nil {
		opts.db = fakeDB{}
	}

	log := logger.Discard()
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	app := &testApp{
		t:        t,
		posts:    gatewaytest.NewPostTable(),
		comments: gatewaytest.NewCommentTable(),
		storage:  gatewaytest.NewStorage(),
	}

	registry, err := client.NewRegistry(opts.cacheSize, client.Deps{
		Auth:     gatewaytest.NewAuth(),
		Posts:    app.posts,
		Comments: app.comments,
		Uploader: service.NewImageService(app.storage, 1<<20, log),
		PageSize: 5,
		Logger:   log,
		Metrics:  collector,
	})
	require.NoError(t, err)
	app.registry = registry

	h, err := NewHandlers(Deps{
		Registry:      registry,
		Sessions:      scs.New(),
		Posts:         app.posts,
		Comments:      app.comments,
		DB:            opts.db,
		Schema:        opts.schema,
		Metrics:       collector,
		Gatherer:      reg,
		AuthLimiter:   middleware.NewRateLimiter(opts.authRate, opts.authRate, log),
		MaxUploadSize: 1 << 20,
		Logger:        log,
	})
	require.NoError(t, err)

	app.srv = httptest.NewServer(h.Routes())
	t.Cleanup(app.srv.Close)

	return app
}

// browser is one visitor with its own cookie jar. Redirects are not followed.
type browser struct {
	app    *testApp
	client *http.Client
}

func (app *testApp) browser() *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(app.t, err)

	return &browser{
		app: app,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) do(req *http.Request) (*http.Response, string) {
	b.app.t.Helper()

	resp, err := b.client.Do(req)
	require.NoError(b.app.t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(b.app.t, err)
	return resp, string(body)
}

func (b *browser) get(path string) (*http.Response, string) {
	req, err := http.NewRequest(http.MethodGet, b.app.srv.URL+path, nil)
	require.NoError(b.app.t, err)
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) (*http.Response, string) {
	req, err := http.NewRequest(http.MethodPost, b.app.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(b.app.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) postMultipart(path string, fields map[string]string, image []byte) (*http.Response, string) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(b.app.t, mw.WriteField(k, v))
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", "photo.png")
		require.NoError(b.app.t, err)
		_, err = part.Write(image)
		require.NoError(b.app.t, err)
	}
	require.NoError(b.app.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, b.app.srv.URL+path, &body)
	require.NoError(b.app.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return b.do(req)
}

func (b *browser) signUp(email, username string) {
	b.app.t.Helper()

	resp, _ := b.post("/login", url.Values{
		"mode":     {"signup"},
		"email":    {email},
		"username": {username},
		"password": {"secret1"},
	})
	require.Equal(b.app.t, http.StatusSeeOther, resp.StatusCode)
}

func (app *testApp) allPosts() []models.Post {
	result, err := app.posts.Select(context.Background(), models.Query{Order: models.NewestFirst})
	require.NoError(app.t, err)
	return result.Items
}

func (app *testApp) seedPosts(n int, userID string) []models.Post {
	return app.posts.Seed(n, userID, func(i int) models.Draft {
		return models.Draft{
			Title:    "Запись-" + string(rune('A'+i)),
			Content:  "текст",
			Username: "other",
		}
	})
}

func TestHome_SignedOutShowsLogin(t *testing.T) {
	app := newTestApp(t, appOptions{})
	b := app.browser()

	resp, body := b.get("/")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `action="/login"`)
	assert.Equal(t, 0, app.posts.Calls())
}

func TestLogin_SignUpAndBrowsePages(t *testing.T) {
	app := newTestApp(t, appOptions{})
	app.seedPosts(7, "u-other")
	b := app.browser()

	b.signUp("alice@example.com", "alice")

	resp, body := b.get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Добро пожаловать, alice!")
	assert.Contains(t, body, "Привет, alice!")
	assert.Contains(t, body, "Запись-G")
	assert.NotContains(t, body, "Запись-B")

	_, body = b.get("/?page=2")
	assert.Contains(t, body, "Запись-B")
	assert.Contains(t, body, "Запись-A")
	assert.NotContains(t, body, "Запись-C")
	assert.NotContains(t, body, "Редактировать")

	resp, _ = b.get("/?page=9")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?page=2", resp.Header.Get("Location"))
}

func TestHome_SinglePageStillShowsPagination(t *testing.T) {
	app := newTestApp(t, appOptions{})
	app.seedPosts(3, "u-other")
	b := app.browser()

	b.signUp("alice@example.com", "alice")

	_, body := b.get("/")
	assert.Contains(t, body, `<nav class="pagination">`)
	assert.Contains(t, body, `<span class="current">1</span>`)
	assert.Contains(t, body, `<span class="disabled">← Назад</span>`)
	assert.Contains(t, body, `<span class="disabled">Вперед →</span>`)
	assert.NotContains(t, body, `href="/?page=2"`)
}

func TestLogin_Failures(t *testing.T) {
	app := newTestApp(t, appOptions{})
	b := app.browser()
	b.signUp("bob@example.com", "bob")
	b.post("/logout", url.Values{})

	t.Run("Неверный пароль", func(t *testing.T) {
		resp, body := b.post("/login", url.Values{
			"email":    {"bob@example.com"},
			"password": {"wrong"},
		})

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, body, "Неверный email или пароль")
		assert.Contains(t, body, `value="bob@example.com"`)
	})

	t.Run("Повторная регистрация", func(t *testing.T) {
		resp, body := b.post("/login", url.Values{
			"mode":     {"signup"},
			"email":    {"bob@example.com"},
			"username": {"bob2"},
			"password": {"secret1"},
		})

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Contains(t, body, "уже существует")
	})
}

func TestLogin_RateLimited(t *testing.T) {
	app := newTestApp(t, appOptions{authRate: 1})
	b := app.browser()
	form := url.Values{"email": {"x@example.com"}, "password": {"nope"}}

	resp, _ := b.post("/login", form)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = b.post("/login", form)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestLogout(t *testing.T) {
	app := newTestApp(t, appOptions{})
	b := app.browser()
	b.signUp("carol@example.com", "carol")

	resp, _ := b.post("/logout", url.Values{})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, body := b.get("/")
	assert.Contains(t, body, "Вы вышли из аккаунта")
	assert.NotContains(t, body, "Привет, carol!")

	resp, _ = b.get("/write")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestSession_RestoredAfterEviction(t *testing.T) {
	app := newTestApp(t, appOptions{cacheSize: 1})
	alice := app.browser()
	alice.signUp("alice@example.com", "alice")

	// a second visitor pushes alice's client out of the registry
	app.browser().get("/")
	require.Equal(t, 1, app.registry.Len())

	_, body := alice.get("/")
	assert.Contains(t, body, "Привет, alice!")
}

func TestWrite_CreateWithImage(t *testing.T) {
	app := newTestApp(t, appOptions{})
	b := app.browser()
	b.signUp("dave@example.com", "dave")

	resp, body := b.get("/write")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Новый пост")

	resp, _ = b.postMultipart("/write", map[string]string{
		"title":   "Горы",
		"content": "Были в горах",
	}, pngHeader)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	posts := app.allPosts()
	require.Len(t, posts, 1)
	assert.Equal(t, "dave", posts[0].Username)
	require.Len(t, app.storage.Paths(), 1)
	assert.Equal(t, "http://storage.test/blog-images/"+app.storage.Paths()[0], posts[0].ImageURL)

	_, body = b.get("/")
	assert.Contains(t, body, "Пост опубликован")
	assert.Contains(t, body, "Горы")
	assert.Contains(t, body, posts[0].ImageURL)
	assert.Contains(t, body, "/write?edit="+posts[0].ID)
}

func TestWrite_ValidationKeepsInput(t *testing.T) {
	app := newTestApp(t, appOptions{})
	b := app.browser()
	b.signUp("erin@example.com", "erin")

	resp, body := b.postMultipart("/write", map[string]string{
		"title":   "   ",
		"content": "черновик",
	}, pngHeader)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "заполните заголовок")
	assert.Contains(t, body, "черновик")
	assert.Equal(t, 0, app.posts.Len())
	assert.Empty(t, app.storage.Paths())
}

func TestWrite_RejectsNonImage(t *testing.T) {
	app := newTestApp(t, appOptions{})
	b := app.browser()
	b.signUp("erin@example.com", "erin")

	resp, body := b.postMultipart("/write", map[string]string{
		"title":   "Заголовок",
		"content": "текст",
	}, []byte("plain text pretending to be a picture"))

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Не удалось загрузить изображение")
	assert.Equal(t, 0, app.posts.Len())
}

func TestWrite_EditOwnPostKeepsImage(t *testing.T) {
	app := newTestApp(t, appOptions{})
	b := app.browser()
	b.signUp("fay@example.com", "fay")

	b.postMultipart("/write", map[string]string{"title": "Было", "content": "текст"}, pngHeader)
	original := app.allPosts()[0]

	resp, body := b.get("/write?edit=" + original.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Редактирование поста")
	assert.Contains(t, body, `value="Было"`)

	resp, _ = b.postMultipart("/write", map[string]string{
		"id":      original.ID,
		"title":   "Стало",
		"content": "новый текст",
	}, nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	posts := app.allPosts()
	require.Len(t, posts, 1)
	assert.Equal(t, original.ID, posts[0].ID)
	assert.Equal(t, "Стало", posts[0].Title)
	assert.Equal(t, original.ImageURL, posts[0].ImageURL)
}

func TestWrite_ForeignPostNotEditable(t *testing.T) {
	app := newTestApp(t, appOptions{})
	foreign := app.seedPosts(1, "u-other")[0]
	b := app.browser()
	b.signUp("gus@example.com", "gus")

	resp, _ := b.get("/write?edit=" + foreign.ID)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/post/"+foreign.ID, resp.Header.Get("Location"))

	resp, _ = b.postMultipart("/write", map[string]string{
		"id":      foreign.ID,
		"title":   "Взлом",
		"content": "текст",
	}, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "Запись-A", app.allPosts()[0].Title)

	resp, _ = b.get("/write?edit=missing")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestDeleteFromList_LastItemOnSecondPage(t *testing.T) {
	app := newTestApp(t, appOptions{})
	b := app.browser()
	b.signUp("hal@example.com", "hal")

	for _, title := range []string{"p1", "p2", "p3", "p4", "p5", "p6"} {
		resp, _ := b.postMultipart("/write", map[string]string{"title": title, "content": "текст"}, nil)
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	}

	posts := app.allPosts()
	require.Len(t, posts, 6)
	oldest := posts[len(posts)-1]

	_, body := b.get("/?page=2")
	require.Contains(t, body, "/posts/"+oldest.ID+"/delete?page=2")

	resp, _ := b.post("/posts/"+oldest.ID+"/delete?page=2", url.Values{})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, 5, app.posts.Len())

	_, body = b.get("/")
	assert.Contains(t, body, "Пост удален")
}

func TestDeleteFromList_ForeignPost(t *testing.T) {
	app := newTestApp(t, appOptions{})
	foreign := app.seedPosts(1, "u-other")[0]
	b := app.browser()
	b.signUp("ivy@example.com", "ivy")

	resp, _ := b.post("/posts/"+foreign.ID+"/delete?page=1", url.Values{})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, 1, app.posts.Len())

	_, body := b.get("/")
	assert.Contains(t, body, `class="flash error"`)
}

func TestPostPage(t *testing.T) {
	app := newTestApp(t, appOptions{})
	post := app.seedPosts(1, "u-other")[0]
	b := app.browser()

	t.Run("Пост виден без входа", func(t *testing.T) {
		resp, body := b.get("/post/" + post.ID + "?from=3")

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Запись-A")
		assert.Contains(t, body, `href="/?page=3"`)
		assert.Contains(t, body, "Войдите")
		assert.NotContains(t, body, "Редактировать")
	})

	t.Run("Пост не найден", func(t *testing.T) {
		resp, body := b.get("/post/missing?from=abc")

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, body, "Пост не найден")
		assert.Contains(t, body, `href="/"`)
	})
}

func TestDeletePost_FromDetail(t *testing.T) {
	app := newTestApp(t, appOptions{})
	b := app.browser()
	b.signUp("jack@example.com", "jack")
	b.postMultipart("/write", map[string]string{"title": "Мой пост", "content": "текст"}, nil)
	own := app.allPosts()[0]

	_, body := b.get("/post/" + own.ID + "?from=2")
	require.Contains(t, body, "/post/"+own.ID+"/delete?from=2")

	resp, _ := b.post("/post/"+own.ID+"/delete?from=2", url.Values{})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?page=2", resp.Header.Get("Location"))
	assert.Equal(t, 0, app.posts.Len())
}

func TestDeletePost_ByStranger(t *testing.T) {
	app := newTestApp(t, appOptions{})
	foreign := app.seedPosts(1, "u-other")[0]
	b := app.browser()
	b.signUp("kim@example.com", "kim")

	resp, _ := b.post("/post/"+foreign.ID+"/delete", url.Values{})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/post/"+foreign.ID, resp.Header.Get("Location"))
	assert.Equal(t, 1, app.posts.Len())

	_, body := b.get("/post/" + foreign.ID)
	assert.Contains(t, body, "Можно изменять только свои записи")
}

func TestComments(t *testing.T) {
	app := newTestApp(t, appOptions{})
	post := app.seedPosts(1, "u-other")[0]
	b := app.browser()
	b.signUp("lea@example.com", "lea")

	resp, _ := b.postMultipart("/post/"+post.ID+"/comments?from=1", map[string]string{
		"content": "Хороший пост",
	}, pngHeader)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/post/"+post.ID+"?from=1", resp.Header.Get("Location"))
	require.Equal(t, 1, app.comments.Len())

	_, body := b.get("/post/" + post.ID + "?from=1")
	assert.Contains(t, body, "Комментарий сохранен")
	assert.Contains(t, body, "Хороший пост")
	assert.Contains(t, body, "Комментарии (1)")

	result, err := app.comments.Select(context.Background(), models.Query{Filter: models.Filter{PostID: post.ID}})
	require.NoError(t, err)
	comment := result.Items[0]
	assert.Equal(t, post.ID, comment.PostID)
	assert.NotEmpty(t, comment.ImageURL)

	t.Run("Пустой комментарий", func(t *testing.T) {
		resp, _ := b.postMultipart("/post/"+post.ID+"/comments", map[string]string{"content": " "}, nil)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, 1, app.comments.Len())

		_, body := b.get("/post/" + post.ID)
		assert.Contains(t, body, "заполните текст")
	})

	t.Run("Редактирование", func(t *testing.T) {
		_, body := b.get("/post/" + post.ID + "?editComment=" + comment.ID)
		assert.Contains(t, body, "Изменить комментарий")

		resp, _ := b.postMultipart("/post/"+post.ID+"/comments", map[string]string{
			"id":      comment.ID,
			"content": "Исправленный",
		}, nil)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

		updated, err := app.comments.GetByID(context.Background(), comment.ID)
		require.NoError(t, err)
		assert.Equal(t, "Исправленный", updated.Content)
		assert.Equal(t, comment.ImageURL, updated.ImageURL)
	})

	t.Run("Удаление", func(t *testing.T) {
		resp, _ := b.post("/post/"+post.ID+"/comments/"+comment.ID+"/delete?from=1&page=1", url.Values{})
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/post/"+post.ID+"?from=1", resp.Header.Get("Location"))
		assert.Equal(t, 0, app.comments.Len())
	})
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		opts       appOptions
		wantStatus int
		wantBody   string
	}{
		{
			name:       "Все в порядке",
			opts:       appOptions{},
			wantStatus: http.StatusOK,
			wantBody:   `"status":"ok"`,
		},
		{
			name:       "База недоступна",
			opts:       appOptions{db: fakeDB{err: errors.New("connection refused")}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `"database":"unavailable"`,
		},
		{
			name:       "Нет таблиц",
			opts:       appOptions{schema: fakeSchema{missing: []string{"comments"}}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `"missingTables":["comments"]`,
		},
		{
			name:       "Ошибка проверки схемы",
			opts:       appOptions{schema: fakeSchema{err: errors.New("timeout")}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `"error"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t, tc.opts)

			resp, body := app.browser().get("/health")

			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			assert.Contains(t, body, tc.wantBody)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, appOptions{})
	b := app.browser()
	b.get("/")

	resp, body := b.get("/metrics")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `cacoblog_http_requests_total{method="GET",route="/",status_code="200"} 1`)
	assert.Contains(t, body, "cacoblog_active_clients 1")
}
