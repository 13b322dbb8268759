package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"cacoblog/internal/models"
)

const (
	modeSignIn = "signin"
	modeSignUp = "signup"
)

type loginData struct {
	Mode     string
	Email    string
	Username string
}

func loginMode(value string) string {
	if value == modeSignUp {
		return modeSignUp
	}
	return modeSignIn
}

func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	c := clientFrom(r.Context())
	if c.Session.IsAuthenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.render(w, r, http.StatusOK, "login", viewData{
		Title: "Вход",
		Data:  loginData{Mode: loginMode(r.URL.Query().Get("mode"))},
	})
}

// Login signs the visitor in or, in signup mode, registers and signs in.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := clientFrom(ctx)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	mode := loginMode(r.PostFormValue("mode"))
	email := strings.TrimSpace(r.PostFormValue("email"))
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	var session *models.Session
	var err error
	if mode == modeSignUp {
		session, err = c.Auth.SignUp(ctx, email, password, username)
	} else {
		session, err = c.Auth.SignIn(ctx, email, password)
	}

	if err != nil {
		h.recordAuth(mode, "error")
		h.log.Warn("неудачная попытка входа",
			slog.String("mode", mode),
			slog.String("email", email),
			slog.String("error", err.Error()))

		status := http.StatusUnauthorized
		switch {
		case errors.Is(err, models.ErrValidation):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, models.ErrDuplicateEmail):
			status = http.StatusConflict
		case !errors.Is(err, models.ErrInvalidCredentials):
			status = http.StatusInternalServerError
		}

		h.render(w, r, status, "login", viewData{
			Title:      "Вход",
			Flash:      userMessage(err),
			FlashError: true,
			Data:       loginData{Mode: mode, Email: email, Username: username},
		})
		return
	}

	h.recordAuth(mode, "ok")

	if err := h.sessions.RenewToken(ctx); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.syncTokens(ctx, c)

	h.log.Info("пользователь вошел",
		slog.String("mode", mode),
		slog.String("user_id", session.UserID))

	h.flash(r, "Добро пожаловать, "+session.Username+"!")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := clientFrom(ctx)

	if err := c.Auth.SignOut(ctx); err != nil {
		h.log.Warn("ошибка при выходе", slog.String("error", err.Error()))
	}

	h.syncTokens(ctx, c)
	if err := h.sessions.RenewToken(ctx); err != nil {
		h.serverError(w, r, err)
		return
	}

	h.flash(r, "Вы вышли из аккаунта")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handlers) recordAuth(mode, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordAuthAttempt(mode, outcome)
	}
}
