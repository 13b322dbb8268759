package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cacoblog/internal/models"
	"cacoblog/internal/store"
)

const (
	flashKey      = "flash"
	flashErrorKey = "flash_error"
)

// ErrorResponse - стандартный ответ с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError - ответ с ошибкой в JSON
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// writeSuccess - успешный ответ в JSON
func writeSuccess(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error("ошибка обработки запроса",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
}

func (h *Handlers) flash(r *http.Request, message string) {
	h.sessions.Put(r.Context(), flashKey, message)
}

func (h *Handlers) flashError(r *http.Request, message string) {
	h.sessions.Put(r.Context(), flashKey, message)
	h.sessions.Put(r.Context(), flashErrorKey, true)
}

func (h *Handlers) popFlash(r *http.Request) (string, bool) {
	message := h.sessions.PopString(r.Context(), flashKey)
	isError := h.sessions.PopBool(r.Context(), flashErrorKey)
	return message, isError
}

// userMessage maps an error to the text shown to the visitor.
func userMessage(err error) string {
	var writeErr *store.WriteError
	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		return "Неверный email или пароль"
	case errors.Is(err, models.ErrDuplicateEmail):
		return "Пользователь с таким email уже существует"
	case errors.Is(err, models.ErrValidation):
		return err.Error()
	case errors.Is(err, models.ErrNotAuthenticated):
		return "Требуется вход в систему"
	case errors.Is(err, models.ErrForbidden):
		return "Можно изменять только свои записи"
	case errors.Is(err, models.ErrNotFound):
		return "Запись не найдена или уже удалена"
	case errors.Is(err, models.ErrUpload):
		return "Не удалось загрузить изображение: " + err.Error()
	case errors.As(err, &writeErr):
		return "Не удалось сохранить изменения. Попробуйте еще раз."
	default:
		return "Не удалось загрузить данные. Попробуйте обновить страницу."
	}
}
