package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"cacoblog/internal/client"

	"github.com/google/uuid"
)

const (
	visitorKey      = "visitor_id"
	accessTokenKey  = "access_token"
	refreshTokenKey = "refresh_token"
)

type clientKey struct{}

func clientFrom(ctx context.Context) *client.Client {
	c, _ := ctx.Value(clientKey{}).(*client.Client)
	return c
}

// visitor attaches the visitor's client to the request. A client missing
// from the registry is rebuilt from the tokens kept in the cookie session.
// Requests of one visitor are handled one at a time.
func (h *Handlers) visitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		visitorID := h.sessions.GetString(ctx, visitorKey)
		if visitorID == "" {
			visitorID = uuid.New().String()
			h.sessions.Put(ctx, visitorKey, visitorID)
		}

		c, created, err := h.registry.Get(ctx, visitorID)
		if err != nil {
			h.serverError(w, r, err)
			return
		}

		c.Lock()
		defer c.Unlock()

		if created {
			access := h.sessions.GetString(ctx, accessTokenKey)
			refresh := h.sessions.GetString(ctx, refreshTokenKey)
			if _, err := c.Auth.Restore(ctx, access, refresh); err != nil {
				h.log.Warn("не удалось восстановить сессию",
					slog.String("visitor_id", visitorID),
					slog.String("error", err.Error()))
			}
		} else if _, err := c.Auth.GetCurrentSession(ctx); err != nil {
			h.log.Warn("не удалось обновить сессию",
				slog.String("visitor_id", visitorID),
				slog.String("error", err.Error()))
		}

		h.syncTokens(ctx, c)

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, clientKey{}, c)))
	})
}

// syncTokens mirrors the client's tokens into the cookie session.
func (h *Handlers) syncTokens(ctx context.Context, c *client.Client) {
	session := c.Session.Current()
	if session == nil {
		if h.sessions.Exists(ctx, accessTokenKey) || h.sessions.Exists(ctx, refreshTokenKey) {
			h.sessions.Remove(ctx, accessTokenKey)
			h.sessions.Remove(ctx, refreshTokenKey)
		}
		return
	}

	if h.sessions.GetString(ctx, accessTokenKey) != session.AccessToken {
		h.sessions.Put(ctx, accessTokenKey, session.AccessToken)
	}
	if h.sessions.GetString(ctx, refreshTokenKey) != session.RefreshToken {
		h.sessions.Put(ctx, refreshTokenKey, session.RefreshToken)
	}
}
