package models

import (
	"io"
	"time"
)

type User struct {
	UserID                 string    `json:"userId" db:"user_id"`
	Email                  string    `json:"email" db:"email"`
	Username               string    `json:"username" db:"username"`
	PasswordHash           string    `json:"-" db:"password_hash"`
	RefreshToken           string    `json:"-" db:"refresh_token"`
	RefreshTokenExpiryTime time.Time `json:"-" db:"refresh_token_expiry_time"`
	CreatedAt              time.Time `json:"createdAt" db:"created_at"`
}

// Session is the authenticated identity of one visitor.
// UserID is non-empty iff the session is active.
type Session struct {
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt.IsZero() || !now.Before(s.ExpiresAt)
}

type Post struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	UserID    string    `json:"userId" db:"user_id"`
	Username  string    `json:"username" db:"username"`
	ImageURL  string    `json:"imageUrl,omitempty" db:"image_url"`
}

func (p Post) GetID() string           { return p.ID }
func (p Post) GetAuthorID() string     { return p.UserID }
func (p Post) GetImageURL() string     { return p.ImageURL }
func (p Post) GetCreatedAt() time.Time { return p.CreatedAt }

type Comment struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	Content   string    `json:"content" db:"content"`
	UserID    string    `json:"userId" db:"user_id"`
	Username  string    `json:"username" db:"username"`
	ImageURL  string    `json:"imageUrl,omitempty" db:"image_url"`
	PostID    string    `json:"postId" db:"post_id"`
}

func (c Comment) GetID() string           { return c.ID }
func (c Comment) GetAuthorID() string     { return c.UserID }
func (c Comment) GetImageURL() string     { return c.ImageURL }
func (c Comment) GetCreatedAt() time.Time { return c.CreatedAt }

// Item is a row of a paginated, author-owned collection (posts, comments).
type Item interface {
	GetID() string
	GetAuthorID() string
	GetImageURL() string
	GetCreatedAt() time.Time
}

// Draft is the row sent on insert. Author fields come from the session.
type Draft struct {
	Title    string `db:"title"`
	Content  string `db:"content"`
	ImageURL string `db:"image_url"`
	UserID   string `db:"user_id"`
	Username string `db:"username"`
	PostID   string `db:"post_id"`
}

// Patch holds only the mutable fields of an item.
type Patch struct {
	Title    string
	Content  string
	ImageURL string
}

// Page is a derived window over an ordered collection.
type Page[T Item] struct {
	Items      []T
	PageNumber int
	PageSize   int
	TotalCount int
	TotalPages int
	Loading    bool
	Editing    *T
}

type ImageFile struct {
	Name   string
	Size   int64
	Reader io.Reader
}

type UploadedImage struct {
	Path string
	URL  string
}
