package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
)

const CookieName = "guest_session"

// CookieCodec signs session ids into HS256 tokens carried by the
// guest_session cookie.
type CookieCodec struct {
	Secret []byte
	Secure bool
	MaxAge time.Duration
}

func (k CookieCodec) Sign(id uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"sub": id.String(),
		"iat": time.Now().Unix(),
		"typ": "guest",
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(k.Secret)
}

func (k CookieCodec) Parse(raw string) (uuid.UUID, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return k.Secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid session token claims")
	}
	if typ, _ := claims["typ"].(string); typ != "guest" {
		return uuid.Nil, errors.New("not a guest session token")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject claim: %w", err)
	}
	return uuid.Parse(sub)
}

// Store binds the codec to one request.
func (k CookieCodec) Store(c echo.Context) *CookieStore {
	return &CookieStore{codec: k, c: c}
}

type CookieStore struct {
	codec CookieCodec
	c     echo.Context
}

// Load treats a missing or tampered cookie as absent.
func (s *CookieStore) Load(context.Context) (uuid.UUID, error) {
	cookie, err := s.c.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return uuid.Nil, nil
	}
	id, err := s.codec.Parse(cookie.Value)
	if err != nil {
		return uuid.Nil, nil
	}
	return id, nil
}

func (s *CookieStore) Save(_ context.Context, id uuid.UUID) error {
	raw, err := s.codec.Sign(id)
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}
	maxAge := s.codec.MaxAge
	if maxAge == 0 {
		maxAge = 365 * 24 * time.Hour
	}
	s.c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    raw,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.codec.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})
	return nil
}

type fileToken struct {
	GuestSessionID string `json:"guest_session_id"`
}

// FileStore keeps the id in a small JSON file, for clients without cookies.
type FileStore struct {
	Fs   afero.Fs
	Path string
}

func (s *FileStore) Load(context.Context) (uuid.UUID, error) {
	b, err := afero.ReadFile(s.Fs, s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	var tok fileToken
	if err := json.Unmarshal(b, &tok); err != nil {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(tok.GuestSessionID)
	if err != nil {
		return uuid.Nil, nil
	}
	return id, nil
}

func (s *FileStore) Save(_ context.Context, id uuid.UUID) error {
	b, err := json.Marshal(fileToken{GuestSessionID: id.String()})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := s.Fs.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return afero.WriteFile(s.Fs, s.Path, b, 0o600)
}

type MemoryStore struct {
	mu sync.Mutex
	id uuid.UUID
}

func NewMemoryStore(id uuid.UUID) *MemoryStore {
	return &MemoryStore{id: id}
}

func (s *MemoryStore) Load(context.Context) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, nil
}

func (s *MemoryStore) Save(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	return nil
}
