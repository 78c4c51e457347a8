package sessionstate

import (
	"log/slog"
	"net/http"

	"github.com/tendant/simple-signin/pkg/loginflow"
)

const ATTEMPT_COOKIE_NAME = "signin_attempt"

// Store keeps the AttemptContext in a signed cookie
type Store struct {
	codec   *Codec
	cookies CookieSetter
}

func NewStore(codec *Codec, cookies CookieSetter) *Store {
	return &Store{codec: codec, cookies: cookies}
}

// Load returns the attempt carried by the request. A missing, tampered or
// expired cookie yields an empty attempt.
func (s *Store) Load(r *http.Request) loginflow.AttemptContext {
	cookie, err := r.Cookie(ATTEMPT_COOKIE_NAME)
	if err != nil || cookie.Value == "" {
		return loginflow.AttemptContext{}
	}
	attempt, err := s.codec.Decode(cookie.Value)
	if err != nil {
		slog.Debug("Discarding attempt cookie", "err", err)
		return loginflow.AttemptContext{}
	}
	return attempt
}

// Save writes the attempt, or clears the cookie when there is nothing to keep
func (s *Store) Save(w http.ResponseWriter, attempt loginflow.AttemptContext) error {
	if attempt == (loginflow.AttemptContext{}) {
		return s.Clear(w)
	}
	token, expiresAt, err := s.codec.Encode(attempt)
	if err != nil {
		return err
	}
	return s.cookies.SetCookie(w, ATTEMPT_COOKIE_NAME, token, expiresAt)
}

// Clear removes the attempt cookie
func (s *Store) Clear(w http.ResponseWriter) error {
	return s.cookies.ClearCookie(w, ATTEMPT_COOKIE_NAME)
}
