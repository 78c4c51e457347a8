package sessionstate

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-signin/pkg/loginflow"
	"github.com/tendant/simple-signin/pkg/signup"
	"github.com/tendant/simple-signin/pkg/twofa"
)

func sampleAttempt() loginflow.AttemptContext {
	return loginflow.AttemptContext{
		PendingInvite: &signup.InviteToken{ID: uuid.New(), EmailAddress: "invitee@example.com"},
		PendingChallenge: &loginflow.PendingChallenge{
			UserID:                     uuid.New(),
			Channel:                    twofa.TWO_FACTOR_TYPE_EMAIL,
			RequiresEmailLoginOverride: true,
			IssuedAt:                   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestCodec_EncodeDecode(t *testing.T) {
	codec := NewCodec("secret", WithIssuer("simple-signin"))
	attempt := sampleAttempt()

	token, expiresAt, err := codec.Encode(attempt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultAttemptExpiry), expiresAt, 5*time.Second)

	decoded, err := codec.Decode(token)
	require.NoError(t, err)
	require.NotNil(t, decoded.PendingInvite)
	assert.Equal(t, attempt.PendingInvite.ID, decoded.PendingInvite.ID)
	assert.Equal(t, "invitee@example.com", decoded.PendingInvite.EmailAddress)
	require.NotNil(t, decoded.PendingChallenge)
	assert.Equal(t, attempt.PendingChallenge.UserID, decoded.PendingChallenge.UserID)
	assert.Equal(t, twofa.TWO_FACTOR_TYPE_EMAIL, decoded.PendingChallenge.Channel)
	assert.True(t, decoded.PendingChallenge.RequiresEmailLoginOverride)
	assert.True(t, attempt.PendingChallenge.IssuedAt.Equal(decoded.PendingChallenge.IssuedAt))
	assert.Nil(t, decoded.Session)
}

func TestCodec_Rejects(t *testing.T) {
	codec := NewCodec("secret", WithIssuer("simple-signin"))
	token, _, err := codec.Encode(sampleAttempt())
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewCodec("other", WithIssuer("simple-signin")).Decode(token)
		assert.ErrorIs(t, err, ErrInvalidAttempt)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := NewCodec("secret", WithIssuer("someone-else")).Decode(token)
		assert.ErrorIs(t, err, ErrInvalidAttempt)
	})

	t.Run("tampered", func(t *testing.T) {
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		tampered := parts[0] + "." + parts[1] + "x." + parts[2]
		_, err := codec.Decode(tampered)
		assert.ErrorIs(t, err, ErrInvalidAttempt)
	})

	t.Run("expired", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		old := NewCodec("secret", WithIssuer("simple-signin"), WithExpiry(time.Minute), WithClock(func() time.Time { return past }))
		expired, _, err := old.Encode(sampleAttempt())
		require.NoError(t, err)
		_, err = codec.Decode(expired)
		assert.ErrorIs(t, err, ErrInvalidAttempt)
	})

	t.Run("unsigned", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"iss": "simple-signin",
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = codec.Decode(unsigned)
		assert.ErrorIs(t, err, ErrInvalidAttempt)
	})
}

func TestStore_SaveLoadClear(t *testing.T) {
	store := NewStore(NewCodec("secret"), NewCookieSetter(true, false))
	attempt := sampleAttempt()

	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(rec, attempt))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, ATTEMPT_COOKIE_NAME, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	loaded := store.Load(req)
	require.NotNil(t, loaded.PendingChallenge)
	assert.Equal(t, attempt.PendingChallenge.UserID, loaded.PendingChallenge.UserID)

	// an empty attempt clears the cookie
	rec = httptest.NewRecorder()
	require.NoError(t, store.Save(rec, loginflow.AttemptContext{}))
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestStore_LoadIgnoresBadCookies(t *testing.T) {
	store := NewStore(NewCodec("secret"), NewCookieSetter(true, true))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, loginflow.AttemptContext{}, store.Load(req))

	req.AddCookie(&http.Cookie{Name: ATTEMPT_COOKIE_NAME, Value: "garbage"})
	assert.Equal(t, loginflow.AttemptContext{}, store.Load(req))
}
