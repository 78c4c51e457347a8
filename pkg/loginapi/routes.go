package loginapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
)

// Routes returns the sign-in router
func Routes(h Handle) chi.Router {
	r := chi.NewRouter()

	r.Post("/sign-in", h.PostSignIn)
	r.Post("/two-factor", h.PostTwoFactor)
	r.Post("/sign-out", h.PostSignOut)
	r.Get("/invitation/{id}", h.GetInvitation)
	r.Get("/oidc/login", h.GetOIDCLogin)
	r.Get("/oidc/callback", h.GetOIDCCallback)

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(h.tokenAuth))
		r.Use(jwtauth.Authenticator(h.tokenAuth))
		r.Get("/me", h.GetMe)
	})

	return r
}
