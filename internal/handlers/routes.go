package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Limiter: deps.AuthLimiter}
	videos := VideoHandler{
		Videos:       deps.Videos,
		Interactions: deps.Interactions,
		Uploads:      deps.Uploads,
		Public:       deps.Public,
		Sessions:     deps.Sessions,
		Limiter:      deps.UploadLimiter,
	}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/auth/register", auth.Register)
	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/logout", auth.Logout)
	mux.HandleFunc("/api/v1/videos", videos.Collection)
	mux.HandleFunc("/api/v1/videos/{id}", videos.Detail)
	mux.HandleFunc("/api/v1/videos/{id}/comments", videos.Comment)
	mux.HandleFunc("/api/v1/videos/{id}/ratings", videos.Rate)
	mux.HandleFunc("/api/v1/public/videos", videos.PublicList)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Sessions      SessionManager
	Videos        VideoStore
	Interactions  InteractionStore
	Uploads       UploadStore
	Public        PublicLister
	AuthLimiter   RateLimiter
	UploadLimiter RateLimiter
}
