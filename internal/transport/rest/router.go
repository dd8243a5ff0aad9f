package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/kidsafe/access-management/internal/auth"
	"github.com/kidsafe/access-management/internal/authorization"
	"github.com/kidsafe/access-management/internal/child"
	"github.com/kidsafe/access-management/internal/gamesession"
	"github.com/kidsafe/access-management/internal/transport/middleware"
	"github.com/kidsafe/access-management/internal/transport/swagger"
	"github.com/kidsafe/access-management/internal/user"
)

func RegisterAllRoutes(
	router *chi.Mux,
	db *sql.DB,
	authHandler *auth.Handler,
	userHandler *user.Handler,
	childHandler *child.Handler,
	grantHandler *authorization.Handler,
	sessionHandler *gamesession.Handler,
	logger *slog.Logger,
) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// OpenAPI spec and Swagger UI live outside the API prefix
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", authHandler.Login)
			sr.Post("/refresh", authHandler.RefreshToken)
			sr.Post("/logout", authHandler.Logout)
		})

		// registration is the only unauthenticated write
		r.Post("/users", userHandler.Register)

		// game-client surface: session token only, no bearer credential
		r.Route("/game/sessions", func(gr chi.Router) {
			gr.Post("/validate", sessionHandler.ValidateSession)
			gr.Post("/heartbeat", sessionHandler.Heartbeat)
		})

		// everything below requires a verified bearer token
		r.Group(func(pr chi.Router) {
			pr.Use(authHandler.AuthMiddleware)

			pr.Get("/users/me", userHandler.GetCurrentUser)
			pr.Route("/users/{userID}", func(ur chi.Router) {
				ur.Put("/roles", userHandler.AssignRole)
				ur.Delete("/roles/{role}", userHandler.RemoveRole)
				ur.Post("/deactivate", userHandler.DeactivateUser)
				ur.Post("/activate", userHandler.ActivateUser)
			})

			pr.Route("/children", func(cr chi.Router) {
				cr.Post("/", childHandler.CreateChild)
				cr.Get("/", childHandler.ListChildren)

				cr.Route("/{childID}", func(ccr chi.Router) {
					ccr.Get("/", childHandler.GetChild)
					ccr.Patch("/", childHandler.UpdateChild)
					ccr.Delete("/", childHandler.DeleteChild)

					ccr.Route("/pin", func(pinr chi.Router) {
						pinr.Put("/", childHandler.SetPin)
						pinr.Delete("/", childHandler.RemovePin)
						pinr.Post("/enable", childHandler.EnablePin)
						pinr.Post("/disable", childHandler.DisablePin)
					})

					ccr.Route("/grants", func(gr chi.Router) {
						gr.Post("/", grantHandler.AddGrant)
						gr.Get("/", grantHandler.ListGrants)
						gr.Delete("/{grantID}", grantHandler.RemoveGrant)
						gr.Post("/transfer-primary", grantHandler.TransferPrimary)
					})

					ccr.Route("/sessions", func(sr chi.Router) {
						sr.Post("/", sessionHandler.IssueSession)
						sr.Get("/", sessionHandler.ListSessions)
					})
				})
			})

			pr.Route("/sessions/{sessionID}", func(sr chi.Router) {
				sr.Post("/extend", sessionHandler.ExtendSession)
				sr.Delete("/", sessionHandler.TerminateSession)
			})
		})
	})
}
