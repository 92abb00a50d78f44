package http

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"quiz-attempt-service/internal/app"
)

// RouterConfig carries what NewRouter needs beyond the services.
type RouterConfig struct {
	Auth           *Authenticator
	AllowedOrigins []string
}

// NewRouter mounts the REST API, the leaderboard websocket and /healthz.
// Leaderboards are public; everything else under /api needs a bearer token.
func NewRouter(quizzes *app.QuizService, attempts *app.AttemptService, cfg RouterConfig) http.Handler {
	quizHandler := NewQuizHandler(quizzes)
	attemptHandler := NewAttemptHandler(attempts)
	wsHandler := NewWSHandler(attempts)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws/leaderboard/{quizId}", wsHandler.ServeWS).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/leaderboard/quiz/{quizId}", attemptHandler.QuizLeaderboard).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard/global", attemptHandler.GlobalLeaderboard).Methods(http.MethodGet)

	protected := api.NewRoute().Subrouter()
	protected.Use(cfg.Auth.Middleware)

	protected.HandleFunc("/quizzes", quizHandler.Create).Methods(http.MethodPost)
	protected.HandleFunc("/quizzes/public", quizHandler.ListPublic).Methods(http.MethodGet)
	protected.HandleFunc("/quizzes/mine", quizHandler.ListMine).Methods(http.MethodGet)
	protected.HandleFunc("/quizzes/join", quizHandler.Join).Methods(http.MethodPost)
	protected.HandleFunc("/quizzes/{id}", quizHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/quizzes/{id}", quizHandler.Update).Methods(http.MethodPut)
	protected.HandleFunc("/quizzes/{id}", quizHandler.Delete).Methods(http.MethodDelete)
	protected.HandleFunc("/quizzes/{id}/analytics", attemptHandler.Analytics).Methods(http.MethodGet)
	protected.HandleFunc("/quizzes/{id}/access-code", quizHandler.RegenerateCode).Methods(http.MethodPatch)
	protected.HandleFunc("/quizzes/{id}/rate", quizHandler.Rate).Methods(http.MethodPost)
	protected.HandleFunc("/users/me/stats", attemptHandler.MyStats).Methods(http.MethodGet)

	protected.HandleFunc("/attempts/history", attemptHandler.History).Methods(http.MethodGet)
	protected.HandleFunc("/attempts/{quizId}/start", attemptHandler.Start).Methods(http.MethodPost)
	protected.HandleFunc("/attempts/{attemptId}/submit", attemptHandler.Submit).Methods(http.MethodPost)
	protected.HandleFunc("/attempts/{attemptId}", attemptHandler.Details).Methods(http.MethodGet)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(cors(r))
}
