package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"quiz-attempt-service/internal/app"
)

type AttemptHandler struct {
	service *app.AttemptService
}

func NewAttemptHandler(service *app.AttemptService) *AttemptHandler {
	return &AttemptHandler{service: service}
}

func (h *AttemptHandler) Start(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.service.StartAttempt(r.Context(), mustIdentity(r), mux.Vars(r)["quizId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *AttemptHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var sub app.Submission
	if err := decodeJSON(r, &sub); err != nil {
		writeError(w, r, err)
		return
	}
	attempt, err := h.service.SubmitAttempt(r.Context(), mustIdentity(r), mux.Vars(r)["attemptId"], sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *AttemptHandler) History(w http.ResponseWriter, r *http.Request) {
	attempts, page, err := h.service.AttemptHistory(r.Context(), mustIdentity(r), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attemptList{Attempts: attempts, Pagination: page})
}

func (h *AttemptHandler) Details(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.service.AttemptDetails(r.Context(), mustIdentity(r), mux.Vars(r)["attemptId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *AttemptHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.QuizAnalytics(r.Context(), mustIdentity(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AttemptHandler) MyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.UserStats(r.Context(), mustIdentity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AttemptHandler) QuizLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.QuizLeaderboard(r.Context(), mux.Vars(r)["quizId"], queryInt(r, "limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLeaderboardView(lb))
}

func (h *AttemptHandler) GlobalLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.GlobalLeaderboard(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": rows})
}
