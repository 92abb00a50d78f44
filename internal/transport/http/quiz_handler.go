package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

type QuizHandler struct {
	service *app.QuizService
}

func NewQuizHandler(service *app.QuizService) *QuizHandler {
	return &QuizHandler{service: service}
}

func (h *QuizHandler) Create(w http.ResponseWriter, r *http.Request) {
	var draft app.QuizDraft
	if err := decodeJSON(r, &draft); err != nil {
		writeError(w, r, err)
		return
	}
	identity := mustIdentity(r)
	quiz, err := h.service.CreateQuiz(r.Context(), identity, draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newQuizView(quiz, identity))
}

func (h *QuizHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.QuizFilter{
		Topic:      q.Get("topic"),
		Difficulty: domain.Difficulty(q.Get("difficulty")),
		Search:     q.Get("search"),
		Page:       queryInt(r, "page"),
		Limit:      queryInt(r, "limit"),
	}
	quizzes, page, err := h.service.ListPublicQuizzes(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quizList{Quizzes: newQuizViews(quizzes, mustIdentity(r)), Pagination: page})
}

func (h *QuizHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	quizzes, page, err := h.service.ListOwnQuizzes(r.Context(), identity, queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quizList{Quizzes: newQuizViews(quizzes, identity), Pagination: page})
}

func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	quiz, err := h.service.GetQuiz(r.Context(), identity, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuizView(quiz, identity))
}

func (h *QuizHandler) Update(w http.ResponseWriter, r *http.Request) {
	var draft app.QuizDraft
	if err := decodeJSON(r, &draft); err != nil {
		writeError(w, r, err)
		return
	}
	identity := mustIdentity(r)
	quiz, err := h.service.UpdateQuiz(r.Context(), identity, mux.Vars(r)["id"], draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuizView(quiz, identity))
}

func (h *QuizHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteQuiz(r.Context(), mustIdentity(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QuizHandler) RegenerateCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.service.RegenerateAccessCode(r.Context(), mustIdentity(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"accessCode": code})
}

func (h *QuizHandler) Join(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccessCode string `json:"accessCode"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	identity := mustIdentity(r)
	quiz, err := h.service.JoinByCode(r.Context(), identity, body.AccessCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuizView(quiz, identity))
}

func (h *QuizHandler) Rate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	rating, err := h.service.RateQuiz(r.Context(), mustIdentity(r), mux.Vars(r)["id"], body.Rating, body.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}
