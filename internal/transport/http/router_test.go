package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

const testSecret = "test-secret"

type testServer struct {
	*httptest.Server
	auth     *Authenticator
	attempts *app.AttemptService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	boards := memory.NewLeaderboardCache(time.Minute)
	quizzes := app.NewQuizService(store, store, store, boards)
	attempts := app.NewAttemptService(store, store, store, boards, app.NewLeaderboardFeed(), app.DefaultRankingPolicy())
	auth := NewAuthenticator(testSecret)

	server := httptest.NewServer(NewRouter(quizzes, attempts, RouterConfig{Auth: auth}))
	t.Cleanup(server.Close)
	return &testServer{Server: server, auth: auth, attempts: attempts}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := s.auth.SignToken(domain.Identity{UserID: userID, Username: userID}, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func arithmeticDraft(public bool) map[string]any {
	return map[string]any{
		"title":      "Arithmetic",
		"topic":      "Math",
		"difficulty": "Easy",
		"isPublic":   public,
		"questions": []map[string]any{
			{
				"questionText": "Pick the even numbers",
				"questionType": "MCQ",
				"points":       2,
				"options": []map[string]any{
					{"text": "2", "isCorrect": true},
					{"text": "3", "isCorrect": false},
					{"text": "4", "isCorrect": true},
				},
			},
			{
				"questionText":  "Capital of France?",
				"questionType":  "SingleAnswer",
				"points":        3,
				"correctAnswer": "Paris",
			},
		},
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)
	if code := srv.do(t, http.MethodGet, "/api/quizzes/public", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code := srv.do(t, http.MethodGet, "/api/quizzes/public", "garbage", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", code)
	}
	if code := srv.do(t, http.MethodGet, "/api/leaderboard/global", "", nil, nil); code != http.StatusOK {
		t.Fatalf("expected public global leaderboard, got %d", code)
	}
}

func TestAttemptFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	owner := srv.token(t, "owner")
	player := srv.token(t, "player")

	var quiz struct {
		ID        string `json:"id"`
		MaxScore  int    `json:"maxScore"`
		Questions []struct {
			Options []struct {
				IsCorrect *bool `json:"isCorrect"`
			} `json:"options"`
		} `json:"questions"`
	}
	if code := srv.do(t, http.MethodPost, "/api/quizzes", owner, arithmeticDraft(true), &quiz); code != http.StatusCreated {
		t.Fatalf("create quiz: status %d", code)
	}
	if quiz.MaxScore != 5 {
		t.Fatalf("expected max score 5, got %d", quiz.MaxScore)
	}

	// Players never see the answer key.
	var asPlayer struct {
		Questions []struct {
			Options []struct {
				IsCorrect *bool `json:"isCorrect"`
			} `json:"options"`
			CorrectAnswer string `json:"correctAnswer"`
		} `json:"questions"`
	}
	if code := srv.do(t, http.MethodGet, "/api/quizzes/"+quiz.ID, player, nil, &asPlayer); code != http.StatusOK {
		t.Fatalf("get quiz: status %d", code)
	}
	if asPlayer.Questions[0].Options[0].IsCorrect != nil || asPlayer.Questions[1].CorrectAnswer != "" {
		t.Fatalf("answer key leaked to player: %+v", asPlayer)
	}

	var attempt domain.Attempt
	if code := srv.do(t, http.MethodPost, "/api/attempts/"+quiz.ID+"/start", player, nil, &attempt); code != http.StatusOK {
		t.Fatalf("start attempt: status %d", code)
	}
	var again domain.Attempt
	srv.do(t, http.MethodPost, "/api/attempts/"+quiz.ID+"/start", player, nil, &again)
	if again.ID != attempt.ID {
		t.Fatalf("expected resumed attempt %s, got %s", attempt.ID, again.ID)
	}

	submission := map[string]any{
		"answers": []map[string]any{
			{"selectedOptions": []string{"4", "2"}},
			{"answer": "  paris "},
		},
		"timeTaken": 42,
	}
	var graded domain.Attempt
	if code := srv.do(t, http.MethodPost, "/api/attempts/"+attempt.ID+"/submit", player, submission, &graded); code != http.StatusOK {
		t.Fatalf("submit: status %d", code)
	}
	if graded.Score != 5 || graded.Percentage != 100 || graded.Status != domain.AttemptCompleted {
		t.Fatalf("unexpected graded attempt: %+v", graded)
	}

	if code := srv.do(t, http.MethodPost, "/api/attempts/"+attempt.ID+"/submit", player, submission, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 on resubmit, got %d", code)
	}

	var lb leaderboardView
	if code := srv.do(t, http.MethodGet, "/api/leaderboard/quiz/"+quiz.ID, "", nil, &lb); code != http.StatusOK {
		t.Fatalf("quiz leaderboard: status %d", code)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].UserID != "player" {
		t.Fatalf("unexpected leaderboard: %+v", lb)
	}

	var history attemptList
	if code := srv.do(t, http.MethodGet, "/api/attempts/history", player, nil, &history); code != http.StatusOK {
		t.Fatalf("history: status %d", code)
	}
	if history.Pagination.Total != 1 || len(history.Attempts) != 1 {
		t.Fatalf("unexpected history: %+v", history)
	}

	if code := srv.do(t, http.MethodGet, "/api/quizzes/"+quiz.ID+"/analytics", player, nil, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner analytics, got %d", code)
	}
	var stats domain.QuizStats
	if code := srv.do(t, http.MethodGet, "/api/quizzes/"+quiz.ID+"/analytics", owner, nil, &stats); code != http.StatusOK {
		t.Fatalf("analytics: status %d", code)
	}
	if stats.TotalAttempts != 1 || stats.AverageScore != 100 {
		t.Fatalf("unexpected analytics: %+v", stats)
	}
}

func TestSubmitRejectsMissingAnswers(t *testing.T) {
	srv := newTestServer(t)
	owner := srv.token(t, "owner")

	var quiz struct {
		ID string `json:"id"`
	}
	srv.do(t, http.MethodPost, "/api/quizzes", owner, arithmeticDraft(true), &quiz)
	var attempt domain.Attempt
	srv.do(t, http.MethodPost, "/api/attempts/"+quiz.ID+"/start", owner, nil, &attempt)

	if code := srv.do(t, http.MethodPost, "/api/attempts/"+attempt.ID+"/submit", owner, map[string]any{"timeTaken": 3}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 without answers, got %d", code)
	}
	if code := srv.do(t, http.MethodPost, "/api/attempts/"+attempt.ID+"/submit", owner, map[string]any{"answers": "nope"}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-array answers, got %d", code)
	}
	if code := srv.do(t, http.MethodPost, "/api/attempts/missing/submit", owner, map[string]any{"answers": []any{}}, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown attempt, got %d", code)
	}
}

func TestCreateQuizValidation(t *testing.T) {
	srv := newTestServer(t)
	owner := srv.token(t, "owner")

	draft := arithmeticDraft(true)
	draft["questions"] = []map[string]any{
		{"questionText": "ok", "questionType": "SingleAnswer", "correctAnswer": "x"},
		{"questionText": "no key", "questionType": "MCQ", "options": []map[string]any{{"text": "a"}}},
	}
	var body errorPayload
	if code := srv.do(t, http.MethodPost, "/api/quizzes", owner, draft, &body); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if body.QuestionIndex == nil || *body.QuestionIndex != 1 {
		t.Fatalf("expected question index 1, got %+v", body)
	}
}

func TestPrivateQuizAccess(t *testing.T) {
	srv := newTestServer(t)
	owner := srv.token(t, "owner")
	player := srv.token(t, "player")

	var quiz struct {
		ID         string `json:"id"`
		AccessCode string `json:"accessCode"`
	}
	srv.do(t, http.MethodPost, "/api/quizzes", owner, arithmeticDraft(false), &quiz)
	if quiz.AccessCode == "" {
		t.Fatalf("expected access code for private quiz")
	}

	if code := srv.do(t, http.MethodPost, "/api/attempts/"+quiz.ID+"/start", player, nil, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 before joining, got %d", code)
	}
	if code := srv.do(t, http.MethodPost, "/api/quizzes/join", player, map[string]string{"accessCode": quiz.AccessCode}, nil); code != http.StatusOK {
		t.Fatalf("join: status %d", code)
	}
	if code := srv.do(t, http.MethodPost, "/api/attempts/"+quiz.ID+"/start", player, nil, nil); code != http.StatusOK {
		t.Fatalf("expected start after joining, got %d", code)
	}
}

func TestDeletedQuizIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	owner := srv.token(t, "owner")

	var quiz struct {
		ID string `json:"id"`
	}
	srv.do(t, http.MethodPost, "/api/quizzes", owner, arithmeticDraft(true), &quiz)
	if code := srv.do(t, http.MethodDelete, "/api/quizzes/"+quiz.ID, srv.token(t, "other"), nil, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 deleting someone else's quiz, got %d", code)
	}
	if code := srv.do(t, http.MethodDelete, "/api/quizzes/"+quiz.ID, owner, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete: status %d", code)
	}
	if code := srv.do(t, http.MethodGet, "/api/quizzes/"+quiz.ID, owner, nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", code)
	}
	if code := srv.do(t, http.MethodGet, "/api/leaderboard/quiz/"+quiz.ID, "", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 leaderboard after delete, got %d", code)
	}
}

func TestQuizLeaderboardHidesAnswers(t *testing.T) {
	srv := newTestServer(t)
	owner := srv.token(t, "owner")
	player := srv.token(t, "player")

	var quiz struct {
		ID         string `json:"id"`
		AccessCode string `json:"accessCode"`
	}
	srv.do(t, http.MethodPost, "/api/quizzes", owner, arithmeticDraft(false), &quiz)
	srv.do(t, http.MethodPost, "/api/quizzes/join", player, map[string]string{"accessCode": quiz.AccessCode}, nil)

	var attempt domain.Attempt
	srv.do(t, http.MethodPost, "/api/attempts/"+quiz.ID+"/start", player, nil, &attempt)
	submission := map[string]any{
		"answers": []map[string]any{
			{"selectedOptions": []string{"2", "4"}},
			{"answer": "Paris"},
		},
		"timeTaken": 12,
	}
	if code := srv.do(t, http.MethodPost, "/api/attempts/"+attempt.ID+"/submit", player, submission, nil); code != http.StatusOK {
		t.Fatalf("submit: status %d", code)
	}

	var raw struct {
		Entries []map[string]json.RawMessage `json:"entries"`
	}
	if code := srv.do(t, http.MethodGet, "/api/leaderboard/quiz/"+quiz.ID, "", nil, &raw); code != http.StatusOK {
		t.Fatalf("quiz leaderboard: status %d", code)
	}
	if len(raw.Entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(raw.Entries))
	}
	entry := raw.Entries[0]
	if _, ok := entry["answers"]; ok {
		t.Fatalf("leaderboard entry exposes answers: %s", entry["answers"])
	}
	if string(entry["score"]) != "5" || string(entry["userId"]) != `"player"` {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestRateQuizOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	owner := srv.token(t, "owner")
	player := srv.token(t, "player")

	var quiz struct {
		ID string `json:"id"`
	}
	srv.do(t, http.MethodPost, "/api/quizzes", owner, arithmeticDraft(true), &quiz)

	rate := map[string]any{"rating": 4, "comment": "nice"}
	if code := srv.do(t, http.MethodPost, "/api/quizzes/"+quiz.ID+"/rate", player, rate, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 before completing, got %d", code)
	}

	var attempt domain.Attempt
	srv.do(t, http.MethodPost, "/api/attempts/"+quiz.ID+"/start", player, nil, &attempt)
	srv.do(t, http.MethodPost, "/api/attempts/"+attempt.ID+"/submit", player, map[string]any{"answers": []any{}}, nil)

	if code := srv.do(t, http.MethodPost, "/api/quizzes/"+quiz.ID+"/rate", player, map[string]any{"rating": 6}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range rating, got %d", code)
	}
	if code := srv.do(t, http.MethodPost, "/api/quizzes/"+quiz.ID+"/rate", player, rate, nil); code != http.StatusOK {
		t.Fatalf("rate: status %d", code)
	}

	var stats domain.QuizStats
	srv.do(t, http.MethodGet, "/api/quizzes/"+quiz.ID+"/analytics", owner, nil, &stats)
	if stats.RatingCount != 1 || stats.AverageRating != 4 {
		t.Fatalf("unexpected rating in analytics: %+v", stats)
	}
}

func TestMyStatsOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	owner := srv.token(t, "owner")

	var fresh domain.UserSummary
	if code := srv.do(t, http.MethodGet, "/api/users/me/stats", owner, nil, &fresh); code != http.StatusOK {
		t.Fatalf("stats: status %d", code)
	}
	if fresh.UserID != "owner" || fresh.TotalQuizzesCreated != 0 {
		t.Fatalf("unexpected fresh stats: %+v", fresh)
	}

	srv.do(t, http.MethodPost, "/api/quizzes", owner, arithmeticDraft(true), nil)
	var after domain.UserSummary
	srv.do(t, http.MethodGet, "/api/users/me/stats", owner, nil, &after)
	if after.TotalQuizzesCreated != 1 || after.LeaderboardScore != 5 {
		t.Fatalf("unexpected stats after creating a quiz: %+v", after)
	}
	if code := srv.do(t, http.MethodGet, "/api/users/me/stats", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
}
