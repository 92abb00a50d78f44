package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"quiz-attempt-service/internal/domain"
)

func TestFindOrCreateInProgressIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	var wg sync.WaitGroup
	ids := make(chan string, 20)
	created := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			attempt, ok, err := store.FindOrCreateInProgress(ctx, domain.Attempt{
				ID:     fmt.Sprintf("a%d", i),
				UserID: "u1",
				QuizID: "quiz-1",
			})
			if err != nil {
				t.Errorf("find or create: %v", err)
				return
			}
			ids <- attempt.ID
			created <- ok
		}(i)
	}
	wg.Wait()
	close(ids)
	close(created)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	if len(seen) != 1 {
		t.Fatalf("expected a single in-progress attempt, got %v", seen)
	}
	inserted := 0
	for ok := range created {
		if ok {
			inserted++
		}
	}
	if inserted != 1 {
		t.Fatalf("expected exactly one insert, got %d", inserted)
	}
}

func TestCompleteAttemptRejectsResubmission(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	attempt, _, _ := store.FindOrCreateInProgress(ctx, domain.Attempt{ID: "a1", UserID: "u1", QuizID: "quiz-1", TotalPoints: 5})
	done := time.Now()
	attempt.Score = 5
	attempt.Percentage = 100
	attempt.Status = domain.AttemptCompleted
	attempt.CompletedAt = &done

	if err := store.CompleteAttempt(ctx, attempt); err != nil {
		t.Fatalf("complete: %v", err)
	}
	attempt.Score = 0
	if err := store.CompleteAttempt(ctx, attempt); err != domain.ErrAlreadySubmitted {
		t.Fatalf("expected already submitted, got %v", err)
	}

	stored, err := store.GetAttempt(ctx, "a1", "u1")
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if stored.Score != 5 {
		t.Fatalf("expected first result kept, got score %d", stored.Score)
	}

	// A fresh start after completion creates a new attempt.
	next, created, _ := store.FindOrCreateInProgress(ctx, domain.Attempt{ID: "a2", UserID: "u1", QuizID: "quiz-1"})
	if !created || next.ID != "a2" {
		t.Fatalf("expected new attempt after completion, got %+v created=%v", next, created)
	}
}

func TestGetAttemptScopedToOwner(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	_, _, _ = store.FindOrCreateInProgress(ctx, domain.Attempt{ID: "a1", UserID: "u1", QuizID: "quiz-1"})

	if _, err := store.GetAttempt(ctx, "a1", "u2"); err != domain.ErrAttemptNotFound {
		t.Fatalf("expected not found for another user, got %v", err)
	}
}

func TestRecordAttemptConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.Seed(sampleQuiz())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pct := 0.0
			if i%2 == 0 {
				pct = 100
			}
			if err := store.RecordAttempt(ctx, "quiz-1", pct); err != nil {
				t.Errorf("record: %v", err)
			}
		}(i)
	}
	wg.Wait()

	quiz, _ := store.GetQuiz(ctx, "quiz-1")
	if quiz.TotalAttempts != 50 {
		t.Fatalf("expected 50 attempts, got %d", quiz.TotalAttempts)
	}
	if quiz.AverageScore() != 50 {
		t.Fatalf("expected average 50, got %v", quiz.AverageScore())
	}
}

func TestRecordCompletionRecomputesAverage(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	_, _ = store.EnsureUser(ctx, domain.Identity{UserID: "u1", Username: "alice"})

	for i, pct := range []float64{100, 50} {
		id := fmt.Sprintf("a%d", i)
		attempt, _, _ := store.FindOrCreateInProgress(ctx, domain.Attempt{ID: id, UserID: "u1", QuizID: fmt.Sprintf("quiz-%d", i), TotalPoints: 4})
		attempt.Percentage = pct
		attempt.Score = int(pct / 25)
		if err := store.CompleteAttempt(ctx, attempt); err != nil {
			t.Fatalf("complete: %v", err)
		}
		if _, err := store.RecordCompletion(ctx, "u1", attempt.Score); err != nil {
			t.Fatalf("record completion: %v", err)
		}
	}

	user, _ := store.GetUser(ctx, "u1")
	if user.Stats.TotalQuizzesAttempted != 2 || user.Stats.TotalPoints != 6 {
		t.Fatalf("unexpected counters: %+v", user.Stats)
	}
	if user.Stats.AverageScore != 75 {
		t.Fatalf("expected average 75, got %v", user.Stats.AverageScore)
	}
}

func TestUpdateQuizKeepsAggregates(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.Seed(sampleQuiz())
	_ = store.RecordAttempt(ctx, "quiz-1", 80)

	quiz, _ := store.GetQuiz(ctx, "quiz-1")
	quiz.Title = "Renamed"
	quiz.TotalAttempts = 0
	quiz.PercentageSum = 0
	if err := store.UpdateQuiz(ctx, quiz); err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, _ := store.GetQuiz(ctx, "quiz-1")
	if stored.Title != "Renamed" || stored.TotalAttempts != 1 || stored.AverageScore() != 80 {
		t.Fatalf("unexpected quiz after update: %+v", stored)
	}
}

func TestUpdateQuizWithStaleCopyKeepsDeactivationAndCode(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seed := sampleQuiz()
	seed.IsPublic = false
	seed.AccessCode = "OLDCODE1"
	store.Seed(seed)

	// The editor read the quiz before it was deleted and re-coded.
	stale, _ := store.GetQuiz(ctx, "quiz-1")
	now := time.Now()
	if err := store.SetAccessCode(ctx, "quiz-1", "NEWCODE2", now); err != nil {
		t.Fatalf("set code: %v", err)
	}
	if err := store.DeactivateQuiz(ctx, "quiz-1", now); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	stale.Title = "Edited"
	if err := store.UpdateQuiz(ctx, stale); err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, _ := store.GetQuiz(ctx, "quiz-1")
	if stored.IsActive {
		t.Fatalf("content update resurrected a deleted quiz")
	}
	if stored.AccessCode != "NEWCODE2" {
		t.Fatalf("content update restored access code %q", stored.AccessCode)
	}
	if stored.Title != "Edited" {
		t.Fatalf("expected content to change, got %q", stored.Title)
	}
	if err := store.DeactivateQuiz(ctx, "missing", now); err != domain.ErrQuizNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpsertRatingReplacesPerUser(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.Seed(sampleQuiz())

	ratings := []domain.Rating{
		{QuizID: "quiz-1", UserID: "u1", Rating: 1},
		{QuizID: "quiz-1", UserID: "u2", Rating: 4},
		{QuizID: "quiz-1", UserID: "u1", Rating: 5},
	}
	for _, r := range ratings {
		if err := store.UpsertRating(ctx, r); err != nil {
			t.Fatalf("upsert rating: %v", err)
		}
	}

	quiz, _ := store.GetQuiz(ctx, "quiz-1")
	if quiz.RatingCount != 2 || quiz.AverageRating() != 4.5 {
		t.Fatalf("expected 2 ratings averaging 4.5, got %d / %v", quiz.RatingCount, quiz.AverageRating())
	}
	if err := store.UpsertRating(ctx, domain.Rating{QuizID: "missing", UserID: "u1", Rating: 3}); err != domain.ErrQuizNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHasCompletedAttempt(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	attempt, _, _ := store.FindOrCreateInProgress(ctx, domain.Attempt{ID: "a1", UserID: "u1", QuizID: "quiz-1"})
	if done, _ := store.HasCompletedAttempt(ctx, "u1", "quiz-1"); done {
		t.Fatalf("in-progress attempt counted as completed")
	}
	if err := store.CompleteAttempt(ctx, attempt); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done, _ := store.HasCompletedAttempt(ctx, "u1", "quiz-1"); !done {
		t.Fatalf("expected completed attempt")
	}
	if done, _ := store.HasCompletedAttempt(ctx, "u2", "quiz-1"); done {
		t.Fatalf("another user's attempt counted")
	}
}

func TestListQuizzesFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		q := sampleQuiz()
		q.ID = fmt.Sprintf("quiz-%d", i)
		q.Topic = "Math"
		q.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		store.Seed(q)
	}
	private := sampleQuiz()
	private.ID = "private"
	private.IsPublic = false
	store.Seed(private)

	quizzes, total, err := store.ListQuizzes(ctx, domain.QuizFilter{PublicOnly: true, Topic: "math", Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(quizzes) != 2 {
		t.Fatalf("expected 2 of 5, got %d of %d", len(quizzes), total)
	}
	if quizzes[0].ID != "quiz-4" {
		t.Fatalf("expected newest first, got %s", quizzes[0].ID)
	}
}
