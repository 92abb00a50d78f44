package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// Store is an in-process document store implementing the quiz, attempt and
// user repositories. A single lock serializes every mutation, which makes
// find-or-create and counter updates atomic.
type Store struct {
	mu         sync.RWMutex
	quizzes    map[string]domain.Quiz
	attempts   map[string]domain.Attempt
	inProgress map[string]string // user|quiz -> attempt id
	users      map[string]domain.User
	ratings    map[string]map[string]domain.Rating // quiz -> user -> rating
}

var (
	_ app.QuizRepository    = (*Store)(nil)
	_ app.AttemptRepository = (*Store)(nil)
	_ app.UserRepository    = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		quizzes:    make(map[string]domain.Quiz),
		attempts:   make(map[string]domain.Attempt),
		inProgress: make(map[string]string),
		users:      make(map[string]domain.User),
		ratings:    make(map[string]map[string]domain.Rating),
	}
}

// Seed stores quizzes as-is (useful for tests/demos).
func (s *Store) Seed(quizzes ...domain.Quiz) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range quizzes {
		s.quizzes[q.ID] = cloneQuiz(q)
	}
}

func (s *Store) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(quiz), nil
}

func (s *Store) FindQuizByAccessCode(_ context.Context, code string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, quiz := range s.quizzes {
		if quiz.AccessCode != "" && quiz.AccessCode == code {
			return cloneQuiz(quiz), nil
		}
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (s *Store) ListQuizzes(_ context.Context, filter domain.QuizFilter) ([]domain.Quiz, int, error) {
	s.mu.RLock()
	matched := make([]domain.Quiz, 0)
	for _, quiz := range s.quizzes {
		if filter.Matches(quiz) {
			matched = append(matched, cloneQuiz(quiz))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	page := domain.NewPage(filter.Page, filter.Limit, len(matched))
	return window(matched, page), len(matched), nil
}

func (s *Store) CreateQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	return nil
}

func (s *Store) UpdateQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.quizzes[quiz.ID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	next := cloneQuiz(quiz)
	next.OwnerID = current.OwnerID
	next.IsPublic = current.IsPublic
	next.AccessCode = current.AccessCode
	next.IsActive = current.IsActive
	next.JoinedUsers = current.JoinedUsers
	next.TotalAttempts = current.TotalAttempts
	next.PercentageSum = current.PercentageSum
	next.RatingCount = current.RatingCount
	next.RatingSum = current.RatingSum
	next.CreatedAt = current.CreatedAt
	s.quizzes[quiz.ID] = next
	return nil
}

func (s *Store) DeactivateQuiz(_ context.Context, quizID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.IsActive = false
	quiz.UpdatedAt = at
	s.quizzes[quizID] = quiz
	return nil
}

func (s *Store) SetAccessCode(_ context.Context, quizID, code string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.AccessCode = code
	quiz.UpdatedAt = at
	s.quizzes[quizID] = quiz
	return nil
}

func (s *Store) UpsertRating(_ context.Context, rating domain.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[rating.QuizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	byUser, ok := s.ratings[rating.QuizID]
	if !ok {
		byUser = make(map[string]domain.Rating)
		s.ratings[rating.QuizID] = byUser
	}
	byUser[rating.UserID] = rating

	quiz.RatingCount, quiz.RatingSum = 0, 0
	for _, r := range byUser {
		quiz.RatingCount++
		quiz.RatingSum += r.Rating
	}
	s.quizzes[rating.QuizID] = quiz
	return nil
}

func (s *Store) AddJoinedUser(_ context.Context, quizID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	if quiz.HasJoined(userID) {
		return nil
	}
	quiz.JoinedUsers = append(append([]string(nil), quiz.JoinedUsers...), userID)
	s.quizzes[quizID] = quiz
	return nil
}

func (s *Store) RecordAttempt(_ context.Context, quizID string, percentage float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	s.quizzes[quizID] = app.FoldAttempt(quiz, percentage)
	return nil
}

func (s *Store) FindOrCreateInProgress(_ context.Context, candidate domain.Attempt) (domain.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := inProgressKey(candidate.UserID, candidate.QuizID)
	if id, ok := s.inProgress[key]; ok {
		return cloneAttempt(s.attempts[id]), false, nil
	}
	candidate.Status = domain.AttemptInProgress
	s.attempts[candidate.ID] = cloneAttempt(candidate)
	s.inProgress[key] = candidate.ID
	return cloneAttempt(candidate), true, nil
}

func (s *Store) GetAttempt(_ context.Context, attemptID, userID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	if !ok || attempt.UserID != userID {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return cloneAttempt(attempt), nil
}

func (s *Store) CompleteAttempt(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.attempts[attempt.ID]
	if !ok || current.UserID != attempt.UserID {
		return domain.ErrAttemptNotFound
	}
	if current.Status == domain.AttemptCompleted {
		return domain.ErrAlreadySubmitted
	}
	// Identity fields and the point snapshot are immutable.
	attempt.UserID = current.UserID
	attempt.QuizID = current.QuizID
	attempt.TotalPoints = current.TotalPoints
	attempt.StartedAt = current.StartedAt
	attempt.Status = domain.AttemptCompleted
	s.attempts[attempt.ID] = cloneAttempt(attempt)
	delete(s.inProgress, inProgressKey(current.UserID, current.QuizID))
	return nil
}

func (s *Store) ListCompletedAttempts(_ context.Context, quizID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Attempt, 0)
	for _, attempt := range s.attempts {
		if attempt.QuizID == quizID && attempt.Status == domain.AttemptCompleted {
			out = append(out, cloneAttempt(attempt))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) HasCompletedAttempt(_ context.Context, userID, quizID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, attempt := range s.attempts {
		if attempt.UserID == userID && attempt.QuizID == quizID && attempt.Status == domain.AttemptCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListUserAttempts(_ context.Context, userID string, page domain.Page) ([]domain.Attempt, int, error) {
	s.mu.RLock()
	out := make([]domain.Attempt, 0)
	for _, attempt := range s.attempts {
		if attempt.UserID == userID {
			out = append(out, cloneAttempt(attempt))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.CompletedAt != nil && b.CompletedAt != nil && !a.CompletedAt.Equal(*b.CompletedAt):
			return a.CompletedAt.After(*b.CompletedAt)
		case (a.CompletedAt == nil) != (b.CompletedAt == nil):
			return a.CompletedAt != nil
		case !a.StartedAt.Equal(b.StartedAt):
			return a.StartedAt.After(b.StartedAt)
		}
		return a.ID < b.ID
	})
	return window(out, page), len(out), nil
}

func (s *Store) EnsureUser(_ context.Context, identity domain.Identity) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[identity.UserID]
	if !ok {
		user = domain.User{ID: identity.UserID}
	}
	if identity.Username != "" {
		user.Username = identity.Username
	}
	s.users[identity.UserID] = user
	return user, nil
}

func (s *Store) GetUser(_ context.Context, userID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) IncrementQuizzesCreated(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.Stats.TotalQuizzesCreated++
	s.users[userID] = user
	return nil
}

func (s *Store) RecordCompletion(_ context.Context, userID string, score int) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	completed := make([]domain.Attempt, 0)
	for _, attempt := range s.attempts {
		if attempt.UserID == userID && attempt.Status == domain.AttemptCompleted {
			completed = append(completed, attempt)
		}
	}
	user.Stats = app.ApplyCompletion(user.Stats, score, completed)
	s.users[userID] = user
	return user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func inProgressKey(userID, quizID string) string {
	return userID + "|" + quizID
}

func window[T any](items []T, page domain.Page) []T {
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func cloneQuiz(q domain.Quiz) domain.Quiz {
	questions := make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = append([]domain.Option(nil), question.Options...)
		questions[i] = question
	}
	q.Questions = questions
	q.JoinedUsers = append([]string(nil), q.JoinedUsers...)
	q.Tags = append([]string(nil), q.Tags...)
	return q
}

func cloneAttempt(a domain.Attempt) domain.Attempt {
	if a.Answers != nil {
		answers := make([]domain.AnswerRecord, len(a.Answers))
		for i, ans := range a.Answers {
			ans.SelectedOptions = append([]string(nil), ans.SelectedOptions...)
			answers[i] = ans
		}
		a.Answers = answers
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		a.CompletedAt = &t
	}
	return a
}
