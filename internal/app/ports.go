package app

import (
	"context"
	"time"

	"quiz-attempt-service/internal/domain"
)

// QuizRepository stores quiz documents. RecordAttempt must update both
// aggregate counters in one atomic operation.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	FindQuizByAccessCode(ctx context.Context, code string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context, filter domain.QuizFilter) ([]domain.Quiz, int, error)
	CreateQuiz(ctx context.Context, quiz domain.Quiz) error
	// UpdateQuiz replaces authored content only. Visibility, the access
	// code, the active flag and every aggregate are left untouched.
	UpdateQuiz(ctx context.Context, quiz domain.Quiz) error
	DeactivateQuiz(ctx context.Context, quizID string, at time.Time) error
	SetAccessCode(ctx context.Context, quizID, code string, at time.Time) error
	AddJoinedUser(ctx context.Context, quizID, userID string) error
	RecordAttempt(ctx context.Context, quizID string, percentage float64) error
	// UpsertRating replaces the user's previous rating of the quiz and
	// refreshes the quiz's rating aggregates in the same operation.
	UpsertRating(ctx context.Context, rating domain.Rating) error
}

// AttemptRepository stores attempts.
type AttemptRepository interface {
	// FindOrCreateInProgress atomically returns the caller's in-progress
	// attempt for the candidate's (user, quiz) pair, inserting the candidate
	// when none exists. The bool reports whether the candidate was inserted.
	FindOrCreateInProgress(ctx context.Context, candidate domain.Attempt) (domain.Attempt, bool, error)
	GetAttempt(ctx context.Context, attemptID, userID string) (domain.Attempt, error)
	// CompleteAttempt persists a graded attempt only if it is still in
	// progress; otherwise it returns domain.ErrAlreadySubmitted.
	CompleteAttempt(ctx context.Context, attempt domain.Attempt) error
	ListCompletedAttempts(ctx context.Context, quizID string) ([]domain.Attempt, error)
	HasCompletedAttempt(ctx context.Context, userID, quizID string) (bool, error)
	ListUserAttempts(ctx context.Context, userID string, page domain.Page) ([]domain.Attempt, int, error)
}

// UserRepository stores users and their embedded stats.
type UserRepository interface {
	EnsureUser(ctx context.Context, identity domain.Identity) (domain.User, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	IncrementQuizzesCreated(ctx context.Context, userID string) error
	// RecordCompletion increments the attempt counters and recomputes the
	// average from the user's completed attempts as one serialized operation.
	RecordCompletion(ctx context.Context, userID string, score int) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// LeaderboardCache caches global leaderboard snapshots.
type LeaderboardCache interface {
	GetGlobal(ctx context.Context, limit int) ([]domain.UserSummary, bool)
	SetGlobal(ctx context.Context, limit int, entries []domain.UserSummary)
	Invalidate(ctx context.Context)
}

// AccessChecker decides whether an identity may view a private quiz.
type AccessChecker interface {
	CanAccess(identity domain.Identity, quiz domain.Quiz) bool
}

// JoinedUsersAccess allows public quizzes, owners and users who joined with
// the access code.
type JoinedUsersAccess struct{}

func (JoinedUsersAccess) CanAccess(identity domain.Identity, quiz domain.Quiz) bool {
	if quiz.IsPublic {
		return true
	}
	return quiz.OwnerID == identity.UserID || quiz.HasJoined(identity.UserID)
}

type noopLeaderboardCache struct{}

func (noopLeaderboardCache) GetGlobal(context.Context, int) ([]domain.UserSummary, bool) {
	return nil, false
}
func (noopLeaderboardCache) SetGlobal(context.Context, int, []domain.UserSummary) {}
func (noopLeaderboardCache) Invalidate(context.Context)                           {}
