package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"quiz-attempt-service/internal/domain"
)

// AnswerInput is one submitted answer as received from a client. MCQ
// selections may arrive as option texts or as positional indices; indices
// are resolved against the quiz as loaded at submit time.
type AnswerInput struct {
	SelectedOptions []string `json:"selectedOptions,omitempty"`
	SelectedIndices []int    `json:"selectedIndices,omitempty"`
	Answer          string   `json:"answer,omitempty"`
}

// Submission is the payload of a submit call.
type Submission struct {
	Answers   []AnswerInput `json:"answers"`
	TimeTaken int           `json:"timeTaken"`
}

// AttemptService owns the attempt lifecycle and the read-side views derived
// from completed attempts.
type AttemptService struct {
	quizzes  QuizRepository
	attempts AttemptRepository
	users    UserRepository
	boards   LeaderboardCache
	feed     *LeaderboardFeed
	access   AccessChecker
	policy   RankingPolicy
	now      func() time.Time
}

func NewAttemptService(quizzes QuizRepository, attempts AttemptRepository, users UserRepository, boards LeaderboardCache, feed *LeaderboardFeed, policy RankingPolicy) *AttemptService {
	if boards == nil {
		boards = noopLeaderboardCache{}
	}
	if feed == nil {
		feed = NewLeaderboardFeed()
	}
	if policy.QuizLimit <= 0 {
		policy.QuizLimit = DefaultQuizLeaderboardLimit
	}
	if policy.GlobalLimit <= 0 {
		policy.GlobalLimit = DefaultGlobalLeaderboardLimit
	}
	if policy.Weights == (LeaderboardWeights{}) {
		policy.Weights = DefaultLeaderboardWeights()
	}
	return &AttemptService{
		quizzes:  quizzes,
		attempts: attempts,
		users:    users,
		boards:   boards,
		feed:     feed,
		access:   JoinedUsersAccess{},
		policy:   policy,
		now:      time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *AttemptService) WithClock(now func() time.Time) *AttemptService {
	s.now = now
	return s
}

// StartAttempt returns the caller's in-progress attempt for the quiz, creating
// one if none exists. Calling it again before submitting resumes the same attempt.
func (s *AttemptService) StartAttempt(ctx context.Context, identity domain.Identity, quizID string) (domain.Attempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if !quiz.IsActive {
		return domain.Attempt{}, domain.ErrQuizNotFound
	}
	if !s.access.CanAccess(identity, quiz) {
		return domain.Attempt{}, domain.ErrAccessDenied
	}
	if _, err := s.users.EnsureUser(ctx, identity); err != nil {
		return domain.Attempt{}, err
	}

	candidate := domain.Attempt{
		ID:          uuid.NewString(),
		UserID:      identity.UserID,
		Username:    identity.Username,
		QuizID:      quiz.ID,
		Status:      domain.AttemptInProgress,
		TotalPoints: quiz.MaxScore(),
		StartedAt:   s.now().UTC(),
	}
	attempt, created, err := s.attempts.FindOrCreateInProgress(ctx, candidate)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("start attempt: %w", err)
	}
	if created {
		glog.V(2).Infof("attempt %s started by %s on quiz %s", attempt.ID, identity.UserID, quiz.ID)
	} else {
		glog.V(2).Infof("attempt %s resumed by %s on quiz %s", attempt.ID, identity.UserID, quiz.ID)
	}
	return attempt, nil
}

// SubmitAttempt grades and completes the caller's attempt, then folds the
// result into the quiz and user aggregates. A completed attempt cannot be
// submitted again.
func (s *AttemptService) SubmitAttempt(ctx context.Context, identity domain.Identity, attemptID string, sub Submission) (domain.Attempt, error) {
	if sub.Answers == nil {
		return domain.Attempt{}, fmt.Errorf("%w: answers array is required", domain.ErrInvalidInput)
	}
	if sub.TimeTaken < 0 {
		return domain.Attempt{}, fmt.Errorf("%w: timeTaken must not be negative", domain.ErrInvalidInput)
	}

	attempt, err := s.attempts.GetAttempt(ctx, attemptID, identity.UserID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if attempt.Status == domain.AttemptCompleted {
		return domain.Attempt{}, domain.ErrAlreadySubmitted
	}

	// Grading proceeds even if the quiz was deactivated after the attempt started.
	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.Attempt{}, err
	}

	graded := Grade(quiz.Questions, resolveAnswers(quiz.Questions, sub.Answers))
	completedAt := s.now().UTC()
	attempt.Answers = graded.Answers
	attempt.Score = graded.Score
	attempt.Percentage = Percentage(graded.Score, attempt.TotalPoints)
	attempt.TimeTaken = sub.TimeTaken
	attempt.Status = domain.AttemptCompleted
	attempt.CompletedAt = &completedAt

	if err := s.attempts.CompleteAttempt(ctx, attempt); err != nil {
		return domain.Attempt{}, err
	}
	// The percentage is handed to the store directly; it is never re-read.
	if err := s.quizzes.RecordAttempt(ctx, quiz.ID, attempt.Percentage); err != nil {
		return domain.Attempt{}, fmt.Errorf("update quiz stats: %w", err)
	}
	if _, err := s.users.RecordCompletion(ctx, identity.UserID, attempt.Score); err != nil {
		return domain.Attempt{}, fmt.Errorf("update user stats: %w", err)
	}
	s.boards.Invalidate(ctx)
	s.publishLeaderboard(ctx, quiz.ID)

	glog.V(2).Infof("attempt %s submitted by %s: %d/%d", attempt.ID, identity.UserID, attempt.Score, attempt.TotalPoints)
	return attempt, nil
}

// AttemptHistory pages through the caller's attempts, newest first.
func (s *AttemptService) AttemptHistory(ctx context.Context, identity domain.Identity, page, limit int) ([]domain.Attempt, domain.Page, error) {
	p := domain.NewPage(page, limit, 0)
	attempts, total, err := s.attempts.ListUserAttempts(ctx, identity.UserID, p)
	if err != nil {
		return nil, domain.Page{}, err
	}
	return attempts, domain.NewPage(p.Page, p.Limit, total), nil
}

// AttemptDetails returns one of the caller's attempts.
func (s *AttemptService) AttemptDetails(ctx context.Context, identity domain.Identity, attemptID string) (domain.Attempt, error) {
	return s.attempts.GetAttempt(ctx, attemptID, identity.UserID)
}

// QuizLeaderboard ranks the completed attempts of an active quiz.
func (s *AttemptService) QuizLeaderboard(ctx context.Context, quizID string, limit int) (domain.QuizLeaderboard, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizLeaderboard{}, err
	}
	if !quiz.IsActive {
		return domain.QuizLeaderboard{}, domain.ErrQuizNotFound
	}
	return s.rankQuiz(ctx, quiz.ID, limit)
}

func (s *AttemptService) rankQuiz(ctx context.Context, quizID string, limit int) (domain.QuizLeaderboard, error) {
	limit = clampLimit(limit, s.policy.QuizLimit)
	attempts, err := s.attempts.ListCompletedAttempts(ctx, quizID)
	if err != nil {
		return domain.QuizLeaderboard{}, err
	}
	return domain.QuizLeaderboard{
		QuizID:    quizID,
		Entries:   RankAttempts(attempts, limit),
		UpdatedAt: s.now().UTC(),
	}, nil
}

// GlobalLeaderboard ranks every user by the weighted leaderboard score.
func (s *AttemptService) GlobalLeaderboard(ctx context.Context, limit int) ([]domain.UserSummary, error) {
	limit = clampLimit(limit, s.policy.GlobalLimit)
	if cached, ok := s.boards.GetGlobal(ctx, limit); ok {
		return cached, nil
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	ranked := RankUsers(users, s.policy.Weights, limit)
	s.boards.SetGlobal(ctx, limit, ranked)
	return ranked, nil
}

// UserStats returns the caller's own stats and leaderboard score. Users who
// have not created or attempted anything yet get zeroed stats.
func (s *AttemptService) UserStats(ctx context.Context, identity domain.Identity) (domain.UserSummary, error) {
	user, err := s.users.GetUser(ctx, identity.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		user = domain.User{ID: identity.UserID, Username: identity.Username}
	} else if err != nil {
		return domain.UserSummary{}, err
	}
	return Summarize(user, s.policy.Weights), nil
}

// QuizAnalytics reports per-question accuracy for the quiz owner.
func (s *AttemptService) QuizAnalytics(ctx context.Context, identity domain.Identity, quizID string) (domain.QuizStats, error) {
	var (
		quiz     domain.Quiz
		attempts []domain.Attempt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		quiz, err = s.quizzes.GetQuiz(gctx, quizID)
		return err
	})
	g.Go(func() error {
		var err error
		attempts, err = s.attempts.ListCompletedAttempts(gctx, quizID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.QuizStats{}, err
	}

	if !quiz.IsActive {
		return domain.QuizStats{}, domain.ErrQuizNotFound
	}
	if quiz.OwnerID != identity.UserID {
		return domain.QuizStats{}, domain.ErrAccessDenied
	}
	return BuildQuizStats(quiz, attempts), nil
}

// SubscribeLeaderboard streams leaderboard snapshots for a quiz, starting
// with the current one. The caller must invoke cancel.
func (s *AttemptService) SubscribeLeaderboard(ctx context.Context, quizID string) (<-chan domain.QuizLeaderboard, func(), error) {
	initial, err := s.QuizLeaderboard(ctx, quizID, 0)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.Subscribe(quizID, initial)
	return ch, cancel, nil
}

func (s *AttemptService) publishLeaderboard(ctx context.Context, quizID string) {
	if s.feed.Subscribers(quizID) == 0 {
		return
	}
	lb, err := s.rankQuiz(ctx, quizID, 0)
	if err != nil {
		glog.Warningf("leaderboard refresh for quiz %s failed: %v", quizID, err)
		return
	}
	s.feed.Publish(lb)
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		limit = fallback
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}
	return limit
}

func resolveAnswers(questions []domain.Question, inputs []AnswerInput) []domain.SubmittedAnswer {
	answers := make([]domain.SubmittedAnswer, len(inputs))
	for i, in := range inputs {
		selected := in.SelectedOptions
		if len(selected) == 0 && len(in.SelectedIndices) > 0 {
			selected = ResolveSelectedIndices(questions, i, in.SelectedIndices)
		}
		answers[i] = domain.SubmittedAnswer{
			SelectedOptions: selected,
			Answer:          in.Answer,
		}
	}
	return answers
}
