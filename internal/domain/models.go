package domain

import (
	"strings"
	"time"
)

// QuestionType selects how a question is graded.
type QuestionType string

const (
	QuestionMCQ          QuestionType = "MCQ"
	QuestionSingleAnswer QuestionType = "SingleAnswer"
)

// Difficulty is the author-declared difficulty of a quiz.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Option represents a possible answer for an MCQ question.
type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question belongs to exactly one quiz; its position in Quiz.Questions is what
// submitted answers are aligned against.
type Question struct {
	ID            string       `json:"id"`
	Text          string       `json:"questionText"`
	Type          QuestionType `json:"questionType"`
	Points        int          `json:"points"`
	Options       []Option     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
}

// Quiz is a collection of questions plus its visibility and running aggregates.
type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Topic       string     `json:"topic"`
	Difficulty  Difficulty `json:"difficulty"`
	Questions   []Question `json:"questions"`
	OwnerID     string     `json:"createdBy"`
	IsPublic    bool       `json:"isPublic"`
	AccessCode  string     `json:"accessCode,omitempty"`
	JoinedUsers []string   `json:"joinedUsers,omitempty"`
	TimeLimit   int        `json:"timeLimit,omitempty"` // minutes
	Tags        []string   `json:"tags,omitempty"`
	IsActive    bool       `json:"isActive"`

	// TotalAttempts and PercentageSum always move together in one store
	// operation; AverageScore is derived from them.
	TotalAttempts int     `json:"totalAttempts"`
	PercentageSum float64 `json:"percentageSum"`

	// RatingCount and RatingSum are recomputed from the ratings on every rating write.
	RatingCount int `json:"ratingCount"`
	RatingSum   int `json:"ratingSum"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AverageScore is the mean attempt percentage folded into the quiz so far.
func (q Quiz) AverageScore() float64 {
	if q.TotalAttempts <= 0 {
		return 0
	}
	return q.PercentageSum / float64(q.TotalAttempts)
}

// AverageRating is the mean of the 1..5 ratings left on the quiz.
func (q Quiz) AverageRating() float64 {
	if q.RatingCount <= 0 {
		return 0
	}
	return float64(q.RatingSum) / float64(q.RatingCount)
}

// MaxScore sums the points of every question.
func (q Quiz) MaxScore() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// HasJoined reports whether userID unlocked the quiz with its access code.
func (q Quiz) HasJoined(userID string) bool {
	for _, id := range q.JoinedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// QuizFilter narrows the public catalogue.
type QuizFilter struct {
	Topic      string
	Difficulty Difficulty
	Search     string
	OwnerID    string
	PublicOnly bool
	Page       int
	Limit      int
}

// Matches applies the filter's field predicates (paging excluded).
func (f QuizFilter) Matches(q Quiz) bool {
	if f.PublicOnly && (!q.IsPublic || !q.IsActive) {
		return false
	}
	if f.OwnerID != "" && q.OwnerID != f.OwnerID {
		return false
	}
	if f.Topic != "" && !containsFold(q.Topic, f.Topic) {
		return false
	}
	if f.Difficulty != "" && q.Difficulty != f.Difficulty {
		return false
	}
	if f.Search != "" && !containsFold(q.Title, f.Search) && !containsFold(q.Description, f.Search) && !containsFold(q.Topic, f.Search) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// AttemptStatus is the lifecycle state of an attempt.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in-progress"
	AttemptCompleted  AttemptStatus = "completed"
)

// SubmittedAnswer is one entry of a submission, aligned by index with the quiz questions.
type SubmittedAnswer struct {
	SelectedOptions []string `json:"selectedOptions,omitempty"`
	Answer          string   `json:"answer,omitempty"`
}

// AnswerRecord is the graded form of a submitted answer.
type AnswerRecord struct {
	QuestionID      string   `json:"questionId,omitempty"`
	SelectedOptions []string `json:"selectedOptions,omitempty"`
	Answer          string   `json:"answer,omitempty"`
	IsCorrect       bool     `json:"isCorrect"`
	PointsEarned    int      `json:"pointsEarned"`
}

// Attempt is one user's pass at a quiz. Once completed it is never mutated again.
type Attempt struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId"`
	Username    string         `json:"username,omitempty"`
	QuizID      string         `json:"quizId"`
	Status      AttemptStatus  `json:"status"`
	TotalPoints int            `json:"totalPoints"`
	Answers     []AnswerRecord `json:"answers,omitempty"`
	Score       int            `json:"score"`
	Percentage  float64        `json:"percentage"`
	TimeTaken   int            `json:"timeTaken"` // seconds
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// Rating is one user's verdict on a quiz; a user holds at most one per quiz.
type Rating struct {
	QuizID  string    `json:"quizId"`
	UserID  string    `json:"userId"`
	Rating  int       `json:"rating"`
	Comment string    `json:"comment,omitempty"`
	RatedAt time.Time `json:"ratedAt"`
}

// UserStats is embedded in User and only mutated as a side effect of quiz
// creation and attempt completion.
type UserStats struct {
	TotalQuizzesCreated   int     `json:"totalQuizzesCreated"`
	TotalQuizzesAttempted int     `json:"totalQuizzesAttempted"`
	TotalPoints           int     `json:"totalPoints"`
	AverageScore          float64 `json:"averageScore"`
}

// User is the stats-bearing projection of an identity.
type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Stats    UserStats `json:"stats"`
}

// Identity is the authenticated caller as asserted by the identity provider.
type Identity struct {
	UserID   string
	Username string
	IsAdmin  bool
}

// QuizLeaderboard captures the ordered completed attempts for a quiz.
type QuizLeaderboard struct {
	QuizID    string    `json:"quizId"`
	Entries   []Attempt `json:"entries"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserSummary is a row of the global leaderboard.
type UserSummary struct {
	UserID                string  `json:"userId"`
	Username              string  `json:"username"`
	TotalQuizzesCreated   int     `json:"totalQuizzesCreated"`
	TotalQuizzesAttempted int     `json:"totalQuizzesAttempted"`
	AverageScore          float64 `json:"averageScore"`
	TotalPoints           int     `json:"totalPoints"`
	LeaderboardScore      float64 `json:"leaderboardScore"`
}

// QuestionStats is the per-question accuracy view for quiz creators.
type QuestionStats struct {
	QuestionID   string  `json:"questionId"`
	Index        int     `json:"index"`
	Text         string  `json:"questionText"`
	Points       int     `json:"points"`
	TimesCorrect int     `json:"timesCorrect"`
	Accuracy     float64 `json:"accuracy"` // 0..1
}

// QuizStats is the read-only analytics report for one quiz.
type QuizStats struct {
	QuizID           string          `json:"quizId"`
	Title            string          `json:"title"`
	Topic            string          `json:"topic"`
	Difficulty       Difficulty      `json:"difficulty"`
	TotalAttempts    int             `json:"totalAttempts"`
	AverageScore     float64         `json:"averageScore"`
	HighestScore     float64         `json:"highestScore"`
	LowestScore      float64         `json:"lowestScore"`
	AverageTimeTaken float64         `json:"averageTimeTaken"`
	RatingCount      int             `json:"ratingCount"`
	AverageRating    float64         `json:"averageRating"`
	Questions        []QuestionStats `json:"questions"`
}

// Page describes a slice of a larger ordered result.
type Page struct {
	Page       int `json:"currentPage"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPage normalizes page/limit and computes the page count.
func NewPage(page, limit, total int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return Page{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}
}

// Offset is the index of the first item on the page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}
