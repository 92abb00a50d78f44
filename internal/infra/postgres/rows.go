package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"quiz-attempt-service/internal/domain"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	ID            string            `bun:"id,pk"`
	Title         string            `bun:"title,notnull"`
	Description   string            `bun:"description,notnull"`
	Topic         string            `bun:"topic,notnull"`
	Difficulty    string            `bun:"difficulty,notnull"`
	Questions     []domain.Question `bun:"questions,type:jsonb,notnull"`
	OwnerID       string            `bun:"owner_id,notnull"`
	IsPublic      bool              `bun:"is_public,notnull"`
	AccessCode    string            `bun:"access_code,nullzero"`
	JoinedUsers   []string          `bun:"joined_users,array,notnull"`
	TimeLimit     int               `bun:"time_limit,notnull"`
	Tags          []string          `bun:"tags,array,notnull"`
	IsActive      bool              `bun:"is_active,notnull"`
	TotalAttempts int               `bun:"total_attempts,notnull"`
	PercentageSum float64           `bun:"percentage_sum,notnull"`
	RatingCount   int               `bun:"rating_count,notnull"`
	RatingSum     int               `bun:"rating_sum,notnull"`
	CreatedAt     time.Time         `bun:"created_at,notnull"`
	UpdatedAt     time.Time         `bun:"updated_at,notnull"`
}

func newQuizRow(q domain.Quiz) *quizRow {
	joined := q.JoinedUsers
	if joined == nil {
		joined = []string{}
	}
	tags := q.Tags
	if tags == nil {
		tags = []string{}
	}
	return &quizRow{
		ID:            q.ID,
		Title:         q.Title,
		Description:   q.Description,
		Topic:         q.Topic,
		Difficulty:    string(q.Difficulty),
		Questions:     q.Questions,
		OwnerID:       q.OwnerID,
		IsPublic:      q.IsPublic,
		AccessCode:    q.AccessCode,
		JoinedUsers:   joined,
		TimeLimit:     q.TimeLimit,
		Tags:          tags,
		IsActive:      q.IsActive,
		TotalAttempts: q.TotalAttempts,
		PercentageSum: q.PercentageSum,
		RatingCount:   q.RatingCount,
		RatingSum:     q.RatingSum,
		CreatedAt:     q.CreatedAt,
		UpdatedAt:     q.UpdatedAt,
	}
}

func (r quizRow) toDomain() domain.Quiz {
	return domain.Quiz{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		Topic:         r.Topic,
		Difficulty:    domain.Difficulty(r.Difficulty),
		Questions:     r.Questions,
		OwnerID:       r.OwnerID,
		IsPublic:      r.IsPublic,
		AccessCode:    r.AccessCode,
		JoinedUsers:   r.JoinedUsers,
		TimeLimit:     r.TimeLimit,
		Tags:          r.Tags,
		IsActive:      r.IsActive,
		TotalAttempts: r.TotalAttempts,
		PercentageSum: r.PercentageSum,
		RatingCount:   r.RatingCount,
		RatingSum:     r.RatingSum,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID          string                `bun:"id,pk"`
	UserID      string                `bun:"user_id,notnull"`
	Username    string                `bun:"username,notnull"`
	QuizID      string                `bun:"quiz_id,notnull"`
	Status      string                `bun:"status,notnull"`
	TotalPoints int                   `bun:"total_points,notnull"`
	Answers     []domain.AnswerRecord `bun:"answers,type:jsonb"`
	Score       int                   `bun:"score,notnull"`
	Percentage  float64               `bun:"percentage,notnull"`
	TimeTaken   int                   `bun:"time_taken,notnull"`
	StartedAt   time.Time             `bun:"started_at,notnull"`
	CompletedAt *time.Time            `bun:"completed_at"`
}

func newAttemptRow(a domain.Attempt) *attemptRow {
	return &attemptRow{
		ID:          a.ID,
		UserID:      a.UserID,
		Username:    a.Username,
		QuizID:      a.QuizID,
		Status:      string(a.Status),
		TotalPoints: a.TotalPoints,
		Answers:     a.Answers,
		Score:       a.Score,
		Percentage:  a.Percentage,
		TimeTaken:   a.TimeTaken,
		StartedAt:   a.StartedAt,
		CompletedAt: a.CompletedAt,
	}
}

func (r attemptRow) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:          r.ID,
		UserID:      r.UserID,
		Username:    r.Username,
		QuizID:      r.QuizID,
		Status:      domain.AttemptStatus(r.Status),
		TotalPoints: r.TotalPoints,
		Answers:     r.Answers,
		Score:       r.Score,
		Percentage:  r.Percentage,
		TimeTaken:   r.TimeTaken,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                    string  `bun:"id,pk"`
	Username              string  `bun:"username,notnull"`
	TotalQuizzesCreated   int     `bun:"total_quizzes_created,notnull"`
	TotalQuizzesAttempted int     `bun:"total_quizzes_attempted,notnull"`
	TotalPoints           int     `bun:"total_points,notnull"`
	AverageScore          float64 `bun:"average_score,notnull"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:       r.ID,
		Username: r.Username,
		Stats: domain.UserStats{
			TotalQuizzesCreated:   r.TotalQuizzesCreated,
			TotalQuizzesAttempted: r.TotalQuizzesAttempted,
			TotalPoints:           r.TotalPoints,
			AverageScore:          r.AverageScore,
		},
	}
}

type ratingRow struct {
	bun.BaseModel `bun:"table:ratings,alias:r"`

	QuizID  string    `bun:"quiz_id,pk"`
	UserID  string    `bun:"user_id,pk"`
	Rating  int       `bun:"rating,notnull"`
	Comment string    `bun:"comment,notnull"`
	RatedAt time.Time `bun:"rated_at,notnull"`
}

func newRatingRow(r domain.Rating) *ratingRow {
	return &ratingRow{
		QuizID:  r.QuizID,
		UserID:  r.UserID,
		Rating:  r.Rating,
		Comment: r.Comment,
		RatedAt: r.RatedAt,
	}
}
