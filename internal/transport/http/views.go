package http

import (
	"time"

	"quiz-attempt-service/internal/domain"
)

// quizView is the wire shape of a quiz. Answer keys, the access code and the
// joined users are only shown to the owner.
type quizView struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Topic         string            `json:"topic"`
	Difficulty    domain.Difficulty `json:"difficulty"`
	Questions     []questionView    `json:"questions"`
	CreatedBy     string            `json:"createdBy"`
	IsPublic      bool              `json:"isPublic"`
	AccessCode    string            `json:"accessCode,omitempty"`
	JoinedUsers   []string          `json:"joinedUsers,omitempty"`
	TimeLimit     int               `json:"timeLimit,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	IsActive      bool              `json:"isActive"`
	TotalAttempts int               `json:"totalAttempts"`
	AverageScore  float64           `json:"averageScore"`
	RatingCount   int               `json:"ratingCount"`
	AverageRating float64           `json:"averageRating"`
	MaxScore      int               `json:"maxScore"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

type questionView struct {
	ID            string              `json:"id"`
	Text          string              `json:"questionText"`
	Type          domain.QuestionType `json:"questionType"`
	Points        int                 `json:"points"`
	Options       []optionView        `json:"options,omitempty"`
	CorrectAnswer string              `json:"correctAnswer,omitempty"`
}

type optionView struct {
	Text      string `json:"text"`
	IsCorrect *bool  `json:"isCorrect,omitempty"`
}

func newQuizView(quiz domain.Quiz, viewer domain.Identity) quizView {
	owner := quiz.OwnerID == viewer.UserID
	v := quizView{
		ID:            quiz.ID,
		Title:         quiz.Title,
		Description:   quiz.Description,
		Topic:         quiz.Topic,
		Difficulty:    quiz.Difficulty,
		Questions:     make([]questionView, 0, len(quiz.Questions)),
		CreatedBy:     quiz.OwnerID,
		IsPublic:      quiz.IsPublic,
		TimeLimit:     quiz.TimeLimit,
		Tags:          quiz.Tags,
		IsActive:      quiz.IsActive,
		TotalAttempts: quiz.TotalAttempts,
		AverageScore:  quiz.AverageScore(),
		RatingCount:   quiz.RatingCount,
		AverageRating: quiz.AverageRating(),
		MaxScore:      quiz.MaxScore(),
		CreatedAt:     quiz.CreatedAt,
		UpdatedAt:     quiz.UpdatedAt,
	}
	if owner {
		v.AccessCode = quiz.AccessCode
		v.JoinedUsers = quiz.JoinedUsers
	}
	for _, q := range quiz.Questions {
		qv := questionView{ID: q.ID, Text: q.Text, Type: q.Type, Points: q.Points}
		for _, opt := range q.Options {
			ov := optionView{Text: opt.Text}
			if owner {
				correct := opt.IsCorrect
				ov.IsCorrect = &correct
			}
			qv.Options = append(qv.Options, ov)
		}
		if owner {
			qv.CorrectAnswer = q.CorrectAnswer
		}
		v.Questions = append(v.Questions, qv)
	}
	return v
}

func newQuizViews(quizzes []domain.Quiz, viewer domain.Identity) []quizView {
	out := make([]quizView, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, newQuizView(q, viewer))
	}
	return out
}

type quizList struct {
	Quizzes    []quizView  `json:"quizzes"`
	Pagination domain.Page `json:"pagination"`
}

type attemptList struct {
	Attempts   []domain.Attempt `json:"attempts"`
	Pagination domain.Page      `json:"pagination"`
}

// leaderboardView is the public wire shape of a quiz leaderboard. Entries
// carry results only; submitted answers would reveal the answer key.
type leaderboardView struct {
	QuizID    string                 `json:"quizId"`
	Entries   []leaderboardEntryView `json:"entries"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

type leaderboardEntryView struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Username    string     `json:"username,omitempty"`
	Score       int        `json:"score"`
	TotalPoints int        `json:"totalPoints"`
	Percentage  float64    `json:"percentage"`
	TimeTaken   int        `json:"timeTaken"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func newLeaderboardView(lb domain.QuizLeaderboard) leaderboardView {
	v := leaderboardView{
		QuizID:    lb.QuizID,
		Entries:   make([]leaderboardEntryView, 0, len(lb.Entries)),
		UpdatedAt: lb.UpdatedAt,
	}
	for _, a := range lb.Entries {
		v.Entries = append(v.Entries, leaderboardEntryView{
			ID:          a.ID,
			UserID:      a.UserID,
			Username:    a.Username,
			Score:       a.Score,
			TotalPoints: a.TotalPoints,
			Percentage:  a.Percentage,
			TimeTaken:   a.TimeTaken,
			CompletedAt: a.CompletedAt,
		})
	}
	return v
}
