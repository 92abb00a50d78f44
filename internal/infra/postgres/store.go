package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// Store persists quizzes, attempts and users in Postgres. The schema is
// created by the migrations package.
type Store struct {
	db *bun.DB
}

var (
	_ app.QuizRepository    = (*Store)(nil)
	_ app.AttemptRepository = (*Store)(nil)
	_ app.UserRepository    = (*Store)(nil)
)

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var row quizRow
	err := s.db.NewSelect().Model(&row).Where("q.id = ?", quizID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) FindQuizByAccessCode(ctx context.Context, code string) (domain.Quiz, error) {
	var row quizRow
	err := s.db.NewSelect().Model(&row).Where("q.access_code = ?", code).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("find quiz by code: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListQuizzes(ctx context.Context, filter domain.QuizFilter) ([]domain.Quiz, int, error) {
	page := domain.NewPage(filter.Page, filter.Limit, 0)

	var rows []quizRow
	q := s.db.NewSelect().Model(&rows)
	if filter.PublicOnly {
		q = q.Where("q.is_public").Where("q.is_active")
	}
	if filter.OwnerID != "" {
		q = q.Where("q.owner_id = ?", filter.OwnerID)
	}
	if filter.Topic != "" {
		q = q.Where("q.topic ILIKE ?", "%"+filter.Topic+"%")
	}
	if filter.Difficulty != "" {
		q = q.Where("q.difficulty = ?", string(filter.Difficulty))
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("q.title ILIKE ?", pattern).
				WhereOr("q.description ILIKE ?", pattern).
				WhereOr("q.topic ILIKE ?", pattern)
		})
	}

	total, err := q.OrderExpr("q.created_at DESC, q.id ASC").
		Limit(page.Limit).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list quizzes: %w", err)
	}

	out := make([]domain.Quiz, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, total, nil
}

func (s *Store) CreateQuiz(ctx context.Context, quiz domain.Quiz) error {
	if _, err := s.db.NewInsert().Model(newQuizRow(quiz)).Exec(ctx); err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

func (s *Store) UpdateQuiz(ctx context.Context, quiz domain.Quiz) error {
	res, err := s.db.NewUpdate().
		Model(newQuizRow(quiz)).
		Column("title", "description", "topic", "difficulty", "questions",
			"time_limit", "tags", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	return expectRow(res, domain.ErrQuizNotFound)
}

func (s *Store) DeactivateQuiz(ctx context.Context, quizID string, at time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*quizRow)(nil)).
		Set("is_active = FALSE").
		Set("updated_at = ?", at).
		Where("q.id = ?", quizID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("deactivate quiz: %w", err)
	}
	return expectRow(res, domain.ErrQuizNotFound)
}

func (s *Store) SetAccessCode(ctx context.Context, quizID, code string, at time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*quizRow)(nil)).
		Set("access_code = ?", code).
		Set("updated_at = ?", at).
		Where("q.id = ?", quizID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set access code: %w", err)
	}
	return expectRow(res, domain.ErrQuizNotFound)
}

// UpsertRating replaces the user's rating and recomputes the quiz's rating
// counters from the ratings table. The quiz row is locked first so concurrent
// raters recompute one after another.
func (s *Store) UpsertRating(ctx context.Context, rating domain.Rating) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var id string
		err := tx.NewSelect().
			Model((*quizRow)(nil)).
			ColumnExpr("q.id").
			Where("q.id = ?", rating.QuizID).
			For("UPDATE").
			Scan(ctx, &id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrQuizNotFound
		}
		if err != nil {
			return fmt.Errorf("lock quiz: %w", err)
		}

		_, err = tx.NewInsert().
			Model(newRatingRow(rating)).
			On("CONFLICT (quiz_id, user_id) DO UPDATE").
			Set("rating = EXCLUDED.rating").
			Set("comment = EXCLUDED.comment").
			Set("rated_at = EXCLUDED.rated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert rating: %w", err)
		}
		res, err := tx.NewUpdate().
			Model((*quizRow)(nil)).
			Set("rating_count = (SELECT COUNT(*) FROM ratings WHERE quiz_id = ?)", rating.QuizID).
			Set("rating_sum = (SELECT COALESCE(SUM(rating), 0) FROM ratings WHERE quiz_id = ?)", rating.QuizID).
			Where("q.id = ?", rating.QuizID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("refresh quiz rating: %w", err)
		}
		return expectRow(res, domain.ErrQuizNotFound)
	})
}

func (s *Store) AddJoinedUser(ctx context.Context, quizID, userID string) error {
	res, err := s.db.NewUpdate().
		Model((*quizRow)(nil)).
		Set("joined_users = array_append(joined_users, ?)", userID).
		Where("q.id = ?", quizID).
		Where("NOT (? = ANY(q.joined_users))", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("join quiz: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// Either already joined or missing.
	_, err = s.GetQuiz(ctx, quizID)
	return err
}

func (s *Store) RecordAttempt(ctx context.Context, quizID string, percentage float64) error {
	res, err := s.db.NewUpdate().
		Model((*quizRow)(nil)).
		Set("total_attempts = total_attempts + 1").
		Set("percentage_sum = percentage_sum + ?", percentage).
		Where("q.id = ?", quizID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return expectRow(res, domain.ErrQuizNotFound)
}

func (s *Store) FindOrCreateInProgress(ctx context.Context, candidate domain.Attempt) (domain.Attempt, bool, error) {
	candidate.Status = domain.AttemptInProgress
	// The existing attempt can complete between the conflicting insert and
	// the read, so retry a few times.
	for i := 0; i < 3; i++ {
		res, err := s.db.NewInsert().
			Model(newAttemptRow(candidate)).
			On("CONFLICT (user_id, quiz_id) WHERE status = 'in-progress' DO NOTHING").
			Exec(ctx)
		if err != nil {
			return domain.Attempt{}, false, fmt.Errorf("insert attempt: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return candidate, true, nil
		}

		var row attemptRow
		err = s.db.NewSelect().Model(&row).
			Where("a.user_id = ?", candidate.UserID).
			Where("a.quiz_id = ?", candidate.QuizID).
			Where("a.status = ?", string(domain.AttemptInProgress)).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return domain.Attempt{}, false, fmt.Errorf("load in-progress attempt: %w", err)
		}
		return row.toDomain(), false, nil
	}
	return domain.Attempt{}, false, fmt.Errorf("start attempt: contention on quiz %s", candidate.QuizID)
}

func (s *Store) GetAttempt(ctx context.Context, attemptID, userID string) (domain.Attempt, error) {
	var row attemptRow
	err := s.db.NewSelect().Model(&row).
		Where("a.id = ?", attemptID).
		Where("a.user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load attempt: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) CompleteAttempt(ctx context.Context, attempt domain.Attempt) error {
	attempt.Status = domain.AttemptCompleted
	res, err := s.db.NewUpdate().
		Model(newAttemptRow(attempt)).
		Column("answers", "score", "percentage", "time_taken", "status", "completed_at").
		Where("a.id = ?", attempt.ID).
		Where("a.user_id = ?", attempt.UserID).
		Where("a.status = ?", string(domain.AttemptInProgress)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := s.GetAttempt(ctx, attempt.ID, attempt.UserID); err != nil {
		return err
	}
	return domain.ErrAlreadySubmitted
}

func (s *Store) ListCompletedAttempts(ctx context.Context, quizID string) ([]domain.Attempt, error) {
	var rows []attemptRow
	err := s.db.NewSelect().Model(&rows).
		Where("a.quiz_id = ?", quizID).
		Where("a.status = ?", string(domain.AttemptCompleted)).
		Order("a.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attemptsToDomain(rows), nil
}

func (s *Store) HasCompletedAttempt(ctx context.Context, userID, quizID string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*attemptRow)(nil)).
		Where("a.user_id = ?", userID).
		Where("a.quiz_id = ?", quizID).
		Where("a.status = ?", string(domain.AttemptCompleted)).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check completed attempt: %w", err)
	}
	return exists, nil
}

func (s *Store) ListUserAttempts(ctx context.Context, userID string, page domain.Page) ([]domain.Attempt, int, error) {
	var rows []attemptRow
	total, err := s.db.NewSelect().Model(&rows).
		Where("a.user_id = ?", userID).
		OrderExpr("a.completed_at DESC NULLS LAST, a.started_at DESC, a.id ASC").
		Limit(page.Limit).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list user attempts: %w", err)
	}
	return attemptsToDomain(rows), total, nil
}

func (s *Store) EnsureUser(ctx context.Context, identity domain.Identity) (domain.User, error) {
	row := &userRow{ID: identity.UserID, Username: identity.Username}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("username = COALESCE(NULLIF(EXCLUDED.username, ''), u.username)").
		Exec(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return s.GetUser(ctx, identity.UserID)
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return getUser(ctx, s.db, userID, false)
}

func (s *Store) IncrementQuizzesCreated(ctx context.Context, userID string) error {
	res, err := s.db.NewUpdate().
		Model((*userRow)(nil)).
		Set("total_quizzes_created = total_quizzes_created + 1").
		Where("u.id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("increment quizzes created: %w", err)
	}
	return expectRow(res, domain.ErrUserNotFound)
}

// RecordCompletion locks the user row before recomputing the average so that
// concurrent completions for one user apply one after another, each seeing
// every attempt committed before it.
func (s *Store) RecordCompletion(ctx context.Context, userID string, score int) (domain.User, error) {
	var user domain.User
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := getUser(ctx, tx, userID, true); err != nil {
			return err
		}
		_, err := tx.NewUpdate().
			Model((*userRow)(nil)).
			Set("total_quizzes_attempted = total_quizzes_attempted + 1").
			Set("total_points = total_points + ?", score).
			Set("average_score = (SELECT COALESCE(AVG(percentage), 0) FROM attempts WHERE user_id = ? AND status = ?)",
				userID, string(domain.AttemptCompleted)).
			Where("u.id = ?", userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("record completion: %w", err)
		}
		user, err = getUser(ctx, tx, userID, false)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := s.db.NewSelect().Model(&rows).Order("u.id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func getUser(ctx context.Context, db bun.IDB, userID string, forUpdate bool) (domain.User, error) {
	var row userRow
	q := db.NewSelect().Model(&row).Where("u.id = ?", userID)
	if forUpdate {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return row.toDomain(), nil
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func attemptsToDomain(rows []attemptRow) []domain.Attempt {
	out := make([]domain.Attempt, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}
