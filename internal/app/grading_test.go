package app

import (
	"testing"

	"quiz-attempt-service/internal/domain"
)

func mcq(id string, points int, options ...domain.Option) domain.Question {
	return domain.Question{ID: id, Text: id, Type: domain.QuestionMCQ, Points: points, Options: options}
}

func single(id string, points int, answer string) domain.Question {
	return domain.Question{ID: id, Text: id, Type: domain.QuestionSingleAnswer, Points: points, CorrectAnswer: answer}
}

func opt(text string, correct bool) domain.Option {
	return domain.Option{Text: text, IsCorrect: correct}
}

func TestGradeMCQ(t *testing.T) {
	question := mcq("q1", 2, opt("A", true), opt("B", false), opt("C", true))

	cases := []struct {
		name     string
		selected []string
		want     bool
	}{
		{"exact set", []string{"A", "C"}, true},
		{"order independent", []string{"C", "A"}, true},
		{"duplicates collapse", []string{"A", "C", "A"}, true},
		{"missing one", []string{"A"}, false},
		{"extra wrong", []string{"A", "B", "C"}, false},
		{"empty", nil, false},
		{"case sensitive", []string{"a", "c"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Grade([]domain.Question{question}, []domain.SubmittedAnswer{{SelectedOptions: tc.selected}})
			if got.Answers[0].IsCorrect != tc.want {
				t.Fatalf("expected correct=%v, got %v", tc.want, got.Answers[0].IsCorrect)
			}
			wantScore := 0
			if tc.want {
				wantScore = 2
			}
			if got.Score != wantScore || got.Answers[0].PointsEarned != wantScore {
				t.Fatalf("expected score %d, got %+v", wantScore, got)
			}
		})
	}
}

func TestGradeMCQWithoutCorrectOptionsNeverMatches(t *testing.T) {
	question := mcq("q1", 1, opt("A", false))
	got := Grade([]domain.Question{question}, []domain.SubmittedAnswer{{SelectedOptions: nil}})
	if got.Answers[0].IsCorrect {
		t.Fatalf("expected empty answer key to grade incorrect")
	}
}

func TestGradeSingleAnswer(t *testing.T) {
	question := single("q1", 3, "Paris")
	cases := map[string]bool{
		"Paris":     true,
		"  paris  ": true,
		"PARIS":     true,
		"Lyon":      false,
		"":          false,
		"Par is":    false,
	}
	for answer, want := range cases {
		got := Grade([]domain.Question{question}, []domain.SubmittedAnswer{{Answer: answer}})
		if got.Answers[0].IsCorrect != want {
			t.Fatalf("answer %q: expected %v", answer, want)
		}
	}
}

func TestGradeUnknownTypeIsIncorrect(t *testing.T) {
	question := domain.Question{ID: "q1", Type: "Essay", Points: 4, CorrectAnswer: "x"}
	got := Grade([]domain.Question{question}, []domain.SubmittedAnswer{{Answer: "x"}})
	if got.Score != 0 || got.Answers[0].IsCorrect {
		t.Fatalf("expected unknown type to score zero, got %+v", got)
	}
}

func TestGradeAlignsByIndex(t *testing.T) {
	questions := []domain.Question{
		single("q1", 1, "one"),
		single("q2", 2, "two"),
		single("q3", 3, "three"),
	}

	short := Grade(questions, []domain.SubmittedAnswer{{Answer: "one"}})
	if len(short.Answers) != 3 || short.Score != 1 {
		t.Fatalf("expected 3 records and score 1, got %+v", short)
	}
	if short.Answers[2].QuestionID != "q3" || short.Answers[2].IsCorrect {
		t.Fatalf("expected unanswered question recorded as incorrect, got %+v", short.Answers[2])
	}

	long := Grade(questions[:1], []domain.SubmittedAnswer{{Answer: "one"}, {Answer: "extra"}})
	if len(long.Answers) != 2 || long.Score != 1 {
		t.Fatalf("expected surplus answer recorded, got %+v", long)
	}
	if long.Answers[1].QuestionID != "" || long.Answers[1].PointsEarned != 0 {
		t.Fatalf("expected surplus answer worth nothing, got %+v", long.Answers[1])
	}
}

func TestGradeScoreIsSumOfEarnedPoints(t *testing.T) {
	questions := []domain.Question{
		mcq("q1", 2, opt("A", true), opt("B", false)),
		single("q2", 3, "yes"),
		single("q3", 5, "no"),
	}
	answers := []domain.SubmittedAnswer{
		{SelectedOptions: []string{"A"}},
		{Answer: "nope"},
		{Answer: "No"},
	}
	got := Grade(questions, answers)

	sum := 0
	for _, a := range got.Answers {
		sum += a.PointsEarned
	}
	if got.Score != sum || got.Score != 7 {
		t.Fatalf("expected score 7 equal to sum %d, got %d", sum, got.Score)
	}
}

func TestPercentage(t *testing.T) {
	if got := Percentage(5, 5); got != 100 {
		t.Fatalf("expected 100, got %v", got)
	}
	if got := Percentage(1, 4); got != 25 {
		t.Fatalf("expected 25, got %v", got)
	}
	if got := Percentage(0, 0); got != 0 {
		t.Fatalf("expected 0 for zero total, got %v", got)
	}
}

func TestResolveSelectedIndices(t *testing.T) {
	questions := []domain.Question{mcq("q1", 1, opt("A", true), opt("B", false))}

	got := ResolveSelectedIndices(questions, 0, []int{1, 0, 7, -1})
	if len(got) != 2 || got[0] != "B" || got[1] != "A" {
		t.Fatalf("unexpected texts: %v", got)
	}
	if got := ResolveSelectedIndices(questions, 3, []int{0}); got != nil {
		t.Fatalf("expected nil for missing question, got %v", got)
	}
}
