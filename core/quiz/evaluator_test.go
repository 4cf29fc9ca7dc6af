package quiz

import (
	"testing"
)

func newKey(n int) AnswerKey {
	key := AnswerKey{QuizID: "qz"}
	for i := 0; i < n; i++ {
		qid := string(rune('a' + i))
		key.Questions = append(key.Questions, KeyQuestion{
			QuestionID: qid,
			Options:    map[string]bool{qid + "-right": true, qid + "-wrong": false},
		})
	}
	return key
}

func sheet(n, correct int) map[string]string {
	answers := make(map[string]string, n)
	for i := 0; i < n; i++ {
		qid := string(rune('a' + i))
		if i < correct {
			answers[qid] = qid + "-right"
		} else {
			answers[qid] = qid + "-wrong"
		}
	}
	return answers
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name        string
		questions   int
		passing     int
		answers     map[string]string
		wantScore   int
		wantCorrect int
		wantPassed  bool
		wantErr     error
	}{
		{name: "2 of 3 rounds to 67", questions: 3, passing: 70, answers: sheet(3, 2), wantScore: 67, wantCorrect: 2},
		{name: "1 of 3 rounds to 33", questions: 3, passing: 30, answers: sheet(3, 1), wantScore: 33, wantCorrect: 1, wantPassed: true},
		{name: "score equal to passing passes", questions: 4, passing: 75, answers: sheet(4, 3), wantScore: 75, wantCorrect: 3, wantPassed: true},
		{name: "all wrong", questions: 4, passing: 50, answers: sheet(4, 0), wantScore: 0},
		{name: "all right", questions: 2, passing: 100, answers: sheet(2, 2), wantScore: 100, wantCorrect: 2, wantPassed: true},
		{name: "1 of 8 rounds half up", questions: 8, passing: 10, answers: sheet(8, 1), wantScore: 13, wantCorrect: 1, wantPassed: true},
		{name: "missing answer", questions: 3, passing: 50, answers: sheet(2, 2), wantErr: ErrIncompleteSubmission},
		{name: "no answers", questions: 3, passing: 50, answers: map[string]string{}, wantErr: ErrIncompleteSubmission},
		{name: "extra answer", questions: 2, passing: 50, answers: sheet(3, 3), wantErr: ErrIncompleteSubmission},
		{
			name: "unknown question", questions: 2, passing: 50,
			answers: map[string]string{"a": "a-right", "z": "z-right"}, wantErr: ErrIncompleteSubmission,
		},
		{
			name: "option of another question", questions: 2, passing: 50,
			answers: map[string]string{"a": "b-right", "b": "b-right"}, wantErr: ErrInvalidOption,
		},
		{name: "quiz without questions", questions: 0, passing: 0, answers: map[string]string{}, wantErr: ErrIncompleteSubmission},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qz := Quiz{ID: "qz", PassingScore: tt.passing}
			att, responses, err := evaluate(qz, newKey(tt.questions), "usr", tt.answers)
			if err != tt.wantErr {
				t.Fatalf("evaluate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if att.Score != tt.wantScore {
				t.Errorf("evaluate() score = %d; want %d", att.Score, tt.wantScore)
			}
			if att.CorrectCount != tt.wantCorrect {
				t.Errorf("evaluate() correct = %d; want %d", att.CorrectCount, tt.wantCorrect)
			}
			if att.Passed != tt.wantPassed {
				t.Errorf("evaluate() passed = %v; want %v", att.Passed, tt.wantPassed)
			}
			if att.TotalQuestions != tt.questions || len(responses) != tt.questions {
				t.Errorf("evaluate() total = %d, responses = %d; want %d", att.TotalQuestions, len(responses), tt.questions)
			}
			for _, r := range responses {
				if r.AttemptID != att.ID {
					t.Errorf("response attempt = %s; want %s", r.AttemptID, att.ID)
				}
			}
		})
	}
}

func TestStatusOf(t *testing.T) {
	failed := Attempt{Score: 40, AttemptNumber: 1}
	passed := Attempt{Score: 90, Passed: true, AttemptNumber: 2}

	tests := []struct {
		name          string
		attempts      []Attempt
		wantState     string
		wantRemaining int
		wantBest      int
	}{
		{name: "no attempts", wantState: StateNotAttempted, wantRemaining: MaxAttempts},
		{name: "one failure", attempts: []Attempt{failed}, wantState: StateAttempt1Failed, wantRemaining: 1, wantBest: 40},
		{name: "passed first", attempts: []Attempt{{Score: 80, Passed: true, AttemptNumber: 1}}, wantState: StatePassed, wantBest: 80},
		{name: "passed after a failure", attempts: []Attempt{failed, passed}, wantState: StatePassed, wantBest: 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := statusOf("qz", tt.attempts)
			if st.State != tt.wantState {
				t.Errorf("statusOf() state = %s; want %s", st.State, tt.wantState)
			}
			if st.AttemptsRemaining != tt.wantRemaining {
				t.Errorf("statusOf() remaining = %d; want %d", st.AttemptsRemaining, tt.wantRemaining)
			}
			if st.BestScore != tt.wantBest {
				t.Errorf("statusOf() best = %d; want %d", st.BestScore, tt.wantBest)
			}
			if st.AttemptCount != len(tt.attempts) {
				t.Errorf("statusOf() count = %d; want %d", st.AttemptCount, len(tt.attempts))
			}
		})
	}
}

func TestShouldReset(t *testing.T) {
	tests := []struct {
		att  Attempt
		want bool
	}{
		{att: Attempt{AttemptNumber: 1}, want: false},
		{att: Attempt{AttemptNumber: 2}, want: true},
		{att: Attempt{AttemptNumber: 2, Passed: true}, want: false},
		{att: Attempt{AttemptNumber: 3}, want: true},
	}
	for _, tt := range tests {
		if got := shouldReset(tt.att); got != tt.want {
			t.Errorf("shouldReset(%+v) = %v; want %v", tt.att, got, tt.want)
		}
	}
}
