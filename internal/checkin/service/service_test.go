package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"clearshift/internal/checkin/models"
	"clearshift/internal/checkin/store/question"
	"clearshift/internal/checkin/store/response"
	"clearshift/internal/notify"
	dErrors "clearshift/pkg/domain-errors"
)

var testNow = time.Date(2025, time.July, 16, 9, 30, 0, 0, time.UTC)

type stubRecipients []string

func (r stubRecipients) ActiveRecipients(ctx context.Context, domain string) ([]string, error) {
	return r, nil
}

type captureEnqueuer struct {
	messages []notify.Message
}

func (c *captureEnqueuer) Enqueue(msg notify.Message) {
	c.messages = append(c.messages, msg)
}

func newService(recipients stubRecipients) (*Service, *captureEnqueuer) {
	mail := &captureEnqueuer{}
	svc := New(question.NewInMemory(), response.NewInMemory(), recipients, WithNotifier(mail))
	return svc, mail
}

func mustCreateQuestion(t *testing.T, svc *Service, domain string, input QuestionInput) *models.Question {
	t.Helper()
	q, err := svc.CreateQuestion(context.Background(), domain, input, testNow)
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	return q
}

func sleepQuestion() QuestionInput {
	return QuestionInput{
		Question:   "Did you sleep well this week?",
		Options:    []string{"Yes", "No", "Prefer not to say"},
		IsPositive: true,
		IsActive:   true,
	}
}

func supportQuestion() QuestionInput {
	return QuestionInput{
		Question:  "Would you like someone to contact you?",
		Options:   []string{"Yes please", "No thanks"},
		IsSupport: true,
		IsActive:  true,
	}
}

func TestQuestionCRUD(t *testing.T) {
	svc, _ := newService(nil)
	ctx := context.Background()

	q := mustCreateQuestion(t, svc, "example.com", sleepQuestion())

	if _, err := svc.CreateQuestion(ctx, "example.com", sleepQuestion(), testNow); !dErrors.HasCode(err, dErrors.CodeConflict) {
		t.Errorf("duplicate question: got %v", err)
	}

	input := sleepQuestion()
	input.IsActive = false
	updated, err := svc.UpdateQuestion(ctx, "example.com", q.ID, input, testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.IsActive {
		t.Error("expected question retired")
	}

	active, err := svc.ListQuestions(ctx, "example.com", true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active list = %d", len(active))
	}

	if err := svc.DeleteQuestion(ctx, "example.com", q.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetQuestion(ctx, "example.com", q.ID); !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Errorf("get after delete: got %v", err)
	}
}

func TestQuestionsAreDomainScoped(t *testing.T) {
	svc, _ := newService(nil)
	ctx := context.Background()

	q := mustCreateQuestion(t, svc, "example.com", sleepQuestion())

	if _, err := svc.GetQuestion(ctx, "other.example", q.ID); !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Errorf("cross-domain get must 404, got %v", err)
	}
	if err := svc.DeleteQuestion(ctx, "other.example", q.ID); !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Errorf("cross-domain delete must 404, got %v", err)
	}
}

func TestSubmitSnapshotsQuestions(t *testing.T) {
	svc, _ := newService(nil)
	ctx := context.Background()

	q := mustCreateQuestion(t, svc, "example.com", sleepQuestion())

	r, err := svc.Submit(ctx, "example.com", SubmitRequest{
		EmployeeID: "emp-7",
		Answers:    []AnswerInput{{QuestionID: q.ID, Option: "Yes", Note: " slept fine "}},
	}, testNow)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(r.Answers) != 1 {
		t.Fatalf("answers = %d", len(r.Answers))
	}
	a := r.Answers[0]
	if a.Question != q.Question || !a.IsPositive || a.Note != "slept fine" {
		t.Errorf("snapshot = %+v", a)
	}
	if r.SupportRequested {
		t.Error("a positive answer must not request support")
	}

	// Editing the bank later leaves the snapshot untouched.
	input := sleepQuestion()
	input.Question = "Completely different question?"
	if _, err := svc.UpdateQuestion(ctx, "example.com", q.ID, input, testNow.Add(time.Hour)); err != nil {
		t.Fatalf("update: %v", err)
	}
	stored, err := svc.ListResponses(ctx, "example.com", models.ResponseFilter{})
	if err != nil {
		t.Fatalf("list responses: %v", err)
	}
	if stored[0].Answers[0].Question != "Did you sleep well this week?" {
		t.Errorf("snapshot rewritten: %q", stored[0].Answers[0].Question)
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, _ := newService(nil)
	ctx := context.Background()

	q := mustCreateQuestion(t, svc, "example.com", sleepQuestion())

	cases := []struct {
		name string
		req  SubmitRequest
	}{
		{"missing employee", SubmitRequest{Answers: []AnswerInput{{QuestionID: q.ID, Option: "Yes"}}}},
		{"no answers", SubmitRequest{EmployeeID: "emp-1"}},
		{"unknown option", SubmitRequest{EmployeeID: "emp-1", Answers: []AnswerInput{{QuestionID: q.ID, Option: "Maybe"}}}},
		{"empty option", SubmitRequest{EmployeeID: "emp-1", Answers: []AnswerInput{{QuestionID: q.ID}}}},
	}
	for _, c := range cases {
		if _, err := svc.Submit(ctx, "example.com", c.req, testNow); !dErrors.HasCode(err, dErrors.CodeValidation) {
			t.Errorf("%s: got %v", c.name, err)
		}
	}

	unknown := SubmitRequest{EmployeeID: "emp-1", Answers: []AnswerInput{{QuestionID: uuid.New(), Option: "Yes"}}}
	if _, err := svc.Submit(ctx, "example.com", unknown, testNow); !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Errorf("unknown question: got %v", err)
	}

	retiredInput := sleepQuestion()
	retiredInput.Question = "Old prompt?"
	retiredInput.IsActive = false
	retired := mustCreateQuestion(t, svc, "example.com", retiredInput)
	inactive := SubmitRequest{EmployeeID: "emp-1", Answers: []AnswerInput{{QuestionID: retired.ID, Option: "Yes"}}}
	if _, err := svc.Submit(ctx, "example.com", inactive, testNow); !dErrors.HasCode(err, dErrors.CodeValidation) {
		t.Errorf("inactive question: got %v", err)
	}
}

func TestSubmitSupportEscalation(t *testing.T) {
	svc, mail := newService(stubRecipients{"admin@example.com"})
	ctx := context.Background()

	q := mustCreateQuestion(t, svc, "example.com", supportQuestion())

	r, err := svc.Submit(ctx, "example.com", SubmitRequest{
		EmployeeID: "emp-9",
		Answers:    []AnswerInput{{QuestionID: q.ID, Option: "Yes please"}},
	}, testNow)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !r.SupportRequested {
		t.Fatal("expected support_requested")
	}
	if len(mail.messages) != 1 {
		t.Fatalf("expected escalation email, got %d", len(mail.messages))
	}
	msg := mail.messages[0]
	if msg.To[0] != "admin@example.com" || !strings.Contains(msg.Body, r.ID.String()) {
		t.Errorf("escalation = %+v", msg)
	}
	if !strings.Contains(msg.Subject, "Support requested") {
		t.Errorf("subject = %q", msg.Subject)
	}
}

func TestSubmitDeclinedSupportStillNotifies(t *testing.T) {
	svc, mail := newService(stubRecipients{"admin@example.com"})
	ctx := context.Background()

	q := mustCreateQuestion(t, svc, "example.com", supportQuestion())

	r, err := svc.Submit(ctx, "example.com", SubmitRequest{
		EmployeeID: "emp-9",
		Answers:    []AnswerInput{{QuestionID: q.ID, Option: "No thanks"}},
	}, testNow)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if r.SupportRequested {
		t.Error("declined support must not mark the response")
	}
	if len(mail.messages) != 1 {
		t.Fatalf("every stored submission notifies admins, got %d messages", len(mail.messages))
	}
	msg := mail.messages[0]
	if strings.Contains(msg.Subject, "Support requested") {
		t.Errorf("subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, r.ID.String()) {
		t.Errorf("body = %q", msg.Body)
	}
}

func TestSubmitExplicitSupportOverride(t *testing.T) {
	svc, mail := newService(stubRecipients{"admin@example.com"})
	ctx := context.Background()

	sleep := mustCreateQuestion(t, svc, "example.com", sleepQuestion())
	contact := mustCreateQuestion(t, svc, "example.com", supportQuestion())

	// An explicit true marks the response even when no answer implies it.
	yes := true
	r, err := svc.Submit(ctx, "example.com", SubmitRequest{
		EmployeeID:       "emp-3",
		Answers:          []AnswerInput{{QuestionID: sleep.ID, Option: "Yes"}},
		SupportRequested: &yes,
	}, testNow)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !r.SupportRequested {
		t.Error("explicit request must mark the response")
	}
	if len(mail.messages) != 1 || !strings.Contains(mail.messages[0].Subject, "Support requested") {
		t.Fatalf("messages = %+v", mail.messages)
	}

	// An explicit false wins over a help-seeking answer.
	no := false
	r, err = svc.Submit(ctx, "example.com", SubmitRequest{
		EmployeeID:       "emp-3",
		Answers:          []AnswerInput{{QuestionID: contact.ID, Option: "Yes please"}},
		SupportRequested: &no,
	}, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if r.SupportRequested {
		t.Error("explicit decline must win over the answer heuristic")
	}
	if len(mail.messages) != 2 {
		t.Fatalf("messages = %d, want notification for both submissions", len(mail.messages))
	}
	if strings.Contains(mail.messages[1].Subject, "Support requested") {
		t.Errorf("subject = %q", mail.messages[1].Subject)
	}
}

func TestAckIsIdempotent(t *testing.T) {
	svc, _ := newService(stubRecipients{"admin@example.com"})
	ctx := context.Background()

	q := mustCreateQuestion(t, svc, "example.com", supportQuestion())
	r, _ := svc.Submit(ctx, "example.com", SubmitRequest{
		EmployeeID: "emp-9",
		Answers:    []AnswerInput{{QuestionID: q.ID, Option: "Yes please"}},
	}, testNow)

	first, err := svc.Ack(ctx, "example.com", r.ID, testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !first.Acked || first.AckedAt == nil {
		t.Fatalf("ack state = %+v", first)
	}

	second, err := svc.Ack(ctx, "example.com", r.ID, testNow.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("second ack: %v", err)
	}
	if !second.AckedAt.Equal(*first.AckedAt) {
		t.Error("second ack must keep the first timestamp")
	}

	if _, err := svc.Ack(ctx, "other.example", r.ID, testNow); !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Errorf("cross-domain ack must 404, got %v", err)
	}
}
