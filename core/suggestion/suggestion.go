package suggestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/core/student"
)

// Suggestion kinds
const (
	KindActivities = "activities"
	KindGoals      = "goals"
	KindRemarks    = "remarks"
)

var (
	Kinds = []string{KindActivities, KindGoals, KindRemarks}

	// number of recent progress entries given as context for a student
	historySize = 5

	errStudentRequired = errors.New("a student is required for remarks suggestions")
	errEmptySuggestion = errors.Wrap(core.ErrBadGateway, "the assistant returned an empty suggestion")
)

// Request is what a teacher asks the assistant for.
type Request struct {
	Kind      string `json:"kind" validate:"required,oneof=activities goals remarks"`
	Class     string `json:"class" validate:"omitempty,schoolclass"`
	StudentID string `json:"student_id" validate:"omitempty,uuid"`
	Topic     string `json:"topic" validate:"max=500"`
}

func (r *Request) Validate(validate *validator.Validate) error {
	r.Kind = core.CleanString(r.Kind, true /* lower */)
	r.Class = core.CleanString(r.Class)
	r.StudentID = core.CleanString(r.StudentID, true /* lower */)
	r.Topic = core.CleanString(r.Topic)
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.Kind == KindRemarks && r.StudentID == "" {
		return core.NewFieldError("student_id", errStudentRequired.Error())
	}
	return nil
}

type Suggestion struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Prompt is a single system + user message exchange.
type Prompt struct {
	Kind   string
	Class  string // empty when unknown
	Topic  string
	System string
	User   string
}

// Suggester generates text for a prompt.
// It returns core.ErrUnavailable when the provider cannot serve requests.
type Suggester interface {
	Suggest(ctx context.Context, prompt Prompt) (string, error)
}

type Service interface {
	// Suggest builds a prompt from `req` (and the student's recent progress when given) and returns the generated text.
	// The student, if any, must already be loaded and accessible to the requester.
	Suggest(ctx context.Context, req Request, st *student.Student) (Suggestion, error)
}

type service struct {
	suggester   Suggester
	progressSvc progress.Service
}

var _ Service = (*service)(nil)

func NewService(suggester Suggester, progressSvc progress.Service) Service {
	return &service{suggester: suggester, progressSvc: progressSvc}
}

func (svc *service) Suggest(ctx context.Context, req Request, st *student.Student) (Suggestion, error) {
	var history []progress.Entry
	if st != nil {
		if req.Class == "" {
			req.Class = st.Class
		}
		var err error
		if history, err = svc.progressSvc.Latest(ctx, st.ID, historySize); err != nil {
			return Suggestion{}, errors.Wrap(err, "loading progress history")
		}
	}

	text, err := svc.suggester.Suggest(ctx, BuildPrompt(req, st, history))
	if err != nil {
		switch errors.Cause(err) {
		case core.ErrUnavailable:
			return Suggestion{}, core.ErrUnavailable
		case context.Canceled, context.DeadlineExceeded:
			return Suggestion{}, errors.Wrap(err, "generating suggestion")
		}
		// the provider rejected the prompt or sent an unreadable answer
		return Suggestion{}, errors.Wrap(core.ErrBadGateway, fmt.Sprintf("generating suggestion: %v", err))
	}
	if text = strings.TrimSpace(text); text == "" {
		return Suggestion{}, errEmptySuggestion
	}
	return Suggestion{Kind: req.Kind, Text: text}, nil
}

const systemPrompt = "You are an experienced early childhood educator helping pre-primary teachers " +
	"(Nursery, LKG and UKG, ages 2 to 7). Answer in plain text, concise and practical, " +
	"suitable to paste into a school record. Do not use markdown headings."

// BuildPrompt turns a request into a prompt. `st` and `history` are optional.
func BuildPrompt(req Request, st *student.Student, history []progress.Entry) Prompt {
	var b strings.Builder
	class := req.Class
	if class == "" {
		class = "pre-primary"
	}

	switch req.Kind {
	case KindActivities:
		fmt.Fprintf(&b, "Suggest 5 classroom activities for a %s class.", class)
	case KindGoals:
		fmt.Fprintf(&b, "Suggest 5 measurable learning goals for a %s class.", class)
	case KindRemarks:
		b.WriteString("Write a short, encouraging progress remark (3 to 4 sentences) for the student below, " +
			"addressed to their guardians.")
	}
	if req.Topic != "" {
		fmt.Fprintf(&b, "\nTopic or theme: %s.", req.Topic)
	}

	if st != nil {
		fmt.Fprintf(&b, "\n\nStudent: %s, age %d, %s class.", firstName(st.Name), st.Age, st.Class)
		fmt.Fprintf(&b, "\nLearning ability: %s.", strings.ReplaceAll(st.LearningAbility, "_", " "))
		if st.WritingSpeed != "" {
			fmt.Fprintf(&b, "\nWriting speed: %s.", strings.ReplaceAll(st.WritingSpeed, "_", " "))
		}
		if st.SupportNotes != "" {
			fmt.Fprintf(&b, "\nSupport notes: %s", st.SupportNotes)
		}
	}
	if len(history) > 0 {
		b.WriteString("\n\nRecent progress (ratings from 1 to 5):")
		for _, e := range history {
			fmt.Fprintf(&b, "\n- %s:", e.Date)
			for i, v := range e.Values() {
				fmt.Fprintf(&b, " %s %d", progress.Skills[i].Key, v)
				if i < len(progress.Skills)-1 {
					b.WriteString(",")
				}
			}
			if e.Remarks != "" {
				fmt.Fprintf(&b, ". Remarks: %s", e.Remarks)
			}
		}
		if req.Kind != KindRemarks {
			b.WriteString("\nAdapt the suggestions to the weakest skills.")
		}
	}

	return Prompt{Kind: req.Kind, Class: req.Class, Topic: req.Topic, System: systemPrompt, User: b.String()}
}

// firstName keeps prompts free of student surnames.
func firstName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return name
}
