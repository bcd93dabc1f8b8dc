package digestsvc

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/core/report"
	"github.com/trezcool/preschool/core/student"
	"github.com/trezcool/preschool/core/user"
)

const (
	templateName = "progress_digest"
	runTimeout   = 5 * time.Minute
)

// Scheduler emails each active teacher a weekly progress sheet of their students.
type Scheduler struct {
	schedule    string
	userSvc     user.Service
	studentSvc  student.Service
	progressSvc progress.Service
	renderer    report.Renderer
	mailSvc     core.EmailService
	logger      core.Logger
	clock       clockwork.Clock
	cron        *gocron.Scheduler
}

func NewScheduler(
	conf *core.Config,
	userSvc user.Service,
	studentSvc student.Service,
	progressSvc progress.Service,
	renderer report.Renderer,
	mailSvc core.EmailService,
	logger core.Logger,
	clock clockwork.Clock,
) *Scheduler {
	return &Scheduler{
		schedule:    conf.Digest.Schedule,
		userSvc:     userSvc,
		studentSvc:  studentSvc,
		progressSvc: progressSvc,
		renderer:    renderer,
		mailSvc:     mailSvc,
		logger:      logger,
		clock:       clock,
		cron:        gocron.NewScheduler(time.UTC),
	}
}

// Start schedules the digest job and runs the scheduler in the background.
func (s *Scheduler) Start() error {
	_, err := s.cron.Cron(s.schedule).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if sent, err := s.Run(ctx); err != nil {
			s.logger.Error(fmt.Sprintf("progress digest: %v", err), err)
		} else {
			s.logger.Info(fmt.Sprintf("progress digest: %d email(s) sent", sent))
		}
	})
	if err != nil {
		return errors.Wrapf(err, "scheduling progress digest %q", s.schedule)
	}
	s.cron.StartAsync()
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// LastWeek returns the Monday to Sunday period before the week of `now`.
func LastWeek(now time.Time) report.Period {
	today := core.DateOf(now)
	monday := today.AddDays(-((int(today.Weekday()) + 6) % 7))
	return report.Period{From: monday.AddDays(-7), To: monday.AddDays(-1)}
}

// Run sends the digest of last week and returns the number of emails sent.
// Teachers without an email or without students are skipped. A failing teacher does not stop the others.
func (s *Scheduler) Run(ctx context.Context) (int, error) {
	active := true
	teachers, err := s.userSvc.Query(ctx, &user.QueryFilter{Roles: user.TeacherRoles, IsActive: &active}, nil)
	if err != nil {
		return 0, errors.Wrap(err, "querying teachers")
	}

	now := s.clock.Now().UTC()
	period := LastWeek(now)
	var sent int
	for _, teacher := range teachers {
		if teacher.Email == "" {
			continue
		}
		msg, err := s.digest(ctx, teacher, period, now)
		if err != nil {
			s.logger.Error(fmt.Sprintf("progress digest for %s: %v", teacher.Login(), err), err, teacher)
			continue
		}
		if msg == nil {
			continue
		}
		s.mailSvc.SendMessages(msg)
		sent++
	}
	return sent, nil
}

func (s *Scheduler) digest(ctx context.Context, teacher user.User, period report.Period, now time.Time) (*core.EmailMessage, error) {
	students, err := s.studentSvc.Query(ctx, &student.QueryFilter{TeacherID: teacher.ID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	if len(students) == 0 {
		return nil, nil
	}
	entries, err := s.progressSvc.Query(
		ctx,
		&progress.QueryFilter{TeacherID: teacher.ID, DateFrom: period.From, DateTo: period.To},
		[]core.DBOrdering{{Field: "date", Ascending: true}},
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying progress entries")
	}

	recorded := make(map[string]bool, len(students))
	for _, e := range entries {
		recorded[e.StudentID] = true
	}
	missing := make([]string, 0)
	for _, st := range students {
		if !recorded[st.ID] {
			missing = append(missing, st.Name)
		}
	}

	doc := report.ProgressSheet(students, entries, period, []report.Meta{{Label: "Teacher", Value: teacher.Name}}, now)
	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, doc, report.FormatXLSX); err != nil {
		return nil, errors.Wrap(err, "rendering progress sheet")
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: teacher.Name, Address: teacher.Email}},
		Subject:      fmt.Sprintf("Weekly progress %s to %s", period.From, period.To),
		TemplateName: templateName,
		TemplateData: map[string]interface{}{
			"Name":     teacher.Name,
			"From":     period.From.String(),
			"To":       period.To.String(),
			"Students": len(students),
			"Entries":  len(entries),
			"Missing":  missing,
		},
	}
	if err := msg.Attach(&buf, doc.FileName(report.FormatXLSX), report.FormatXLSX.ContentType()); err != nil {
		return nil, errors.Wrap(err, "attaching progress sheet")
	}
	return msg, nil
}
