package digestsvc_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/preschool/core"
	"github.com/trezcool/preschool/core/progress"
	"github.com/trezcool/preschool/core/report"
	"github.com/trezcool/preschool/core/student"
	"github.com/trezcool/preschool/core/user"
	digestsvc "github.com/trezcool/preschool/services/digest"
	emailsvc "github.com/trezcool/preschool/services/email"
	reportsvc "github.com/trezcool/preschool/services/report"
	inmemdb "github.com/trezcool/preschool/storage/database/inmem"
	"github.com/trezcool/preschool/testutil"
)

func TestLastWeek(t *testing.T) {
	tests := []struct {
		now      time.Time
		from, to core.Date
	}{
		{now: testutil.Now, from: core.NewDate(2024, time.March, 4), to: core.NewDate(2024, time.March, 10)},
		{now: time.Date(2024, time.March, 17, 23, 0, 0, 0, time.UTC), from: core.NewDate(2024, time.March, 4), to: core.NewDate(2024, time.March, 10)},
		{now: time.Date(2024, time.March, 18, 0, 0, 0, 0, time.UTC), from: core.NewDate(2024, time.March, 11), to: core.NewDate(2024, time.March, 17)},
	}
	for _, tt := range tests {
		t.Run(tt.now.String(), func(t *testing.T) {
			assert.Equal(t, report.Period{From: tt.from, To: tt.to}, digestsvc.LastWeek(tt.now))
		})
	}
}

func TestSchedulerRun(t *testing.T) {
	conf := testutil.NewConfig()
	logger := testutil.NopLogger{}
	core.ParseEmailTemplates(logger, true)

	db := inmemdb.Open()
	userRepo := inmemdb.NewUserRepository(db)
	studentRepo := inmemdb.NewStudentRepository(db)
	progressRepo := inmemdb.NewProgressRepository(db)
	clock := clockwork.NewFakeClockAt(testutil.Now)

	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	userSvc := user.NewService(userRepo, mailSvc, conf, clock)
	studentSvc := student.NewService(studentRepo, userSvc, nil, logger, clock)
	progressSvc := progress.NewService(progressRepo, clock)
	renderer := reportsvc.NewRenderer(conf)

	asha := testutil.CreateTeacher(t, userRepo, "Asha Rao", "asha_r", core.ClassLKG)
	_ = testutil.CreateTeacher(t, userRepo, "Idle Teacher", "idle_t") // no students
	gone := testutil.CreateUser(t, userRepo, "Gone Teacher", "gone_t", "gone@preschool.test", "", []string{user.RoleTeacher}, nil, false)
	_ = testutil.CreateAdmin(t, userRepo, "Principal", "principal")

	ravi := testutil.CreateStudent(t, studentRepo, "Ravi Kumar", 4, core.ClassLKG, asha.ID)
	_ = testutil.CreateStudent(t, studentRepo, "Anu Shetty", 5, core.ClassLKG, asha.ID)
	_ = testutil.CreateStudent(t, studentRepo, "Old Student", 5, core.ClassLKG, gone.ID)
	testutil.CreateEntry(t, progressRepo, ravi.ID, core.NewDate(2024, time.March, 5), 4, asha.ID)
	testutil.CreateEntry(t, progressRepo, ravi.ID, core.NewDate(2024, time.March, 11), 2, asha.ID) // this week

	s := digestsvc.NewScheduler(conf, userSvc, studentSvc, progressSvc, renderer, mailSvc, logger, clock)
	mailSvc.Reset()
	sent, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	msgs := mailSvc.SentMessages()
	require.Len(t, msgs, 1)
	msg := msgs[0]
	assert.Equal(t, "asha_r@preschool.test", msg.To[0].Address)
	assert.Equal(t, "Weekly progress 2024-03-04 to 2024-03-10", msg.Subject)
	assert.Contains(t, msg.TextContent, "Progress entries recorded: 1")
	assert.Contains(t, msg.TextContent, "No entry recorded this week for: Anu Shetty")

	require.Len(t, msg.Attachments, 1)
	at := msg.Attachments[0]
	assert.Equal(t, report.FormatXLSX.ContentType(), at.ContentType)
	content, err := base64.StdEncoding.DecodeString(at.Content.String())
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	assert.Equal(t, "Student", rows[0][0])
	assert.Len(t, rows, 3+2) // header, 2 students, blank, class average
}

func TestSchedulerStart(t *testing.T) {
	conf := testutil.NewConfig()
	conf.Digest.Schedule = "not a cron"
	s := digestsvc.NewScheduler(conf, nil, nil, nil, nil, nil, testutil.NopLogger{}, clockwork.NewFakeClock())
	assert.Error(t, s.Start())

	conf.Digest.Schedule = "0 7 * * 1"
	s = digestsvc.NewScheduler(conf, nil, nil, nil, nil, nil, testutil.NopLogger{}, clockwork.NewFakeClock())
	require.NoError(t, s.Start())
	s.Stop()
}
