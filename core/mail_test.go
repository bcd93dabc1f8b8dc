package core_test

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/preschool/core"
	appfs "github.com/trezcool/preschool/fs"
)

// errLogger records the errors logged while parsing templates.
type errLogger struct {
	errs []string
}

func (l *errLogger) Debug(string, ...interface{}) {}
func (l *errLogger) Info(string, ...interface{})  {}
func (l *errLogger) Warn(string, ...interface{})  {}
func (l *errLogger) Error(msg string, _ ...interface{}) {
	l.errs = append(l.errs, msg)
}
func (l *errLogger) Fatal(msg string, _ ...interface{}) {
	l.errs = append(l.errs, msg)
}

func TestEmbeddedBaseLayouts(t *testing.T) {
	for _, name := range []string{"_base.txt", "_base.gohtml"} {
		_, err := fs.Stat(appfs.FS, "assets/templates/email/"+name)
		assert.NoError(t, err, name)
	}
}

func TestEmailMessage_Render(t *testing.T) {
	logger := new(errLogger)
	core.ParseEmailTemplates(logger, true)
	require.Empty(t, logger.errs)
	conf := &core.Config{AppName: "Preschool", FrontendBaseURL: "http://school.test"}

	tests := []struct {
		name     string
		template string
		data     interface{}
		wantText string
	}{
		{
			name:     "welcome",
			template: "welcome",
			data:     map[string]interface{}{"Name": "Lina", "Login": "lina", "Classes": []string{core.ClassLKG}},
			wantText: "Classes: LKG",
		},
		{
			name:     "password reset",
			template: "password_reset",
			data:     map[string]string{"Name": "Lina", "UID": "uid", "Token": "tok"},
			wantText: "http://school.test/password-reset/uid/tok",
		},
		{
			name:     "progress digest",
			template: "progress_digest",
			data: map[string]interface{}{
				"Name": "Lina", "From": "2024-03-04", "To": "2024-03-10",
				"Students": 2, "Entries": 5, "Missing": []string{"Chen"},
			},
			wantText: "No entry recorded this week for: Chen",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := core.EmailMessage{TemplateName: tt.template, TemplateData: tt.data}
			require.NoError(t, msg.Render(conf))
			assert.Contains(t, msg.TextContent, "Hello Lina")
			assert.Contains(t, msg.TextContent, tt.wantText)
			assert.Contains(t, msg.TextContent, "The Preschool team", "rendered within the base layout")
			assert.Contains(t, msg.HTMLContent, "Lina")
		})
	}

	t.Run("unknown template", func(t *testing.T) {
		msg := core.EmailMessage{TemplateName: "lol"}
		assert.Error(t, msg.Render(conf))
	})
}
