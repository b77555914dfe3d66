package rbac_test

import (
	"context"
	"testing"

	rbac "github.com/goliatone/go-rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type stubMailSender struct {
	fail error
	sent []sentMail
}

func (s *stubMailSender) Send(to, subject, body string) error {
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func TestTemplateNotifier(t *testing.T) {
	ctx := context.Background()
	repos := setupRepos(t)

	createTemplate(t, repos, rbac.EventSendUserVerificationToken,
		"Verify your account, {{.username}}",
		"Your code is {{.token}}. Visit {{.url}} to confirm.")

	sender := &stubMailSender{}
	notifier := rbac.NewTemplateNotifier(repos, sender)

	err := notifier.Notify(ctx, rbac.EventSendUserVerificationToken, "ada@example.com", map[string]string{
		"username": "Ada",
		"token":    "123456",
		"url":      "https://app.example.com/verify",
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ada@example.com", sender.sent[0].To)
	assert.Equal(t, "Verify your account, Ada", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].Body, "Your code is 123456")
	assert.Contains(t, sender.sent[0].Body, "https://app.example.com/verify")

	t.Run("missing template", func(t *testing.T) {
		err := notifier.Notify(ctx, "send_unknown_event", "ada@example.com", nil)
		assert.Error(t, err)
	})

	t.Run("sender failure surfaces", func(t *testing.T) {
		failing := rbac.NewTemplateNotifier(repos, &stubMailSender{fail: assert.AnError})
		err := failing.Notify(ctx, rbac.EventSendUserVerificationToken, "ada@example.com", map[string]string{})
		assert.Error(t, err)
	})

	t.Run("broken template", func(t *testing.T) {
		createTemplate(t, repos, "send_broken", "{{.unclosed", "body")
		err := notifier.Notify(ctx, "send_broken", "ada@example.com", nil)
		assert.Error(t, err)
	})
}

func TestNoopNotifier(t *testing.T) {
	assert.NoError(t, rbac.NoopNotifier{}.Notify(context.Background(), "any", "any@example.com", nil))
}

func TestVerificationFlowDeliversThroughTemplates(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repos := rbac.NewRepositoryManager(db)

	createTemplate(t, repos, rbac.EventSendForgotPasswordToken,
		"Reset your password",
		"Use code {{.token}} within five minutes.")

	sender := &stubMailSender{}
	verification := rbac.NewVerificationService(repos,
		rbac.WithVerificationNotifier(rbac.NewTemplateNotifier(repos, sender)))

	user := createActiveUser(t, repos, "tpl@example.com", "Sup3rSecret!")
	record, err := verification.Issue(ctx, db, user, rbac.VerificationTypeForgotPassword)
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "tpl@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Body, record.Token)
}
