package report

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"catalogsync/internal/catalog"
	"catalogsync/internal/mutator"
	"catalogsync/internal/reconcile"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/require"
)

func examplePass() Pass {
	return Pass{
		RunID:     "run-1",
		StartedAt: time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC),
		Summary:   reconcile.Summary{Updates: 1, Creates: 1, Deletes: 1, Unchanged: 3},
		Outcomes: []mutator.Outcome{
			{Action: catalog.UpdatePrice("A", catalog.MustPrice("9.99")), RemoteID: 1},
			{Action: catalog.Create("B", catalog.MustPrice("20")), Err: errors.New("product detail: not found")},
			{Action: catalog.Delete("C"), Err: mutator.ErrLookupMiss},
		},
	}
}

func TestSummary(t *testing.T) {
	text := Summary(examplePass())

	require.Contains(t, text, "run run-1")
	require.Contains(t, text, "2 of 3 actions failed")
	require.Contains(t, text, "product detail: not found")
	require.Contains(t, text, mutator.ErrLookupMiss.Error())
	require.NotContains(t, text, "9.99")
}

func TestSummaryWithoutFailures(t *testing.T) {
	p := examplePass()
	p.Outcomes = p.Outcomes[:1]
	p.DryRun = true

	text := Summary(p)
	require.Contains(t, text, "dry run")
	require.NotContains(t, text, "failed")
}

func TestSubject(t *testing.T) {
	p := examplePass()
	require.Equal(t, "catalog sync 2024-06-01 08:30: 1 updates, 1 creates, 1 deletes (2 failed)", p.Subject())

	p.Err = errors.New("remote snapshot missing")
	require.True(t, strings.HasSuffix(p.Subject(), "(failed)"))
}

func TestMailer(t *testing.T) {
	config := SmtpConfig{
		Server:       "smtp.example.com",
		Port:         587,
		EmailAddress: "sync@example.com",
		Password:     "secret",
		Recipients:   []string{"ops@example.com"},
	}
	require.True(t, config.Enabled())
	require.False(t, SmtpConfig{Server: "smtp.example.com"}.Enabled())

	var addrs []string
	var auths []smtp.Auth
	var sent *email.Email
	mailer := NewMailer(config)
	mailer.send = func(mail *email.Email, addr string, auth smtp.Auth) error {
		addrs = append(addrs, addr)
		auths = append(auths, auth)
		sent = mail
		if auth != nil {
			return errors.New("smtp: server doesn't support AUTH")
		}
		return nil
	}

	require.NoError(t, mailer.Send(examplePass()))
	require.Equal(t, []string{"smtp.example.com:587", "smtp.example.com:587"}, addrs)
	require.NotNil(t, auths[0])
	require.Nil(t, auths[1])
	require.Equal(t, []string{"ops@example.com"}, sent.To)
	require.Contains(t, string(sent.Text), "2 of 3 actions failed")

	raw, err := sent.Bytes()
	require.NoError(t, err)
	require.Contains(t, string(raw), "Catalog Sync <sync@example.com>")
}

func TestMailerError(t *testing.T) {
	mailer := NewMailer(SmtpConfig{Server: "s", EmailAddress: "a@b", Recipients: []string{"c@d"}})
	mailer.send = func(mail *email.Email, addr string, auth smtp.Auth) error {
		return errors.New("connection refused")
	}
	require.ErrorContains(t, mailer.Send(examplePass()), "connection refused")
}
