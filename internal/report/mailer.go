package report

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

type SmtpConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	Recipients   []string `json:"recipients"`
}

func (c SmtpConfig) Enabled() bool {
	return c.Server != "" && c.EmailAddress != "" && len(c.Recipients) > 0
}

type Mailer struct {
	config SmtpConfig
	send   func(mail *email.Email, addr string, auth smtp.Auth) error
}

func NewMailer(config SmtpConfig) Mailer {
	return Mailer{
		config: config,
		send: func(mail *email.Email, addr string, auth smtp.Auth) error {
			return mail.Send(addr, auth)
		},
	}
}

// Send mails the summary of a pass to every recipient.
func (m Mailer) Send(p Pass) error {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Catalog Sync <%s>", m.config.EmailAddress)
	mail.To = m.config.Recipients
	mail.Subject = p.Subject()
	mail.Text = []byte(Summary(p))

	addr := fmt.Sprintf("%s:%d", m.config.Server, m.config.Port)
	err := m.send(
		mail,
		addr,
		smtp.PlainAuth("", m.config.EmailAddress, m.config.Password, m.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = m.send(mail, addr, nil)
	}
	if err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	return nil
}
