package mail

import (
	"errors"
	"fmt"
	"net/smtp"
)

var smtpSendMail = smtp.SendMail

// SMTPClient sends HTML mail through a single relay.
type SMTPClient struct {
	host string
	port int
	user string
	pass string
	from string
}

func NewSMTPClient(host string, port int, user, pass, from string) *SMTPClient {
	return &SMTPClient{
		host: host,
		port: port,
		user: user,
		pass: pass,
		from: from,
	}
}

// Send delivers an HTML email to one recipient. PlainAuth is used only when
// both user and password are configured.
func (c *SMTPClient) Send(to, subject, body string) error {
	var auth smtp.Auth
	switch {
	case c.user != "" && c.pass != "":
		auth = smtp.PlainAuth("", c.user, c.pass, c.host)
	case c.user != "" || c.pass != "":
		return errors.New("smtp: incomplete credentials, set both SMTP_USER and SMTP_PASS")
	}

	msg := fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=\"UTF-8\"\r\n"+
			"\r\n%s",
		c.from, to, encodeSubject(subject), body,
	)

	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	return smtpSendMail(addr, auth, c.from, []string{to}, []byte(msg))
}
