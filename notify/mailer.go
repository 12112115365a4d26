package notify

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"alforge/config"
	"alforge/models"
)

// SettingsSource is where the admin-edited SMTP settings live.
type SettingsSource interface {
	GetMailSettings(ctx context.Context) (*models.MailSettings, error)
}

// Mailer sends notifications and invites by SMTP. Settings saved from the admin page take
// precedence over the SMTP_* environment; with neither configured it only logs.
type Mailer struct {
	Settings SettingsSource
	Env      config.SMTP
	AppName  string

	// SendMail defaults to smtp.SendMail.
	SendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

type smtpConf struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func (m *Mailer) conf(ctx context.Context) (*smtpConf, error) {
	if m.Settings != nil {
		s, err := m.Settings.GetMailSettings(ctx)
		if err != nil {
			return nil, fmt.Errorf("load mail settings: %w", err)
		}
		if s != nil {
			// 后台关闭了邮件 → 不发送
			if !s.Enabled || s.Host == "" {
				return nil, nil
			}
			return &smtpConf{Host: s.Host, Port: orDefault(s.Port, "587"), Username: s.Username, Password: s.Password, From: s.From}, nil
		}
	}
	if m.Env.Host == "" || (m.Env.Username == "" && m.Env.From == "") {
		return nil, nil
	}
	return &smtpConf{
		Host:     m.Env.Host,
		Port:     orDefault(m.Env.Port, "587"),
		Username: m.Env.Username,
		Password: m.Env.Password,
		From:     m.Env.From,
	}, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func (m *Mailer) appName() string { return orDefault(m.AppName, "Alforge") }

func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To)+len(msg.Cc)+len(msg.Bcc) == 0 {
		return nil
	}
	conf, err := m.conf(ctx)
	if err != nil {
		return err
	}
	subject, body := renderMessage(m.appName(), msg)
	if conf == nil {
		log.Printf("[DEV] %s notification for requisition %s to %v: %s", msg.Kind, msg.RequisitionID, msg.To, subject)
		return nil
	}
	return m.deliver(conf, msg.To, msg.Cc, msg.Bcc, subject, "text/plain", body)
}

// SendInvite mails the registration link of a new invite.
func (m *Mailer) SendInvite(ctx context.Context, toEmail, link string, expiresDays int) error {
	conf, err := m.conf(ctx)
	if err != nil {
		return err
	}
	if conf == nil {
		log.Printf("[DEV] Invite link for %s: %s (expires in %d day(s))", toEmail, link, expiresDays)
		return nil
	}

	name := m.appName()
	subject := fmt.Sprintf("%s Invitation", name)
	htmlBody := fmt.Sprintf(`
<div style="font-family:Arial,sans-serif; font-size:14px; color:#222">
  <p>Hello,</p>
  <p>You have been invited to join <b>%s</b>. Click the button below to create your passkey and sign in:</p>
  <p>
    <a href="%s" style="display:inline-block; padding:10px 16px; background:#2563EB; color:#fff; text-decoration:none; border-radius:6px;">
      Accept Invitation
    </a>
  </p>
  <p>Or open this link directly:</p>
  <p><a href="%s">%s</a></p>
  <p>This invitation will expire in %d day(s).</p>
</div>
`, name, link, link, link, expiresDays)

	return m.deliver(conf, []string{toEmail}, nil, nil, subject, "text/html", htmlBody)
}

func (m *Mailer) deliver(conf *smtpConf, to, cc, bcc []string, subject, contentType, body string) error {
	fromAddr := conf.From
	if fromAddr == "" {
		fromAddr = conf.Username
	}
	raw := buildMIME(m.appName(), fromAddr, to, cc, subject, contentType, body)

	var auth smtp.Auth
	if conf.Username != "" {
		auth = smtp.PlainAuth("", conf.Username, conf.Password, conf.Host)
	}
	send := m.SendMail
	if send == nil {
		send = smtp.SendMail
	}
	rcpt := make([]string, 0, len(to)+len(cc)+len(bcc))
	rcpt = append(append(append(rcpt, to...), cc...), bcc...)
	if err := send(conf.Host+":"+conf.Port, auth, fromAddr, rcpt, []byte(raw)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// buildMIME writes the headers and body; Bcc recipients never appear in the headers.
func buildMIME(fromName, fromAddr string, to, cc []string, subject, contentType, body string) string {
	headers := []string{
		fmt.Sprintf("From: %s <%s>", fromName, fromAddr),
	}
	if len(to) > 0 {
		headers = append(headers, "To: "+strings.Join(to, ", "))
	}
	if len(cc) > 0 {
		headers = append(headers, "Cc: "+strings.Join(cc, ", "))
	}
	headers = append(headers,
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: %s; charset=UTF-8", contentType),
	)
	return strings.Join(headers, "\r\n") + "\r\n\r\n" + body
}

func renderMessage(app string, m Message) (subject, body string) {
	c := func(k string) string {
		if v := m.Context[k]; v != "" {
			return v
		}
		return "-"
	}
	switch m.Kind {
	case Submitted:
		subject = fmt.Sprintf("[%s] New requisition - %s", app, c("requester"))
		body = fmt.Sprintf("A new requisition was submitted.\nRequester: %s\nDates: %s to %s\nNotes: %s\n",
			c("requester"), c("start"), c("end"), c("notes"))
	case Ready:
		subject = fmt.Sprintf("[%s] Equipment ready for pickup", app)
		body = fmt.Sprintf("Hello %s,\n\nYour requisition was prepared by %s and is ready for pickup.\n",
			c("requester"), c("preparedBy"))
	case Returned:
		subject = fmt.Sprintf("[%s] Equipment return confirmed", app)
		body = fmt.Sprintf("Hello %s,\n\nThe equipment was received and checked by %s.\nThank you for returning it.\n",
			c("requester"), c("receivedBy"))
	case Cancelled:
		subject = fmt.Sprintf("[%s] Requisition cancelled", app)
		body = fmt.Sprintf("Hello %s,\n\nYour requisition for %s to %s was cancelled by %s.\nReason: %s\n",
			c("requester"), c("start"), c("end"), c("cancelledBy"), c("reason"))
	default:
		subject = fmt.Sprintf("[%s] Requisition %s", app, m.Kind)
		body = fmt.Sprintf("Requisition %s changed: %s\n", m.RequisitionID, m.Kind)
	}
	return subject, body
}
