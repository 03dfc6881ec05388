package services

import (
	"bytes"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"projectnest/internal/config"
)

// Mailer sends transactional email about applications.
type Mailer interface {
	SendApplicationReceived(to, applicant, projectTitle, link string)
	SendApplicationDecision(to, projectTitle string, approved bool, link string)
}

type MailService struct {
	cfg     config.MailConfig
	enabled bool
	log     *zap.Logger

	// send is smtp.SendMail; replaced in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailService(cfg config.MailConfig, log *zap.Logger) *MailService {
	enabled := cfg.Enabled()
	if !enabled {
		log.Warn("mail service disabled: missing SMTP settings")
	}
	return &MailService{cfg: cfg, enabled: enabled, log: log, send: smtp.SendMail}
}

var mailTemplates = template.Must(template.New("mail").Parse(`
{{define "received"}}<p><strong>{{.Applicant}}</strong> applied to join <strong>{{.Project}}</strong>.</p>
<p><a href="{{.Link}}">Review the application</a></p>{{end}}
{{define "decision"}}<p>Your application to <strong>{{.Project}}</strong> was {{if .Approved}}approved. Welcome aboard!{{else}}declined.{{end}}</p>
<p><a href="{{.Link}}">Open the project</a></p>{{end}}
`))

func (s *MailService) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render mail template %s: %w", name, err)
	}
	return buf.String(), nil
}

// headerValue flattens line breaks so a value cannot start a new header.
var headerValue = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func (s *MailService) message(to []string, subject, body string) []byte {
	subject = mime.QEncoding.Encode("utf-8", headerValue.Replace(subject))
	return []byte(fmt.Sprintf("To: %s\r\n"+
		"From: ProjectNest <%s>\r\n"+
		"Subject: %s\r\n"+
		"MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n%s",
		headerValue.Replace(strings.Join(to, ",")), headerValue.Replace(s.cfg.From), subject, body))
}

func (s *MailService) deliver(to []string, subject, body string) error {
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	addr := s.cfg.Host + ":" + s.cfg.Port
	return s.send(addr, auth, s.cfg.From, to, s.message(to, subject, body))
}

func (s *MailService) sendAsync(to []string, subject, body string) {
	if !s.enabled {
		return
	}
	go func() {
		if err := s.deliver(to, subject, body); err != nil {
			s.log.Error("send mail", zap.Strings("to", to), zap.Error(err))
			return
		}
		s.log.Info("mail sent", zap.Strings("to", to), zap.String("subject", subject))
	}()
}

func (s *MailService) SendApplicationReceived(to, applicant, projectTitle, link string) {
	body, err := s.render("received", map[string]string{
		"Applicant": applicant,
		"Project":   projectTitle,
		"Link":      link,
	})
	if err != nil {
		s.log.Error("render application mail", zap.Error(err))
		return
	}
	s.sendAsync([]string{to}, "New application for "+projectTitle, body)
}

func (s *MailService) SendApplicationDecision(to, projectTitle string, approved bool, link string) {
	body, err := s.render("decision", map[string]any{
		"Project":  projectTitle,
		"Approved": approved,
		"Link":     link,
	})
	if err != nil {
		s.log.Error("render decision mail", zap.Error(err))
		return
	}
	subject := "Your application to " + projectTitle + " was declined"
	if approved {
		subject = "You're in: " + projectTitle
	}
	s.sendAsync([]string{to}, subject, body)
}
