package config

import (
	"context"
	"os"
	"strconv"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// NewSMTPConfig reads the mail transport settings. Missing credentials are
// not fatal: the notice board keeps working and email delivery is skipped.
func NewSMTPConfig(log *zap.Logger) *SMTPConfig {
	cfg := &SMTPConfig{
		Host: os.Getenv("EMAIL_HOST"),
		User: os.Getenv("EMAIL_USER"),
		Pass: os.Getenv("EMAIL_PASS"),
		From: os.Getenv("EMAIL_FROM"),
	}
	if cfg.Host == "" {
		cfg.Host = "smtp.gmail.com"
	}
	cfg.Port = 587
	if p := os.Getenv("EMAIL_PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			log.Fatal("Invalid EMAIL_PORT", zap.String("value", p))
		}
		cfg.Port = port
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	if cfg.User == "" || cfg.Pass == "" {
		log.Warn("Email service not configured, email notifications will be skipped")
	}
	return cfg
}

type EmailService struct {
	config *SMTPConfig
	log    *zap.Logger
}

func NewEmailService(lc fx.Lifecycle, config *SMTPConfig, log *zap.Logger) *EmailService {
	service := &EmailService{config: config, log: log}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Email service initialized", zap.String("host", config.Host))
			return nil
		},
	})
	return service
}

// Configured reports whether SMTP credentials are present.
func (e *EmailService) Configured() bool {
	return e.config.User != "" && e.config.Pass != ""
}

func (e *EmailService) Send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", e.config.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(e.config.Host, e.config.Port, e.config.User, e.config.Pass)
	if err := d.DialAndSend(m); err != nil {
		return err
	}
	e.log.Debug("Email sent", zap.String("to", to))
	return nil
}
