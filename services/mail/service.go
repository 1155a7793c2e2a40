package mail

import (
	"fmt"
	"time"

	"github.com/tech-arch1tect/medgate/config"
	"github.com/tech-arch1tect/medgate/services/logging"
	"github.com/tech-arch1tect/medgate/services/smscode"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// MailClient is the subset of *mail.Client the service needs. Tests
// substitute a mock so no SMTP connection is attempted.
type MailClient interface {
	DialAndSend(messages ...*mail.Msg) error
}

type Service struct {
	config *config.MailConfig
	client MailClient
	logger *logging.Service
}

func NewService(cfg *config.MailConfig, logger *logging.Service) (*Service, error) {
	if logger != nil {
		logger.Info("initializing mail service",
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.String("encryption", cfg.Encryption),
			zap.String("from_address", cfg.FromAddress))
	}

	if cfg.FromAddress == "" {
		if logger != nil {
			logger.Error("mail service initialization failed: FROM_ADDRESS is required")
		}
		return nil, fmt.Errorf("MEDGATE_MAIL_FROM_ADDRESS is required")
	}

	clientOpts := []mail.Option{
		mail.WithPort(cfg.Port),
	}

	switch cfg.Encryption {
	case "tls", "starttls":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	case "ssl":
		clientOpts = append(clientOpts, mail.WithSSL())
	case "none":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	if cfg.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username))
	}
	if cfg.Password != "" {
		clientOpts = append(clientOpts, mail.WithPassword(cfg.Password))
	}

	client, err := mail.NewClient(cfg.Host, clientOpts...)
	if err != nil {
		if logger != nil {
			logger.Error("failed to create mail client",
				zap.Error(err),
				zap.String("host", cfg.Host),
				zap.Int("port", cfg.Port))
		}
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return NewServiceWithClient(cfg, logger, client)
}

func NewServiceWithClient(cfg *config.MailConfig, logger *logging.Service, client MailClient) (*Service, error) {
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("MEDGATE_MAIL_FROM_ADDRESS is required")
	}

	return &Service{
		config: cfg,
		client: client,
		logger: logger,
	}, nil
}

func (s *Service) NewMessage() *mail.Msg {
	message := mail.NewMsg()

	fromAddr := s.config.FromAddress
	if s.config.FromName != "" {
		fromAddr = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromAddress)
	}

	if err := message.From(fromAddr); err != nil {
		panic(fmt.Sprintf("failed to set FROM address: %s", err))
	}

	return message
}

func (s *Service) Send(message *mail.Msg) error {
	startTime := time.Now()
	err := s.client.DialAndSend(message)
	duration := time.Since(startTime)

	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to send email",
				zap.Error(err),
				zap.Duration("attempt_duration", duration))
		}
		return err
	}

	if s.logger != nil {
		s.logger.Info("email sent successfully",
			zap.Duration("send_duration", duration))
	}
	return nil
}

// SendVerificationCode delivers an email-channel verification code. The
// subject and wording depend on the purpose the code was issued for.
func (s *Service) SendVerificationCode(to, purpose, code string, expiry time.Duration) error {
	message := s.NewMessage()

	if err := message.To(to); err != nil {
		if s.logger != nil {
			s.logger.Error("failed to set TO address",
				zap.Error(err),
				zap.String("recipient", to))
		}
		return fmt.Errorf("failed to set TO address: %w", err)
	}

	minutes := int(expiry.Minutes())
	appName := s.config.FromName
	if appName == "" {
		appName = s.config.FromAddress
	}

	var subject, body string
	switch purpose {
	case smscode.PurposePasswordReset:
		subject = fmt.Sprintf("%s password reset code", appName)
		body = fmt.Sprintf("Your password reset code is %s. It expires in %d minutes.\n\nIf you did not request a password reset, you can ignore this email.", code, minutes)
	case smscode.PurposeEmailVerification:
		subject = fmt.Sprintf("%s email verification code", appName)
		body = fmt.Sprintf("Your email verification code is %s. It expires in %d minutes.", code, minutes)
	default:
		subject = fmt.Sprintf("%s verification code", appName)
		body = fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes)
	}

	message.Subject(subject)
	message.SetBodyString(mail.TypeTextPlain, body)

	if s.logger != nil {
		s.logger.Info("sending verification code email",
			zap.String("recipient", to),
			zap.String("purpose", purpose))
	}

	return s.Send(message)
}
