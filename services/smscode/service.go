package smscode

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/tech-arch1tect/medgate/config"
	"github.com/tech-arch1tect/medgate/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNoCodeFound     = errors.New("no active verification code found")
	ErrCodeExpired     = errors.New("verification code has expired")
	ErrTooManyAttempts = errors.New("too many verification attempts")
	ErrInvalidCode     = errors.New("invalid verification code")
	ErrResendCooldown  = errors.New("verification code requested too soon")
	ErrEntropyFailure  = errors.New("failed to read from entropy source")
)

// InvalidCodeError carries the attempts the subject has left so the caller
// can render actionable feedback. errors.Is(err, ErrInvalidCode) matches.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid verification code (%d attempts remaining)", e.Remaining)
}

func (e *InvalidCodeError) Is(target error) bool {
	return target == ErrInvalidCode
}

// CooldownError carries the seconds the subject must wait before a resend.
// errors.Is(err, ErrResendCooldown) matches.
type CooldownError struct {
	WaitSeconds int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("verification code requested too soon (wait %ds)", e.WaitSeconds)
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrResendCooldown
}

type Service struct {
	config *config.Config
	db     *gorm.DB
	logger *logging.Service
	now    func() time.Time
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Create issues a fresh code for the subject and purpose. Any previous unused
// code for the pair is deleted in the same transaction, so at most one unused
// code exists per subject at any time. A resend inside the cooldown window is
// rejected with the remaining wait time.
func (s *Service) Create(subjectKey, purpose string) (*VerificationCode, error) {
	if s.logger != nil {
		s.logger.Info("creating verification code",
			zap.String("subject_key", subjectKey),
			zap.String("purpose", purpose))
	}

	code, err := s.generateCode()
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to generate verification code",
				zap.Error(err),
				zap.String("subject_key", subjectKey))
		}
		return nil, err
	}

	now := s.now()
	record := &VerificationCode{
		SubjectKey: subjectKey,
		Purpose:    purpose,
		Code:       code,
		ExpiresAt:  now.Add(s.config.SMSCode.Expiry),
		Attempts:   0,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var latest VerificationCode
		err := tx.Unscoped().
			Where("subject_key = ? AND purpose = ?", subjectKey, purpose).
			Order("created_at DESC").
			First(&latest).Error
		if err == nil {
			age := now.Sub(latest.CreatedAt)
			if age < s.config.SMSCode.ResendCooldown {
				wait := int((s.config.SMSCode.ResendCooldown - age).Seconds())
				if wait < 1 {
					wait = 1
				}
				if s.logger != nil {
					s.logger.Warn("verification code resend inside cooldown",
						zap.String("subject_key", subjectKey),
						zap.Int("wait_seconds", wait))
				}
				return &CooldownError{WaitSeconds: wait}
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check previous verification code: %w", err)
		}

		result := tx.Unscoped().
			Where("subject_key = ? AND purpose = ? AND used = ?", subjectKey, purpose, false).
			Delete(&VerificationCode{})
		if result.Error != nil {
			return fmt.Errorf("failed to invalidate previous verification codes: %w", result.Error)
		}

		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to create verification code: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("verification code created",
			zap.String("subject_key", subjectKey),
			zap.String("purpose", purpose),
			zap.Time("expires_at", record.ExpiresAt))
	}

	return record, nil
}

// Verify runs the code through its state machine: missing, expired, or
// attempt-exhausted codes are rejected (expired and exhausted records are
// removed); a mismatch burns one attempt; a match marks the record used
// exactly once.
func (s *Service) Verify(subjectKey, purpose, presented string) error {
	if s.logger != nil {
		s.logger.Info("verifying code",
			zap.String("subject_key", subjectKey),
			zap.String("purpose", purpose))
	}

	maxAttempts := s.config.SMSCode.MaxAttempts

	return s.db.Transaction(func(tx *gorm.DB) error {
		var record VerificationCode
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("subject_key = ? AND purpose = ? AND used = ?", subjectKey, purpose, false).
			Order("created_at DESC").
			First(&record).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if s.logger != nil {
					s.logger.Warn("verification attempted with no active code",
						zap.String("subject_key", subjectKey))
				}
				return ErrNoCodeFound
			}
			return fmt.Errorf("failed to look up verification code: %w", err)
		}

		now := s.now()

		if now.After(record.ExpiresAt) {
			if err := tx.Unscoped().Delete(&record).Error; err != nil {
				return fmt.Errorf("failed to remove expired verification code: %w", err)
			}
			if s.logger != nil {
				s.logger.Warn("expired verification code attempted",
					zap.String("subject_key", subjectKey),
					zap.Time("expired_at", record.ExpiresAt))
			}
			return ErrCodeExpired
		}

		if record.Attempts >= maxAttempts {
			if err := tx.Unscoped().Delete(&record).Error; err != nil {
				return fmt.Errorf("failed to remove exhausted verification code: %w", err)
			}
			if s.logger != nil {
				s.logger.Warn("verification code attempt ceiling breached",
					zap.String("subject_key", subjectKey))
			}
			return ErrTooManyAttempts
		}

		if subtle.ConstantTimeCompare([]byte(record.Code), []byte(presented)) != 1 {
			record.Attempts++
			if record.Attempts >= maxAttempts {
				if err := tx.Unscoped().Delete(&record).Error; err != nil {
					return fmt.Errorf("failed to remove exhausted verification code: %w", err)
				}
			} else if err := tx.Save(&record).Error; err != nil {
				return fmt.Errorf("failed to record verification attempt: %w", err)
			}

			remaining := maxAttempts - record.Attempts
			if s.logger != nil {
				s.logger.Warn("invalid verification code attempted",
					zap.String("subject_key", subjectKey),
					zap.Int("attempts_remaining", remaining))
			}
			return &InvalidCodeError{Remaining: remaining}
		}

		usedAt := now
		record.Used = true
		record.UsedAt = &usedAt
		if err := tx.Save(&record).Error; err != nil {
			return fmt.Errorf("failed to mark verification code as used: %w", err)
		}

		if s.logger != nil {
			s.logger.Info("verification code accepted",
				zap.String("subject_key", subjectKey),
				zap.String("purpose", purpose))
		}

		return nil
	})
}

// CleanupExpired removes expired records. Expiry is enforced lazily on read;
// this only reclaims storage and may be run from a host-app cron.
func (s *Service) CleanupExpired() error {
	result := s.db.Unscoped().Where("expires_at < ?", s.now()).Delete(&VerificationCode{})
	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("failed to cleanup expired verification codes", zap.Error(result.Error))
		}
		return fmt.Errorf("failed to cleanup expired verification codes: %w", result.Error)
	}

	if s.logger != nil {
		s.logger.Info("expired verification codes cleaned up",
			zap.Int64("codes_removed", result.RowsAffected))
	}
	return nil
}

func (s *Service) generateCode() (string, error) {
	length := s.config.SMSCode.CodeLength
	if length < 4 || length > 10 {
		length = 6
	}

	min := int64(1)
	for i := 1; i < length; i++ {
		min *= 10
	}
	span := big.NewInt(min*10 - min)

	v, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropyFailure, err)
	}

	return fmt.Sprintf("%d", v.Int64()+min), nil
}
