package twofactor

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/tech-arch1tect/medgate/config"
	"github.com/tech-arch1tect/medgate/services/logging"
	"github.com/tech-arch1tect/medgate/services/otp"
	"github.com/tech-arch1tect/medgate/services/smscode"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTwoFactorDisabled   = errors.New("two-factor authentication is disabled")
	ErrProfileNotFound     = errors.New("two-factor profile not found")
	ErrMethodMismatch      = errors.New("two-factor method mismatch")
	ErrInvalidCode         = errors.New("invalid two-factor code")
	ErrPhoneNumberRequired = errors.New("a phone number is required for the SMS method")
	ErrSenderNotConfigured = errors.New("SMS sender is not configured")
)

// Sender delivers a message out-of-band. Failures are surfaced to the caller
// but never roll back stored state.
type Sender interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// Enrollment is the output of the first setup phase. Nothing is persisted
// until the subject confirms with a valid code.
type Enrollment struct {
	Secret          string
	BackupCodes     []string
	ProvisioningURI string
}

// LoginResult reports how a login attempt passed its second factor.
type LoginResult struct {
	UsedBackupCode       bool
	BackupCodesRemaining int
}

type Service struct {
	config   *config.Config
	db       *gorm.DB
	smsCodes *smscode.Service
	sender   Sender
	logger   *logging.Service
	now      func() time.Time
}

func NewService(cfg *config.Config, db *gorm.DB, smsCodes *smscode.Service, logger *logging.Service) *Service {
	return &Service{
		config:   cfg,
		db:       db,
		smsCodes: smsCodes,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) SetSender(sender Sender) {
	s.sender = sender
}

// BeginTOTPSetup generates a fresh secret and backup-code batch. Setup is
// two-phase: an abandoned enrollment leaves no trace in the store.
func (s *Service) BeginTOTPSetup(accountName string) (*Enrollment, error) {
	if !s.config.TwoFactor.Enabled {
		return nil, ErrTwoFactorDisabled
	}

	secret, err := otp.GenerateSecret()
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to generate TOTP secret", zap.Error(err))
		}
		return nil, err
	}

	backupCodes, err := otp.GenerateBackupCodes(s.config.TwoFactor.BackupCodeCount)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to generate backup codes", zap.Error(err))
		}
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("TOTP enrollment generated",
			zap.String("account_name", accountName),
			zap.Int("backup_codes", len(backupCodes)))
	}

	return &Enrollment{
		Secret:          secret,
		BackupCodes:     backupCodes,
		ProvisioningURI: otp.ProvisioningURI(s.issuer(), accountName, secret),
	}, nil
}

// ConfirmTOTPSetup verifies the subject's first code against the enrollment
// secret and, only on success, writes the profile in one transaction.
func (s *Service) ConfirmTOTPSetup(userID uint, secret, code string, backupCodes []string) error {
	if !s.config.TwoFactor.Enabled {
		return ErrTwoFactorDisabled
	}

	if !otp.Verify(secret, code, uint64(s.now().Unix())) {
		if s.logger != nil {
			s.logger.Warn("TOTP setup confirmation failed - invalid code",
				zap.Uint("user_id", userID))
		}
		return ErrInvalidCode
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		profile, err := s.findOrInitProfile(tx, userID)
		if err != nil {
			return err
		}

		profile.Enabled = true
		profile.Method = MethodTOTP
		profile.TOTPSecret = secret
		profile.SMSVerified = false
		if err := profile.setBackupCodes(backupCodes); err != nil {
			return fmt.Errorf("failed to encode backup codes: %w", err)
		}

		if err := tx.Save(profile).Error; err != nil {
			return fmt.Errorf("failed to store two-factor profile: %w", err)
		}
		return nil
	})
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to confirm TOTP setup",
				zap.Error(err),
				zap.Uint("user_id", userID))
		}
		return err
	}

	if s.logger != nil {
		s.logger.Info("TOTP setup confirmed",
			zap.Uint("user_id", userID))
	}
	return nil
}

// VerifyLogin answers whether a login attempt passes its second factor. The
// profile read here only dispatches on the method; each branch re-reads the
// profile under a row lock before mutating it.
func (s *Service) VerifyLogin(userID uint, code string) (*LoginResult, error) {
	if !s.config.TwoFactor.Enabled {
		return nil, ErrTwoFactorDisabled
	}

	var profile TwoFactorProfile
	if err := s.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to load two-factor profile: %w", err)
	}

	switch profile.Method {
	case MethodTOTP:
		return s.verifyTOTPLogin(userID, code)
	case MethodSMS:
		return s.verifySMSLogin(userID, code)
	default:
		return nil, ErrMethodMismatch
	}
}

// verifyTOTPLogin checks the current TOTP code and falls back to backup-code
// consumption. The profile is re-read FOR UPDATE inside the transaction that
// removes the consumed code, so two concurrent attempts cannot both spend it.
func (s *Service) verifyTOTPLogin(userID uint, code string) (*LoginResult, error) {
	var result LoginResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var profile TwoFactorProfile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProfileNotFound
			}
			return fmt.Errorf("failed to load two-factor profile: %w", err)
		}

		if otp.Verify(profile.TOTPSecret, code, uint64(s.now().Unix())) {
			result.BackupCodesRemaining = len(profile.backupCodeList())
			return nil
		}

		matched, remaining := consumeBackupCode(profile.backupCodeList(), code)
		if !matched {
			if s.logger != nil {
				s.logger.Warn("login verification failed - invalid code",
					zap.Uint("user_id", userID))
			}
			return ErrInvalidCode
		}

		if err := profile.setBackupCodes(remaining); err != nil {
			return fmt.Errorf("failed to encode backup codes: %w", err)
		}
		if err := tx.Save(&profile).Error; err != nil {
			return fmt.Errorf("failed to persist backup code consumption: %w", err)
		}

		result.UsedBackupCode = true
		result.BackupCodesRemaining = len(remaining)
		if s.logger != nil {
			s.logger.Info("backup code consumed",
				zap.Uint("user_id", userID),
				zap.Int("backup_codes_remaining", len(remaining)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("login verification passed",
			zap.Uint("user_id", userID),
			zap.Bool("used_backup_code", result.UsedBackupCode))
	}
	return &result, nil
}

// verifySMSLogin delegates to the code lifecycle, which commits its own
// transaction so a burned attempt (or a consumed code) stays durable
// regardless of what happens to the profile afterwards. Only then is the
// profile updated, under its own row lock.
func (s *Service) verifySMSLogin(userID uint, code string) (*LoginResult, error) {
	if err := s.smsCodes.Verify(subjectKey(userID), smscode.PurposeSMS2FA, code); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var profile TwoFactorProfile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProfileNotFound
			}
			return fmt.Errorf("failed to load two-factor profile: %w", err)
		}

		// The first successful verification completes SMS setup.
		if !profile.SMSVerified || !profile.Enabled {
			profile.SMSVerified = true
			profile.Enabled = true
			if err := tx.Save(&profile).Error; err != nil {
				return fmt.Errorf("failed to mark SMS method verified: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("login verification passed",
			zap.Uint("user_id", userID),
			zap.Bool("used_backup_code", false))
	}
	return &LoginResult{}, nil
}

// EnableSMSMethod switches the profile to the SMS method. The phone number is
// an external precondition; without one no code is ever issued. The method
// stays unverified (and the profile disabled) until the first successful
// VerifyLogin.
func (s *Service) EnableSMSMethod(userID uint, phoneNumber string) error {
	if !s.config.TwoFactor.Enabled {
		return ErrTwoFactorDisabled
	}

	if phoneNumber == "" {
		if s.logger != nil {
			s.logger.Warn("SMS method enable attempted without a phone number",
				zap.Uint("user_id", userID))
		}
		return ErrPhoneNumberRequired
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		profile, err := s.findOrInitProfile(tx, userID)
		if err != nil {
			return err
		}

		profile.Method = MethodSMS
		profile.Enabled = false
		profile.SMSVerified = false
		profile.PhoneNumber = phoneNumber
		profile.TOTPSecret = ""
		profile.BackupCodes = ""

		if err := tx.Save(profile).Error; err != nil {
			return fmt.Errorf("failed to store two-factor profile: %w", err)
		}
		return nil
	})
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to enable SMS method",
				zap.Error(err),
				zap.Uint("user_id", userID))
		}
		return err
	}

	if s.logger != nil {
		s.logger.Info("SMS method enabled, awaiting verification",
			zap.Uint("user_id", userID))
	}
	return nil
}

// RequestSMSCode issues a fresh code for an SMS profile and hands it to the
// configured sender. The code record is written before the send attempt and
// is not rolled back on send failure (at-least-once delivery).
func (s *Service) RequestSMSCode(ctx context.Context, userID uint) error {
	if !s.config.TwoFactor.Enabled {
		return ErrTwoFactorDisabled
	}

	var profile TwoFactorProfile
	if err := s.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("failed to load two-factor profile: %w", err)
	}

	if profile.Method != MethodSMS {
		return ErrMethodMismatch
	}
	if profile.PhoneNumber == "" {
		return ErrPhoneNumberRequired
	}
	if s.sender == nil {
		return ErrSenderNotConfigured
	}

	record, err := s.smsCodes.Create(subjectKey(userID), smscode.PurposeSMS2FA)
	if err != nil {
		return err
	}

	message := fmt.Sprintf("Your %s verification code is %s. It expires in %d minutes.",
		s.issuer(), record.Code, int(s.config.SMSCode.Expiry.Minutes()))

	if err := s.sender.Send(ctx, profile.PhoneNumber, message); err != nil {
		if s.logger != nil {
			s.logger.Error("failed to send verification SMS",
				zap.Error(err),
				zap.Uint("user_id", userID))
		}
		return fmt.Errorf("failed to send verification SMS: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("verification SMS sent",
			zap.Uint("user_id", userID))
	}
	return nil
}

// Disable clears the whole profile in one write.
func (s *Service) Disable(userID uint) error {
	if !s.config.TwoFactor.Enabled {
		return ErrTwoFactorDisabled
	}

	result := s.db.Unscoped().Where("user_id = ?", userID).Delete(&TwoFactorProfile{})
	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("failed to disable two-factor authentication",
				zap.Error(result.Error),
				zap.Uint("user_id", userID))
		}
		return fmt.Errorf("failed to disable two-factor authentication: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrProfileNotFound
	}

	if s.logger != nil {
		s.logger.Info("two-factor authentication disabled",
			zap.Uint("user_id", userID))
	}
	return nil
}

// IsEnabled reports whether the subject has a fully set up second factor.
func (s *Service) IsEnabled(userID uint) bool {
	if !s.config.TwoFactor.Enabled {
		return false
	}

	var profile TwoFactorProfile
	if err := s.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return false
	}
	return profile.Enabled
}

// BackupCodesRemaining reports how many backup codes the subject has left.
// Zero is informational, not an error; regeneration is unsupported.
func (s *Service) BackupCodesRemaining(userID uint) (int, error) {
	var profile TwoFactorProfile
	if err := s.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrProfileNotFound
		}
		return 0, fmt.Errorf("failed to load two-factor profile: %w", err)
	}
	return len(profile.backupCodeList()), nil
}

func (s *Service) findOrInitProfile(tx *gorm.DB, userID uint) (*TwoFactorProfile, error) {
	var profile TwoFactorProfile
	err := tx.Where("user_id = ?", userID).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load two-factor profile: %w", err)
	}
	return &TwoFactorProfile{UserID: userID}, nil
}

func (s *Service) issuer() string {
	if s.config.TwoFactor.Issuer != "" {
		return s.config.TwoFactor.Issuer
	}
	if s.config.App.Name != "" {
		return s.config.App.Name
	}
	return "medgate"
}

// consumeBackupCode matches the presented code against the remaining set and
// removes exactly the matched one. The scan is constant-time over the whole
// set regardless of where (or whether) a match occurs.
func consumeBackupCode(codes []string, presented string) (bool, []string) {
	matched := -1
	for i, code := range codes {
		if subtle.ConstantTimeCompare([]byte(code), []byte(presented)) == 1 && matched == -1 {
			matched = i
		}
	}

	if matched == -1 {
		return false, codes
	}

	remaining := make([]string, 0, len(codes)-1)
	remaining = append(remaining, codes[:matched]...)
	remaining = append(remaining, codes[matched+1:]...)
	return true, remaining
}

func subjectKey(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}
