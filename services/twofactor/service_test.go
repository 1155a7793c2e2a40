package twofactor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/medgate/services/otp"
	"github.com/tech-arch1tect/medgate/services/smscode"
	"github.com/tech-arch1tect/medgate/testutils"
)

type fakeSender struct {
	to      string
	message string
	err     error
	calls   int
}

func (f *fakeSender) Send(_ context.Context, phoneNumber, message string) error {
	f.calls++
	f.to = phoneNumber
	f.message = message
	return f.err
}

func newTestService(t *testing.T) (*Service, *smscode.Service) {
	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t, &TwoFactorProfile{}, &smscode.VerificationCode{})
	smsCodes := smscode.NewService(cfg, db, nil)
	return NewService(cfg, db, smsCodes, nil), smsCodes
}

func TestService_BeginTOTPSetup(t *testing.T) {
	service, _ := newTestService(t)

	enrollment, err := service.BeginTOTPSetup("pat@example.com")

	require.NoError(t, err)
	assert.Len(t, enrollment.Secret, 32)
	assert.Len(t, enrollment.BackupCodes, 10)
	assert.Contains(t, enrollment.ProvisioningURI, "otpauth://totp/")
	assert.Contains(t, enrollment.ProvisioningURI, enrollment.Secret)

	// Two-phase setup: nothing is persisted until confirmation.
	var count int64
	err = service.db.Model(&TwoFactorProfile{}).Count(&count).Error
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestService_BeginTOTPSetup_Disabled(t *testing.T) {
	service, _ := newTestService(t)
	service.config.TwoFactor.Enabled = false

	_, err := service.BeginTOTPSetup("pat@example.com")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTwoFactorDisabled)
}

func TestService_ConfirmTOTPSetup(t *testing.T) {
	t.Run("invalid code persists nothing", func(t *testing.T) {
		service, _ := newTestService(t)

		enrollment, err := service.BeginTOTPSetup("pat@example.com")
		require.NoError(t, err)

		err = service.ConfirmTOTPSetup(1, enrollment.Secret, "000000", enrollment.BackupCodes)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidCode)

		var count int64
		err = service.db.Model(&TwoFactorProfile{}).Count(&count).Error
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("valid code enables the profile", func(t *testing.T) {
		service, _ := newTestService(t)

		enrollment, err := service.BeginTOTPSetup("pat@example.com")
		require.NoError(t, err)

		code, err := otp.Code(enrollment.Secret, otp.TimeCounter(uint64(time.Now().Unix())))
		require.NoError(t, err)

		err = service.ConfirmTOTPSetup(1, enrollment.Secret, code, enrollment.BackupCodes)
		require.NoError(t, err)

		var profile TwoFactorProfile
		err = service.db.Where("user_id = ?", uint(1)).First(&profile).Error
		require.NoError(t, err)
		assert.True(t, profile.Enabled)
		assert.Equal(t, MethodTOTP, profile.Method)
		assert.Equal(t, enrollment.Secret, profile.TOTPSecret)
		assert.Len(t, profile.backupCodeList(), 10)
		assert.True(t, service.IsEnabled(1))
	})
}

func TestService_VerifyLogin_TOTP(t *testing.T) {
	setup := func(t *testing.T) (*Service, *Enrollment) {
		service, _ := newTestService(t)

		enrollment, err := service.BeginTOTPSetup("pat@example.com")
		require.NoError(t, err)

		code, err := otp.Code(enrollment.Secret, otp.TimeCounter(uint64(time.Now().Unix())))
		require.NoError(t, err)
		require.NoError(t, service.ConfirmTOTPSetup(1, enrollment.Secret, code, enrollment.BackupCodes))

		return service, enrollment
	}

	t.Run("current code passes", func(t *testing.T) {
		service, enrollment := setup(t)

		code, err := otp.Code(enrollment.Secret, otp.TimeCounter(uint64(time.Now().Unix())))
		require.NoError(t, err)

		result, err := service.VerifyLogin(1, code)
		require.NoError(t, err)
		assert.False(t, result.UsedBackupCode)
		assert.Equal(t, 10, result.BackupCodesRemaining)
	})

	t.Run("backup code is consumed exactly once", func(t *testing.T) {
		service, enrollment := setup(t)

		result, err := service.VerifyLogin(1, enrollment.BackupCodes[3])
		require.NoError(t, err)
		assert.True(t, result.UsedBackupCode)
		assert.Equal(t, 9, result.BackupCodesRemaining)

		remaining, err := service.BackupCodesRemaining(1)
		require.NoError(t, err)
		assert.Equal(t, 9, remaining)

		// A consumed code never works again.
		_, err = service.VerifyLogin(1, enrollment.BackupCodes[3])
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidCode)

		// The other codes are untouched.
		result, err = service.VerifyLogin(1, enrollment.BackupCodes[4])
		require.NoError(t, err)
		assert.True(t, result.UsedBackupCode)
		assert.Equal(t, 8, result.BackupCodesRemaining)
	})

	t.Run("garbage code is rejected", func(t *testing.T) {
		service, _ := setup(t)

		_, err := service.VerifyLogin(1, "00000000")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("unknown subject", func(t *testing.T) {
		service, _ := setup(t)

		_, err := service.VerifyLogin(42, "123456")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProfileNotFound)
	})
}

func TestService_VerifyLogin_FixedClock(t *testing.T) {
	service, _ := newTestService(t)

	base := time.Unix(1700000000, 0)
	service.now = func() time.Time { return base }

	enrollment, err := service.BeginTOTPSetup("pat@example.com")
	require.NoError(t, err)

	code, err := otp.Code(enrollment.Secret, otp.TimeCounter(uint64(base.Unix())))
	require.NoError(t, err)
	require.NoError(t, service.ConfirmTOTPSetup(1, enrollment.Secret, code, enrollment.BackupCodes))

	t.Run("same code shortly after", func(t *testing.T) {
		service.now = func() time.Time { return base.Add(15 * time.Second) }

		result, err := service.VerifyLogin(1, code)
		require.NoError(t, err)
		assert.False(t, result.UsedBackupCode)
	})

	t.Run("stale code is rejected", func(t *testing.T) {
		service.now = func() time.Time { return base.Add(95 * time.Second) }

		_, err := service.VerifyLogin(1, code)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidCode)
	})
}

func TestService_EnableSMSMethod(t *testing.T) {
	t.Run("requires a phone number", func(t *testing.T) {
		service, _ := newTestService(t)

		err := service.EnableSMSMethod(1, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPhoneNumberRequired)

		// No code may ever be issued for the failed enable.
		var count int64
		err = service.db.Model(&TwoFactorProfile{}).Count(&count).Error
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("stays unverified until the first successful code", func(t *testing.T) {
		service, _ := newTestService(t)

		err := service.EnableSMSMethod(1, "+447700900123")
		require.NoError(t, err)

		var profile TwoFactorProfile
		err = service.db.Where("user_id = ?", uint(1)).First(&profile).Error
		require.NoError(t, err)
		assert.Equal(t, MethodSMS, profile.Method)
		assert.False(t, profile.SMSVerified)
		assert.False(t, profile.Enabled)
	})

	t.Run("clears any previous TOTP material", func(t *testing.T) {
		service, _ := newTestService(t)

		enrollment, err := service.BeginTOTPSetup("pat@example.com")
		require.NoError(t, err)
		code, err := otp.Code(enrollment.Secret, otp.TimeCounter(uint64(time.Now().Unix())))
		require.NoError(t, err)
		require.NoError(t, service.ConfirmTOTPSetup(1, enrollment.Secret, code, enrollment.BackupCodes))

		require.NoError(t, service.EnableSMSMethod(1, "+447700900123"))

		var profile TwoFactorProfile
		err = service.db.Where("user_id = ?", uint(1)).First(&profile).Error
		require.NoError(t, err)
		assert.Empty(t, profile.TOTPSecret)
		assert.Empty(t, profile.backupCodeList())
	})
}

func TestService_SMSFlow(t *testing.T) {
	service, _ := newTestService(t)
	sender := &fakeSender{}
	service.SetSender(sender)

	require.NoError(t, service.EnableSMSMethod(1, "+447700900123"))
	require.NoError(t, service.RequestSMSCode(context.Background(), 1))

	assert.Equal(t, "+447700900123", sender.to)
	assert.Contains(t, sender.message, "verification code")

	var record smscode.VerificationCode
	err := service.db.Where("subject_key = ?", "user:1").First(&record).Error
	require.NoError(t, err)
	assert.Contains(t, sender.message, record.Code)

	result, err := service.VerifyLogin(1, record.Code)
	require.NoError(t, err)
	assert.False(t, result.UsedBackupCode)

	var profile TwoFactorProfile
	err = service.db.Where("user_id = ?", uint(1)).First(&profile).Error
	require.NoError(t, err)
	assert.True(t, profile.SMSVerified)
	assert.True(t, profile.Enabled)

	// The code was single-use.
	_, err = service.VerifyLogin(1, record.Code)
	require.Error(t, err)
	assert.ErrorIs(t, err, smscode.ErrNoCodeFound)
}

func TestService_VerifyLogin_SMSWrongCode(t *testing.T) {
	service, smsCodes := newTestService(t)

	require.NoError(t, service.EnableSMSMethod(1, "+447700900123"))

	record, err := smsCodes.Create("user:1", smscode.PurposeSMS2FA)
	require.NoError(t, err)

	wrong := "000000"
	if record.Code == wrong {
		wrong = "111111"
	}

	_, err = service.VerifyLogin(1, wrong)
	require.Error(t, err)
	assert.ErrorIs(t, err, smscode.ErrInvalidCode)

	// The burned attempt is durable even though the login failed.
	var stored smscode.VerificationCode
	err = service.db.Where("subject_key = ?", "user:1").First(&stored).Error
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Attempts)

	var profile TwoFactorProfile
	err = service.db.Where("user_id = ?", uint(1)).First(&profile).Error
	require.NoError(t, err)
	assert.False(t, profile.SMSVerified)
	assert.False(t, profile.Enabled)

	// The correct code still completes setup afterwards.
	result, err := service.VerifyLogin(1, record.Code)
	require.NoError(t, err)
	assert.False(t, result.UsedBackupCode)

	err = service.db.Where("user_id = ?", uint(1)).First(&profile).Error
	require.NoError(t, err)
	assert.True(t, profile.SMSVerified)
	assert.True(t, profile.Enabled)
}

func TestService_RequestSMSCode(t *testing.T) {
	t.Run("method mismatch for TOTP profiles", func(t *testing.T) {
		service, _ := newTestService(t)
		service.SetSender(&fakeSender{})

		enrollment, err := service.BeginTOTPSetup("pat@example.com")
		require.NoError(t, err)
		code, err := otp.Code(enrollment.Secret, otp.TimeCounter(uint64(time.Now().Unix())))
		require.NoError(t, err)
		require.NoError(t, service.ConfirmTOTPSetup(1, enrollment.Secret, code, enrollment.BackupCodes))

		err = service.RequestSMSCode(context.Background(), 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMethodMismatch)
	})

	t.Run("send failure keeps the stored code", func(t *testing.T) {
		service, _ := newTestService(t)
		sender := &fakeSender{err: errors.New("gateway unreachable")}
		service.SetSender(sender)

		require.NoError(t, service.EnableSMSMethod(1, "+447700900123"))

		err := service.RequestSMSCode(context.Background(), 1)
		require.Error(t, err)

		// At-least-once: the record survives the failed send and is
		// still verifiable once the code reaches the subject.
		var record smscode.VerificationCode
		err = service.db.Where("subject_key = ?", "user:1").First(&record).Error
		require.NoError(t, err)

		_, err = service.VerifyLogin(1, record.Code)
		require.NoError(t, err)
	})

	t.Run("sender not configured", func(t *testing.T) {
		service, _ := newTestService(t)

		require.NoError(t, service.EnableSMSMethod(1, "+447700900123"))

		err := service.RequestSMSCode(context.Background(), 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSenderNotConfigured)
	})
}

func TestService_Disable(t *testing.T) {
	service, _ := newTestService(t)

	enrollment, err := service.BeginTOTPSetup("pat@example.com")
	require.NoError(t, err)
	code, err := otp.Code(enrollment.Secret, otp.TimeCounter(uint64(time.Now().Unix())))
	require.NoError(t, err)
	require.NoError(t, service.ConfirmTOTPSetup(1, enrollment.Secret, code, enrollment.BackupCodes))
	require.True(t, service.IsEnabled(1))

	err = service.Disable(1)
	require.NoError(t, err)
	assert.False(t, service.IsEnabled(1))

	var count int64
	err = service.db.Unscoped().Model(&TwoFactorProfile{}).Where("user_id = ?", uint(1)).Count(&count).Error
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	err = service.Disable(1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestConsumeBackupCode(t *testing.T) {
	codes := []string{"11111111", "22222222", "33333333"}

	matched, remaining := consumeBackupCode(codes, "22222222")
	assert.True(t, matched)
	assert.Equal(t, []string{"11111111", "33333333"}, remaining)

	matched, unchanged := consumeBackupCode(remaining, "22222222")
	assert.False(t, matched)
	assert.Equal(t, remaining, unchanged)

	// Exhaustion is informational, not an error.
	matched, empty := consumeBackupCode(nil, "11111111")
	assert.False(t, matched)
	assert.Empty(t, empty)
}
