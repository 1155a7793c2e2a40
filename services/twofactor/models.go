package twofactor

import (
	"encoding/json"

	"gorm.io/gorm"
)

const (
	MethodTOTP = "totp"
	MethodSMS  = "sms"
)

type TwoFactorProfile struct {
	gorm.Model
	UserID      uint   `json:"user_id" gorm:"uniqueIndex;not null"`
	Enabled     bool   `json:"enabled" gorm:"not null;default:false"`
	Method      string `json:"method" gorm:"size:10"`
	TOTPSecret  string `json:"-"`
	BackupCodes string `json:"-"`
	SMSVerified bool   `json:"sms_verified" gorm:"not null;default:false"`
	PhoneNumber string `json:"-" gorm:"size:32"`
}

func (TwoFactorProfile) TableName() string {
	return "two_factor_profiles"
}

func (p *TwoFactorProfile) backupCodeList() []string {
	if p.BackupCodes == "" {
		return nil
	}
	var codes []string
	if err := json.Unmarshal([]byte(p.BackupCodes), &codes); err != nil {
		return nil
	}
	return codes
}

func (p *TwoFactorProfile) setBackupCodes(codes []string) error {
	if len(codes) == 0 {
		p.BackupCodes = "[]"
		return nil
	}
	encoded, err := json.Marshal(codes)
	if err != nil {
		return err
	}
	p.BackupCodes = string(encoded)
	return nil
}
