package smscode

import (
	"time"

	"gorm.io/gorm"
)

const (
	PurposeSMS2FA            = "sms_2fa"
	PurposeEmailVerification = "email_verification"
	PurposePasswordReset     = "password_reset"
)

type VerificationCode struct {
	gorm.Model
	SubjectKey string     `json:"subject_key" gorm:"index:idx_subject_purpose,priority:1;not null"`
	Purpose    string     `json:"purpose" gorm:"index:idx_subject_purpose,priority:2;size:32;not null"`
	Code       string     `json:"-" gorm:"size:12;not null"`
	ExpiresAt  time.Time  `json:"expires_at" gorm:"not null"`
	Used       bool       `json:"used" gorm:"not null;default:false"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	Attempts   int        `json:"attempts" gorm:"not null;default:0"`
}

func (VerificationCode) TableName() string {
	return "verification_codes"
}
