package models

import "gorm.io/gorm"

// Subscription tiers a user account can be on.
const (
	SubscriptionStarter  = "starter"
	SubscriptionPro      = "pro"
	SubscriptionBusiness = "business"
)

// User represents a registered account.
type User struct {
	ID           string  `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Email        string  `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password     string  `json:"-" gorm:"type:varchar(255)" validate:"required,min=6"` // bcrypt digest, never serialized
	Subscription string  `json:"subscription" gorm:"type:varchar(20);default:starter" validate:"omitempty,oneof=starter pro business"`
	Token        *string `json:"-" gorm:"type:varchar(512)"` // last issued bearer token, cleared on logout
	AvatarURL    *string `json:"avatarURL,omitempty" gorm:"type:varchar(255)"`
	Verify       bool    `json:"verify" gorm:"default:false"`
	// VerificationToken is set at signup, replaced on resend, and nulled once
	// the address is confirmed. Verify=true implies VerificationToken=nil.
	VerificationToken *string `json:"-" gorm:"index;type:varchar(36)"`
	gorm.Model        `json:"-"` // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// PublicUser is the outward-facing projection of a User. Password hash,
// bearer token and verification token never leave through it.
type PublicUser struct {
	Email        string `json:"email"`
	Subscription string `json:"subscription"`
}

// Public returns the projection of the user that handlers may echo back.
func (u *User) Public() PublicUser {
	return PublicUser{
		Email:        u.Email,
		Subscription: u.Subscription,
	}
}
