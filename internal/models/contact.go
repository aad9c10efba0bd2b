package models

import "gorm.io/gorm"

// Contact represents a single entry in the phone book.
type Contact struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name       string `json:"name" validate:"required,min=3,max=50"`
	Email      string `json:"email" gorm:"type:varchar(255)" validate:"required,email"`
	Phone      string `json:"phone" gorm:"type:varchar(9)" validate:"required,len=9,numeric"`
	Favorite   bool   `json:"favorite" gorm:"default:false"`
	gorm.Model `json:"-"` // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// ContactPatch carries the optional fields of a partial contact update.
// Fields left nil are not touched; present fields are validated with the
// same rules as on create.
type ContactPatch struct {
	Name  *string `json:"name" validate:"omitempty,min=3,max=50"`
	Email *string `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone" validate:"omitempty,len=9,numeric"`
}
