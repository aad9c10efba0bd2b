package repositories

import "phonebook/internal/models"

// ContactRepository defines the interface for contact data access.
type ContactRepository interface {
	GetAll() ([]models.Contact, error)
	GetByID(id string) (*models.Contact, error)
	Create(contact *models.Contact) error
	Update(contact *models.Contact) error
	Delete(id string) error
}
