package services

import (
	"phonebook/internal/models"
	"phonebook/internal/repositories"
)

// ContactService handles business logic related to contacts.
type ContactService struct {
	repo repositories.ContactRepository
}

// NewContactService creates a new ContactService.
func NewContactService(repo repositories.ContactRepository) *ContactService {
	return &ContactService{
		repo: repo,
	}
}

// GetAllContacts retrieves all contacts.
func (s *ContactService) GetAllContacts() ([]models.Contact, error) {
	return s.repo.GetAll()
}

// GetContactByID retrieves a single contact by its ID.
func (s *ContactService) GetContactByID(id string) (*models.Contact, error) {
	return s.repo.GetByID(id)
}

// CreateContact creates a new contact.
func (s *ContactService) CreateContact(contact *models.Contact) error {
	return s.repo.Create(contact)
}

// UpdateContact applies a partial patch to an existing contact and returns
// the updated record. Nil patch fields leave the stored value untouched.
func (s *ContactService) UpdateContact(id string, patch models.ContactPatch) (*models.Contact, error) {
	contact, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		contact.Name = *patch.Name
	}
	if patch.Email != nil {
		contact.Email = *patch.Email
	}
	if patch.Phone != nil {
		contact.Phone = *patch.Phone
	}

	if err := s.repo.Update(contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// UpdateFavorite flips the favorite flag of an existing contact.
func (s *ContactService) UpdateFavorite(id string, favorite bool) (*models.Contact, error) {
	contact, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	contact.Favorite = favorite
	if err := s.repo.Update(contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// DeleteContact deletes a contact by its ID.
func (s *ContactService) DeleteContact(id string) error {
	return s.repo.Delete(id)
}
