package handlers

import (
	"errors"
	"log"

	"phonebook/internal/models"
	"phonebook/internal/repositories"
	"phonebook/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ContactHandler handles HTTP requests for contacts.
type ContactHandler struct {
	service  *services.ContactService
	validate *validator.Validate
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(service *services.ContactService) *ContactHandler {
	return &ContactHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the contact routes with the Fiber app.
func (h *ContactHandler) RegisterRoutes(router fiber.Router) {
	contactRoutes := router.Group("/contacts")
	contactRoutes.Get("/", h.HandleGetContacts)
	contactRoutes.Get("/:id", h.HandleGetContactByID)
	contactRoutes.Post("/", h.HandleCreateContact)
	contactRoutes.Put("/:id", h.HandleUpdateContact)
	contactRoutes.Delete("/:id", h.HandleDeleteContact)
	contactRoutes.Patch("/:id/favorite", h.HandleUpdateFavorite)
}

// HandleGetContacts retrieves all contacts.
func (h *ContactHandler) HandleGetContacts(c *fiber.Ctx) error {
	contacts, err := h.service.GetAllContacts()
	if err != nil {
		log.Printf("Error getting all contacts: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}
	return c.JSON(contacts)
}

// HandleGetContactByID retrieves a single contact by its ID.
func (h *ContactHandler) HandleGetContactByID(c *fiber.Ctx) error {
	id := c.Params("id")
	contact, err := h.service.GetContactByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Not found",
			})
		}
		log.Printf("Error getting contact by ID %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}
	return c.JSON(contact)
}

// HandleCreateContact creates a new contact.
func (h *ContactHandler) HandleCreateContact(c *fiber.Ctx) error {
	var contact models.Contact
	if err := c.BodyParser(&contact); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if contact.Name == "" || contact.Email == "" || contact.Phone == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Missing required fields",
		})
	}
	if err := h.validate.Struct(contact); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationMessages(err),
		})
	}

	if err := h.service.CreateContact(&contact); err != nil {
		log.Printf("Error creating contact: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(contact)
}

// HandleUpdateContact applies a partial patch to an existing contact.
func (h *ContactHandler) HandleUpdateContact(c *fiber.Ctx) error {
	id := c.Params("id")

	var patch models.ContactPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid input data",
			"errors":  validationMessages(err),
		})
	}

	contact, err := h.service.UpdateContact(id, patch)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Not found",
			})
		}
		log.Printf("Error updating contact %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}
	return c.JSON(contact)
}

// HandleDeleteContact deletes a contact by its ID.
func (h *ContactHandler) HandleDeleteContact(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.DeleteContact(id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Not found",
			})
		}
		log.Printf("Error deleting contact %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}
	return c.JSON(fiber.Map{
		"message": "Contact deleted",
	})
}

// FavoriteRequest is the request body for the favorite toggle. The pointer
// distinguishes a missing field from an explicit false.
type FavoriteRequest struct {
	Favorite *bool `json:"favorite"`
}

// HandleUpdateFavorite sets the favorite flag of a contact.
func (h *ContactHandler) HandleUpdateFavorite(c *fiber.Ctx) error {
	id := c.Params("id")

	var req FavoriteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if req.Favorite == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Missing field favorite",
		})
	}

	contact, err := h.service.UpdateFavorite(id, *req.Favorite)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Not found",
			})
		}
		log.Printf("Error updating favorite for contact %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}
	return c.JSON(contact)
}
