package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"phonebook/internal/handlers"
	"phonebook/internal/middleware"
	"phonebook/internal/models"
	"phonebook/internal/repositories"
	"phonebook/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testJWTSecret = "test_jwt_secret"

var dbCounter int64

// recordingNotifier captures the verification tokens handed to it so tests
// can follow the emailed link.
type recordingNotifier struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{tokens: make(map[string]string)}
}

func (n *recordingNotifier) NotifyVerification(email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens[email] = token
	return nil
}

// waitToken polls for the token dispatched to email; Signup notifies from a
// goroutine, so the first read can race the request returning.
func (n *recordingNotifier) waitToken(t *testing.T, email string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n.mu.Lock()
		token, ok := n.tokens[email]
		n.mu.Unlock()
		if ok {
			return token
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no verification token recorded for %s", email)
	return ""
}

// setupApp builds the full Fiber app over a fresh in-memory SQLite database,
// mirroring the wiring in main.NewApp.
func setupApp(t *testing.T) (*fiber.App, *recordingNotifier) {
	t.Helper()

	dsn := fmt.Sprintf("file:handlers_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Contact{}); err != nil {
		t.Fatalf("failed to auto-migrate: %v", err)
	}

	userRepo := repositories.NewGORMUserRepository(db)
	contactRepo := repositories.NewGORMContactRepository(db)

	notifier := newRecordingNotifier()
	authService := services.NewAuthService(userRepo, notifier, testJWTSecret, time.Hour)
	contactService := services.NewContactService(contactRepo)
	avatarService := services.NewAvatarService(t.TempDir(), nil)

	userHandler := handlers.NewUserHandler(authService, avatarService, t.TempDir())
	contactHandler := handlers.NewContactHandler(contactService)

	app := fiber.New()
	api := app.Group("/api")
	userHandler.RegisterRoutes(api, middleware.AuthRequired(authService))
	contactHandler.RegisterRoutes(api)

	return app, notifier
}

// TestMain suppresses handler logging for cleaner output.
func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, token string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSignupLoginCurrentLogoutFlow(t *testing.T) {
	app, _ := setupApp(t)

	// Signup returns the public profile only.
	resp := doJSON(t, app, http.MethodPost, "/api/users/signup", map[string]string{
		"email":    "a@x.com",
		"password": "secret1",
	}, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	user := body["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])
	assert.Equal(t, "starter", user["subscription"])
	_, leaked := user["password"]
	assert.False(t, leaked)

	// Second signup with the same email conflicts.
	resp = doJSON(t, app, http.MethodPost, "/api/users/signup", map[string]string{
		"email":    "a@x.com",
		"password": "secret1",
	}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Login issues a token.
	resp = doJSON(t, app, http.MethodPost, "/api/users/login", map[string]string{
		"email":    "a@x.com",
		"password": "secret1",
	}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	token, _ := body["token"].(string)
	assert.NotEmpty(t, token)

	// The token redeems for the same profile.
	resp = doJSON(t, app, http.MethodGet, "/api/users/current", nil, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "a@x.com", body["email"])
	assert.Equal(t, "starter", body["subscription"])

	// Logout answers 204 with no content.
	resp = doJSON(t, app, http.MethodGet, "/api/users/logout", nil, token)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
}

func TestLoginRejectionsAreIndistinguishable(t *testing.T) {
	app, _ := setupApp(t)

	resp := doJSON(t, app, http.MethodPost, "/api/users/signup", map[string]string{
		"email":    "known@x.com",
		"password": "secret1",
	}, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Wrong password.
	resp = doJSON(t, app, http.MethodPost, "/api/users/login", map[string]string{
		"email":    "known@x.com",
		"password": "wrongpass",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	wrongPassBody := decodeBody(t, resp)

	// Unknown email: same status, same message.
	resp = doJSON(t, app, http.MethodPost, "/api/users/login", map[string]string{
		"email":    "unknown@x.com",
		"password": "secret1",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	unknownBody := decodeBody(t, resp)
	assert.Equal(t, wrongPassBody["message"], unknownBody["message"])

	// Malformed input is a 400, not a 401.
	resp = doJSON(t, app, http.MethodPost, "/api/users/login", map[string]string{
		"email": "not-an-email",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestLogoutIsStateless(t *testing.T) {
	app, _ := setupApp(t)

	resp := doJSON(t, app, http.MethodPost, "/api/users/signup", map[string]string{
		"email":    "stateless@x.com",
		"password": "secret1",
	}, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/users/login", map[string]string{
		"email":    "stateless@x.com",
		"password": "secret1",
	}, "")
	body := decodeBody(t, resp)
	token := body["token"].(string)

	resp = doJSON(t, app, http.MethodGet, "/api/users/logout", nil, token)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// Token validity is signature+expiry only: the same unexpired token
	// still authenticates after logout.
	resp = doJSON(t, app, http.MethodGet, "/api/users/current", nil, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/users/logout", nil, token)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
}

func TestAuthGateRejections(t *testing.T) {
	app, _ := setupApp(t)

	// Missing header.
	resp := doJSON(t, app, http.MethodGet, "/api/users/current", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Malformed header.
	req := httptest.NewRequest(http.MethodGet, "/api/users/current", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Garbage token.
	resp = doJSON(t, app, http.MethodGet, "/api/users/current", nil, "garbage.token.value")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Expired token signed with the right secret.
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-123",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	expiredString, _ := expired.SignedString([]byte(testJWTSecret))
	resp = doJSON(t, app, http.MethodGet, "/api/users/current", nil, expiredString)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/users/logout", nil, expiredString)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestEmailVerificationEndpoints(t *testing.T) {
	app, notifier := setupApp(t)

	resp := doJSON(t, app, http.MethodPost, "/api/users/signup", map[string]string{
		"email":    "verify@x.com",
		"password": "secret1",
	}, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	firstToken := notifier.waitToken(t, "verify@x.com")

	// Resend replaces the token before verification.
	resp = doJSON(t, app, http.MethodPost, "/api/users/verify", map[string]string{
		"email": "verify@x.com",
	}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var secondToken string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		secondToken = notifier.waitToken(t, "verify@x.com")
		if secondToken != firstToken {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.NotEqual(t, firstToken, secondToken)

	// The stale token 404s, the fresh one verifies.
	resp = doJSON(t, app, http.MethodGet, "/api/users/verify/"+firstToken, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/users/verify/"+secondToken, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Consumed token is gone.
	resp = doJSON(t, app, http.MethodGet, "/api/users/verify/"+secondToken, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Resend after verification is a 400.
	resp = doJSON(t, app, http.MethodPost, "/api/users/verify", map[string]string{
		"email": "verify@x.com",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Unknown account and missing email field.
	resp = doJSON(t, app, http.MethodPost, "/api/users/verify", map[string]string{
		"email": "nobody@x.com",
	}, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/users/verify", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestContactEndpoints(t *testing.T) {
	app, _ := setupApp(t)

	// Empty collection.
	resp := doJSON(t, app, http.MethodGet, "/api/contacts", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var contacts []models.Contact
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&contacts))
	assert.Empty(t, contacts)
	resp.Body.Close()

	// Missing fields and invalid values are rejected before any write.
	resp = doJSON(t, app, http.MethodPost, "/api/contacts", map[string]string{
		"name": "Jan Kowalski",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/contacts", map[string]string{
		"name":  "Jo",
		"email": "jan@example.com",
		"phone": "123456789",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/contacts", map[string]string{
		"name":  "Jan Kowalski",
		"email": "jan@example.com",
		"phone": "12345",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Valid create.
	resp = doJSON(t, app, http.MethodPost, "/api/contacts", map[string]string{
		"name":  "Jan Kowalski",
		"email": "jan@example.com",
		"phone": "123456789",
	}, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Contact
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
	resp.Body.Close()

	// Fetch by ID.
	resp = doJSON(t, app, http.MethodGet, "/api/contacts/"+created.ID, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/contacts/missing-id", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Partial update: phone only.
	resp = doJSON(t, app, http.MethodPut, "/api/contacts/"+created.ID, map[string]string{
		"phone": "987654321",
	}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Contact
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, "Jan Kowalski", updated.Name)
	assert.Equal(t, "987654321", updated.Phone)
	resp.Body.Close()

	// Invalid patch value.
	resp = doJSON(t, app, http.MethodPut, "/api/contacts/"+created.ID, map[string]string{
		"phone": "abc",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPut, "/api/contacts/missing-id", map[string]string{
		"phone": "987654321",
	}, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Favorite toggle.
	resp = doJSON(t, app, http.MethodPatch, "/api/contacts/"+created.ID+"/favorite", map[string]bool{
		"favorite": true,
	}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.True(t, updated.Favorite)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPatch, "/api/contacts/"+created.ID+"/favorite", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPatch, "/api/contacts/missing-id/favorite", map[string]bool{
		"favorite": true,
	}, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Delete, then the record is gone.
	resp = doJSON(t, app, http.MethodDelete, "/api/contacts/"+created.ID, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodDelete, "/api/contacts/"+created.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

// buildAvatarForm builds a multipart body with a single "avatar" field.
func buildAvatarForm(t *testing.T, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("avatar", fileName)
	assert.NoError(t, err)
	_, err = part.Write(content)
	assert.NoError(t, err)
	assert.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	assert.NoError(t, png.Encode(buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func TestAvatarUpload(t *testing.T) {
	app, _ := setupApp(t)

	resp := doJSON(t, app, http.MethodPost, "/api/users/signup", map[string]string{
		"email":    "avatar@x.com",
		"password": "secret1",
	}, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/users/login", map[string]string{
		"email":    "avatar@x.com",
		"password": "secret1",
	}, "")
	body := decodeBody(t, resp)
	token := body["token"].(string)

	// Unauthenticated upload is rejected.
	form, contentType := buildAvatarForm(t, "avatar.png", pngBytes(t, 400, 300))
	req := httptest.NewRequest(http.MethodPatch, "/api/users/avatars", form)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Valid upload.
	form, contentType = buildAvatarForm(t, "avatar.png", pngBytes(t, 400, 300))
	req = httptest.NewRequest(http.MethodPatch, "/api/users/avatars", form)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	avatarURL, _ := body["avatarURL"].(string)
	assert.Contains(t, avatarURL, "/avatars/")

	// Non-image content is a 400 regardless of the claimed file name.
	form, contentType = buildAvatarForm(t, "avatar.png", []byte("definitely not a photo"))
	req = httptest.NewRequest(http.MethodPatch, "/api/users/avatars", form)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Missing file field.
	req = httptest.NewRequest(http.MethodPatch, "/api/users/avatars", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
