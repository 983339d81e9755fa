package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/mindnest/MindNestBack/internal/models"
	"github.com/mindnest/MindNestBack/internal/repository"
	"github.com/mindnest/MindNestBack/internal/store/memory"
	"github.com/mindnest/MindNestBack/pkg/utils"
)

func newAuthApp(t *testing.T) (*fiber.App, *repository.UserRepository) {
	t.Helper()
	userRepo := repository.NewUserRepository(memory.New())
	handler := NewAuthHandler(userRepo, "secret")

	app := fiber.New()
	app.Post("/api/auth/register", handler.Register)
	app.Post("/api/auth/login", handler.Login)
	return app, userRepo
}

func TestRegisterCreatesUserAndIssuesToken(t *testing.T) {
	app, _ := newAuthApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"phone":"5550001","username":"Amina","password":"longenough","role":"user"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
		User  struct {
			Phone string `json:"phone"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Token == "" {
		t.Fatal("expected a token")
	}
	if body.User.Phone != "5550001" || body.User.Role != "user" {
		t.Fatalf("unexpected user: %+v", body.User)
	}

	claims, err := utils.ValidateToken(body.Token, "secret")
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "5550001" || claims.Role != "user" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRegisterRejectsReservedPhoneCharacters(t *testing.T) {
	app, _ := newAuthApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"phone":"555_0001","username":"A","password":"longenough","role":"user"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRegisterDuplicatePhoneConflicts(t *testing.T) {
	app, userRepo := newAuthApp(t)

	hashed, err := utils.HashPassword("longenough")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	err = userRepo.Create(context.Background(), &models.User{
		Phone: "5550001", Username: "Amina", PasswordHash: hashed, Role: "user",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"phone":"5550001","username":"Other","password":"longenough","role":"user"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestLoginWithWrongPassword(t *testing.T) {
	app, userRepo := newAuthApp(t)

	hashed, err := utils.HashPassword("rightpassword")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	err = userRepo.Create(context.Background(), &models.User{
		Phone: "5550001", Username: "Amina", PasswordHash: hashed, Role: "user",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"phone":"5550001","password":"wrongpassword"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
