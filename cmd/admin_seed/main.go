package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"pearlbingo/internal/config"
	"pearlbingo/internal/models"
	"pearlbingo/internal/repositories"
	"pearlbingo/internal/utils"
	"pearlbingo/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg := config.Load()

	username := os.Getenv("ADMIN_USERNAME")
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || email == "" || password == "" {
		log.Fatal("ADMIN_USERNAME, ADMIN_EMAIL and ADMIN_PASSWORD must be set in environment")
	}

	v := validation.New()
	v.Email("email", email)
	v.Password("password", password)
	if err := v.Err(); err != nil {
		log.Fatalf("invalid admin credentials: %v", err)
	}

	db, err := repositories.OpenPostgres(cfg)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer func() {
		if err := repositories.Close(db); err != nil {
			log.Printf("failed to close database connection: %v", err)
		}
	}()
	users := repositories.NewGormStore(db).Users()
	ctx := context.Background()

	admin, err := users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		log.Printf("admin user %q already exists", username)
	case errors.Is(err, repositories.ErrNotFound):
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}
		admin = &models.User{
			Username: username,
			Email:    email,
			Password: string(hashed),
			Role:     models.RoleAdmin,
		}
		if err := users.Create(ctx, admin); err != nil {
			log.Fatalf("failed to create admin user: %v", err)
		}
		log.Printf("admin account %q created", username)
	default:
		log.Fatalf("failed to look up admin user: %v", err)
	}

	if admin.Role != models.RoleAdmin {
		log.Fatalf("user %q exists but is not an admin", username)
	}

	token, err := utils.GenerateToken(cfg.JWTSecret, admin, 24*time.Hour)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Println(token)
}
