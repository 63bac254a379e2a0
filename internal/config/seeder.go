package config

import (
	"log"

	"shelfshare/internal/adapters/persistence/models"
	"shelfshare/internal/core/domain"
	"shelfshare/internal/pkg/password"

	"gorm.io/gorm"
)

// SeedDevData seeds demo users and books for development. Idempotent:
// skips entirely when any user already exists.
func SeedDevData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := password.Hash("password123")
	if err != nil {
		return err
	}

	users := []models.User{
		{Username: "alice", Email: "alice@example.com", Password: hashed},
		{Username: "bob", Email: "bob@example.com", Password: hashed},
	}
	if err := db.Create(&users).Error; err != nil {
		return err
	}

	books := []models.Book{
		{OwnerID: users[0].ID, Title: "The Go Programming Language", Author: "Donovan & Kernighan", Status: domain.BookAvailable},
		{OwnerID: users[0].ID, Title: "Designing Data-Intensive Applications", Author: "Martin Kleppmann", Status: domain.BookAvailable},
		{OwnerID: users[1].ID, Title: "The Pragmatic Programmer", Author: "Hunt & Thomas", Status: domain.BookAvailable},
	}
	if err := db.Create(&books).Error; err != nil {
		return err
	}

	log.Printf("✅ Seeded %d demo users and %d books", len(users), len(books))
	return nil
}
