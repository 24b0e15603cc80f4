package main

import (
	"context"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"roombooking/internal/config"
	"roombooking/internal/database"
	"roombooking/internal/domain"
	"roombooking/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running migrations...")
	if err := database.Migrate(db); err != nil {
		log.Fatal("Migrate failed:", err)
	}

	log.Println("Cleaning old data...")
	db.Exec("DELETE FROM room_loans")
	db.Exec("DELETE FROM users")

	ctx := context.Background()
	users := repository.NewUserRepository(db)
	loans := repository.NewRoomLoanRepository(db)

	// ================== USERS ==================
	log.Println("Creating users...")

	createUser := func(username, email, password, fullName string, role domain.UserRole) *domain.User {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		u := &domain.User{
			Username:     username,
			Email:        email,
			PasswordHash: string(hash),
			FullName:     fullName,
			Role:         role,
			IsActive:     true,
			CreatedAt:    time.Now().UTC(),
		}
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("create user %s: %v", username, err)
		}
		log.Printf("User created: %s / %s (%s)", username, password, role)
		return u
	}

	admin := createUser("admin", "admin@bookruang.local", "admin123", "Administrator", domain.RoleAdmin)
	budi := createUser("budi", "budi@bookruang.local", "user123", "Budi Santoso", domain.RoleUser)
	sari := createUser("sari", "sari@bookruang.local", "user123", "Sari Dewi", domain.RoleUser)

	// ================== ROOM LOANS ==================
	log.Println("Creating room loans...")

	day := time.Now().UTC().Truncate(24 * time.Hour).Add(48 * time.Hour)
	slot := func(hour, hours int) (*time.Time, *time.Time) {
		s := day.Add(time.Duration(hour) * time.Hour)
		e := s.Add(time.Duration(hours) * time.Hour)
		return &s, &e
	}
	str := func(s string) *string { return &s }
	now := time.Now().UTC().Truncate(time.Second)

	seeds := []struct {
		borrower, room, purpose string
		status                  domain.LoanStatus
		hour, hours             int
		notes                   *string
	}{
		{budi.FullName, "Ruang Rapat A", "Sprint planning", domain.LoanPending, 9, 2, nil},
		{sari.FullName, "Ruang Rapat A", "Client demo", domain.LoanApproved, 13, 1, str("Projector prepared")},
		{budi.FullName, "Aula", "Town hall", domain.LoanApproved, 9, 3, nil},
		{sari.FullName, "Aula", "Workshop", domain.LoanRejected, 10, 2, str("Aula already booked")},
		{budi.FullName, "Lab 2", "Study group", domain.LoanCancelled, 15, 2, nil},
	}

	for _, s := range seeds {
		start, end := slot(s.hour, s.hours)
		l := &domain.RoomLoan{
			BorrowerName: s.borrower,
			RoomName:     s.room,
			Purpose:      s.purpose,
			Status:       s.status,
			Date:         now,
			StartTime:    start,
			EndTime:      end,
			Notes:        s.notes,
			CreatedAt:    now,
		}
		switch s.status {
		case domain.LoanApproved:
			l.ApprovedBy, l.ApprovedAt = str(admin.FullName), &now
		case domain.LoanRejected:
			l.RejectedBy, l.RejectedAt = str(admin.FullName), &now
		case domain.LoanCancelled:
			l.UpdatedAt = &now
		}
		if err := loans.Create(ctx, l); err != nil {
			log.Fatalf("create loan %q: %v", s.purpose, err)
		}
	}

	log.Printf("Seed completed: users=3 room_loans=%d", len(seeds))
}
