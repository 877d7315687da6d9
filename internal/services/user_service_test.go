package services

import (
	"context"
	"testing"

	"treasurer/internal/repository"
	"treasurer/internal/testutil"
)

func TestCreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(repository.NewGormStore(db))

		email := "alice@example.com"
		user, err := svc.CreateUser(ctx, "Alice", &email, "2024-01")
		testutil.AssertNoError(t, err)

		if user.ID == "" {
			t.Fatal("expected user ID to be set")
		}
		if user.Name != "Alice" {
			t.Errorf("expected name Alice, got %s", user.Name)
		}
		if !user.Active {
			t.Error("expected user to be active")
		}
		if user.JoinedPeriod != "2024-01" {
			t.Errorf("expected joined period 2024-01, got %s", user.JoinedPeriod)
		}
	})

	t.Run("duplicate_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(repository.NewGormStore(db))

		email := "dup@example.com"
		_, err := svc.CreateUser(ctx, "First", &email, "")
		testutil.AssertNoError(t, err)

		_, err = svc.CreateUser(ctx, "Second", &email, "")
		testutil.AssertAppError(t, err, "DUPLICATE_EMAIL")
	})

	t.Run("empty_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(repository.NewGormStore(db))

		_, err := svc.CreateUser(ctx, "   ", nil, "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("bad_joined_period", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(repository.NewGormStore(db))

		_, err := svc.CreateUser(ctx, "Bob", nil, "2024-13")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("email_normalized_to_lowercase", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(repository.NewGormStore(db))

		email := " Alice@EXAMPLE.COM "
		user, err := svc.CreateUser(ctx, "Alice", &email, "")
		testutil.AssertNoError(t, err)

		if user.Email == nil || *user.Email != "alice@example.com" {
			t.Errorf("expected lowercased email, got %v", user.Email)
		}
	})

	t.Run("blank_email_stored_as_null", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(repository.NewGormStore(db))

		blank := ""
		_, err := svc.CreateUser(ctx, "One", &blank, "")
		testutil.AssertNoError(t, err)
		user, err := svc.CreateUser(ctx, "Two", &blank, "")
		testutil.AssertNoError(t, err)

		if user.Email != nil {
			t.Errorf("expected nil email, got %q", *user.Email)
		}
	})
}

func TestGetUser(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(repository.NewGormStore(db))

		created := testutil.CreateTestUser(t, db)
		user, err := svc.GetUser(ctx, created.ID)
		testutil.AssertNoError(t, err)

		if user.Name != created.Name {
			t.Errorf("expected name %s, got %s", created.Name, user.Name)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(repository.NewGormStore(db))

		_, err := svc.GetUser(ctx, "0190a8b0-0000-7000-8000-000000000000")
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}

func TestListUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("active_only", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(repository.NewGormStore(db))

		testutil.CreateTestUserWithName(t, db, "Bao")
		inactive := testutil.CreateTestUserWithName(t, db, "An")
		db.Model(inactive).Update("active", false)

		all, err := svc.ListUsers(ctx, false)
		testutil.AssertNoError(t, err)
		if len(all) != 2 {
			t.Fatalf("expected 2 users, got %d", len(all))
		}
		if all[0].Name != "An" {
			t.Errorf("expected users ordered by name, got %s first", all[0].Name)
		}

		active, err := svc.ListUsers(ctx, true)
		testutil.AssertNoError(t, err)
		if len(active) != 1 || active[0].Name != "Bao" {
			t.Errorf("expected only Bao, got %+v", active)
		}
	})
}

func TestFindActiveByName(t *testing.T) {
	ctx := context.Background()

	t.Run("case_insensitive_match", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(repository.NewGormStore(db))

		created := testutil.CreateTestUserWithName(t, db, "Nguyen Van A")
		user, err := svc.FindActiveByName(ctx, "  nguyen VAN a ")
		testutil.AssertNoError(t, err)

		if user.ID != created.ID {
			t.Errorf("expected user %s, got %s", created.ID, user.ID)
		}
	})

	t.Run("inactive_not_matched", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(repository.NewGormStore(db))

		user := testutil.CreateTestUserWithName(t, db, "Gone")
		db.Model(user).Update("active", false)

		_, err := svc.FindActiveByName(ctx, "Gone")
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})

	t.Run("ambiguous", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(repository.NewGormStore(db))

		testutil.CreateTestUserWithName(t, db, "Minh")
		testutil.CreateTestUserWithName(t, db, "minh")

		_, err := svc.FindActiveByName(ctx, "Minh")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("empty_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(repository.NewGormStore(db))

		_, err := svc.FindActiveByName(ctx, "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}
