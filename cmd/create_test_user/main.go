package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"tasksync/internal/db"
	"tasksync/internal/domain"
	"tasksync/internal/logger"
	"tasksync/internal/repository"
	"tasksync/internal/service"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	email := flag.String("email", "tester@example.com", "user email")
	name := flag.String("name", "Tester", "user name")
	seed := flag.Int("seed", 0, "number of sample tasks to create")
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Fatal("JWT_SECRET not set")
	}

	pool := db.Connect(dsn)
	defer pool.Close()

	ctx := context.Background()
	users := repository.NewUserRepository(pool)

	u := &domain.User{Email: *email, Name: *name}
	if err := users.Upsert(ctx, u); err != nil {
		logger.Fatal("upsert user failed", "error", err)
	}
	logger.Info("user ready", "id", u.ID, "email", u.Email)

	service.InitJWT(secret, 24*time.Hour)
	token, err := service.GenerateJWT(u)
	if err != nil {
		logger.Fatal("failed to generate token", "error", err)
	}

	if *seed > 0 {
		claims, err := service.ParseJWT(token)
		if err != nil {
			logger.Fatal("failed to parse token", "error", err)
		}
		userCtx := service.WithClaims(ctx, claims)
		tasks := service.NewTaskService(repository.NewTaskRepository(pool), service.NewTokenIdentity(users))
		for i := 0; i < *seed; i++ {
			t, err := tasks.Upsert(userCtx, domain.ClientTask{
				ID:    uuid.NewString(),
				Title: fmt.Sprintf("Sample task %d", i+1),
			})
			if err != nil {
				logger.Fatal("seed task failed", "error", err)
			}
			logger.Info("seeded task", "id", t.ID)
		}
	}

	fmt.Println(token)
}
