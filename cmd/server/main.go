package main

import (
	"context"
	"log"

	"studydesk/backend/internal/config"
	"studydesk/backend/internal/db"
	"studydesk/backend/internal/handler"
	"studydesk/backend/internal/repository"
	"studydesk/backend/internal/router"
	"studydesk/backend/internal/service"
	"studydesk/backend/internal/storage"
)

func main() {
	cfg := config.Load()

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	snapshots, err := storage.NewLocalStore(cfg.SnapshotDir)
	if err != nil {
		log.Fatalf("open snapshot store: %v", err)
	}

	userRepo := repository.NewUserRepository(database)
	taskRepo := repository.NewTaskRepository(database)
	sessionRepo := repository.NewSessionRepository(database)

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	timerService := service.NewTimerService(sessionRepo, snapshots, nil)
	taskService := service.NewTaskService(taskRepo)

	authHandler := handler.NewAuthHandler(authService)
	timerHandler := handler.NewTimerHandler(timerService)
	timerStreamHandler := handler.NewTimerStreamHandler(authService, timerService, cfg.CORSOrigins)
	taskHandler := handler.NewTaskHandler(taskService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go timerService.Run(ctx)

	engine := router.New(authService, authHandler, timerHandler, timerStreamHandler, taskHandler, cfg.CORSOrigins)
	log.Printf("backend listening on :%s", cfg.Port)
	if err := engine.Run(":" + cfg.Port); err != nil {
		log.Fatalf("run server: %v", err)
	}
}
