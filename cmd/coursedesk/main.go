package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/coursedesk/coursedesk/app/repository"
	"github.com/coursedesk/coursedesk/internal/pkg/cache"
	"github.com/coursedesk/coursedesk/internal/pkg/database"
	"github.com/coursedesk/coursedesk/internal/pkg/env"
	"github.com/coursedesk/coursedesk/internal/pkg/jobqueue"
	"github.com/coursedesk/coursedesk/internal/pkg/router"
)

func main() {
	app := NewApplication()

	// graceful shutdown: stop taking requests, then drain the job queue
	shutdownDone := make(chan struct{})
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		log.Println("[App] Shutting down...")
		if err := app.Shutdown(); err != nil {
			log.Printf("[App] Shutdown error: %v", err)
		}
		jobqueue.GetManager().Stop()
		close(shutdownDone)
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
	<-shutdownDone
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())

	// background workers: enrollment mails + counter flush
	jobqueue.GetManager().Start()

	app := fiber.New(fiber.Config{
		AppName:   "coursedesk",
		BodyLimit: 1 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
