package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/milanotravel/tourbooking/app/repository"
	apiv1 "github.com/milanotravel/tourbooking/internal/api/v1"
	"github.com/milanotravel/tourbooking/internal/pkg/cache"
	"github.com/milanotravel/tourbooking/internal/pkg/capacity"
	"github.com/milanotravel/tourbooking/internal/pkg/currency"
	"github.com/milanotravel/tourbooking/internal/pkg/database"
	"github.com/milanotravel/tourbooking/internal/pkg/env"
	"github.com/milanotravel/tourbooking/internal/pkg/finalizer"
	"github.com/milanotravel/tourbooking/internal/pkg/notify"
	"github.com/milanotravel/tourbooking/internal/pkg/pricing"
	"github.com/milanotravel/tourbooking/internal/pkg/router"
	"github.com/milanotravel/tourbooking/internal/pkg/scheduler"
	"github.com/milanotravel/tourbooking/internal/pkg/workflow"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repos := repository.NewRepositories(db)
	repository.SetGlobalFactory(repository.NewFactory(db))

	// Background notification delivery
	dispatcher := notify.NewDispatcher(2)
	dispatcher.Start()

	// Engine services
	converter := currency.NewConverter(repos.ExchangeRate)
	tracker := capacity.NewTracker(repos.Tour, repos.Booking)
	calculator := pricing.NewCalculator(repos.Tour, tracker, converter)
	wf := workflow.NewService(repos, calculator, dispatcher)
	fin := finalizer.New(db, dispatcher)

	// Recurring maintenance jobs
	sched := scheduler.NewScheduler(converter, repos.Token)
	sched.Start()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/tourbooking to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: "Milano Travel Booking Engine",
	})

	// recovery and logging
	app.Use(recover.New())
	if env.IsDev() {
		app.Use(logger.New())
	}

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, apiv1.NewAPIServer(repos, calculator, tracker, wf, fin))

	return app
}
