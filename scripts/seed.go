//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/hugh/pipedesk/internal/access"
	"github.com/hugh/pipedesk/internal/audit"
	"github.com/hugh/pipedesk/internal/auth"
	"github.com/hugh/pipedesk/internal/crm"
	"github.com/hugh/pipedesk/internal/database"
	"github.com/hugh/pipedesk/internal/database/models"
	"github.com/hugh/pipedesk/internal/notify"
	"github.com/hugh/pipedesk/internal/orgs"
	"github.com/hugh/pipedesk/internal/store"
	"github.com/hugh/pipedesk/pkg/config"
	"github.com/hugh/pipedesk/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	ctx := context.Background()
	st := store.New(db)
	recorder := audit.NewRecorder(st, logger)
	orgService := orgs.NewService(st, recorder, logger)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(st, jwtService, auth.NewMemorySessionStore(), orgService, logger)
	crmService := crm.NewService(st, recorder, notify.NewStoreNotifier(st), logger)

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	name := os.Getenv("ADMIN_NAME")

	if email == "" {
		email = "admin@example.com"
	}
	if password == "" {
		password = "admin123!"
	}
	if name == "" {
		name = "Admin"
	}

	resp, err := authService.Signup(ctx, auth.SignupInput{
		Email:    email,
		Password: password,
		Name:     name,
	})
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			fmt.Printf("Admin user already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create admin user: %v", err)
	}

	memberships, err := orgService.ListForUser(ctx, resp.User.ID)
	if err != nil || len(memberships) == 0 {
		log.Fatalf("failed to load admin organization: %v", err)
	}
	org := memberships[0]
	p := &access.Principal{UserID: resp.User.ID, OrganizationID: org.ID, Role: models.RoleAdmin}

	pipeline, err := crmService.CreatePipeline(ctx, p, "Sales")
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}

	var first *models.Stage
	for _, stageName := range []string{"New", "Contacted", "Qualified", "Won"} {
		stage, err := crmService.CreateStage(ctx, p, crm.StageInput{PipelineID: pipeline.ID, Name: stageName})
		if err != nil {
			log.Fatalf("failed to create stage %q: %v", stageName, err)
		}
		if first == nil {
			first = stage
		}
	}

	for _, leadName := range []string{"Acme Corp", "Globex", "Initech"} {
		if _, err := crmService.CreateLead(ctx, p, crm.LeadInput{StageID: first.ID, Name: leadName}); err != nil {
			log.Fatalf("failed to create lead %q: %v", leadName, err)
		}
	}

	fmt.Printf("Admin user created successfully!\n")
	fmt.Printf("Email: %s\n", resp.User.Email)
	fmt.Printf("Organization: %s\n", org.Name)
	fmt.Printf("Pipeline: %s (4 stages, 3 leads)\n", pipeline.Name)
	fmt.Printf("Token: %s\n", resp.Token)
}
