package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"forex-academy/internal/config"
	"forex-academy/internal/domain/model"
	"forex-academy/internal/infra/api"
	pg "forex-academy/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	adminID := flag.Int64("admin", 0, "grant the admin role to this user id")
	tokenFor := flag.Int64("token", 0, "print a bearer token for this user id")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	roleRepo := pg.NewRoleRepo(pool)
	resourceRepo := pg.NewResourceRepo(pool)

	if err := roleRepo.EnsureRoles(ctx, nil, model.KnownRoles); err != nil {
		log.Fatalf("ensure roles: %v", err)
	}
	fmt.Printf("roles: %v\n", model.KnownRoles)

	existing, err := resourceRepo.ListAll(ctx, nil)
	if err != nil {
		log.Fatalf("list resources: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("%d gated resources already present. No changes.\n", len(existing))
	} else {
		seed := []*model.GatedResource{
			{ID: "academy-foundations", Title: "Forex Foundations", Kind: "course", RoleAccess: []string{model.RoleAcademyStudent}},
			{ID: "academy-price-action", Title: "Price Action Masterclass", Kind: "course", RoleAccess: []string{model.RoleAcademyStudent, model.RoleMentorshipStudent}},
			{ID: "mentorship-weekly", Title: "Weekly Mentorship Call", Kind: "live_session", RoleAccess: []string{model.RoleMentorshipStudent}},
			{ID: "community-signals", Title: "Community Signal Room", Kind: "signal_room", RoleAccess: []string{model.RoleCommunityStudent, model.RoleAcademyStudent, model.RoleMentorshipStudent}},
		}
		for _, r := range seed {
			if err := resourceRepo.Save(ctx, nil, r); err != nil {
				log.Fatalf("save resource %q: %v", r.ID, err)
			}
			fmt.Printf("seeded: %s (%s) roles=%v\n", r.ID, r.Kind, r.RoleAccess)
		}
	}

	if *adminID > 0 {
		granted, err := roleRepo.Grant(ctx, nil, *adminID, model.RoleAdmin)
		if err != nil {
			log.Fatalf("grant admin: %v", err)
		}
		fmt.Printf("admin role for user %d (newly granted=%v)\n", *adminID, granted)
	}

	if *tokenFor > 0 {
		tok, err := api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).Mint(*tokenFor)
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		fmt.Printf("bearer token for user %d:\n%s\n", *tokenFor, tok)
	}

	fmt.Println("Seeding complete.")
}
