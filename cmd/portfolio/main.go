package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/portfolieo/portfolio-api/internal/auth"
	"github.com/portfolieo/portfolio-api/internal/config"
	"github.com/portfolieo/portfolio-api/internal/portfolio"
	"github.com/portfolieo/portfolio-api/internal/server"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	tokenUser := flag.String("dev-token-user", "", "Print a bearer token for this user id and exit")
	tokenEmail := flag.String("dev-token-email", "", "Email claim for -dev-token-user (defaults to <id>@localhost)")
	tokenTTL := flag.Duration("dev-token-ttl", 24*time.Hour, "Lifetime of the token printed by -dev-token-user")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if port := os.Getenv("PORT"); port != "" {
		if _, err := fmt.Sscanf(port, "%d", &cfg.Server.Port); err != nil {
			fmt.Fprintf(os.Stderr, "invalid PORT %q: %v\n", port, err)
			os.Exit(1)
		}
	}

	if *tokenUser != "" {
		token, err := devToken(cfg.Auth, *tokenUser, *tokenEmail, *tokenTTL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dev token failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	ctx := context.Background()
	app, err := server.Build(ctx, &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}

// devToken signs a bearer token with the configured secret for local testing.
func devToken(cfg config.AuthConfig, userID, email string, ttl time.Duration) (string, error) {
	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.Issuer)
	if err != nil {
		return "", err
	}
	if email == "" {
		email = userID + "@localhost"
	}
	return verifier.Sign(portfolio.Principal{ID: userID, Email: email}, ttl)
}
