package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"donationhub/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	var (
		subjectFlag string
		ttlFlag     time.Duration
	)
	flag.StringVar(&subjectFlag, "subject", "", "operator name recorded in the token subject")
	flag.DurationVar(&ttlFlag, "ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	subject := strings.TrimSpace(subjectFlag)
	if subject == "" {
		exitWithError(errors.New("-subject is required"))
	}
	if ttlFlag <= 0 {
		exitWithError(errors.New("-ttl must be positive"))
	}

	secret := strings.TrimSpace(os.Getenv("ADMIN_JWT_SECRET"))
	if secret == "" {
		exitWithError(errors.New("ADMIN_JWT_SECRET is required"))
	}

	now := time.Now().UTC()
	token, err := middleware.SignAdminToken(secret, subject, ttlFlag, now)
	if err != nil {
		exitWithError(fmt.Errorf("failed to sign token: %w", err))
	}

	fmt.Fprintf(os.Stderr, "admin token for %s expires at %s\n", subject, now.Add(ttlFlag).Format(time.RFC3339))
	fmt.Println(token)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
