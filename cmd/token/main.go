// Command token issues a bearer token for the API, signed with JWT_SECRET.
//
//	token -sub alice -role analyst -ttl 8h
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"nexus-letter-analyzer/internal/config"
	"nexus-letter-analyzer/internal/handler/http/auth"
	"nexus-letter-analyzer/internal/observability/logging"
)

func main() {
	subject := flag.String("sub", "", "token subject (required)")
	role := flag.String("role", auth.RoleViewer, "role: admin, analyst or viewer")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	logger := logging.NewTextLogger()

	if *subject == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.LoadAuthConfig()
	if !cfg.Enabled() {
		logger.Error("JWT_SECRET must be set")
		os.Exit(1)
	}

	token, err := auth.IssueToken([]byte(cfg.JWTSecret), cfg.Issuer, *subject, *role, *ttl, time.Now())
	if err != nil {
		logger.Error("failed to issue token", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Println(token)
}
