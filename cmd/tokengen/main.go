// Command tokengen mints bearer tokens for the geiger gRPC API.
//
//	AUTH_JWT_SECRET=... tokengen -sub dashboard -role viewer -ttl P30D
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quentinrf/geiger-monitor/internal/auth"
	"github.com/quentinrf/geiger-monitor/internal/config"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	subject := flag.String("sub", "", "token subject (required)")
	role := flag.String("role", string(auth.RoleViewer), "viewer or operator")
	ttl := flag.String("ttl", "24h", "token lifetime, Go or ISO 8601 duration")
	secret := flag.String("secret", os.Getenv("AUTH_JWT_SECRET"), "HS256 secret, defaults to AUTH_JWT_SECRET")
	flag.Parse()

	token, err := issue(*secret, *subject, *role, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to issue token")
	}
	fmt.Println(token)
}

func issue(secret, subject, role, ttl string) (string, error) {
	if subject == "" {
		return "", errors.New("-sub is required")
	}
	if len(secret) < 16 {
		return "", errors.New("secret must be at least 16 bytes")
	}
	r := auth.Role(role)
	if r != auth.RoleViewer && r != auth.RoleOperator {
		return "", fmt.Errorf("unknown role %q", role)
	}
	d, err := config.ParseDuration(ttl)
	if err != nil {
		return "", err
	}
	if d <= 0 {
		return "", fmt.Errorf("ttl must be positive, got %s", d)
	}
	return auth.IssueJWT([]byte(secret), subject, r, d)
}
