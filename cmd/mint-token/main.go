// Command mint-token prints a bearer token for a principal, signed with
// AUTH_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"cipher-rooms/internal/auth"
	"cipher-rooms/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	principal := flag.String("principal", "", "principal the token is issued for")
	ttl := flag.Duration("ttl", 0, "token lifetime, defaults to AUTH_TOKEN_TTL")
	flag.Parse()

	tok, err := mint(*principal, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mint-token:", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}

func mint(principal string, ttl time.Duration) (string, error) {
	cfg, err := config.LoadAuth()
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = cfg.TokenTTL
	}
	iss, err := auth.NewIssuer(cfg.Secret, cfg.Issuer)
	if err != nil {
		return "", err
	}
	return iss.Issue(principal, ttl)
}
