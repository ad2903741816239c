// optoken mints a bearer token for the operator endpoints.
//
//	OPERATOR_JWT_SECRET=... go run ./cmd/optoken -operator alice
package main

import (
	"flag"
	"fmt"
	"log"

	"sproutbot/internal/auth"
	"sproutbot/internal/config"
)

func main() {
	operator := flag.String("operator", "", "operator name embedded in the token")
	flag.Parse()

	if *operator == "" {
		log.Fatal("usage: optoken -operator <name>")
	}

	cfg := config.Load()
	token, err := auth.NewToken(cfg.OperatorJWTSecret, *operator, cfg.OperatorTokenTTL)
	if err != nil {
		log.Fatalf("failed to mint token: %v", err)
	}
	fmt.Println(token)
}
