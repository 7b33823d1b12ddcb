// Command operator-token mints a bearer token for the operator endpoints.
// The signing secret is read from ADMIN_JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/josh-kwaku/retail-bank/internal/auth"
)

type config struct {
	Secret string `env:"ADMIN_JWT_SECRET,required,notEmpty"`
}

func main() {
	subject := flag.String("subject", "", "operator identity recorded in audit logs")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "-subject is required")
		os.Exit(2)
	}

	cfg, err := env.ParseAs[config]()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	token, err := auth.GenerateToken(*subject, auth.RoleOperator, cfg.Secret, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
