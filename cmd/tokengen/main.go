// Command tokengen issues access tokens for local testing of the API and
// the chat socket.
package main

import (
	"fmt"
	"os"

	"github.com/aditya/rideshare/internal/auth"
	"github.com/aditya/rideshare/internal/config"
	"github.com/aditya/rideshare/pkg/utils"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var userID, secret string
	var expiry int

	flagSet := pflag.NewFlagSet("tokengen", pflag.ContinueOnError)
	flagSet.StringVar(&userID, "user", "", "user id (UUID) to issue the token for")
	flagSet.StringVar(&secret, "secret", cfg.JWTSecret, "HMAC signing secret (default: JWT_SECRET)")
	flagSet.IntVar(&expiry, "expiry", cfg.JWTExpiryMinutes, "token lifetime in minutes")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	if !utils.IsValidUUID(userID) {
		return fmt.Errorf("--user must be a UUID, got %q", userID)
	}
	if expiry <= 0 {
		return fmt.Errorf("--expiry must be positive")
	}

	token, err := auth.NewJWTService(secret, expiry).GenerateToken(userID)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: tokengen --user <uuid> [flags]\n\nFlags:\n")
	flagSet.PrintDefaults()
}
