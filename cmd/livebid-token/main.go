// Command livebid-token signs bearer tokens for local development and load
// tests, using the same RSA key pair the API verifies against.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/floroz/livebid/pkg/auth"
)

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "livebid-token",
		Usage: "sign a bearer token for the auction API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "private-key",
				Usage:    "PEM encoded RSA private key",
				EnvVars:  []string{"AUTH_PRIVATE_KEY_PATH"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "public-key",
				Usage:    "PEM encoded RSA public key",
				EnvVars:  []string{"AUTH_PUBLIC_KEY_PATH"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "issuer",
				Value:   "gavel-auth-service",
				EnvVars: []string{"AUTH_ISSUER"},
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "user id to put in the subject, random when empty",
			},
			&cli.StringSliceFlag{
				Name:  "permission",
				Usage: "permission claim, repeatable",
			},
		},
		Action: sign,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Failed to sign token", "error", err)
		os.Exit(1)
	}
}

func sign(c *cli.Context) error {
	privPEM, err := os.ReadFile(c.String("private-key"))
	if err != nil {
		return fmt.Errorf("failed to read private key: %w", err)
	}
	pubPEM, err := os.ReadFile(c.String("public-key"))
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}

	signer, err := auth.NewSigner(privPEM, pubPEM, c.String("issuer"))
	if err != nil {
		return err
	}

	userID := uuid.New()
	if raw := c.String("user"); raw != "" {
		if userID, err = uuid.Parse(raw); err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
	}

	token, expiresAt, err := signer.GenerateToken(userID, c.StringSlice("permission"))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "user:    %s\nexpires: %s\n\n%s\n", userID, expiresAt.Format(time.RFC3339), token)
	return nil
}
