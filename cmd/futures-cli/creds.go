package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"binance-futures-client/internal/vault"
)

// runCreds manages the exchange key pair stored in Vault
func runCreds(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: creds set|check|delete [flags]")
	}

	fs := flag.NewFlagSet("creds "+args[0], flag.ContinueOnError)
	profile := fs.String("profile", e.cfg.VaultConfig.Profile, "credential profile")
	testnet := fs.Bool("testnet", e.cfg.BinanceConfig.TestNet, "testnet credentials")
	var apiKey, secretKey *string
	if args[0] == "set" {
		apiKey = fs.String("api-key", e.cfg.BinanceConfig.APIKey, "exchange API key")
		secretKey = fs.String("secret-key", e.cfg.BinanceConfig.SecretKey, "exchange secret key")
	}
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *profile == "" {
		return errors.New("-profile is required")
	}

	client, err := vault.NewClient(e.cfg.VaultConfig)
	if err != nil {
		return err
	}
	if err := client.Health(ctx); err != nil {
		return err
	}

	log := e.logger.With().Str("profile", *profile).Bool("testnet", *testnet).Logger()

	switch args[0] {
	case "set":
		creds := vault.Credentials{APIKey: *apiKey, SecretKey: *secretKey, IsTestnet: *testnet}
		if err := client.StoreCredentials(ctx, *profile, creds); err != nil {
			return err
		}
		log.Info().Msg("Stored credentials")
		fmt.Fprintf(os.Stdout, "stored %s (%s)\n", maskKey(creds.APIKey), networkName(*testnet))
	case "check":
		creds, err := client.GetCredentials(ctx, *profile, *testnet)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s (%s)\n", maskKey(creds.APIKey), networkName(creds.IsTestnet))
	case "delete":
		if err := client.DeleteCredentials(ctx, *profile, *testnet); err != nil {
			return err
		}
		log.Info().Msg("Deleted credentials")
		fmt.Fprintf(os.Stdout, "deleted %s (%s)\n", *profile, networkName(*testnet))
	default:
		return fmt.Errorf("unknown creds action %q", args[0])
	}
	return nil
}

// maskKey keeps the first and last four characters of a key
func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

func networkName(testnet bool) string {
	if testnet {
		return "testnet"
	}
	return "mainnet"
}
