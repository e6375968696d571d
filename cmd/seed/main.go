// Package main provides a CLI tool for provisioning the journal database:
// applying the schema, importing historical document numbers, creating
// equipment and issuing tokens for local testing.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"docjournal/internal/app"
	"docjournal/internal/config"
	"docjournal/internal/core/numerator"
	"docjournal/internal/domain/ledger"
	"docjournal/internal/infrastructure/storage/postgres"
	"docjournal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	schema := flag.Bool("schema", true, "apply the schema")
	importFile := flag.String("import", "", "file with one historical document number per line")
	equipment := flag.String("equipment", "", "comma-separated equipment types to create")
	tokenFor := flag.String("token", "", "print an access token for this username and exit")
	roles := flag.String("roles", "", "comma-separated roles for -token")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)

	if *tokenFor != "" {
		if err := printToken(cfg, *tokenFor, splitList(*roles)); err != nil {
			logger.Fatal(ctx, "failed to issue token", "error", err)
		}
		return
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		logger.Fatal(ctx, "failed to connect to database", "error", err)
	}
	defer a.Close()

	if *schema {
		if err := postgres.EnsureSchema(ctx, a.Pool); err != nil {
			logger.Fatal(ctx, "failed to apply schema", "error", err)
		}
		log.Info("schema applied")
	}

	if *importFile != "" {
		if err := importHistory(ctx, a, *importFile); err != nil {
			logger.Fatal(ctx, "failed to import history", "file", *importFile, "error", err)
		}
	}

	for _, eqType := range splitList(*equipment) {
		e := &ledger.Equipment{EqType: eqType}
		if err := a.Registry().CreateEquipment(ctx, e); err != nil {
			logger.Fatal(ctx, "failed to create equipment", "eq_type", eqType, "error", err)
		}
		fmt.Printf("equipment %d\t%s\n", e.ID, e.EqType)
	}

	log.Info("seeding completed successfully")
}

func importHistory(ctx context.Context, a *app.App, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	numerics, err := readNumerics(f)
	if err != nil {
		return err
	}

	res, err := a.Reservations().ImportHistory(ctx, numerics)
	if err != nil {
		return err
	}
	a.Log.Infow("history imported",
		"lines", len(numerics),
		"imported", res.Imported,
		"next_normal_start", res.Counter.NextNormalStart)
	return nil
}

// readNumerics parses one document number per line. Blank lines and lines
// starting with '#' are skipped; both "PREFIX-000123" and "123" are accepted.
func readNumerics(r io.Reader) ([]int64, error) {
	var out []int64
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		n := numerator.Parse(text)
		if n < 0 {
			return nil, fmt.Errorf("line %d: invalid document number %q", line, text)
		}
		out = append(out, n)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func printToken(cfg *config.Config, username string, roles []string) error {
	svc, err := app.NewJWTService(cfg)
	if err != nil {
		return err
	}
	token, expiresAt, err := svc.GenerateAccessToken(username, roles)
	if err != nil {
		return err
	}
	fmt.Printf("token for %s (expires %s):\n%s\n", username, expiresAt.Format("2006-01-02 15:04:05"), token)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
