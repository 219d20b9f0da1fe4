// cmd/tools/registry-tool/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"annual-reports-workers/internal/common/config"
	"annual-reports-workers/internal/common/database"
	"annual-reports-workers/internal/intake/source"
	"annual-reports-workers/pkg/registry"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		help(stdout)
		return 1
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(stderr)
		path := fs.String("path", "pkg/registry/default_registry.json", "Path to registry file (.json, .yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		reg, err := registry.LoadRegistry(*path)
		if err != nil {
			fmt.Fprintf(stderr, "Registry validation failed: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Registry %s is valid: %d templates, %d mappings.\n",
			reg.Version(), len(reg.Document().Templates), len(reg.Mappings()))
		return 0

	case "lint":
		fs := flag.NewFlagSet("lint", flag.ContinueOnError)
		fs.SetOutput(stderr)
		path := fs.String("path", "pkg/registry/default_registry.json", "Path to registry file (.json, .yaml)")
		asJSON := fs.Bool("json", false, "Print findings as JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		reg, err := registry.LoadRegistry(*path)
		if err != nil {
			fmt.Fprintf(stderr, "Registry load failed: %v\n", err)
			return 1
		}
		return lint(reg, *asJSON, stdout)

	case "publish":
		fs := flag.NewFlagSet("publish", flag.ContinueOnError)
		fs.SetOutput(stderr)
		path := fs.String("path", "pkg/registry/default_registry.json", "Path to registry file (.json, .yaml)")
		dsn := fs.String("dsn", os.Getenv("REGISTRY_DSN"), "PostgreSQL connection string")
		table := fs.String("table", "document_registry", "Registry version table")
		create := fs.Bool("create-table", false, "Create the table if it does not exist")
		redisAddr := fs.String("redis", "", "Redis address of the worker snapshot cache to invalidate")
		cacheKey := fs.String("cache-key", "annual-reports:registry:snapshot", "Snapshot cache key")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if *dsn == "" {
			fmt.Fprintln(stderr, "Error: -dsn is required for publish.")
			fs.Usage()
			return 1
		}
		if err := publish(*path, *dsn, *table, *create); err != nil {
			fmt.Fprintf(stderr, "Publish failed: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Published %s to %s.\n", *path, *table)
		if *redisAddr != "" {
			if err := invalidate(*redisAddr, *cacheKey); err != nil {
				fmt.Fprintf(stderr, "Cache invalidation failed, workers pick the new version up after the TTL: %v\n", err)
				return 1
			}
			fmt.Fprintf(stdout, "Dropped cached snapshot %s.\n", *cacheKey)
		}
		return 0

	case "export":
		fs := flag.NewFlagSet("export", flag.ContinueOnError)
		fs.SetOutput(stderr)
		schema := fs.Bool("schema", false, "Print the registry JSON schema instead")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if *schema {
			stdout.Write(registry.SchemaJSON())
		} else {
			stdout.Write(registry.DefaultJSON())
		}
		return 0

	case "help":
		help(stdout)
		return 0

	default:
		help(stdout)
		return 1
	}
}

// lint exits non-zero only on error findings.
func lint(reg *registry.Registry, asJSON bool, out io.Writer) int {
	findings := registry.Lint(reg)
	errorsFound := 0
	for _, f := range findings {
		if f.Severity == registry.SeverityError {
			errorsFound++
		}
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if findings == nil {
			findings = []registry.Finding{}
		}
		_ = enc.Encode(findings)
	} else {
		for _, f := range findings {
			target := f.MappingID
			if f.Template != "" {
				target += "/" + f.Template
			}
			fmt.Fprintf(out, "%-7s %-40s %s\n", f.Severity, target, f.Message)
		}
		fmt.Fprintf(out, "%d findings, %d errors.\n", len(findings), errorsFound)
	}

	if errorsFound > 0 {
		return 1
	}
	return 0
}

func publish(path, dsn, table string, create bool) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	db, err := database.OpenPostgres(dsn, 2, 1)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if create {
		if err := source.EnsureTable(ctx, db, table); err != nil {
			return err
		}
	}
	return source.Publish(ctx, db, table, reg)
}

func invalidate(addr, key string) error {
	rdb, err := database.NewRedis(config.RedisConfig{Address: addr})
	if err != nil {
		return err
	}
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rdb.Del(ctx, key)
}

func help(out io.Writer) {
	fmt.Fprintln(out, `
Usage: registry-tool <command> [flags]

Commands:
  validate  Check a registry file against the schema and its invariants
  lint      Report unknown templates and placeholders no mapping fills
  publish   Store a registry file as the active version in PostgreSQL
  export    Print the embedded default registry (or its schema)
  help      Show this help message

Examples:
  registry-tool validate -path pkg/registry/default_registry.json
  registry-tool lint -path registry.yaml -json
  registry-tool publish -path pkg/registry/default_registry.json -dsn "postgres://..." -create-table -redis localhost:6379
  registry-tool export > registry.json

Use 'registry-tool <command> -h' for more information about a command.`)
}
