// Command dialect_diff compiles stored report definitions against both
// dialects and compares the projected column surface. Used before
// warehouse migrations to prove Athena and Snowflake stay in lockstep.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/openlearnhq/report-engine/internal/compiler"
	"github.com/openlearnhq/report-engine/internal/models"
)

type comparison struct {
	File          string
	Type          models.ReportType
	AthenaAliases []string
	SnowAliases   []string
	Match         bool
	Skipped       bool
	Error         error
}

var aliasPattern = regexp.MustCompile(`(?i)\sAS\s"([^"]+)"`)

func main() {
	var (
		reportsDir string
		limit      int
		timeout    time.Duration
	)

	flag.StringVar(&reportsDir, "reports", filepath.Join("scripts", "dialect_diff", "reports"), "Directory of report definition JSON files")
	flag.IntVar(&limit, "limit", 1000, "Row limit applied to compiled statements")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Per-report compile timeout")
	flag.Parse()

	entries, err := os.ReadDir(reportsDir)
	if err != nil {
		log.Fatalf("failed to read reports dir: %v", err)
	}

	session := &models.SessionContext{UserID: 1, Level: models.LevelAdmin}
	var results []comparison
	mismatches := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		comp := compareFile(filepath.Join(reportsDir, entry.Name()), session, limit, timeout)
		results = append(results, comp)
		if comp.Error != nil || (!comp.Skipped && !comp.Match) {
			mismatches++
		}
	}

	for _, comp := range results {
		switch {
		case comp.Error != nil:
			fmt.Printf("FAIL  %-40s %s: %v\n", comp.File, comp.Type, comp.Error)
		case comp.Skipped:
			fmt.Printf("SKIP  %-40s %s (single-dialect report)\n", comp.File, comp.Type)
		case comp.Match:
			fmt.Printf("OK    %-40s %s (%d columns)\n", comp.File, comp.Type, len(comp.AthenaAliases))
		default:
			fmt.Printf("DIFF  %-40s %s\n", comp.File, comp.Type)
			fmt.Printf("      athena:    %s\n", strings.Join(comp.AthenaAliases, ", "))
			fmt.Printf("      snowflake: %s\n", strings.Join(comp.SnowAliases, ", "))
		}
	}

	if mismatches > 0 {
		fmt.Printf("\n%d of %d reports diverge\n", mismatches, len(results))
		os.Exit(1)
	}
	fmt.Printf("\nall %d reports match\n", len(results))
}

func compareFile(path string, session *models.SessionContext, limit int, timeout time.Duration) comparison {
	comp := comparison{File: filepath.Base(path)}

	data, err := os.ReadFile(path)
	if err != nil {
		comp.Error = err
		return comp
	}
	var def models.ReportDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		comp.Error = fmt.Errorf("parse definition: %w", err)
		return comp
	}
	comp.Type = def.Type

	c, err := compiler.New(def.Type, compiler.Deps{})
	if err != nil {
		comp.Error = err
		return comp
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req := compiler.Request{Definition: &def, Session: session, Limit: limit}

	athenaSQL, err := c.Athena(ctx, req)
	if err != nil {
		comp.Error = fmt.Errorf("athena: %w", err)
		return comp
	}
	snowSQL, err := c.Snowflake(ctx, req)
	if err != nil {
		if errors.Is(err, compiler.ErrUnsupportedDialect) {
			comp.Skipped = true
			return comp
		}
		comp.Error = fmt.Errorf("snowflake: %w", err)
		return comp
	}

	comp.AthenaAliases = aliases(athenaSQL)
	comp.SnowAliases = aliases(snowSQL)
	comp.Match = reflect.DeepEqual(comp.AthenaAliases, comp.SnowAliases)
	return comp
}

// aliases extracts the projected column aliases in order. UNION branches
// repeat the alias list, so only the first occurrence of each is kept.
func aliases(sql string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, m := range aliasPattern.FindAllStringSubmatch(sql, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}
