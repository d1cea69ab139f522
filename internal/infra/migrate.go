// README: Applies the embedded SQL migrations statement by statement.
package infra

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"lifeline/migrations"
)

// ApplyMigrations runs every embedded migration file in order. All
// statements are idempotent (IF NOT EXISTS), so it is safe to re-run.
func ApplyMigrations(ctx context.Context, db *pgxpool.Pool) (int, error) {
	names, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return 0, err
	}
	sort.Strings(names)

	applied := 0
	for _, name := range names {
		content, err := migrations.FS.ReadFile(name)
		if err != nil {
			return applied, err
		}
		for _, stmt := range SplitSQL(string(content)) {
			if _, err := db.Exec(ctx, stmt); err != nil {
				return applied, fmt.Errorf("%s: %w", name, err)
			}
		}
		applied++
	}
	return applied, nil
}

// SplitSQL drops full-line comments and splits the remainder on ';'.
func SplitSQL(input string) []string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}

	parts := strings.Split(b.String(), ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
