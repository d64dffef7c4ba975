package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	dispatch "github.com/cavendo/go-dispatch"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const defaultSourceLabel = "go-dispatch"

const embeddedRoot = "data/sql/migrations"

// FilesystemSpec pairs a dialect with the filesystem holding its
// migration scripts.
type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// Registration describes what was handed to the migration runner.
type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

func (r Registration) validate() error {
	if strings.TrimSpace(r.SourceLabel) == "" {
		return fmt.Errorf("migrations: source label is required")
	}
	if len(r.ValidationTargets) == 0 {
		return fmt.Errorf("migrations: validation targets are required")
	}
	if len(r.Filesystems) == 0 {
		return fmt.Errorf("migrations: filesystems are required")
	}
	return nil
}

// RegisterFunc is the runner callback. go-persistence-bun's
// RegisterSQLMigrations satisfies it with a small closure.
type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithDialectSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if normalized := normalizeDialects(targets); len(normalized) > 0 {
			r.ValidationTargets = normalized
		}
	}
}

func WithFilesystems(filesystems ...FilesystemSpec) Option {
	return func(r *Registration) {
		kept := make([]FilesystemSpec, 0, len(filesystems))
		for _, spec := range filesystems {
			dialect := strings.TrimSpace(strings.ToLower(spec.Dialect))
			if dialect == "" || spec.FS == nil {
				continue
			}
			spec.Dialect = dialect
			kept = append(kept, spec)
		}
		if len(kept) > 0 {
			r.Filesystems = kept
		}
	}
}

// Filesystems resolves the embedded migration tree into one spec per
// dialect. An explicit source overrides the embedded tree, which lets
// callers point at an exploded directory during development.
func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	root := dispatch.GetCoreMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}

	base, basePath, err := locateRoot(root)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite filesystem: %w", err)
	}

	specs := []FilesystemSpec{
		{Dialect: DialectPostgres, Path: basePath, FS: base},
		{Dialect: DialectSQLite, Path: joinPath(basePath, "sqlite"), FS: sqliteFS},
	}
	for _, spec := range specs {
		if err := ensureUpScripts(spec); err != nil {
			return nil, err
		}
	}
	return specs, nil
}

// Register resolves the migration filesystems, applies options and hands
// each validation-target dialect to the runner callback.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       defaultSourceLabel,
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}

	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems

	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}

	if err := reg.validate(); err != nil {
		return reg, err
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	wanted := make(map[string]struct{}, len(reg.ValidationTargets))
	for _, target := range normalizeDialects(reg.ValidationTargets) {
		wanted[target] = struct{}{}
	}
	for _, spec := range reg.Filesystems {
		if _, ok := wanted[spec.Dialect]; !ok {
			continue
		}
		if spec.FS == nil {
			return reg, fmt.Errorf("migrations: filesystem for %s is nil", spec.Dialect)
		}
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", spec.Dialect, spec.Path, err)
		}
	}

	return reg, nil
}

func ensureUpScripts(spec FilesystemSpec) error {
	matches, err := fs.Glob(spec.FS, "*.up.sql")
	if err != nil {
		return fmt.Errorf("migrations: glob %s %s: %w", spec.Dialect, spec.Path, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("migrations: %s filesystem %q has no *.up.sql files", spec.Dialect, spec.Path)
	}
	return nil
}

// locateRoot handles both the embedded tree (rooted at data/sql/migrations)
// and a caller-provided filesystem already rooted at the scripts.
func locateRoot(root fs.FS) (fs.FS, string, error) {
	sub, err := fs.Sub(root, embeddedRoot)
	if err == nil {
		return sub, embeddedRoot, nil
	}

	if entries, readErr := fs.ReadDir(root, "."); readErr == nil {
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
				return root, ".", nil
			}
		}
	}

	return nil, "", fmt.Errorf("migrations: %s not found: %w", embeddedRoot, err)
}

func normalizeDialects(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(strings.ToLower(value))
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func joinPath(base string, suffix string) string {
	if base == "." {
		return suffix
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(suffix, "/")
}
