package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const migrationLockKey = int64(49152017)

const schemaMigrationsDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    BIGINT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

var migrationFileName = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

type migrationDirection string

const (
	migrationUp   migrationDirection = "up"
	migrationDown migrationDirection = "down"
)

// migration это пара up/down скриптов одной версии схемы счетов.
type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

func (m migration) label() string {
	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}

func (m migration) script(direction migrationDirection) string {
	if direction == migrationDown {
		return m.DownSQL
	}
	return m.UpSQL
}

// MigrationState описывает схему относительно встроенных миграций.
type MigrationState struct {
	Version int64
	Applied int
	Pending []string
}

// MigrateUp применяет до steps ожидающих миграций, 0 означает все.
// Возвращает метки выполненных миграций.
func (s *Store) MigrateUp(ctx context.Context, steps int) ([]string, error) {
	return s.migrate(ctx, migrationUp, steps)
}

// MigrateDown откатывает steps последних миграций, не меньше одной.
func (s *Store) MigrateDown(ctx context.Context, steps int) ([]string, error) {
	return s.migrate(ctx, migrationDown, max(steps, 1))
}

// MigrationStatus возвращает версию схемы и ожидающие миграции.
func (s *Store) MigrationStatus(ctx context.Context) (MigrationState, error) {
	if s == nil || s.db == nil {
		return MigrationState{}, errors.New("postgres store is not initialized")
	}
	migrations, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		return MigrationState{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, schemaMigrationsDDL); err != nil {
		return MigrationState{}, fmt.Errorf("ensure migration table: %w", err)
	}
	applied, err := appliedVersions(ctx, s.db)
	if err != nil {
		return MigrationState{}, err
	}

	state := MigrationState{Applied: len(applied)}
	for version := range applied {
		state.Version = max(state.Version, version)
	}
	pending, _ := planMigrations(migrationUp, migrations, applied, 0)
	for _, m := range pending {
		state.Pending = append(state.Pending, m.label())
	}
	return state, nil
}

func (s *Store) migrate(ctx context.Context, direction migrationDirection, steps int) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("postgres store is not initialized")
	}
	if direction != migrationUp && direction != migrationDown {
		return nil, fmt.Errorf("unsupported migration direction: %s", direction)
	}
	migrations, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		return nil, err
	}

	// Advisory lock держится на соединении, поэтому весь прогон идёт через одно.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, schemaMigrationsDDL); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}
	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return nil, err
	}
	plan, err := planMigrations(direction, migrations, applied, steps)
	if err != nil {
		return nil, err
	}

	done := make([]string, 0, len(plan))
	for _, m := range plan {
		if err := execMigration(ctx, conn, direction, m); err != nil {
			return done, err
		}
		done = append(done, m.label())
	}
	return done, nil
}

// planMigrations выбирает миграции для выполнения.
// Up берёт неприменённые по возрастанию версий, down берёт применённые по убыванию.
// steps<=0 означает без ограничения.
func planMigrations(direction migrationDirection, migrations []migration, applied map[int64]bool, steps int) ([]migration, error) {
	var plan []migration
	switch direction {
	case migrationUp:
		for _, m := range migrations {
			if !applied[m.Version] {
				plan = append(plan, m)
			}
		}
	case migrationDown:
		known := make(map[int64]migration, len(migrations))
		for _, m := range migrations {
			known[m.Version] = m
		}
		versions := make([]int64, 0, len(applied))
		for version := range applied {
			versions = append(versions, version)
		}
		slices.Sort(versions)
		slices.Reverse(versions)
		for _, version := range versions {
			m, ok := known[version]
			if !ok {
				return nil, fmt.Errorf("cannot rollback unknown migration version %d", version)
			}
			plan = append(plan, m)
			if steps > 0 && len(plan) == steps {
				break
			}
		}
	default:
		return nil, fmt.Errorf("unsupported migration direction: %s", direction)
	}

	if steps > 0 && len(plan) > steps {
		plan = plan[:steps]
	}
	return plan, nil
}

// execMigration выполняет скрипт и правку schema_migrations в одной транзакции.
func execMigration(ctx context.Context, conn *sql.Conn, direction migrationDirection, m migration) (err error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s %s: %w", direction, m.label(), err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, m.script(direction)); err != nil {
		return fmt.Errorf("execute %s migration %s: %w", direction, m.label(), err)
	}
	if direction == migrationUp {
		_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version)
	}
	if err != nil {
		return fmt.Errorf("record %s migration %s: %w", direction, m.label(), err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %s: %w", direction, m.label(), err)
	}
	return nil
}

func appliedVersions(ctx context.Context, q querier) (map[int64]bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

// loadMigrationsFromFS собирает пары NNNN_name.up.sql / NNNN_name.down.sql.
func loadMigrationsFromFS(fsys fs.FS) ([]migration, error) {
	files, err := fs.Glob(fsys, "sql/migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	byVersion := make(map[int64]*migration)
	for _, file := range files {
		base := path.Base(file)
		parts := migrationFileName.FindStringSubmatch(base)
		if parts == nil {
			return nil, fmt.Errorf("invalid migration file name: %s", base)
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version from %s: %w", base, err)
		}

		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", file, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", base)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &migration{Version: version, Name: parts[2]}
			byVersion[version] = m
		}
		if m.Name != parts[2] {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, m.Name, parts[2])
		}

		target := &m.UpSQL
		if migrationDirection(parts[3]) == migrationDown {
			target = &m.DownSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", parts[3], version)
		}
		*target = body
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" || m.DownSQL == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", m.label())
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b migration) int { return int(a.Version - b.Version) })
	return migrations, nil
}
