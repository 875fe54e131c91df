package postgres

import (
	"context"
	"time"

	kpool "github.com/spinvfx/spinfab/pkg/conn/db/postgres/pool"
	"github.com/spinvfx/spinfab/pkg/conn/db/postgres/schema"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/config"
	configdb "github.com/spinvfx/spinfab/pkg/domain/config/db"
	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

type pgConfig struct {
	pool  kpool.Pool
	names schema.Names
}

func New(pool kpool.Pool, names schema.Names) configdb.Interface {
	return &pgConfig{pool: pool, names: names}
}

const configColumns = `"id", "name", "path", "description", "inherits", "active", "created", "updated", "created_by"`

func scanConfig(row interface {
	Scan(dest ...interface{}) error
}) (config.Config, error) {
	c := config.Config{}
	err := row.Scan(
		&c.ID, &c.Name, &c.Path, &c.Description, &c.Inherits,
		&c.Active, &c.Created, &c.Updated, &c.CreatedBy,
	)
	return c, err
}

func (s *pgConfig) Create(
	ctx context.Context,
	path domain.LevelPath, name string, description string, inherits bool, createdBy string,
) (config.Config, error) {
	now := time.Now().UnixNano()
	c := config.Config{
		ID:          config.NewID(),
		Name:        name,
		Path:        path,
		Description: description,
		Inherits:    inherits,
		Active:      0,
		Created:     now,
		Updated:     now,
		CreatedBy:   createdBy,
	}

	_, err := s.pool.Exec(
		ctx,
		`insert into "`+s.names.Configs()+`" (`+configColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Name, c.Path, c.Description, c.Inherits,
		c.Active, c.Created, c.Updated, c.CreatedBy,
	)
	if err != nil {
		return config.Config{}, xerrors.Wrap(err)
	}
	return c, nil
}

func (s *pgConfig) Get(ctx context.Context, id string) (config.Config, bool, error) {
	rows, err := s.pool.Query(
		ctx,
		`select `+configColumns+` from "`+s.names.Configs()+`" where "id" = $1`,
		id,
	)
	if err != nil {
		return config.Config{}, false, xerrors.Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return config.Config{}, false, xerrors.Wrap(err)
		}
		return c, true, nil
	}
	if err := rows.Err(); err != nil {
		return config.Config{}, false, xerrors.Wrap(err)
	}
	return config.Config{}, false, nil
}

func (s *pgConfig) Find(ctx context.Context, name *string, path *domain.LevelPath) ([]config.Config, error) {
	query := `select ` + configColumns + ` from "` + s.names.Configs() + `" where true`
	args := []interface{}{}
	if name != nil {
		args = append(args, *name)
		query += ` and position(lower($1) in lower("name")) > 0`
	}
	if path != nil {
		args = append(args, *path)
		if name != nil {
			query += ` and "path" = $2`
		} else {
			query += ` and "path" = $1`
		}
	}
	query += ` order by "path" asc, "name" asc, "active" desc`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	defer rows.Close()

	configs := []config.Config{}
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, xerrors.Wrap(err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return configs, nil
}

func (s *pgConfig) Update(
	ctx context.Context,
	id string, path domain.LevelPath, name string, description string, inherits bool, active int64,
) (config.Config, bool, error) {
	rows, err := s.pool.Query(
		ctx,
		`update "`+s.names.Configs()+`"
		set "path" = $1, "name" = $2, "description" = $3, "inherits" = $4, "active" = $5, "updated" = $6
		where "id" = $7
		returning `+configColumns,
		path, name, description, inherits, active, time.Now().UnixNano(), id,
	)
	if err != nil {
		return config.Config{}, false, xerrors.Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return config.Config{}, false, xerrors.Wrap(err)
		}
		return c, true, nil
	}
	if err := rows.Err(); err != nil {
		return config.Config{}, false, xerrors.Wrap(err)
	}
	return config.Config{}, false, nil
}

func (s *pgConfig) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(
		ctx,
		`delete from "`+s.names.Configs()+`" where "id" = $1`,
		id,
	)
	if err != nil {
		return false, xerrors.Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *pgConfig) SetActiveStamp(ctx context.Context, id string, active int64) (config.Config, bool, error) {
	// when activating, updated matches the activation stamp
	updated := active
	if updated <= 0 {
		updated = time.Now().UnixNano()
	}

	rows, err := s.pool.Query(
		ctx,
		`update "`+s.names.Configs()+`" set "active" = $1, "updated" = $2
		where "id" = $3
		returning `+configColumns,
		active, updated, id,
	)
	if err != nil {
		return config.Config{}, false, xerrors.Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return config.Config{}, false, xerrors.Wrap(err)
		}
		return c, true, nil
	}
	if err := rows.Err(); err != nil {
		return config.Config{}, false, xerrors.Wrap(err)
	}
	return config.Config{}, false, nil
}

func (s *pgConfig) ActiveByName(ctx context.Context, name string) ([]config.Config, error) {
	rows, err := s.pool.Query(
		ctx,
		`select `+configColumns+` from "`+s.names.Configs()+`"
		where "name" = $1 and "active" > 0
		order by "path" asc, "active" desc`,
		name,
	)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	defer rows.Close()

	configs := []config.Config{}
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, xerrors.Wrap(err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return configs, nil
}

func (s *pgConfig) ActiveByPathAndName(ctx context.Context, path domain.LevelPath, name string) ([]config.Config, error) {
	rows, err := s.pool.Query(
		ctx,
		`select `+configColumns+` from "`+s.names.Configs()+`"
		where "path" = $1 and "name" = $2 and "active" > 0
		order by "active" desc`,
		path, name,
	)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	defer rows.Close()

	configs := []config.Config{}
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, xerrors.Wrap(err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return configs, nil
}

func (s *pgConfig) CurrentByPathAndName(ctx context.Context, path domain.LevelPath, name string) (config.Config, bool, error) {
	rows, err := s.pool.Query(
		ctx,
		`select `+configColumns+` from "`+s.names.Configs()+`"
		where "path" = $1 and "name" = $2 and "active" > 0
		order by "active" desc limit 1`,
		path, name,
	)
	if err != nil {
		return config.Config{}, false, xerrors.Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return config.Config{}, false, xerrors.Wrap(err)
		}
		return c, true, nil
	}
	if err := rows.Err(); err != nil {
		return config.Config{}, false, xerrors.Wrap(err)
	}
	return config.Config{}, false, nil
}
