package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"

	kpool "github.com/spinvfx/spinfab/pkg/conn/db/postgres/pool"
	"github.com/spinvfx/spinfab/pkg/conn/db/postgres/schema"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/dependency"
	depdb "github.com/spinvfx/spinfab/pkg/domain/dependency/db"
	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

type pgDependency struct {
	pool  kpool.Pool
	names schema.Names
}

func New(pool kpool.Pool, names schema.Names) depdb.Interface {
	return &pgDependency{pool: pool, names: names}
}

const profileColumns = `"id", "path", "name", "description", "created_at", "created_by", "profile_status", "profile_rxt", "packages", "bundles"`

func scanProfile(row interface {
	Scan(dest ...interface{}) error
}) (dependency.Profile, error) {
	p := dependency.Profile{}
	var packages, bundles []byte
	err := row.Scan(
		&p.ID, &p.Path, &p.Name, &p.Description, &p.CreatedAt,
		&p.CreatedBy, &p.Status, &p.Rxt, &packages, &bundles,
	)
	if err != nil {
		return dependency.Profile{}, err
	}
	if err := json.Unmarshal(packages, &p.Packages); err != nil {
		return dependency.Profile{}, err
	}
	if err := json.Unmarshal(bundles, &p.Bundles); err != nil {
		return dependency.Profile{}, err
	}
	return p, nil
}

func asJSON(v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", xerrors.Wrap(err)
	}
	return string(payload), nil
}

func (s *pgDependency) CreateProfile(
	ctx context.Context,
	path domain.LevelPath, name string, description string,
	packages []dependency.PackageRef, bundles []dependency.Bundle,
	createdBy string,
) (dependency.Profile, error) {
	if packages == nil {
		packages = []dependency.PackageRef{}
	}
	if bundles == nil {
		bundles = []dependency.Bundle{}
	}

	p := dependency.Profile{
		ID:          dependency.ProfileIDFromPath(path),
		Path:        path,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().Format(dependency.CreatedAtLayout),
		CreatedBy:   createdBy,
		Status:      dependency.StatusPending,
		Packages:    packages,
		Bundles:     bundles,
	}

	packagesJSON, err := asJSON(p.Packages)
	if err != nil {
		return dependency.Profile{}, err
	}
	bundlesJSON, err := asJSON(p.Bundles)
	if err != nil {
		return dependency.Profile{}, err
	}

	_, err = s.pool.Exec(
		ctx,
		`insert into "`+s.names.Profiles()+`" (`+profileColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, '', $8::jsonb, $9::jsonb)`,
		p.ID, p.Path, p.Name, p.Description, p.CreatedAt, p.CreatedBy, p.Status,
		packagesJSON, bundlesJSON,
	)
	if err != nil {
		pgErr := &pgconn.PgError{}
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return dependency.Profile{}, dependency.Reject(409, "attempted creation of profile at same path (same id)")
		}
		return dependency.Profile{}, xerrors.Wrap(err)
	}
	return p, nil
}

func (s *pgDependency) getProfileWhere(ctx context.Context, where string, arg any) (dependency.Profile, bool, error) {
	rows, err := s.pool.Query(
		ctx,
		`select `+profileColumns+` from "`+s.names.Profiles()+`" where `+where,
		arg,
	)
	if err != nil {
		return dependency.Profile{}, false, xerrors.Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return dependency.Profile{}, false, xerrors.Wrap(err)
		}
		return p, true, nil
	}
	if err := rows.Err(); err != nil {
		return dependency.Profile{}, false, xerrors.Wrap(err)
	}
	return dependency.Profile{}, false, nil
}

func (s *pgDependency) GetProfile(ctx context.Context, id string) (dependency.Profile, bool, error) {
	return s.getProfileWhere(ctx, `"id" = $1`, id)
}

func (s *pgDependency) GetProfileByPath(ctx context.Context, path domain.LevelPath) (dependency.Profile, bool, error) {
	return s.getProfileWhere(ctx, `"path" = $1`, path)
}

func (s *pgDependency) listProfilesWhere(ctx context.Context, where string, arg any) ([]dependency.Profile, error) {
	rows, err := s.pool.Query(
		ctx,
		`select `+profileColumns+` from "`+s.names.Profiles()+`"
		where `+where+` order by "path" asc`,
		arg,
	)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	defer rows.Close()

	profiles := []dependency.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, xerrors.Wrap(err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return profiles, nil
}

func (s *pgDependency) ListProfiles(ctx context.Context, query string) ([]dependency.Profile, error) {
	return s.listProfilesWhere(ctx, `position(lower($1) in lower("name")) > 0`, query)
}

func (s *pgDependency) ProfilesUnderPath(ctx context.Context, path domain.LevelPath) ([]dependency.Profile, error) {
	prefix := string(domain.CanonizePath(string(path)))
	if prefix != "/" {
		prefix = prefix + "/"
	}
	// left() instead of like: path segments may carry _ and %
	return s.listProfilesWhere(ctx, `left("path", length($1)) = $1 and "path" <> '/'`, prefix)
}

func (s *pgDependency) PatchProfile(ctx context.Context, id string, name string, description string) (dependency.Profile, bool, error) {
	rows, err := s.pool.Query(
		ctx,
		`update "`+s.names.Profiles()+`" set "name" = $1, "description" = $2
		where "id" = $3
		returning `+profileColumns,
		name, description, id,
	)
	if err != nil {
		return dependency.Profile{}, false, xerrors.Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return dependency.Profile{}, false, xerrors.Wrap(err)
		}
		return p, true, nil
	}
	if err := rows.Err(); err != nil {
		return dependency.Profile{}, false, xerrors.Wrap(err)
	}
	return dependency.Profile{}, false, nil
}

func (s *pgDependency) DeleteProfile(ctx context.Context, id string) (bool, error) {
	_, err := s.pool.Exec(
		ctx,
		`delete from "`+s.names.ProfileComments()+`" where "profile_id" = $1`,
		id,
	)
	if err != nil {
		return false, xerrors.Wrap(err)
	}

	tag, err := s.pool.Exec(
		ctx,
		`delete from "`+s.names.Profiles()+`" where "id" = $1`,
		id,
	)
	if err != nil {
		return false, xerrors.Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *pgDependency) SetProfilePackages(ctx context.Context, id string, refs []dependency.PackageRef) error {
	if refs == nil {
		refs = []dependency.PackageRef{}
	}
	packagesJSON, err := asJSON(refs)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(
		ctx,
		`update "`+s.names.Profiles()+`" set "packages" = $1::jsonb where "id" = $2`,
		packagesJSON, id,
	)
	if err != nil {
		return xerrors.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.New("no such profile: " + id)
	}
	return nil
}

func (s *pgDependency) SetProfileBundles(ctx context.Context, id string, bundles []dependency.Bundle) error {
	if bundles == nil {
		bundles = []dependency.Bundle{}
	}
	bundlesJSON, err := asJSON(bundles)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(
		ctx,
		`update "`+s.names.Profiles()+`" set "bundles" = $1::jsonb where "id" = $2`,
		bundlesJSON, id,
	)
	if err != nil {
		return xerrors.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.New("no such profile: " + id)
	}
	return nil
}

func (s *pgDependency) SetProfileStatus(ctx context.Context, id string, status string, rxt string) (bool, error) {
	if status != dependency.StatusValid {
		rxt = ""
	}
	tag, err := s.pool.Exec(
		ctx,
		`update "`+s.names.Profiles()+`" set "profile_status" = $1, "profile_rxt" = $2
		where "id" = $3`,
		status, rxt, id,
	)
	if err != nil {
		return false, xerrors.Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *pgDependency) AddProfileComment(ctx context.Context, profileID string, comment string, createdBy string) (dependency.Comment, bool, error) {
	if _, found, err := s.GetProfile(ctx, profileID); err != nil || !found {
		return dependency.Comment{}, false, err
	}

	c := dependency.Comment{
		Comment:   comment,
		CreatedBy: createdBy,
		CreatedAt: time.Now().Format(dependency.CreatedAtLayout),
	}
	_, err := s.pool.Exec(
		ctx,
		`insert into "`+s.names.ProfileComments()+`" ("profile_id", "comment", "created_by", "created_at")
		values ($1, $2, $3, $4)`,
		profileID, c.Comment, c.CreatedBy, c.CreatedAt,
	)
	if err != nil {
		return dependency.Comment{}, false, xerrors.Wrap(err)
	}
	return c, true, nil
}

func (s *pgDependency) ListProfileComments(ctx context.Context, profileID string) ([]dependency.Comment, error) {
	rows, err := s.pool.Query(
		ctx,
		`select "comment", "created_by", "created_at" from "`+s.names.ProfileComments()+`"
		where "profile_id" = $1 order by "id" asc`,
		profileID,
	)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	defer rows.Close()

	comments := []dependency.Comment{}
	for rows.Next() {
		c := dependency.Comment{}
		if err := rows.Scan(&c.Comment, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, xerrors.Wrap(err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return comments, nil
}

func scanBundle(row interface {
	Scan(dest ...interface{}) error
}) (dependency.Bundle, error) {
	b := dependency.Bundle{}
	var packages []byte
	if err := row.Scan(&b.Name, &b.Description, &packages); err != nil {
		return dependency.Bundle{}, err
	}
	if err := json.Unmarshal(packages, &b.Packages); err != nil {
		return dependency.Bundle{}, err
	}
	return b, nil
}

func (s *pgDependency) CreateBundle(ctx context.Context, bundle dependency.Bundle) (dependency.Bundle, error) {
	if bundle.Packages == nil {
		bundle.Packages = []dependency.PackageRef{}
	}
	packagesJSON, err := asJSON(bundle.Packages)
	if err != nil {
		return dependency.Bundle{}, err
	}

	_, err = s.pool.Exec(
		ctx,
		`insert into "`+s.names.Bundles()+`" ("name", "description", "packages")
		values ($1, $2, $3::jsonb)`,
		bundle.Name, bundle.Description, packagesJSON,
	)
	if err != nil {
		pgErr := &pgconn.PgError{}
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return dependency.Bundle{}, dependency.Reject(409, "there is already a bundle using the same name")
		}
		return dependency.Bundle{}, xerrors.Wrap(err)
	}
	return bundle, nil
}

func (s *pgDependency) GetBundle(ctx context.Context, name string) (dependency.Bundle, bool, error) {
	rows, err := s.pool.Query(
		ctx,
		`select "name", "description", "packages" from "`+s.names.Bundles()+`" where "name" = $1`,
		name,
	)
	if err != nil {
		return dependency.Bundle{}, false, xerrors.Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return dependency.Bundle{}, false, xerrors.Wrap(err)
		}
		return b, true, nil
	}
	if err := rows.Err(); err != nil {
		return dependency.Bundle{}, false, xerrors.Wrap(err)
	}
	return dependency.Bundle{}, false, nil
}

func (s *pgDependency) ListBundles(ctx context.Context, query string) ([]dependency.Bundle, error) {
	rows, err := s.pool.Query(
		ctx,
		`select "name", "description", "packages" from "`+s.names.Bundles()+`"
		where position(lower($1) in lower("name")) > 0
		order by "name" asc`,
		query,
	)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	defer rows.Close()

	bundles := []dependency.Bundle{}
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, xerrors.Wrap(err)
		}
		bundles = append(bundles, b)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return bundles, nil
}

func (s *pgDependency) SetBundlePackages(ctx context.Context, name string, refs []dependency.PackageRef) (dependency.Bundle, bool, error) {
	if refs == nil {
		refs = []dependency.PackageRef{}
	}
	packagesJSON, err := asJSON(refs)
	if err != nil {
		return dependency.Bundle{}, false, err
	}

	rows, err := s.pool.Query(
		ctx,
		`update "`+s.names.Bundles()+`" set "packages" = $1::jsonb
		where "name" = $2
		returning "name", "description", "packages"`,
		packagesJSON, name,
	)
	if err != nil {
		return dependency.Bundle{}, false, xerrors.Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return dependency.Bundle{}, false, xerrors.Wrap(err)
		}
		return b, true, nil
	}
	if err := rows.Err(); err != nil {
		return dependency.Bundle{}, false, xerrors.Wrap(err)
	}
	return dependency.Bundle{}, false, nil
}

func (s *pgDependency) DeleteBundle(ctx context.Context, name string) (bool, error) {
	tag, err := s.pool.Exec(
		ctx,
		`delete from "`+s.names.Bundles()+`" where "name" = $1`,
		name,
	)
	if err != nil {
		return false, xerrors.Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}
