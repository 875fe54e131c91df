package postgres

import (
	"context"
	"time"

	kpool "github.com/spinvfx/spinfab/pkg/conn/db/postgres/pool"
	"github.com/spinvfx/spinfab/pkg/conn/db/postgres/schema"
	"github.com/spinvfx/spinfab/pkg/domain/level"
	leveldb "github.com/spinvfx/spinfab/pkg/domain/level/db"
	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

type pgSync struct {
	pool  kpool.Pool
	names schema.Names
}

func New(pool kpool.Pool, names schema.Names) leveldb.Interface {
	return &pgSync{pool: pool, names: names}
}

func (s *pgSync) NewSyncRequest(ctx context.Context, comment string) (level.SyncRequest, error) {
	req := level.SyncRequest{
		Catalog: level.GlobalCatalog,
		ID:      time.Now().UnixNano(),
		Comment: comment,
	}

	_, err := s.pool.Exec(
		ctx,
		`insert into "`+s.names.Sgtree()+`" ("catalog", "id", "comment", "filename")
		values ($1, $2, $3, '')`,
		req.Catalog, req.ID, req.Comment,
	)
	if err != nil {
		return level.SyncRequest{}, xerrors.Wrap(err)
	}
	return req, nil
}

func (s *pgSync) UnfulfilledSyncRequests(ctx context.Context) ([]level.SyncRequest, error) {
	rows, err := s.pool.Query(
		ctx,
		`select "catalog", "id", "comment", "filename" from "`+s.names.Sgtree()+`"
		where "catalog" = $1 and "filename" = ''
		order by "id" asc`,
		level.GlobalCatalog,
	)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	defer rows.Close()

	requests := []level.SyncRequest{}
	for rows.Next() {
		req := level.SyncRequest{}
		if err := rows.Scan(&req.Catalog, &req.ID, &req.Comment, &req.Filename); err != nil {
			return nil, xerrors.Wrap(err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return requests, nil
}

func (s *pgSync) LastFulfilledRequest(ctx context.Context) (level.SyncRequest, bool, error) {
	rows, err := s.pool.Query(
		ctx,
		`select "catalog", "id", "comment", "filename" from "`+s.names.Sgtree()+`"
		where "catalog" = $1 and "filename" <> ''
		order by "id" desc limit 1`,
		level.GlobalCatalog,
	)
	if err != nil {
		return level.SyncRequest{}, false, xerrors.Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		req := level.SyncRequest{}
		if err := rows.Scan(&req.Catalog, &req.ID, &req.Comment, &req.Filename); err != nil {
			return level.SyncRequest{}, false, xerrors.Wrap(err)
		}
		return req, true, nil
	}
	if err := rows.Err(); err != nil {
		return level.SyncRequest{}, false, xerrors.Wrap(err)
	}
	return level.SyncRequest{}, false, nil
}

func (s *pgSync) UpdateRequestFilename(ctx context.Context, id int64, filename string) error {
	tag, err := s.pool.Exec(
		ctx,
		`update "`+s.names.Sgtree()+`" set "filename" = $1
		where "catalog" = $2 and "id" = $3`,
		filename, level.GlobalCatalog, id,
	)
	if err != nil {
		return xerrors.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.New("no such sync request")
	}
	return nil
}
