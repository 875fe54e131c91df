package pool_test

import (
	"testing"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/spinvfx/spinfab/pkg/conn/db/postgres/pool"
)

// The stores send single statements straight on the pool, so every
// handle level must carry the query methods.
var (
	_ pool.Queryer = pool.Pool(nil)
	_ pool.Queryer = pool.Conn(nil)
	_ pool.Queryer = pool.Tx(nil)
)

func TestWrap(t *testing.T) {
	var base *pgxpool.Pool
	if pool.Wrap(base) == nil {
		t.Errorf("Wrap should yield a usable Pool")
	}
}
