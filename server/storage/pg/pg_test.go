package pg

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/bobg/zdc/testutil"
)

const connVar = "ZDC_PG_TESTING_CONN"

func TestStore(t *testing.T) {
	connstr := os.Getenv(connVar)
	if connstr == "" {
		t.Skipf("to run %s, set %s to a valid Postgresql connection string", t.Name(), connVar)
	}

	ctx := context.Background()
	db, err := sql.Open("postgres", connstr)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	defer db.Exec("DROP TABLE datasets")

	s, err := New(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	testutil.Storage(ctx, t, s)
}
