package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSNFromEnv(t *testing.T) {
	for _, key := range []string{"PGHOST", "PGPORT", "PGUSER", "PGPASSWORD", "PGDATABASE", "PGSSLMODE"} {
		t.Setenv(key, "")
	}
	assert.Equal(t, "host=localhost port=5432 user=mdm password=mdm dbname=mdm sslmode=disable", DSNFromEnv())

	t.Setenv("PGHOST", "db.internal")
	t.Setenv("PGPORT", "15432")
	t.Setenv("PGSSLMODE", "require")
	assert.Equal(t, "host=db.internal port=15432 user=mdm password=mdm dbname=mdm sslmode=require", DSNFromEnv())
}

func TestDefaultPoolOptions(t *testing.T) {
	pool := DefaultPoolOptions()
	assert.Equal(t, 20, pool.MaxOpenConns)
	assert.Equal(t, 10, pool.MaxIdleConns)
	assert.Positive(t, pool.PingTimeout)
}
