package pg

import (
	"testing"
	"time"

	"github.com/cwrk-planet/messaging-service/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigApply(t *testing.T) {
	pc, err := pgxpool.ParseConfig("postgres://u:p@localhost:5432/db?pool_max_conns=7")
	require.NoError(t, err)

	Config{MinConns: 1, MaxConnIdleTime: time.Minute, ApplicationName: "messaging"}.apply(pc)

	assert.EqualValues(t, 7, pc.MaxConns, "zero MaxConns keeps the DSN value")
	assert.EqualValues(t, 1, pc.MinConns)
	assert.Equal(t, time.Minute, pc.MaxConnIdleTime)
	assert.Equal(t, "messaging", pc.ConnConfig.RuntimeParams["application_name"])
}

func TestEmbeddedMigrations(t *testing.T) {
	data, err := migrations.FS.ReadFile("0001_messages.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS messages")
}
