package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/synaptica-ai/curator/pkg/common/config"
)

func TestPostgresDSN(t *testing.T) {
	cfg := &config.Config{
		PostgresHost:     "db",
		PostgresPort:     "5433",
		PostgresUser:     "curator",
		PostgresPassword: "pw",
		PostgresDB:       "ledger",
		PostgresSSLMode:  "require",
	}
	assert.Equal(t, "host=db user=curator password=pw dbname=ledger port=5433 sslmode=require", PostgresDSN(cfg))
}
