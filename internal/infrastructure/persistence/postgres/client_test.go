package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"novel-writer/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(&config.PostgresConfig{
		Host:     "db",
		Port:     5432,
		User:     "novel",
		Password: "secret",
		Database: "novel_writer",
		SSLMode:  "require",
	})
	assert.Equal(t, "postgres://novel:secret@db:5432/novel_writer?sslmode=require", dsn)
}

func TestDSNEscapesPassword(t *testing.T) {
	dsn := DSN(&config.PostgresConfig{Host: "db", Port: 5432, User: "novel", Password: "p@ss/word", Database: "n"})
	assert.Equal(t, "postgres://novel:p%40ss%2Fword@db:5432/n?sslmode=disable", dsn)
}
