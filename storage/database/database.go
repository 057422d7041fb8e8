// Package database opens the storage engine selected by configuration.
package database

import (
	"fmt"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/storage/database/boltdb"
	"github.com/quransn/academy/storage/database/inmem"
	"github.com/quransn/academy/storage/database/postgres"
)

const (
	EngineBolt     = "bolt"
	EngineMemory   = "memory"
	EnginePostgres = "postgres"
)

// Open returns the core.DB for conf.Storage.Engine.
func Open(conf *core.Config) (core.DB, error) {
	switch conf.Storage.Engine {
	case EngineBolt, "":
		return boltdb.Open(conf.Storage.Path)
	case EngineMemory:
		return inmemdb.NewDB(conf.Storage.QuotaBytes), nil
	case EnginePostgres:
		return postgres.Open(conf)
	default:
		return nil, fmt.Errorf("unknown storage engine %q", conf.Storage.Engine)
	}
}
