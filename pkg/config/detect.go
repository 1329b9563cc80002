package config

import (
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/dbnest/dbnest/pkg/engine"
)

// detectBinaries names the binary probed on PATH for each engine.
var detectBinaries = map[engine.Kind]string{
	engine.KindPostgres:   "postgres",
	engine.KindMySQL:      "mysqld",
	engine.KindMariaDB:    "mariadbd",
	engine.KindRedis:      "redis-server",
	engine.KindValkey:     "valkey-server",
	engine.KindMongoDB:    "mongod",
	engine.KindClickHouse: "clickhouse",
	engine.KindQdrant:     "qdrant",
	engine.KindSQLite:     "sqlite3",
	engine.KindDuckDB:     "duckdb",
}

// Detection reports one engine binary found on PATH.
type Detection struct {
	Kind   engine.Kind
	Binary string
	Path   string
}

// Detect scans PATH for known engine binaries and records each hit's
// directory in the config. Engines with an explicitly configured bin_dir are
// left alone.
func (c *Config) Detect() []Detection {
	var found []Detection
	for _, kind := range engine.Kinds {
		binary := detectBinaries[kind]
		path, err := exec.LookPath(binary)
		if err != nil {
			continue
		}
		found = append(found, Detection{Kind: kind, Binary: binary, Path: path})
		if c.Engines[string(kind)].BinDir != "" {
			continue
		}
		s := c.Engines[string(kind)]
		s.BinDir = filepath.Dir(path)
		c.Engines[string(kind)] = s
		log.Debug().
			Str("kind", string(kind)).
			Str("path", path).
			Msg("Detected engine binary")
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Kind < found[j].Kind })
	return found
}
