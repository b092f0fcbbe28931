package storage

import "fmt"

// Open builds a backend from config values. kind selects the backend;
// path names the fs directory or the database (a sqlite file, or a
// postgres:// DSN); addr and password configure redis.
func Open(kind, path, addr, password string) (Storage, error) {
	switch kind {
	case "", "mem":
		return NewMem(), nil
	case "fs":
		return NewFile(path)
	case "db":
		if len(path) >= 11 && path[:11] == "postgres://" {
			return OpenPostgres(path)
		}
		return OpenSqlite(path)
	case "redis":
		return NewRedis(RedisConfig{Addr: addr, Password: password})
	default:
		return nil, fmt.Errorf("unknown storage type %q", kind)
	}
}
