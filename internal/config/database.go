package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// DSN returns a go-sql-driver/mysql data source name.
// If ConnectionString is set it is used as the base; otherwise the DSN is
// built from the discrete fields. Either way parseTime is forced on so
// DATETIME columns scan into time.Time.
func (d *DatabaseConfig) DSN() (string, error) {
	cfg, err := d.driverConfig()
	if err != nil {
		return "", err
	}
	return cfg.FormatDSN(), nil
}

// EffectiveDatabaseName returns the database the connection will use by default.
func (d *DatabaseConfig) EffectiveDatabaseName() (string, error) {
	cfg, err := d.driverConfig()
	if err != nil {
		return "", err
	}
	return cfg.DBName, nil
}

func (d *DatabaseConfig) driverConfig() (*mysql.Config, error) {
	var cfg *mysql.Config
	if dsn := strings.TrimSpace(d.ConnectionString); dsn != "" {
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("database.dsn is invalid: %w", err)
		}
		cfg = parsed
		if db := strings.TrimSpace(d.Database); db != "" {
			if cfg.DBName != "" && cfg.DBName != db {
				return nil, fmt.Errorf(
					"database mismatch: database.database=%q but database.dsn targets %q",
					db, cfg.DBName,
				)
			}
			cfg.DBName = db
		}
	} else {
		cfg = mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		cfg.DBName = d.Database
	}

	cfg.ParseTime = true
	if d.TLSMode != "" && cfg.TLSConfig == "" {
		cfg.TLSConfig = d.TLSMode
	}
	return cfg, nil
}
