package configs

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type (
	DBType string
)

const (
	// PostgreSQL 协议.
	PostgreSQL DBType = "postgresql"
	Postgres   DBType = "postgres"
	Pg         DBType = "pg"

	MySQL   DBType = "mysql"
	MariaDB DBType = "mariadb"

	SQLite DBType = "sqlite"
)

const (
	DefaultDatabaseType     = SQLite
	DefaultDatabaseHost     = "localhost"
	DefaultDatabasePort     = 5432
	DefaultDatabaseUser     = "postgres"
	DefaultDatabasePassword = ""
	DefaultDatabaseName     = "vistoria"
	DefaultDatabaseSSLMode  = "disable"
	DefaultMaxOpenConns     = 0 // unlimited
	DefaultMaxIdleConns     = 5
	DefaultAutoMigrate      = true
	DefaultSlowQueryMillis  = 500
)

// DBConfig 数据库配置. URL (DATABASE_URL) wins over the discrete fields.
type DBConfig struct {
	Type            DBType `mapstructure:"type"              rule:"oneof=postgresql postgres pg mysql mariadb sqlite"`
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"              rule:"min=0,max=65535"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"          rule:"required"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"    rule:"min=0"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"    rule:"min=0"`
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
	SlowQueryMillis int    `mapstructure:"slow_query_millis" rule:"min=0"`
}

// Dialect 归一化后的方言名称: postgres, mysql or sqlite.
func (c *DBConfig) Dialect() DBType {
	switch c.resolvedType() {
	case PostgreSQL, Postgres, Pg:
		return Postgres
	case MySQL, MariaDB:
		return MySQL
	default:
		return SQLite
	}
}

// GetDBType 返回数据库类型的展示名.
func (c *DBConfig) GetDBType() string {
	switch c.Dialect() {
	case Postgres:
		return "PostgreSQL"
	case MySQL:
		return "MySQL"
	default:
		return "SQLite"
	}
}

// resolvedType infers the type from the URL scheme when a URL is configured.
func (c *DBConfig) resolvedType() DBType {
	if c.URL == "" {
		return c.Type
	}

	switch {
	case strings.HasPrefix(c.URL, "postgres://"), strings.HasPrefix(c.URL, "postgresql://"):
		return Postgres
	case strings.HasPrefix(c.URL, "mysql://"):
		return MySQL
	case strings.HasPrefix(c.URL, "sqlite://"), strings.HasPrefix(c.URL, "file:"):
		return SQLite
	default:
		return c.Type
	}
}

// GetDSN 获取数据库的连接字符串.
func (c *DBConfig) GetDSN() string {
	if c.URL != "" {
		switch c.Dialect() {
		case MySQL:
			return strings.TrimPrefix(c.URL, "mysql://")
		case SQLite:
			return strings.TrimPrefix(c.URL, "sqlite://")
		default:
			return c.URL
		}
	}

	dsnMap := map[DBType]func() string{
		Postgres: c.getPgSQLDSN,
		MySQL:    c.getMySQLDSN,
		SQLite:   c.getSQLiteDSN,
	}

	if fn, ok := dsnMap[c.Dialect()]; ok {
		return fn()
	}

	return ""
}

func (c *DBConfig) getPgSQLDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// getMySQLDSN keeps loc=UTC so naive timestamps stay UTC.
func (c *DBConfig) getMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

func (c *DBConfig) getSQLiteDSN() string {
	return fmt.Sprintf("file:%s.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", c.Database)
}

func (c *DBConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("db.type", DefaultDatabaseType)
	v.SetDefault("db.url", "")
	v.SetDefault("db.host", DefaultDatabaseHost)
	v.SetDefault("db.port", DefaultDatabasePort)
	v.SetDefault("db.user", DefaultDatabaseUser)
	v.SetDefault("db.password", DefaultDatabasePassword)
	v.SetDefault("db.database", DefaultDatabaseName)
	v.SetDefault("db.sslmode", DefaultDatabaseSSLMode)
	v.SetDefault("db.max_open_conns", DefaultMaxOpenConns)
	v.SetDefault("db.max_idle_conns", DefaultMaxIdleConns)
	v.SetDefault("db.auto_migrate", DefaultAutoMigrate)
	v.SetDefault("db.slow_query_millis", DefaultSlowQueryMillis)
}
