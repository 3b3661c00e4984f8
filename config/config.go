package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"

	"github.com/hashicorp/go-multierror"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type Config struct {
	Addr           string
	DBDriver       string
	DBUrl          string
	TokenSecret    string
	FrontendURL    string
	VoteBlocked    bool
	InsecureCookie bool
	Debug          bool

	// PromoteAdmin, when set, names the national id to promote before exiting.
	PromoteAdmin string
}

// ParseFlags reads the command line, falling back to environment variables
// for anything not given as a flag.
func ParseFlags(args []string) (cfg Config, err error) {
	fs := flag.NewFlagSet("quick-poll", flag.ContinueOnError)

	host := fs.String("host", "", "listen host name (default 0.0.0.0, env HOST)")
	port := fs.Uint("port", 0, "listen port number (default 3333, env PORT)")
	fs.StringVar(&cfg.DBDriver, "db-driver", "", "database driver, sqlite3 or postgres (env DB_DRIVER)")
	fs.StringVar(&cfg.DBUrl, "db-url", "", "SQLite3 file or PostgreSQL URL (default qpoll.sqlite, env DATABASE_URL)")
	fs.StringVar(&cfg.TokenSecret, "token-secret", "", "secret key for signing session tokens (env JWT_SECRET)")
	fs.StringVar(&cfg.FrontendURL, "frontend-url", "", "origin allowed by CORS (env FRONTEND_URL)")
	fs.BoolVar(&cfg.VoteBlocked, "vote-blocked", false, "reject every new vote (env VOTE_BLOCKED)")
	fs.BoolVar(&cfg.InsecureCookie, "insecure-cookie", false, "send the session cookie over plain HTTP (env INSECURE_COOKIE)")
	fs.BoolVar(&cfg.Debug, "debug", false, "log at DEBUG level (env DEBUG)")
	fs.StringVar(&cfg.PromoteAdmin, "promote-admin", "", "promote the user with this national id to ADMIN and exit")

	if err = fs.Parse(args); err != nil {
		return Config{}, err
	}

	var errs *multierror.Error

	if *host == "" {
		*host = envOr("HOST", "0.0.0.0")
	}
	if *port == 0 {
		*port = 3333
		if s := os.Getenv("PORT"); s != "" {
			p, err := strconv.ParseUint(s, 10, 16)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("invalid PORT %q", s))
			}
			*port = uint(p)
		}
	}
	cfg.Addr = net.JoinHostPort(*host, strconv.Itoa(int(*port)))

	if cfg.DBDriver == "" {
		cfg.DBDriver = envOr("DB_DRIVER", DriverSQLite)
	}
	if cfg.DBDriver != DriverSQLite && cfg.DBDriver != DriverPostgres {
		errs = multierror.Append(errs, fmt.Errorf("unsupported -db-driver %q", cfg.DBDriver))
	}
	if cfg.DBUrl == "" {
		cfg.DBUrl = os.Getenv("DATABASE_URL")
	}
	if cfg.DBUrl == "" {
		if cfg.DBDriver == DriverPostgres {
			errs = multierror.Append(errs, errors.New("missing parameter -db-url (env DATABASE_URL)"))
		}
		cfg.DBUrl = "qpoll.sqlite"
	}

	if cfg.TokenSecret == "" {
		cfg.TokenSecret = os.Getenv("JWT_SECRET")
	}
	if cfg.TokenSecret == "" {
		errs = multierror.Append(errs, errors.New("missing parameter -token-secret (env JWT_SECRET)"))
	}

	if cfg.FrontendURL == "" {
		cfg.FrontendURL = envOr("FRONTEND_URL", "http://localhost:5173")
	}

	cfg.VoteBlocked = cfg.VoteBlocked || envBool("VOTE_BLOCKED")
	cfg.InsecureCookie = cfg.InsecureCookie || envBool("INSECURE_COOKIE")
	cfg.Debug = cfg.Debug || envBool("DEBUG")

	return cfg, errs.ErrorOrNil()
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}
