package database

import (
	"net/url"
	"strconv"

	"github.com/rickgao/realtime-client/internal/config"
)

// ApplicationName is reported to the server so history sessions show up in
// pg_stat_activity.
const ApplicationName = "realtime-client"

// BuildConnString builds a PostgreSQL URL from config. Credentials are
// escaped; an empty SSL mode means "prefer".
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   "/" + cfg.Name,
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", ApplicationName)
	u.RawQuery = q.Encode()

	return u.String()
}
