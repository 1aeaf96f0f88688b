package config

import "net/url"

const redacted = "REDACTED"

// Redacted returns a copy of c with secrets masked, for logging.
func (c Config) Redacted() Config {
	out := c
	if out.Wallet.PrivateKey != "" {
		out.Wallet.PrivateKey = redacted
	}
	if out.Storage.RedisPassword != "" {
		out.Storage.RedisPassword = redacted
	}
	out.Storage.PostgresDSN = redactDSN(out.Storage.PostgresDSN)
	out.Storage.ClickHouseDSN = redactDSN(out.Storage.ClickHouseDSN)
	return out
}

// redactDSN masks the password of a URL-style DSN. Unparseable DSNs are
// masked entirely.
func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return redacted
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redacted)
	}
	return u.String()
}
