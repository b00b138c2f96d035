// env.go overlays CMS_* environment variables onto file configuration.

package config

import (
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment key.
const EnvPrefix = "CMS"

// envAliases are the short names used by deployments. Every other key is
// also accepted in its derived form, e.g. CMS_RETRY_ATTEMPTS.
var envAliases = map[string]string{
	"database.type":  "CMS_DB_TYPE",
	"mongo.database": "CMS_MONGO_DB",
}

// EnvFiles are loaded before the environment is read. Variables already
// set in the process take precedence.
var EnvFiles = []string{".env", ".env.local"}

// EnvName returns the primary environment variable for key.
func EnvName(key string) string {
	if alias, ok := envAliases[key]; ok {
		return alias
	}
	return derivedEnv(key)
}

func derivedEnv(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// ApplyEnv loads the env files, then sets every key that has a matching
// environment variable and revalidates.
func (c *Config) ApplyEnv() error {
	for _, f := range EnvFiles {
		_ = godotenv.Load(f)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		_ = v.BindEnv(key, env, derivedEnv(key))
	}

	for _, key := range ValidKeys() {
		if !v.IsSet(key) {
			continue
		}
		if err := c.Set(key, v.GetString(key)); err != nil {
			return err
		}
	}
	return c.Validate()
}

// redactURI masks the password in a connection string.
func redactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
