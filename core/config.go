package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env              string `mapstructure:"env"`
		Debug            bool   `mapstructure:"debug"`
		TestMode         bool   `mapstructure:"testMode"`
		AppName          string `mapstructure:"appName"`
		Build            string `mapstructure:"build"`
		LogLevel         string `mapstructure:"logLevel"`
		RollbarToken     string `mapstructure:"rollbarToken"`
		SendgridApiKey   string `mapstructure:"sendgridApiKey"`
		DefaultFromEmail string `mapstructure:"defaultFromEmail"`

		Remote    RemoteConfig    `mapstructure:"remote"`
		Redis     RedisConfig     `mapstructure:"redis"`
		Cache     CacheConfig     `mapstructure:"cache"`
		State     StateConfig     `mapstructure:"state"`
		Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
		Server    ServerConfig    `mapstructure:"server"`
	}

	RemoteConfig struct {
		URL             string        `mapstructure:"url"`
		Key             string        `mapstructure:"key"`
		Timeout         time.Duration `mapstructure:"timeout"`
		ConnectAttempts int           `mapstructure:"connectAttempts"`
		MaxOpenConns    int           `mapstructure:"maxOpenConns"`
		CacheTTL        time.Duration `mapstructure:"cacheTTL"`
	}

	RedisConfig struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	}

	CacheConfig struct {
		Size int `mapstructure:"size"`
	}

	StateConfig struct {
		Path string `mapstructure:"path"`
	}

	BootstrapConfig struct {
		SchemaVersion    int           `mapstructure:"schemaVersion"`
		ProbeAttempts    int           `mapstructure:"probeAttempts"`
		ProbeBaseDelay   time.Duration `mapstructure:"probeBaseDelay"`
		ProbeConcurrency int           `mapstructure:"probeConcurrency"`
		InsertDelay      time.Duration `mapstructure:"insertDelay"`
		Actor            string        `mapstructure:"actor"`
		DefaultPassword  string        `mapstructure:"defaultPassword"`
		RunOnStartup     bool          `mapstructure:"runOnStartup"`
		NotifyEmail      string        `mapstructure:"notifyEmail"`
	}

	ServerConfig struct {
		Address            string        `mapstructure:"address"`
		SecretKey          string        `mapstructure:"secretKey"`
		JWTExpirationDelta time.Duration `mapstructure:"jwtExpirationDelta"`
		DisableReqLogs     bool          `mapstructure:"disableReqLogs"`
	}
)

// ConnectOptions converts the remote section into the options handed to RemoteStore.Initialize.
func (c RemoteConfig) ConnectOptions() ConnectOptions {
	return ConnectOptions{
		Timeout:         c.Timeout,
		ConnectAttempts: c.ConnectAttempts,
		MaxOpenConns:    c.MaxOpenConns,
		HealthTTL:       c.CacheTTL,
	}
}

func (c *Config) FromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.DefaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.DefaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Masomo")
	v.SetDefault("build", "dev")
	v.SetDefault("logLevel", "info")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "noreply@localhost")

	v.SetDefault("remote.url", "memory://")
	v.SetDefault("remote.key", "")
	v.SetDefault("remote.timeout", 10*time.Second)
	v.SetDefault("remote.connectAttempts", 5)
	v.SetDefault("remote.maxOpenConns", 10)
	v.SetDefault("remote.cacheTTL", 30*time.Second)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.size", 256)

	v.SetDefault("state.path", "masomo-state.db")

	v.SetDefault("bootstrap.schemaVersion", 3)
	v.SetDefault("bootstrap.probeAttempts", 3)
	v.SetDefault("bootstrap.probeBaseDelay", 500*time.Millisecond)
	v.SetDefault("bootstrap.probeConcurrency", 8)
	v.SetDefault("bootstrap.insertDelay", 100*time.Millisecond)
	v.SetDefault("bootstrap.actor", "system")
	v.SetDefault("bootstrap.defaultPassword", "Karibu#Shule2024")
	v.SetDefault("bootstrap.runOnStartup", true)
	v.SetDefault("bootstrap.notifyEmail", "")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("server.jwtExpirationDelta", 4*time.Hour)
	v.SetDefault("server.disableReqLogs", false)
}

// NewConfig reads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// ENV selects the environment: DEV (local; default), TEST, QA, PROD.
// Environment variables are prefixed by the env name, eg. DEV_REMOTE_URL.
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetDefault("env", env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	if root, err := ProjectRoot(); err == nil {
		dotEnvPath := filepath.Join(root, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
		}
	}
	v.AutomaticEnv()

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	return &conf, nil
}
