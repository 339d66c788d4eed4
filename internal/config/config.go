// Package config loads ~/.stampkit/config.toml with STK_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configDir  = ".stampkit"
	configName = "config"
	configType = "toml"
	envPrefix  = "STK"
)

const (
	KeyAPIBaseURL         = "api.base_url"
	KeyAPIOrganizationID  = "api.organization_id"
	KeyAPITimeout         = "api.timeout"
	KeyAPIRateLimit       = "api.rate_limit"
	KeyAPIBurst           = "api.burst"
	KeyActivityInterval   = "activity.poll_interval"
	KeyActivityNumRetries = "activity.num_retries"
	KeyKeyStoreSecretKey  = "keystore.secret_key"
	KeySecretsBackend     = "secrets.backend"
	KeySecretsDir         = "secrets.dir"
	KeySecretsPassphrase  = "secrets.passphrase"
	KeySecretsServiceName = "secrets.service_name"
	KeySecretsPassPrefix  = "secrets.pass_prefix"
	KeySessionsBackend    = "sessions.backend"
	KeySessionsPath       = "sessions.path"
	KeyRedisAddr          = "redis.addr"
	KeyRedisDB            = "redis.db"
	KeyRedisPrefix        = "redis.prefix"
	KeyLogLevel           = "log.level"
	KeyWalletEthereumRPC  = "wallet.ethereum_rpc"
	KeyWalletEthereumKey  = "wallet.ethereum_key"
	KeyWalletSolanaKey    = "wallet.solana_key"
)

type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Activity ActivityConfig `mapstructure:"activity"`
	KeyStore KeyStoreConfig `mapstructure:"keystore"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Wallet   WalletConfig   `mapstructure:"wallet"`

	v *viper.Viper
}

type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	OrganizationID string        `mapstructure:"organization_id"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	Burst          int           `mapstructure:"burst"`
}

type ActivityConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	NumRetries   int           `mapstructure:"num_retries"`
}

type KeyStoreConfig struct {
	SecretKey string `mapstructure:"secret_key"`
}

type SecretsConfig struct {
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	Passphrase  string `mapstructure:"passphrase"`
	ServiceName string `mapstructure:"service_name"`
	PassPrefix  string `mapstructure:"pass_prefix"`
}

type SessionsConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr   string `mapstructure:"addr"`
	DB     int    `mapstructure:"db"`
	Prefix string `mapstructure:"prefix"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type WalletConfig struct {
	EthereumRPC string `mapstructure:"ethereum_rpc"`
	EthereumKey string `mapstructure:"ethereum_key"`
	SolanaKey   string `mapstructure:"solana_key"`
}

// Load reads path, or ~/.stampkit/config.toml when path is empty. A missing
// default file is not an error; a missing explicit path is.
func Load(path string) (Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}
	baseDir := filepath.Join(homeDir, configDir)

	v := viper.New()
	setDefaults(v, baseDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(baseDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.v = v

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Viper exposes the underlying settings to adapters that resolve their own keys.
func (c Config) Viper() *viper.Viper {
	if c.v == nil {
		return viper.New()
	}
	return c.v
}

func setDefaults(v *viper.Viper, baseDir string) {
	v.SetDefault(KeyAPIBaseURL, "https://api.turnkey.com")
	v.SetDefault(KeyAPIOrganizationID, "")
	v.SetDefault(KeyAPITimeout, 30*time.Second)
	v.SetDefault(KeyAPIRateLimit, 0)
	v.SetDefault(KeyAPIBurst, 1)
	v.SetDefault(KeyActivityInterval, time.Second)
	v.SetDefault(KeyActivityNumRetries, 3)
	v.SetDefault(KeyKeyStoreSecretKey, "stampkit/keyset")
	v.SetDefault(KeySecretsBackend, "auto")
	v.SetDefault(KeySecretsDir, filepath.Join(baseDir, "secrets"))
	v.SetDefault(KeySecretsPassphrase, "")
	v.SetDefault(KeySecretsServiceName, "stampkit")
	v.SetDefault(KeySecretsPassPrefix, "stampkit")
	v.SetDefault(KeySessionsBackend, "kv")
	v.SetDefault(KeySessionsPath, filepath.Join(baseDir, "sessions.toml"))
	v.SetDefault(KeyRedisAddr, "")
	v.SetDefault(KeyRedisDB, 0)
	v.SetDefault(KeyRedisPrefix, "stampkit:")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyWalletEthereumRPC, "")
	v.SetDefault(KeyWalletEthereumKey, "")
	v.SetDefault(KeyWalletSolanaKey, "")
}

func (c Config) validate() error {
	if c.Activity.NumRetries < 0 {
		return fmt.Errorf("%s must not be negative", KeyActivityNumRetries)
	}
	if c.Activity.PollInterval <= 0 {
		return fmt.Errorf("%s must be positive", KeyActivityInterval)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", KeyAPITimeout)
	}
	if c.KeyStore.SecretKey == "" {
		return fmt.Errorf("%s is empty", KeyKeyStoreSecretKey)
	}

	return nil
}
