package config

import (
	"time"

	"github.com/Layr-Labs/bip322-go/pkg/address"
	"github.com/Layr-Labs/bip322-go/pkg/crypto"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the verification server and CLI
const (
	EnvBIP322Port          = "BIP322_PORT"
	EnvBIP322Provider      = "BIP322_CURVE_PROVIDER"
	EnvBIP322CacheType     = "BIP322_CACHE_TYPE"
	EnvBIP322CachePath     = "BIP322_CACHE_PATH"
	EnvBIP322CacheTTL      = "BIP322_CACHE_TTL"
	EnvBIP322RedisAddress  = "BIP322_REDIS_ADDRESS"
	EnvBIP322RedisPassword = "BIP322_REDIS_PASSWORD"
	EnvBIP322RedisDB       = "BIP322_REDIS_DB"
	EnvBIP322RedisPrefix   = "BIP322_REDIS_KEY_PREFIX"
	EnvBIP322RateLimit     = "BIP322_RATE_LIMIT"
	EnvBIP322RateBurst     = "BIP322_RATE_BURST"
	EnvBIP322Network       = "BIP322_NETWORK"
	EnvBIP322KMSKeyID      = "BIP322_KMS_KEY_ID"
	EnvBIP322AWSRegion     = "BIP322_AWS_REGION"
	EnvBIP322ServerURL     = "BIP322_SERVER_URL"
	EnvBIP322Debug         = "BIP322_DEBUG"
)

type CacheType string

func (c CacheType) String() string {
	return string(c)
}

const (
	CacheTypeNone   CacheType = "none"
	CacheTypeMemory CacheType = "memory"
	CacheTypeBadger CacheType = "badger"
	CacheTypeRedis  CacheType = "redis"
)

// GetSupportedCacheTypes returns all cache backends the server can run with
func GetSupportedCacheTypes() []CacheType {
	return []CacheType{CacheTypeNone, CacheTypeMemory, CacheTypeBadger, CacheTypeRedis}
}

func supportedCacheTypeStrings() []string {
	types := GetSupportedCacheTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}

// Defaults applied by the CLI flags
const (
	DefaultPort      = 8322
	DefaultRateLimit = 50.0
	DefaultRateBurst = 100
	DefaultCacheTTL  = 24 * time.Hour
	DefaultCachePath = "./data/bip322-cache"
)

// ServerConfig represents the complete configuration for a verification server
type ServerConfig struct {
	Port          int    `json:"port"`
	CurveProvider string `json:"curve_provider"`

	// Result cache
	CacheType     CacheType     `json:"cache_type"`
	CachePath     string        `json:"cache_path"`
	CacheTTL      time.Duration `json:"cache_ttl"`
	RedisAddress  string        `json:"redis_address"`
	RedisPassword string        `json:"-"`
	RedisDB       int           `json:"redis_db"`
	RedisPrefix   string        `json:"redis_key_prefix"`

	// Requests per second across all clients; zero disables limiting
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	Debug bool `json:"debug"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "port must be between 1-65535"))
	}

	allErrors = append(allErrors, validateProvider(field.NewPath("curveProvider"), c.CurveProvider)...)

	switch c.CacheType {
	case CacheTypeNone, CacheTypeMemory:
	case CacheTypeBadger:
		if c.CachePath == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("cachePath"), "cachePath is required for the badger cache"))
		}
	case CacheTypeRedis:
		if c.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redisAddress is required for the redis cache"))
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redisDB"), c.RedisDB, "redis database must be between 0-15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("cacheType"), c.CacheType, supportedCacheTypeStrings()))
	}

	if c.CacheTTL < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("cacheTTL"), c.CacheTTL.String(), "cacheTTL cannot be negative"))
	}
	if c.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimit"), c.RateLimit, "rateLimit cannot be negative"))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateBurst"), c.RateBurst, "rateBurst must be at least 1 when rate limiting is enabled"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// CLIConfig holds the settings shared by every CLI subcommand
type CLIConfig struct {
	CurveProvider string `json:"curve_provider"`
	Network       string `json:"network"`
	Debug         bool   `json:"debug"`
}

// Validate validates the CLI configuration
func (c *CLIConfig) Validate() error {
	var allErrors field.ErrorList

	allErrors = append(allErrors, validateProvider(field.NewPath("curveProvider"), c.CurveProvider)...)

	if c.Network != "" {
		if _, err := address.ParseNetwork(c.Network); err != nil {
			allErrors = append(allErrors, field.NotSupported(field.NewPath("network"), c.Network, []string{
				address.Mainnet.String(), address.Testnet.String(), address.Regtest.String(),
			}))
		}
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// KMSSignerConfig configures signing with a secp256k1 key held in AWS KMS
type KMSSignerConfig struct {
	KeyID       string `json:"keyId" yaml:"keyId"`
	Region      string `json:"region" yaml:"region"`
	AddressType string `json:"addressType" yaml:"addressType"`
}

func (kc *KMSSignerConfig) Validate() error {
	var allErrors field.ErrorList
	if kc.KeyID == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("keyId"), "keyId is required"))
	}
	if kc.Region == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("region"), "region is required"))
	}
	if t, err := address.ParseType(kc.AddressType); err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("addressType"), kc.AddressType, err.Error()))
	} else if t == address.P2TR {
		allErrors = append(allErrors, field.Invalid(field.NewPath("addressType"), kc.AddressType, "a KMS key cannot apply the taproot tweak"))
	} else if t == address.P2WSH {
		allErrors = append(allErrors, field.Invalid(field.NewPath("addressType"), kc.AddressType, "P2WSH addresses are unsupported"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func validateProvider(path *field.Path, name string) field.ErrorList {
	if name == "" {
		return nil
	}
	if _, err := crypto.NewCurveProvider(name); err != nil {
		return field.ErrorList{field.NotSupported(path, name, crypto.ListProviders())}
	}
	return nil
}
