package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

const (
	configFileEnvName = "STOREFRONT_CONFIG_FILE"
	defaultConfigName = "config"
)

type Config struct {
	Env struct {
		ServiceName string `yaml:"serviceName"`
		Log         Log    `yaml:"log"`
	} `yaml:"env"`

	HTTP struct {
		Port               int           `yaml:"port"`
		RequestTimeout     time.Duration `yaml:"requestTimeout"`
		ShutdownTimeout    time.Duration `yaml:"shutdownTimeout"`
		ReadTimeout        time.Duration `yaml:"readTimeout"`
		WriteTimeout       time.Duration `yaml:"writeTimeout"`
		IdleTimeout        time.Duration `yaml:"idleTimeout"`
		MaxRequestBodySize int64         `yaml:"maxRequestBodySize"`
	} `yaml:"http"`

	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`

	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		LocalTTL time.Duration `yaml:"localTTL"`
	} `yaml:"redis"`

	Catalog struct {
		DBPath string `yaml:"dbPath"`
	} `yaml:"catalog"`

	Pricing Pricing `yaml:"pricing"`

	Auth struct {
		AccessSecret string        `yaml:"accessSecret"`
		TokenTTL     time.Duration `yaml:"tokenTTL"`
		BcryptCost   int           `yaml:"bcryptCost"`
	} `yaml:"auth"`

	// Firebase is used to verify OAuth provider ID tokens. Leaving the
	// credentials path empty disables provider sign-in.
	Firebase struct {
		ProjectID       string `yaml:"projectId"`
		CredentialsPath string `yaml:"credentialsPath"`
	} `yaml:"firebase"`

	Kafka struct {
		Brokers []string `yaml:"brokers"`
		GroupID string   `yaml:"groupId"`
		Topics  Topics   `yaml:"topics"`
	} `yaml:"kafka"`

	Breaker Breaker `yaml:"breaker"`

	Scan struct {
		Countdown int           `yaml:"countdown"`
		Tick      time.Duration `yaml:"tick"`
	} `yaml:"scan"`

	Chat struct {
		ReplyDelay time.Duration `yaml:"replyDelay"`
	} `yaml:"chat"`

	Resync struct {
		Interval    time.Duration `yaml:"interval"`
		SessionIdle time.Duration `yaml:"sessionIdle"`
	} `yaml:"resync"`
}

type Log struct {
	Pretty bool   `yaml:"pretty"`
	Level  string `yaml:"level"`
}

// Pricing amounts are minor currency units; TaxRate is a decimal string.
type Pricing struct {
	FreeShippingThreshold int64  `yaml:"freeShippingThreshold"`
	FlatShippingFee       int64  `yaml:"flatShippingFee"`
	TaxRate               string `yaml:"taxRate"`
}

type Topics struct {
	CartUpdated string `yaml:"cartUpdated"`
	OrderPlaced string `yaml:"orderPlaced"`
	SupportChat string `yaml:"supportChat"`
}

type Breaker struct {
	MaxRequests         uint32        `yaml:"maxRequests"`
	Interval            time.Duration `yaml:"interval"`
	Timeout             time.Duration `yaml:"timeout"`
	ConsecutiveFailures uint32        `yaml:"consecutiveFailures"`
}

// Load reads the config file named by --config or STOREFRONT_CONFIG_FILE,
// falling back to config.yaml in the usual search paths.
func Load(args []string) (*Config, error) {
	path := configFilePath(args)
	if path != "" {
		return LoadFile(path)
	}
	return LoadWithEnv(defaultConfigName, "config", "../config", "../../config")
}

func configFilePath(args []string) string {
	if env, ok := os.LookupEnv(configFileEnvName); ok && env != "" {
		return env
	}
	cmdLine := pflag.NewFlagSet("storefront", pflag.ContinueOnError)
	arg := cmdLine.String("config", "", "config file")
	_ = cmdLine.Parse(args)
	return *arg
}

// LoadWithEnv searches the given paths for <name>.yaml and loads it.
func LoadWithEnv(name string, configPath ...string) (*Config, error) {
	searchPaths := []string{"."}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			searchPaths = append(searchPaths, filepath.Join(pwd, path))
		}
	}

	for _, path := range searchPaths {
		candidate := filepath.Join(path, name+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			return LoadFile(candidate)
		}
	}

	return nil, errors.Errorf("config file %s.yaml not found in any search path", name)
}

// LoadFile loads a YAML file and applies environment overrides on top.
func LoadFile(configFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read config %s failed", configFile)
	}

	existing := k.Raw()
	if err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			// MONGO_URI -> mongo.uri, PRICING_TAXRATE -> pricing.taxRate
			return canonicalizeEnvKey(key, existing), value
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	cfg := new(Config)
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "yaml",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			TagName:          "yaml",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshal config failed")
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Env.ServiceName == "" {
		c.Env.ServiceName = "storefront"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.RequestTimeout == 0 {
		c.HTTP.RequestTimeout = 30 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.HTTP.MaxRequestBodySize == 0 {
		c.HTTP.MaxRequestBodySize = 1 << 20
	}
	if c.Pricing.TaxRate == "" {
		c.Pricing.TaxRate = "0.18"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Scan.Countdown == 0 {
		c.Scan.Countdown = 30
	}
	if c.Scan.Tick == 0 {
		c.Scan.Tick = time.Second
	}
	if c.Chat.ReplyDelay == 0 {
		c.Chat.ReplyDelay = 1500 * time.Millisecond
	}
	if c.Resync.Interval == 0 {
		c.Resync.Interval = 30 * time.Second
	}
	if c.Resync.SessionIdle == 0 {
		c.Resync.SessionIdle = 24 * time.Hour
	}
	if c.Kafka.Topics.CartUpdated == "" {
		c.Kafka.Topics.CartUpdated = "cart-updated"
	}
	if c.Kafka.Topics.OrderPlaced == "" {
		c.Kafka.Topics.OrderPlaced = "order-placed"
	}
	if c.Kafka.Topics.SupportChat == "" {
		c.Kafka.Topics.SupportChat = "support-chat"
	}
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (string, map[string]any, bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}
		child, _ := value.(map[string]any)
		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}
	return normalized.String()
}
