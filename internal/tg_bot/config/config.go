package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/DenisKhanov/KeeneticBot/internal/tg_bot/models"
	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Run modes
const (
	RunModeLongpoll = "longpoll"
	RunModeWebhook  = "webhook"
)

// Storage drivers
const (
	StorageFile     = "file"
	StorageMySQL    = "mysql"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Config holds the application configuration parameters.
// Each field corresponds to an expected environment variable.
type Config struct {
	EnvLogsLevel   string `env:"LOG_LEVEL" envDefault:"info"`                 // Log level for the application (e.g., debug, info)
	EnvLogFileName string `env:"LOG_FILE_NAME" envDefault:"keenetic_bot.log"` // File's name for log
	EnvBotToken    string `env:"TOKEN_BOT"`                                   // Telegram Bot Token for authentication with the Telegram API

	EnvKeeneticEndpoint string `env:"KEENETIC_ENDPOINT" envDefault:"http://192.168.1.1"` // Router web interface URL
	EnvKeeneticLogin    string `env:"KEENETIC_LOGIN" envDefault:"admin"`                 // Router admin login
	EnvKeeneticPassword string `env:"KEENETIC_PASSWORD"`                                 // Router admin password
	EnvKeeneticTimeout  string `env:"KEENETIC_TIMEOUT" envDefault:"15s"`                 // Per request timeout of router calls
	EnvRestrictedPolicy string `env:"RESTRICTED_POLICY" envDefault:"Policy0"`            // Policy switched on by a button press
	EnvFavoritesFile    string `env:"FAVORITES_FILE"`                                    // YAML file with favorite devices
	EnvFavDevices       string `env:"FAV_DEVICES"`                                       // Comma separated favorite MACs, "mac=name" renames

	EnvRunMode          string `env:"RUN_MODE" envDefault:"longpoll"`      // longpoll or webhook
	EnvLongPollTimeout  int    `env:"LONGPOLL_TIMEOUT" envDefault:"60"`    // getUpdates timeout in seconds
	EnvWebhookURL       string `env:"WEBHOOK_URL"`                         // Public base URL of the webhook
	EnvWebhookListen    string `env:"WEBHOOK_LISTEN" envDefault:":8443"`   // Address the webhook server listens on
	EnvWebhookSecret    string `env:"WEBHOOK_SECRET"`                      // Secret path segment, generated when empty
	EnvWebhookQueueSize int    `env:"WEBHOOK_QUEUE_SIZE" envDefault:"100"` // Updates buffered between webhook and dispatcher

	EnvStorageDriver        string `env:"STORAGE_DRIVER" envDefault:"file"`             // file, mysql, postgres or redis
	EnvStoragePath          string `env:"FILE_STORAGE_PATH" envDefault:"sessions.json"` // Sessions file of the file driver
	EnvStorageFlushInterval string `env:"STORAGE_FLUSH_INTERVAL" envDefault:"5m"`       // How often the file driver is flushed
	EnvStorageDSN           string `env:"STORAGE_DSN"`                                  // DSN of the mysql and postgres drivers
	EnvRedisAddr            string `env:"REDIS_ADDR" envDefault:"localhost:6379"`       // Redis server address
	EnvRedisPassword        string `env:"REDIS_PASSWORD"`                               // Redis password
	EnvRedisDB              int    `env:"REDIS_DB" envDefault:"0"`                      // Redis database number
	EnvRedisPrefix          string `env:"REDIS_PREFIX" envDefault:"keenetic:"`          // Prefix of redis keys

	KeeneticTimeout      time.Duration     // Parsed EnvKeeneticTimeout
	StorageFlushInterval time.Duration     // Parsed EnvStorageFlushInterval
	Favorites            []models.Favorite // Favorite devices in display order
}

// favoritesFile is the layout of FAVORITES_FILE.
type favoritesFile struct {
	Favorites []models.Favorite `yaml:"favorites"`
}

// NewConfig initializes a new Config instance by loading environment variables from an env file.
// A missing env file is not an error, the process environment is used then.
// Arguments:
//   - envFile: path of the env file, e.g. bot.env.
//
// Returns a pointer to the Config struct or an error if any variable is missing or invalid.
func NewConfig(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("new load %s: %w", envFile, err)
		}
		logrus.Infof("Env file %s not found, using process environment", envFile)
	}

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks required fields, normalizes enumerations and loads the favorites.
func (c *Config) Validate() error {
	if c.EnvBotToken == "" {
		return fmt.Errorf("TOKEN_BOT is required")
	}
	if c.EnvKeeneticEndpoint == "" {
		return fmt.Errorf("KEENETIC_ENDPOINT is required")
	}
	if c.EnvKeeneticPassword == "" {
		return fmt.Errorf("KEENETIC_PASSWORD is required")
	}

	c.EnvRestrictedPolicy = strings.TrimSpace(c.EnvRestrictedPolicy)
	if c.EnvRestrictedPolicy == "" || models.Policy(c.EnvRestrictedPolicy) == models.PolicyDefault {
		return fmt.Errorf("RESTRICTED_POLICY must name a policy other than %q", models.PolicyDefault)
	}

	var err error
	if c.KeeneticTimeout, err = time.ParseDuration(c.EnvKeeneticTimeout); err != nil {
		return fmt.Errorf("invalid KEENETIC_TIMEOUT: %w", err)
	}

	rm := strings.ToLower(strings.TrimSpace(c.EnvRunMode))
	if rm == "" || rm == "polling" {
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeLongpoll:
		if c.EnvLongPollTimeout < 0 {
			return fmt.Errorf("LONGPOLL_TIMEOUT must be >= 0")
		}
	case RunModeWebhook:
		if strings.TrimSpace(c.EnvWebhookURL) == "" {
			return fmt.Errorf("WEBHOOK_URL is required when RUN_MODE is 'webhook'")
		}
		if strings.TrimSpace(c.EnvWebhookListen) == "" {
			return fmt.Errorf("WEBHOOK_LISTEN is required when RUN_MODE is 'webhook'")
		}
		c.EnvWebhookURL = strings.TrimSuffix(strings.TrimSpace(c.EnvWebhookURL), "/")
	default:
		return fmt.Errorf("invalid RUN_MODE %q; allowed: webhook, longpoll", c.EnvRunMode)
	}
	c.EnvRunMode = rm

	driver := strings.ToLower(strings.TrimSpace(c.EnvStorageDriver))
	if driver == "" {
		driver = StorageFile
	}
	switch driver {
	case StorageFile:
		if c.EnvStoragePath == "" {
			return fmt.Errorf("FILE_STORAGE_PATH is required when STORAGE_DRIVER is 'file'")
		}
		if c.StorageFlushInterval, err = time.ParseDuration(c.EnvStorageFlushInterval); err != nil {
			return fmt.Errorf("invalid STORAGE_FLUSH_INTERVAL: %w", err)
		}
		if c.StorageFlushInterval <= 0 {
			return fmt.Errorf("STORAGE_FLUSH_INTERVAL must be > 0")
		}
	case StorageMySQL, StoragePostgres:
		if c.EnvStorageDSN == "" {
			return fmt.Errorf("STORAGE_DSN is required when STORAGE_DRIVER is '%s'", driver)
		}
	case StorageRedis:
		if c.EnvRedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when STORAGE_DRIVER is 'redis'")
		}
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q; allowed: file, mysql, postgres, redis", c.EnvStorageDriver)
	}
	c.EnvStorageDriver = driver

	if c.Favorites, err = c.loadFavorites(); err != nil {
		return err
	}
	if len(c.Favorites) == 0 {
		logrus.Warn("No favorite devices configured, the control panel will be empty")
	}
	return nil
}

// loadFavorites reads FAVORITES_FILE, falling back to FAV_DEVICES.
func (c *Config) loadFavorites() ([]models.Favorite, error) {
	if c.EnvFavoritesFile != "" {
		data, err := os.ReadFile(c.EnvFavoritesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read favorites file: %w", err)
		}
		var file favoritesFile
		if err = yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse favorites file %s: %w", c.EnvFavoritesFile, err)
		}
		for i, f := range file.Favorites {
			if strings.TrimSpace(f.MAC) == "" {
				return nil, fmt.Errorf("favorite #%d in %s has no mac", i+1, c.EnvFavoritesFile)
			}
			file.Favorites[i].MAC = strings.ToLower(strings.TrimSpace(f.MAC))
		}
		return file.Favorites, nil
	}

	var favorites []models.Favorite
	for _, item := range strings.Split(c.EnvFavDevices, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		mac, name, _ := strings.Cut(item, "=")
		favorites = append(favorites, models.Favorite{
			MAC:  strings.ToLower(strings.TrimSpace(mac)),
			Name: strings.TrimSpace(name),
		})
	}
	return favorites, nil
}
