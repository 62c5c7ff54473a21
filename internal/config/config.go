package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/ohmynofan/questline-bot/internal/platform/retry"
	"gopkg.in/yaml.v3"
)

const (
	ProxyModeSequential = "sequential"
	ProxyModeRandom     = "random"
)

type Config struct {
	PlatformURL      string        `env:"PLATFORM_URL" envDefault:"https://app.questline.xyz"`
	ChainID          int64         `env:"CHAIN_ID" envDefault:"10143"`
	CaptchaSiteKey   string        `env:"CAPTCHA_SITE_KEY" envDefault:"6LcKq8MqAAAAAHmZ0HBU2tTYn1oNwWwYJx2P1vfD"`
	CaptchaKind      string        `env:"CAPTCHA_KIND" envDefault:"recaptcha-v2"`
	CapSolverAPIKey  string        `env:"CAPSOLVER_API_KEY"`
	TwoCaptchaAPIKey string        `env:"TWO_CAPTCHA_API_KEY"`
	CaptchaTimeout   time.Duration `env:"CAPTCHA_TIMEOUT" envDefault:"120s"`
	ReferralCode     string        `env:"REFERRAL_CODE"`

	RetryMaxAttempts  int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"5"`
	RetryInitialDelay time.Duration `env:"RETRY_INITIAL_DELAY" envDefault:"1s"`
	RetryMaxDelay     time.Duration `env:"RETRY_MAX_DELAY" envDefault:"30s"`

	CallTimeout    time.Duration `env:"CALL_TIMEOUT" envDefault:"15s"`
	AuthTimeout    time.Duration `env:"AUTH_TIMEOUT" envDefault:"60s"`
	QuestTimeout   time.Duration `env:"QUEST_TIMEOUT" envDefault:"90s"`
	AccountTimeout time.Duration `env:"ACCOUNT_TIMEOUT" envDefault:"180s"`

	AccountDelay    time.Duration `env:"ACCOUNT_DELAY" envDefault:"10s"`
	CycleCooldown   time.Duration `env:"CYCLE_COOLDOWN" envDefault:"24h"`
	RestartCooldown time.Duration `env:"RESTART_COOLDOWN" envDefault:"5m"`

	ProxyMode        string `env:"PROXY_MODE" envDefault:"sequential"`
	ProxySwitchAfter int    `env:"PROXY_SWITCH_AFTER" envDefault:"1"`

	Quests QuestsConfig

	AccountsPath string `env:"ACCOUNTS_PATH" envDefault:"configs/accounts.json"`
	ProxiesPath  string `env:"PROXIES_PATH" envDefault:"configs/proxies.txt"`
	SettingsPath string `env:"SETTINGS_PATH" envDefault:"configs/settings.yaml"`
	CookiesDir   string `env:"COOKIES_DIR"`
	DBPath       string `env:"DB_PATH" envDefault:"data/questlog.db"`
	LogPath      string `env:"LOG_PATH" envDefault:"logs/app.log"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsAddr  string `env:"METRICS_ADDR"`
}

// QuestsConfig can also be set from the `quests` block of the settings file,
// which takes precedence over the environment.
type QuestsConfig struct {
	DailyReward DailyRewardConfig `yaml:"daily_reward"`
	Minigame    MinigameConfig    `yaml:"minigame"`
}

type DailyRewardConfig struct {
	Enabled bool   `env:"DAILY_REWARD_ENABLED" envDefault:"true" yaml:"enabled"`
	Title   string `env:"DAILY_REWARD_TITLE" envDefault:"Daily Check-in" yaml:"title"`
}

type MinigameConfig struct {
	Enabled    bool          `env:"MINIGAME_ENABLED" envDefault:"false" yaml:"enabled"`
	Title      string        `env:"MINIGAME_TITLE" envDefault:"Minesweeper" yaml:"title"`
	Difficulty string        `env:"MINIGAME_DIFFICULTY" envDefault:"easy" yaml:"difficulty"`
	DailyGames int           `env:"MINIGAME_DAILY_GAMES" envDefault:"3" yaml:"daily_games"`
	MoveCap    int           `env:"MINIGAME_MOVE_CAP" envDefault:"90" yaml:"move_cap"`
	MoveDelay  time.Duration `env:"MINIGAME_MOVE_DELAY" envDefault:"1500ms" yaml:"move_delay"`
}

type settingsFile struct {
	Quests *QuestsConfig `yaml:"quests"`
}

type Account struct {
	PrivateKey string `json:"pk"`
}

// Default returns the built-in configuration, ignoring the environment.
func Default() Config {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("config defaults are invalid: %v", err))
	}
	return cfg
}

// Load reads .env, the environment and the settings overlay. When parsing
// fails it returns Default() with the error; a validation error comes back
// with the parsed config. Either way the caller logs it and carries on.
func Load() (Config, error) {
	// A missing .env is normal; the environment may be set directly.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse config from environment: %w", err)
	}
	if err := cfg.applySettings(); err != nil {
		return Default(), err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applySettings() error {
	if strings.TrimSpace(c.SettingsPath) == "" {
		return nil
	}
	data, err := os.ReadFile(c.SettingsPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read settings file %s: %w", c.SettingsPath, err)
	}

	overlay := settingsFile{Quests: &c.Quests}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse settings file %s: %w", c.SettingsPath, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.PlatformURL = strings.TrimRight(strings.TrimSpace(c.PlatformURL), "/")
	c.CapSolverAPIKey = strings.TrimSpace(c.CapSolverAPIKey)
	c.TwoCaptchaAPIKey = strings.TrimSpace(c.TwoCaptchaAPIKey)
	c.ProxyMode = strings.ToLower(strings.TrimSpace(c.ProxyMode))
	if c.ProxyMode != ProxyModeRandom {
		c.ProxyMode = ProxyModeSequential
	}
	if c.ProxySwitchAfter < 1 {
		c.ProxySwitchAfter = 1
	}
	if c.RetryMaxAttempts < 1 {
		c.RetryMaxAttempts = 1
	}
	if c.Quests.Minigame.DailyGames < 0 {
		c.Quests.Minigame.DailyGames = 0
	}
	if c.Quests.Minigame.MoveCap < 1 {
		c.Quests.Minigame.MoveCap = 1
	}
}

func (c Config) Validate() error {
	if c.CapSolverAPIKey == "" && c.TwoCaptchaAPIKey == "" {
		return errors.New("captcha solver API key required (provide TWO_CAPTCHA_API_KEY or CAPSOLVER_API_KEY)")
	}
	if c.PlatformURL == "" {
		return errors.New("PLATFORM_URL is required")
	}
	if c.RetryInitialDelay <= 0 || c.RetryMaxDelay < c.RetryInitialDelay {
		return fmt.Errorf("invalid retry delays: initial %s, max %s", c.RetryInitialDelay, c.RetryMaxDelay)
	}
	return nil
}

func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  c.RetryMaxAttempts,
		InitialDelay: c.RetryInitialDelay,
		MaxDelay:     c.RetryMaxDelay,
	}
}

func LoadAccounts(path string) ([]Account, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return []Account{}, nil
	}

	var rawAccounts []string
	if err := json.Unmarshal(b, &rawAccounts); err == nil {
		accounts := make([]Account, 0, len(rawAccounts))
		for idx, entry := range rawAccounts {
			pk := strings.TrimSpace(entry)
			if pk == "" {
				return nil, fmt.Errorf("invalid account input: empty private key at index %d", idx)
			}
			accounts = append(accounts, Account{PrivateKey: pk})
		}
		return accounts, nil
	}

	var accounts []Account
	if err := json.Unmarshal(b, &accounts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal accounts: %w", err)
	}
	return accounts, nil
}

// LoadProxies reads one proxy per line. Blank lines and # comments are
// skipped, a missing scheme means http, and a missing file is no proxies.
func LoadProxies(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	proxies := []string{}
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, "://") {
			line = "http://" + line
		}
		proxies = append(proxies, line)
	}
	return proxies, nil
}
