package config

import (
	"log"
	"sync"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfighcl"
)

// Хранить в файле мы будем в формате hcl.
// Также указываем ключ для переменных окружения
type Config struct {
	DatabaseDriver string `hcl:"database_driver" env:"DATABASE_DRIVER" default:"sqlite"`
	DatabaseDSN    string `hcl:"database_dsn" env:"DATABASE_DSN" default:"news_digest.db"`

	// 0 - один прогон и выход
	FetchInterval   time.Duration `hcl:"fetch_interval" env:"FETCH_INTERVAL" default:"0s"`
	FetchTimeout    time.Duration `hcl:"fetch_timeout" env:"FETCH_TIMEOUT" default:"20s"`
	DeliveryTimeout time.Duration `hcl:"delivery_timeout" env:"DELIVERY_TIMEOUT" default:"30s"`
	FetchWorkers    int           `hcl:"fetch_workers" env:"FETCH_WORKERS" default:"4"`
	DeliveryWorkers int           `hcl:"delivery_workers" env:"DELIVERY_WORKERS" default:"2"`

	MaxItemsPerSource int      `hcl:"max_items_per_source" env:"MAX_ITEMS_PER_SOURCE" default:"5"`
	FilterKeywords    []string `hcl:"filter_keywords" env:"FILTER_KEYWORDS"`

	GuardianAPIKey   string `hcl:"guardian_api_key" env:"GUARDIAN_API_KEY"`
	GuardianSection  string `hcl:"guardian_section" env:"GUARDIAN_SECTION" default:"world"`
	GuardianPageSize int    `hcl:"guardian_page_size" env:"GUARDIAN_PAGE_SIZE" default:"5"`

	// gmail или log
	Transport            string `hcl:"transport" env:"TRANSPORT" default:"log"`
	EmailSender          string `hcl:"email_sender" env:"EMAIL_SENDER"`
	GmailCredentialsFile string `hcl:"gmail_credentials_file" env:"GMAIL_CREDENTIALS_FILE" default:"credentials.json"`
	GmailTokenFile       string `hcl:"gmail_token_file" env:"GMAIL_TOKEN_FILE" default:"token.json"`

	// Бот администратора необязателен, без токена не запускается
	TelegramBotToken  string `hcl:"telegram_bot_token" env:"TELEGRAM_BOT_TOKEN"`
	TelegramChannelID int64  `hcl:"telegram_channel_id" env:"TELEGRAM_CHANNEL_ID"`

	SeedFile string `hcl:"seed_file" env:"SEED_FILE" default:"seed.yaml"`
}

// cfg - инстанс конфига, в который мы будем читать данные.
// once гарантирует, что конфиг читается не больше одного раза, откуда бы его ни запросили
var (
	cfg  Config
	once sync.Once
)

// Метод get, который возвращает конфиг
func Get() Config {
	once.Do(func() {
		var err error
		if cfg, err = Load(); err != nil {
			log.Printf("[ERROR] failed to load config: %v", err)
		}
	})

	return cfg
}

// Load читает конфиг из файлов и переменных окружения, без кеширования
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{"./config.hcl", "./config.local.hcl"}
	}

	var c Config
	loader := aconfig.LoaderFor(&c, aconfig.Config{
		// Префикс для переменных окружения, чтобы они не пересеклись с чужими
		EnvPrefix:          "NDG",
		SkipFlags:          true,
		AllowUnknownFields: true,
		Files:              files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".hcl": aconfighcl.New(),
		},
	})

	err := loader.Load()
	return c, err
}
