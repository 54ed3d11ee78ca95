package config

import (
	"flag"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	// AppDir — каталог приложения внутри пользовательского каталога настроек.
	AppDir = "KeeBridge"

	defaultListenAddr     = "localhost:19455"
	defaultUnlockTimeout  = time.Second
	defaultPasswordLength = 20
)

type Config struct {
	// Server-side settings
	ListenAddr     string `env:"LISTEN_ADDR"`
	DatabaseDSN    string `env:"DATABASE_URI"`
	MasterPassword string `env:"MASTER_PASSWORD"`

	StartLocked     bool          `env:"START_LOCKED"`
	UnlockOnRequest bool          `env:"UNLOCK_ON_REQUEST"`
	UnlockTimeout   time.Duration `env:"UNLOCK_TIMEOUT"`

	ReturnStringFields   bool `env:"RETURN_STRING_FIELDS"`
	SpecificMatchingOnly bool `env:"SPECIFIC_MATCHING_ONLY"`

	PasswordLength  int  `env:"PASSWORD_LENGTH"`
	PasswordLetters bool `env:"PASSWORD_LETTERS" envDefault:"true"`
	PasswordDigits  bool `env:"PASSWORD_DIGITS" envDefault:"true"`
	PasswordSymbols bool `env:"PASSWORD_SYMBOLS" envDefault:"true"`

	// AssociateRate — лимит associate в минуту с одного адреса; 0 отключает лимит.
	AssociateRate int `env:"ASSOCIATE_RATE" envDefault:"10"`

	// Client-side settings
	ServerURL      string `env:"SERVER_URL"`
	ClientStateDir string `env:"CLIENT_STATE_DIR"`
	Version        bool   `env:"-"` // show client version and exit (flag only)
}

var hostPortRe = regexp.MustCompile(`^[A-Za-z0-9\.\-]+:\d{1,5}$`)

func NewConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	_ = env.Parse(cfg)

	// Server flags
	flag.StringVar(&cfg.ListenAddr, "a", cfg.ListenAddr, "адрес прослушивания host:port (только loopback)")
	flag.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "строка подключения к хранилищу (путь SQLite или postgres://)")
	flag.BoolVar(&cfg.StartLocked, "locked", cfg.StartLocked, "запуск с закрытым хранилищем")
	flag.BoolVar(&cfg.UnlockOnRequest, "unlock-on-request", cfg.UnlockOnRequest, "открывать хранилище на любой запрос")
	flag.DurationVar(&cfg.UnlockTimeout, "unlock-timeout", cfg.UnlockTimeout, "предел ожидания открытия хранилища")
	flag.BoolVar(&cfg.ReturnStringFields, "string-fields", cfg.ReturnStringFields, "возвращать поля KPH: *")
	flag.BoolVar(&cfg.SpecificMatchingOnly, "specific-only", cfg.SpecificMatchingOnly, "возвращать только самые точные совпадения")
	flag.IntVar(&cfg.PasswordLength, "password-length", cfg.PasswordLength, "длина генерируемого пароля")
	flag.IntVar(&cfg.AssociateRate, "associate-rate", cfg.AssociateRate, "лимит associate в минуту с одного адреса")
	// Client flags
	flag.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "URL of the KeeBridge server")
	flag.StringVar(&cfg.ClientStateDir, "state-dir", cfg.ClientStateDir, "directory for the client association file")
	flag.BoolVar(&cfg.Version, "version", cfg.Version, "Show client version and exit")

	flag.Parse()

	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	// адрес только в виде host:port, без схемы и пути
	if !hostPortRe.MatchString(cfg.ListenAddr) {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://" + cfg.ListenAddr
	}
	if cfg.UnlockTimeout <= 0 {
		cfg.UnlockTimeout = defaultUnlockTimeout
	}
	if cfg.PasswordLength <= 0 {
		cfg.PasswordLength = defaultPasswordLength
	}
	if cfg.AssociateRate < 0 {
		cfg.AssociateRate = 0
	}

	base, err := os.UserConfigDir()
	if err != nil {
		base, _ = os.UserHomeDir()
	}
	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = filepath.Join(base, AppDir, "vault.sqlite")
	}
	if cfg.ClientStateDir == "" {
		cfg.ClientStateDir = filepath.Join(base, AppDir)
	}
}
