package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the api, worker and ctl processes.
// All values come from env (a .env file is loaded by the process entrypoint).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Voice     VoiceConfig
	Screening ScreeningConfig
	Retrieval RetrievalConfig
	Worker    WorkerConfig
}

type AppConfig struct {
	Env  string
	Port int

	MigrationsDir string
	CORSOrigins   []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	// Pool sizing; zero means the pool defaults.
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type VoiceConfig struct {
	BaseURL        string
	APIKey         string
	PhoneNumberID  string
	Model          string
	RequestTimeout time.Duration

	// WebhookSecret enables HMAC verification of provider webhooks when set.
	WebhookSecret string

	// FetchRate throttles result lookups against the provider (requests/second).
	FetchRate  float64
	FetchBurst int
}

// ScreeningConfig carries the admission and lifecycle limits.
type ScreeningConfig struct {
	CallLimit       int
	RetryQuota      int
	MaxCallDuration time.Duration
	GraceBuffer     time.Duration
	StaleTimeout    time.Duration

	// DefaultRegion is used to normalize candidate phone numbers without a country code.
	DefaultRegion string
	CompanyName   string
}

type RetrievalConfig struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	ExtendedWait time.Duration
	PollInterval time.Duration
	CaptureTTL   time.Duration
}

type WorkerConfig struct {
	Queue          string
	Concurrency    int
	ReaperInterval time.Duration

	// UseQueue hands retrieval to the worker process instead of running it in the api.
	UseQueue bool
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.MigrationsDir = strings.TrimSpace(os.Getenv("MIGRATIONS_DIR"))
	c.App.CORSOrigins = splitCSV(os.Getenv("CORS_ORIGINS"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	c.DB.MaxOpenConns, parseErrs = optionalIntInto(parseErrs, "DB_MAX_OPEN_CONNS")
	c.DB.MaxIdleConns, parseErrs = optionalIntInto(parseErrs, "DB_MAX_IDLE_CONNS")

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	// A value that is set but does not parse is an error, never a default.
	c.Auth.AccessTokenTTL, parseErrs = optionalDurationInto(parseErrs, "JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL, parseErrs = optionalDurationInto(parseErrs, "JWT_REFRESH_TTL")

	c.Voice.BaseURL = strings.TrimSpace(os.Getenv("VOICE_BASE_URL"))
	c.Voice.APIKey = os.Getenv("VOICE_API_KEY")
	c.Voice.PhoneNumberID = strings.TrimSpace(os.Getenv("VOICE_PHONE_NUMBER_ID"))
	c.Voice.Model = strings.TrimSpace(os.Getenv("VOICE_MODEL"))
	c.Voice.RequestTimeout, parseErrs = optionalDurationInto(parseErrs, "VOICE_REQUEST_TIMEOUT")
	c.Voice.WebhookSecret = os.Getenv("VOICE_WEBHOOK_SECRET")
	{
		f, err := optionalFloat("VOICE_FETCH_RATE")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Voice.FetchRate = f
	}
	c.Voice.FetchBurst, parseErrs = optionalIntInto(parseErrs, "VOICE_FETCH_BURST")

	c.Screening.CallLimit, parseErrs = optionalIntInto(parseErrs, "SCREENING_CALL_LIMIT")
	c.Screening.RetryQuota, parseErrs = optionalIntInto(parseErrs, "SCREENING_RETRY_QUOTA")
	c.Screening.MaxCallDuration, parseErrs = optionalDurationInto(parseErrs, "SCREENING_MAX_CALL_DURATION")
	c.Screening.GraceBuffer, parseErrs = optionalDurationInto(parseErrs, "SCREENING_GRACE_BUFFER")
	c.Screening.StaleTimeout, parseErrs = optionalDurationInto(parseErrs, "SCREENING_STALE_TIMEOUT")
	c.Screening.DefaultRegion = strings.ToUpper(strings.TrimSpace(os.Getenv("SCREENING_DEFAULT_REGION")))
	c.Screening.CompanyName = strings.TrimSpace(os.Getenv("SCREENING_COMPANY_NAME"))

	c.Retrieval.MaxAttempts, parseErrs = optionalIntInto(parseErrs, "RETRIEVAL_MAX_ATTEMPTS")
	c.Retrieval.BaseDelay, parseErrs = optionalDurationInto(parseErrs, "RETRIEVAL_BASE_DELAY")
	c.Retrieval.ExtendedWait, parseErrs = optionalDurationInto(parseErrs, "RETRIEVAL_EXTENDED_WAIT")
	c.Retrieval.PollInterval, parseErrs = optionalDurationInto(parseErrs, "RETRIEVAL_POLL_INTERVAL")
	c.Retrieval.CaptureTTL, parseErrs = optionalDurationInto(parseErrs, "RETRIEVAL_CAPTURE_TTL")

	c.Worker.Queue = strings.TrimSpace(os.Getenv("WORKER_QUEUE"))
	c.Worker.Concurrency, parseErrs = optionalIntInto(parseErrs, "WORKER_CONCURRENCY")
	c.Worker.ReaperInterval, parseErrs = optionalDurationInto(parseErrs, "WORKER_REAPER_INTERVAL")
	c.Worker.UseQueue = strings.EqualFold(strings.TrimSpace(os.Getenv("WORKER_USE_QUEUE")), "true")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults. It must be called on a
// pointer-addressable Config so defaults stick; Load does this.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.Voice.WebhookSecret == "" {
			errs = append(errs, errors.New("VOICE_WEBHOOK_SECRET is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Voice.BaseURL == "" {
		errs = append(errs, errors.New("VOICE_BASE_URL is required"))
	}
	if c.Voice.APIKey == "" {
		errs = append(errs, errors.New("VOICE_API_KEY is required"))
	}
	if c.Voice.RequestTimeout <= 0 {
		c.Voice.RequestTimeout = 15 * time.Second
	}
	if c.Voice.FetchRate <= 0 {
		c.Voice.FetchRate = 2
	}
	if c.Voice.FetchBurst <= 0 {
		c.Voice.FetchBurst = 4
	}

	errs = append(errs, c.Screening.applyDefaults()...)
	errs = append(errs, c.Retrieval.applyDefaults()...)

	if c.Worker.Queue == "" {
		c.Worker.Queue = "screening"
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 10
	}
	if c.Worker.ReaperInterval <= 0 {
		c.Worker.ReaperInterval = time.Minute
	}

	return joinErrors(errs)
}

// Defaults returns the screening limits used when nothing is configured.
func (s ScreeningConfig) Defaults() ScreeningConfig {
	_ = s.applyDefaults()
	return s
}

func (s *ScreeningConfig) applyDefaults() []error {
	var errs []error
	if s.CallLimit < 0 {
		errs = append(errs, fmt.Errorf("SCREENING_CALL_LIMIT must be >= 1, got %d", s.CallLimit))
	}
	if s.RetryQuota < 0 {
		errs = append(errs, fmt.Errorf("SCREENING_RETRY_QUOTA must be >= 1, got %d", s.RetryQuota))
	}
	if s.CallLimit == 0 {
		s.CallLimit = 1
	}
	if s.RetryQuota == 0 {
		s.RetryQuota = 1
	}
	if s.MaxCallDuration <= 0 {
		s.MaxCallDuration = 180 * time.Second
	}
	if s.GraceBuffer <= 0 {
		s.GraceBuffer = 15 * time.Second
	}
	if s.StaleTimeout <= 0 {
		s.StaleTimeout = 10 * time.Minute
	}
	if s.DefaultRegion == "" {
		s.DefaultRegion = "US"
	}
	if s.CompanyName == "" {
		s.CompanyName = "our restaurant"
	}
	return errs
}

// Defaults returns the retrieval tuning used when nothing is configured.
func (r RetrievalConfig) Defaults() RetrievalConfig {
	_ = r.applyDefaults()
	return r
}

func (r *RetrievalConfig) applyDefaults() []error {
	var errs []error
	if r.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("RETRIEVAL_MAX_ATTEMPTS must be >= 1, got %d", r.MaxAttempts))
	}
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
	if r.BaseDelay <= 0 {
		r.BaseDelay = 2 * time.Second
	}
	if r.ExtendedWait <= 0 {
		r.ExtendedWait = 3 * time.Minute
	}
	if r.PollInterval <= 0 {
		r.PollInterval = 20 * time.Second
	}
	if r.PollInterval > r.ExtendedWait {
		r.PollInterval = r.ExtendedWait
	}
	if r.CaptureTTL <= 0 {
		r.CaptureTTL = 24 * time.Hour
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// PostgresURL is the URL form of PostgresDSN, used by the migration runner.
func (c Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, c.DB.Port),
		Path:     "/" + c.DB.Name,
		RawQuery: url.Values{"sslmode": {c.DB.SSLMode}}.Encode(),
	}
	return u.String()
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalIntInto(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalFloat(key string) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, v)
	}
	return f, nil
}

func optionalDurationInto(errs []error, key string) (time.Duration, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration like 90s or 10m, got %q", key, v))
	}
	return d, errs
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
