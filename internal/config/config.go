package config

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	BackendBaseURL               string `mapstructure:"backend_base_url"                validate:"required,url"`
	BackendTimeout               int    `mapstructure:"backend_timeout"                 validate:"gte=1"`
	BackendRetryMaxAttempts      uint   `mapstructure:"backend_retry_max_attempts"      validate:"gte=1"`
	BackendRetryMinBackoff       int    `mapstructure:"backend_retry_min_backoff"`
	BackendRetryMaxBackoff       int    `mapstructure:"backend_retry_max_backoff"`
	BackendIntervalCB            uint32 `mapstructure:"backend_interval_cb"`
	BackendConsecutiveFailuresCB uint32 `mapstructure:"backend_consecutive_failures_cb" validate:"gte=1"`
	BackendPageSize              int    `mapstructure:"backend_page_size"               validate:"gte=1,lte=100"`

	StorePath                  string `mapstructure:"store_path"                    validate:"required"`
	StoreIntervalCB            uint32 `mapstructure:"store_interval_cb"`
	StoreConsecutiveFailuresCB uint32 `mapstructure:"store_consecutive_failures_cb" validate:"gte=1"`
	CacheTTL                   int    `mapstructure:"cache_ttl"                     validate:"gte=1"`

	NotificationTTL           int `mapstructure:"notification_ttl"            validate:"gte=1"`
	ConnectivityProbeInterval int `mapstructure:"connectivity_probe_interval" validate:"gte=1"`
	RefreshInterval           int `mapstructure:"refresh_interval"            validate:"gte=1"`
	DispatchPoolSize          int `mapstructure:"dispatch_pool_size"          validate:"gte=1"`

	StaffName string `mapstructure:"staff_name"`

	// Audit stream is disabled while KafkaBootstrapServer is empty.
	KafkaBootstrapServer       string `mapstructure:"kafka_bootstrap_server"`
	KafkaUsername              string `mapstructure:"kafka_username"                validate:"required_with=KafkaBootstrapServer"`
	KafkaPassword              string `mapstructure:"kafka_password"                validate:"required_with=KafkaBootstrapServer"`
	KafkaAuditTopic            string `mapstructure:"kafka_audit_topic"             validate:"required_with=KafkaBootstrapServer"`
	KafkaIntervalCB            uint32 `mapstructure:"kafka_interval_cb"`
	KafkaConsecutiveFailuresCB uint32 `mapstructure:"kafka_consecutive_failures_cb"`

	LogLevel    string `mapstructure:"log_level"`
	LogFilePath string `mapstructure:"log_file_path"`

	PrometheusPort    string `mapstructure:"prometheus_port"`
	PrometheusTimeout int    `mapstructure:"prometheus_timeout"`
}

var Conf Config

func init() {
	err := loadEnvConfig(&Conf)
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.String("error", err.Error()))
	}
}

func loadEnvConfig(cfg *Config) error {
	viper.AutomaticEnv()
	viper.AllowEmptyEnv(true)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setupDefaults()

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	err := viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError

		ok := errors.As(err, &configFileNotFoundError)
		if !ok {
			return err
		}
	}

	err = viper.Unmarshal(cfg)
	if err != nil {
		return err
	}

	err = validator.New().Struct(cfg)
	if err != nil {
		return err
	}

	return nil
}

func setupDefaults() {
	confType := reflect.TypeOf(Conf)
	for i := range confType.NumField() {
		field := confType.Field(i)
		viper.SetDefault(field.Tag.Get("mapstructure"), "")
	}

	viper.SetDefault("BACKEND_BASE_URL", "http://localhost:8000/api/v1")
	viper.SetDefault("BACKEND_TIMEOUT", "15")
	viper.SetDefault("BACKEND_RETRY_MAX_ATTEMPTS", "3")
	viper.SetDefault("BACKEND_RETRY_MIN_BACKOFF", "1")
	viper.SetDefault("BACKEND_RETRY_MAX_BACKOFF", "5")
	viper.SetDefault("BACKEND_INTERVAL_CB", "30")
	viper.SetDefault("BACKEND_CONSECUTIVE_FAILURES_CB", "3")
	viper.SetDefault("BACKEND_PAGE_SIZE", "100")
	viper.SetDefault("STORE_PATH", "./callboard.db")
	viper.SetDefault("STORE_INTERVAL_CB", "30")
	viper.SetDefault("STORE_CONSECUTIVE_FAILURES_CB", "3")
	viper.SetDefault("CACHE_TTL", "3600")
	viper.SetDefault("NOTIFICATION_TTL", "5")
	viper.SetDefault("CONNECTIVITY_PROBE_INTERVAL", "10")
	viper.SetDefault("REFRESH_INTERVAL", "30")
	viper.SetDefault("DISPATCH_POOL_SIZE", "4")
	viper.SetDefault("KAFKA_INTERVAL_CB", "30")
	viper.SetDefault("KAFKA_CONSECUTIVE_FAILURES_CB", "5")
	viper.SetDefault("LOG_LEVEL", "INFO")
	viper.SetDefault("PROMETHEUS_PORT", "2112")
	viper.SetDefault("PROMETHEUS_TIMEOUT", "60")
}
