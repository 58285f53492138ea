package config

import "time"

// TranscodeWorker definition transcode_worker YAML structure
type TranscodeWorker struct {
	IP          string `mapstructure:"ip"`
	MetricsPort string `mapstructure:"metrics_port"`

	Worker  WorkerConfig  `mapstructure:"worker"`
	Encoder EncoderConfig `mapstructure:"encoder"`

	Store   StoreConfig   `mapstructure:"store"`
	Storage StorageConfig `mapstructure:"storage"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
}

// UploadAPI definition upload_api YAML structure
type UploadAPI struct {
	IP              string   `mapstructure:"ip"`
	Port            string   `mapstructure:"port"`
	MaxUploadSizeMB int      `mapstructure:"max_upload_size_mb"`
	AllowedExts     []string `mapstructure:"allowed_exts"`

	Store   StoreConfig   `mapstructure:"store"`
	Storage StorageConfig `mapstructure:"storage"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
}

// WorkerConfig worker slot 與重試設定
type WorkerConfig struct {
	Concurrency          int           `mapstructure:"concurrency"`
	WorkDir              string        `mapstructure:"work_dir"`
	MaxRetries           int           `mapstructure:"max_retries"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `mapstructure:"retry_max_interval"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
	// StaleAfter 啟動時 processing 超過此時間的影片標為 failed, 0 表示不檢查
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// EncoderConfig ffmpeg / ffprobe 設定
type EncoderConfig struct {
	FFmpegPath  string        `mapstructure:"ffmpeg_path"`
	FFprobePath string        `mapstructure:"ffprobe_path"`
	Preset      string        `mapstructure:"preset"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// StoreConfig video status store, driver = postgres | mongo
type StoreConfig struct {
	Driver     string         `mapstructure:"driver"`
	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	Mongo      DatabaseConfig `mapstructure:"mongo"`
}

// StorageConfig object storage, driver = minio | s3 | local
type StorageConfig struct {
	Driver string             `mapstructure:"driver"`
	MinIO  MinIOConfig        `mapstructure:"minio"`
	S3     S3Config           `mapstructure:"s3"`
	Local  LocalStorageConfig `mapstructure:"local"`
}

// QueueConfig job queue, driver = rabbitmq | asynq
type QueueConfig struct {
	Driver   string         `mapstructure:"driver"`
	Name     string         `mapstructure:"name"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Asynq    AsynqConfig    `mapstructure:"asynq"`
}

// RabbitMQConfig definition rabbitmq setting
type RabbitMQConfig struct {
	IP            string `mapstructure:"ip"`
	Port          string `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// AsynqConfig definition asynq redis setting
type AsynqConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	RedisDB  int           `mapstructure:"redis_db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// sentinel, master_name 有值時使用
	MasterName    string   `mapstructure:"master_name"`
	SentinelAddrs []string `mapstructure:"sentinel_addrs"`
}

// KafkaConfig definition kafka setting
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	RetryInterval int      `mapstructure:"retry_interval"`
	RetryCount    int      `mapstructure:"retry_count"`
}

// MinIOConfig definition minio setting
type MinIOConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	BucketName    string `mapstructure:"bucket_name"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	PublicURL     string `mapstructure:"public_url"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// S3Config definition aws s3 (or s3 compatible) setting
type S3Config struct {
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Bucket       string `mapstructure:"bucket"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	PublicURL    string `mapstructure:"public_url"`
}

// LocalStorageConfig 本地磁碟儲存
type LocalStorageConfig struct {
	Dir string `mapstructure:"dir"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	URI           string `mapstructure:"uri"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}
