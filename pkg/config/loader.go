package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvInfo 集合服務名稱、設定檔與 log 路徑 from .env
type EnvInfo struct {
	// service name, 同時是 YAML 檔名
	TranscodeWorker string
	UploadAPI       string

	// service yaml path
	TranscodeWorkerYAMLPath string
	UploadAPIYAMLPath       string

	// service log path
	TranscodeWorkerLogPath string
	UploadAPILogPath       string
}

// EnvConfig 集合服務設定
var (
	EnvConfig = initEnv()
	envConfig EnvInfo
	once      sync.Once
	env       string
)

func initEnv() EnvInfo {
	once.Do(func() {
		path, err := GetPath(".env", 5)
		if err != nil {
			log.Printf("Warning: Could not get .env path: %v", err)
		}

		if err := godotenv.Load(path); err != nil {
			log.Printf("Warning: Could not load .env file: %v", err)
		}

		env = os.Getenv("ENV")

		envConfig = EnvInfo{
			TranscodeWorker: getenv("TRANSCODE_WORKER", "transcode_worker"),
			UploadAPI:       getenv("UPLOAD_API", "upload_api"),

			TranscodeWorkerYAMLPath: getenv("TRANSCODE_WORKER_YAML", "./configs"),
			UploadAPIYAMLPath:       getenv("UPLOAD_API_YAML", "./configs"),

			TranscodeWorkerLogPath: getenv("TRANSCODE_WORKER_LOG", "./logs/transcode_worker"),
			UploadAPILogPath:       getenv("UPLOAD_API_LOG", "./logs/upload_api"),
		}
	})

	return envConfig
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// IsProduction check run env
func IsProduction() bool {
	return env == "production"
}

// LoadConfig 加載配置, 失敗直接結束程式
func LoadConfig[T any](serviceName string, configPath string) T {
	cfg, err := ReadConfig[T](serviceName, configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	return cfg
}

// ReadConfig 讀取 {configPath}/{serviceName}.yaml, 展開 ${} 環境變數後解構到 T
func ReadConfig[T any](serviceName string, configPath string) (T, error) {
	var cfg T

	v := viper.New()
	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	setDefaults(v)

	// 自動讀取環境變數, e.g. WORKER_CONCURRENCY 覆蓋 worker.concurrency
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	rawConfig, err := os.ReadFile(v.ConfigFileUsed())
	if err != nil {
		return cfg, fmt.Errorf("read raw config file: %w", err)
	}

	// 替換 ${} 占位符為環境變數的值
	expandedConfig := os.ExpandEnv(string(rawConfig))

	if err := v.ReadConfig(bytes.NewBufferString(expandedConfig)); err != nil {
		return cfg, fmt.Errorf("read expanded config: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("metrics_port", "9102")
	v.SetDefault("port", "8080")
	v.SetDefault("max_upload_size_mb", 50)
	v.SetDefault("allowed_exts", []string{".mp4", ".mov", ".mkv", ".webm", ".avi", ".m4v"})

	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("worker.work_dir", "./tmp")
	v.SetDefault("worker.max_retries", 0)
	v.SetDefault("worker.retry_initial_interval", 5*time.Second)
	v.SetDefault("worker.retry_max_interval", time.Minute)
	v.SetDefault("worker.shutdown_timeout", 10*time.Minute)
	v.SetDefault("worker.stale_after", 6*time.Hour)

	v.SetDefault("encoder.ffmpeg_path", "ffmpeg")
	v.SetDefault("encoder.ffprobe_path", "ffprobe")
	v.SetDefault("encoder.preset", "veryslow")

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("storage.driver", "minio")
	v.SetDefault("queue.driver", "rabbitmq")
	v.SetDefault("queue.name", "transcode")

	v.SetDefault("redis.cache_ttl", 5*time.Second)
	v.SetDefault("kafka.topic", "video-status")
}

// GetPath use fileName loop maxCount find file path
func GetPath(fileName string, maxCount int) (string, error) {
	path := "./" + fileName

	for i := 0; i < maxCount; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = "../" + path
	}
	return "", errors.New(fileName + " can't find path")
}
