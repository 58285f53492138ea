package database

import (
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Connection definition sql / amqp / mongo setting
type Connection struct {
	ConnectStr string

	RetryCount    int
	RetryInterval time.Duration
}

// MongoDB definition mongo db
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// MinIOConnection definition minio
type MinIOConnection struct {
	Endpoint   string
	User       string
	Password   string
	BucketName string
	UseSSL     bool
	PublicURL  string // 對外 URL 前綴, 空白時使用 endpoint

	RetryCount    int
	RetryInterval time.Duration
}

// S3Connection definition aws s3 (or s3 compatible endpoint)
type S3Connection struct {
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UsePathStyle bool
	PublicURL    string
}

// RedisConnection definition redis, MasterName 有值時使用 sentinel
type RedisConnection struct {
	Addr          string
	Password      string
	DB            int
	MasterName    string
	SentinelAddrs []string
}

// KafkaConnection definition kafka
type KafkaConnection struct {
	Brokers       []string
	Topic         string
	RetryCount    int
	RetryInterval time.Duration
}

// SecondsOf 設定檔以秒為單位的整數轉 time.Duration
func SecondsOf(n int) time.Duration {
	return time.Duration(n) * time.Second
}
