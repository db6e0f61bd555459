package config

import (
	"encoding/json"
	"os"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Kafka    KafkaConfig    `json:"kafka"`
	Auth     AuthConfig     `json:"auth"`
	Chat     ChatConfig     `json:"chat"`
	Rules    RulesConfig    `json:"rules"`
}

type ServerConfig struct {
	Addr         string   `json:"addr"`
	AllowOrigins []string `json:"allow_origins"`
}

type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type KafkaConfig struct {
	Enabled   bool     `json:"enabled"`
	Brokers   []string `json:"brokers"`
	Topic     string   `json:"topic"`
	GroupID   string   `json:"group_id"`
	Username  string   `json:"username"`
	Password  string   `json:"password"`
	Mechanism string   `json:"mechanism"` // "", "SCRAM-SHA-256", "SCRAM-SHA-512"
	UseTLS    bool     `json:"use_tls"`
	CertFile  string   `json:"cert_file"`
	KeyFile   string   `json:"key_file"`
	CAFile    string   `json:"ca_file"`
}

type AuthConfig struct {
	JWTSecret     string `json:"jwt_secret"`
	TokenExpiry   int    `json:"token_expiry"`   // in hours
	RefreshExpiry int    `json:"refresh_expiry"` // in hours
}

type ChatConfig struct {
	MaxRoomsPerVisitor int  `json:"max_rooms_per_visitor"`
	MaxQueueSize       int  `json:"max_queue_size"`
	AutoAssign         bool `json:"auto_assign"`
	CreateBurstLimit   int  `json:"create_burst_limit"`
	CreateBurstWindow  int  `json:"create_burst_window"` // in seconds
}

type RulesConfig struct {
	Cron              string `json:"cron"`
	IdleCloseMinutes  int    `json:"idle_close_minutes"`
	WaitingSLAMinutes int    `json:"waiting_sla_minutes"`
}

// LoadConfig reads the JSON config file. CONFIG_PATH and DATABASE_URL
// override the defaults so deployments can stay file-less.
func LoadConfig() (config Config, err error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.json"
	}
	file, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return config, err
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		config.Database.DSN = dsn
	}
	config.applyDefaults()
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Chat.MaxRoomsPerVisitor <= 0 {
		c.Chat.MaxRoomsPerVisitor = 1
	}
	if c.Chat.MaxQueueSize <= 0 {
		c.Chat.MaxQueueSize = 100
	}
	if c.Rules.Cron == "" {
		c.Rules.Cron = "* * * * *"
	}
	if c.Auth.TokenExpiry <= 0 {
		c.Auth.TokenExpiry = 24
	}
	if c.Auth.RefreshExpiry <= 0 {
		c.Auth.RefreshExpiry = 72
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "chat-events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "supportdesk"
	}
}
