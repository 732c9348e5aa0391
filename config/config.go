package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Assignment AssignmentConfig `yaml:"assignment"`
	Reminder   ReminderConfig   `yaml:"reminder"`
	Worker     WorkerConfig     `yaml:"worker"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers                  []string `yaml:"brokers"`
	BookingEventsTopic       string   `yaml:"booking_events_topic"`
	NotificationsTopic       string   `yaml:"notifications_topic"`
	GroupID                  string   `yaml:"group_id"`
	HeartbeatIntervalSeconds int      `yaml:"heartbeat_interval_seconds"`
	SessionTimeoutSeconds    int      `yaml:"session_timeout_seconds"`
}

type AssignmentConfig struct {
	GuidesCacheTTLSeconds int `yaml:"guides_cache_ttl_seconds"`
}

type ReminderConfig struct {
	DebounceMinutes int `yaml:"debounce_minutes"`
	LeadHours       int `yaml:"lead_hours"`
	WindowHours     int `yaml:"window_hours"`
}

type WorkerConfig struct {
	ReminderSweepMinutes int `yaml:"reminder_sweep_minutes"`
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
