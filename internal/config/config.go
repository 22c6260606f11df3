package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultPGHost         = "127.0.0.1"
	DefaultPGPort         = 5432
	DefaultPGUser         = "postgres"
	DefaultPGDatabase     = "stasgpt"
	DefaultPGSSLMode      = "disable"
	DefaultVKBaseURL      = "https://api.vk.com/method"
	DefaultVKAPIVersion   = "5.131"
	DefaultHistoryLimit   = 10
	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultOpenAITimeout  = 60
	DefaultResponseMarker = "[StasGPT]:"
	DefaultErrorMessage   = "I have nothing to say to that."
	DefaultSystemPrompt   = "You are StasGPT, a chat member with strong opinions. " +
		"Answer every message twice: first as [GPT]: with a dry, factual answer, " +
		"then as [StasGPT]: with your own take."
	DefaultPrimingReply = "[GPT]: Understood, go ahead.\n[StasGPT]: Okay! Let's go!"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	VK       VKConfig       `toml:"vk"`
	OpenAI   OpenAIConfig   `toml:"openai"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

type VKConfig struct {
	Token            string `toml:"token" validate:"required"`
	APIVersion       string `toml:"api_version"`
	BaseURL          string `toml:"base_url"`
	ConfirmationCode string `toml:"confirmation_code"`
	// GroupID pins the bot's own community id. When zero the id is
	// discovered from the API at startup.
	GroupID      int64  `toml:"group_id"`
	Mention      string `toml:"mention" validate:"required"`
	HistoryLimit int    `toml:"history_limit" validate:"gt=0"`
}

type OpenAIConfig struct {
	APIKey         string `toml:"api_key" validate:"required"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	SystemPrompt   string `toml:"system_prompt"`
	PrimingReply   string `toml:"priming_reply"`
	ResponseMarker string `toml:"response_marker"`
	ErrorMessage   string `toml:"error_message"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		VK: VKConfig{
			APIVersion:   DefaultVKAPIVersion,
			BaseURL:      DefaultVKBaseURL,
			Mention:      "@stas_gpt",
			HistoryLimit: DefaultHistoryLimit,
		},
		OpenAI: OpenAIConfig{
			BaseURL:        DefaultOpenAIBaseURL,
			Model:          DefaultOpenAIModel,
			SystemPrompt:   DefaultSystemPrompt,
			PrimingReply:   DefaultPrimingReply,
			ResponseMarker: DefaultResponseMarker,
			ErrorMessage:   DefaultErrorMessage,
			TimeoutSeconds: DefaultOpenAITimeout,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the fields a running bot cannot do without.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
