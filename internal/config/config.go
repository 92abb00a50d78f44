package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"quiz-attempt-service/internal/app"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
	} `yaml:"auth"`
	Leaderboard Leaderboard `yaml:"leaderboard"`
}

// Leaderboard tunes list sizes and the global score blend.
type Leaderboard struct {
	QuizLimit   int     `yaml:"quizLimit"`
	GlobalLimit int     `yaml:"globalLimit"`
	Weights     Weights `yaml:"weights"`
}

// Weights left unset (zero) fall back to the stock weight one field at a time.
type Weights struct {
	Created      float64 `yaml:"created"`
	Attempted    float64 `yaml:"attempted"`
	AverageScore float64 `yaml:"averageScore"`
	TotalPoints  float64 `yaml:"totalPoints"`
}

// Load reads YAML config from path. A missing file yields the defaults so the
// service can run purely from environment variables.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg.WithDefaults(), nil
}

// WithDefaults fills every unset field.
func (c Config) WithDefaults() Config {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Leaderboard.QuizLimit <= 0 {
		c.Leaderboard.QuizLimit = app.DefaultQuizLeaderboardLimit
	}
	if c.Leaderboard.GlobalLimit <= 0 {
		c.Leaderboard.GlobalLimit = app.DefaultGlobalLeaderboardLimit
	}

	stock := app.DefaultLeaderboardWeights()
	w := &c.Leaderboard.Weights
	if w.Created == 0 {
		w.Created = stock.Created
	}
	if w.Attempted == 0 {
		w.Attempted = stock.Attempted
	}
	if w.AverageScore == 0 {
		w.AverageScore = stock.AverageScore
	}
	if w.TotalPoints == 0 {
		w.TotalPoints = stock.TotalPoints
	}
	return c
}

// RankingPolicy converts the leaderboard section for the attempt service.
func (c Config) RankingPolicy() app.RankingPolicy {
	return app.RankingPolicy{
		QuizLimit:   c.Leaderboard.QuizLimit,
		GlobalLimit: c.Leaderboard.GlobalLimit,
		Weights: app.LeaderboardWeights{
			Created:      c.Leaderboard.Weights.Created,
			Attempted:    c.Leaderboard.Weights.Attempted,
			AverageScore: c.Leaderboard.Weights.AverageScore,
			TotalPoints:  c.Leaderboard.Weights.TotalPoints,
		},
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
