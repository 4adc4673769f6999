package config

import (
	"os"
	"strconv"
	"time"
)

// Settings bundles the plain values the review system is constructed from.
// Every knob has a default matching the production deployment; environment
// variables only override, nothing here is read again after construction.
type Settings struct {
	// Completion service
	OpenAIAPIKey string
	Model        string
	EmbedModel   string

	// Retrieval
	CohereAPIKey string
	TopK         int

	// Workflow bounds
	AgentMaxRetries  int
	AnswerMaxRetries int
	StepTimeout      time.Duration

	// Request management
	PostgresDSN string
	RedisAddr   string
	MongoURI    string
}

// Load builds Settings from environment variables with defaults.
func Load() Settings {
	return Settings{
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		Model:            getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		EmbedModel:       getEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		CohereAPIKey:     os.Getenv("COHERE_API_KEY"),
		TopK:             getEnvInt("RETRIEVAL_TOP_K", 5),
		AgentMaxRetries:  getEnvInt("AGENT_MAX_RETRIES", 3),
		AnswerMaxRetries: getEnvInt("ANSWER_MAX_RETRIES", 2),
		StepTimeout:      time.Duration(getEnvInt("STEP_TIMEOUT_SECONDS", 90)) * time.Second,
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
	}
}

// Validate checks the settings that have hard requirements.
func (s Settings) Validate() error {
	return NewValidator().
		RequireNonEmpty("model", s.Model).
		RequireNonEmpty("embedModel", s.EmbedModel).
		RequirePositive("topK", s.TopK).
		ValidateRange("agentMaxRetries", s.AgentMaxRetries, 0, 10).
		ValidateRange("answerMaxRetries", s.AnswerMaxRetries, 0, 10).
		Error()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
