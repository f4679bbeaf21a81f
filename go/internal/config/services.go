package config

// Node configures one quiz participant process.
type Node struct {
	Identity          string   `env:"QUIZ_IDENTITY"`
	Room              string   `env:"QUIZ_ROOM" envDefault:"lobby"`
	NatsURL           string   `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	HTTPAddr          string   `env:"QUIZ_HTTP_ADDR" envDefault:":8080"`
	ContentServiceURL string   `env:"CONTENT_SERVICE_URL" envDefault:"http://localhost:8090"`
	GameFile          string   `env:"QUIZ_GAME_FILE"`
	AllowedOrigins    []string `env:"QUIZ_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	LogLevel          string   `env:"LOG_LEVEL" envDefault:"info"`
}

// StoreDriver selects the content store backend.
type StoreDriver string

const (
	StoreMemory   StoreDriver = "memory"
	StorePostgres StoreDriver = "postgres"
	StoreRedis    StoreDriver = "redis"
)

// Content configures the content service.
type Content struct {
	HTTPAddr    string      `env:"CONTENT_HTTP_ADDR" envDefault:":8090"`
	StoreDriver StoreDriver `env:"CONTENT_STORE" envDefault:"memory"`
	RedisURL    string      `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	Database    Database    `envPrefix:"DB_"`

	OpenAIKey   string `env:"OPENAI_API_KEY"`
	OpenAIModel string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	// Questions generated per uploaded document.
	QuestionsPerContent int    `env:"CONTENT_QUESTIONS" envDefault:"15"`
	LogLevel            string `env:"LOG_LEVEL" envDefault:"info"`
}
