package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	internal "github.com/CVMHW/roger-74-sub004"

	"github.com/spf13/viper"
)

// Config stores all configuration of the response pipeline.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Safety      SafetyConfig      `mapstructure:"safety"`
	Memory      MemoryConfig      `mapstructure:"memory"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval"`
	Repetition  RepetitionConfig  `mapstructure:"repetition"`
	Personality PersonalityConfig `mapstructure:"personality"`
}

// PipelineConfig stores orchestrator-level settings.
type PipelineConfig struct {
	TurnTimeout   time.Duration `mapstructure:"turn_timeout"`   // overall per-turn budget
	StageTimeout  time.Duration `mapstructure:"stage_timeout"`  // budget for retrieval/consistency stages
	EnableTracing bool          `mapstructure:"enable_tracing"` // structured stage tracing
}

// SafetyConfig stores crisis detection settings.
type SafetyConfig struct {
	PhrasePath      string `mapstructure:"phrase_path"`      // optional external phrase set
	ResourcePath    string `mapstructure:"resource_path"`    // optional external resource directory
	HeuristicEnable bool   `mapstructure:"heuristic_enable"` // broader negation-aware pass
}

// MemoryConfig stores conversational memory settings.
type MemoryConfig struct {
	TopicWindow      int     `mapstructure:"topic_window"`      // last-k user turns for dominant topics (3-5)
	RecencyDecay     float64 `mapstructure:"recency_decay"`     // per-turn decay applied to older mentions
	ReferenceMinTurn int     `mapstructure:"reference_min_turn"` // enforce memory references after this many turns
}

// RetrievalConfig stores retrieval-augmentation settings.
type RetrievalConfig struct {
	CorpusPath          string        `mapstructure:"corpus_path"`          // knowledge corpus JSON
	SchemaValidate      bool          `mapstructure:"schema_validate"`      // validate corpus/templates on load
	WatchCorpus         bool          `mapstructure:"watch_corpus"`         // fsnotify hot reload
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"` // below this, fallback rerank
	FallbackConfidence  float64       `mapstructure:"fallback_confidence"`  // fixed confidence for lexical mode
	K                   int           `mapstructure:"k"`                    // top-k candidates
	Alpha               float64       `mapstructure:"alpha"`                // lexical/embedding fusion weight
	MaxLatency          time.Duration `mapstructure:"max_latency"`          // bounded wait before fallback
	InitCooldown        time.Duration `mapstructure:"init_cooldown"`        // between embedder init attempts
	CacheCapacity       int           `mapstructure:"cache_capacity"`       // retrieval result LRU capacity
	CacheTTLSeconds     int           `mapstructure:"cache_ttl_seconds"`    // retrieval cache entry TTL
	EmbeddingModelPath  string        `mapstructure:"embedding_model_path"` // ONNX model path or HF repo ID
	EmbeddingDims       int           `mapstructure:"embedding_dims"`       // target embedding dimensions
}

// RepetitionConfig stores repetition detection settings.
type RepetitionConfig struct {
	ReplyWindow        int     `mapstructure:"reply_window"`        // recent agent replies compared against
	StructureThreshold float64 `mapstructure:"structure_threshold"` // fingerprint similarity cutoff
	QuestionThreshold  float64 `mapstructure:"question_threshold"`  // question similarity cutoff
}

// PersonalityConfig stores mode variation settings.
type PersonalityConfig struct {
	TemplatePath         string `mapstructure:"template_path"`         // optional external template bank
	SpontaneityThreshold int    `mapstructure:"spontaneity_threshold"` // above this, regenerate from templates
	MeaningMinTurn       int    `mapstructure:"meaning_min_turn"`      // meaning layer only after this many turns
	Creativity           int    `mapstructure:"creativity"`            // 0-100; high levels borrow templates across modes
	Seed                 int64  `mapstructure:"seed"`                  // 0 means time-seeded
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("..")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Pipeline defaults
	viper.SetDefault("pipeline.turn_timeout", "2s")
	viper.SetDefault("pipeline.stage_timeout", "250ms")
	viper.SetDefault("pipeline.enable_tracing", true)

	// Safety defaults: the heuristic pass is on by default. A false negative
	// is the unacceptable failure mode, so detection is biased toward
	// over-triggering.
	viper.SetDefault("safety.phrase_path", "")
	viper.SetDefault("safety.resource_path", "")
	viper.SetDefault("safety.heuristic_enable", true)

	// Memory defaults
	viper.SetDefault("memory.topic_window", 4)
	viper.SetDefault("memory.recency_decay", 0.85)
	viper.SetDefault("memory.reference_min_turn", 3)

	// Retrieval defaults
	viper.SetDefault("retrieval.corpus_path", internal.DefaultCorpusPath)
	viper.SetDefault("retrieval.schema_validate", true)
	viper.SetDefault("retrieval.watch_corpus", false)
	viper.SetDefault("retrieval.confidence_threshold", 0.3)
	viper.SetDefault("retrieval.fallback_confidence", 0.2)
	viper.SetDefault("retrieval.k", 8)
	viper.SetDefault("retrieval.alpha", 0.5)
	viper.SetDefault("retrieval.max_latency", "250ms")
	viper.SetDefault("retrieval.init_cooldown", "30s")
	viper.SetDefault("retrieval.cache_capacity", 1000)
	viper.SetDefault("retrieval.cache_ttl_seconds", 3600)
	viper.SetDefault("retrieval.embedding_model_path", "sentence-transformers/all-MiniLM-L6-v2")
	viper.SetDefault("retrieval.embedding_dims", 384)

	// Repetition defaults
	viper.SetDefault("repetition.reply_window", 5)
	viper.SetDefault("repetition.structure_threshold", 0.6)
	viper.SetDefault("repetition.question_threshold", 0.7)

	// Personality defaults
	viper.SetDefault("personality.template_path", "")
	viper.SetDefault("personality.spontaneity_threshold", 80)
	viper.SetDefault("personality.meaning_min_turn", 3)
	viper.SetDefault("personality.creativity", 50)
	viper.SetDefault("personality.seed", 0)

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults will be used.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := AppConfig.Validate(); err != nil {
		return nil, err
	}

	return &AppConfig, nil
}

// Validate clamps and checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Memory.TopicWindow < 3 {
		c.Memory.TopicWindow = 3
	}
	if c.Memory.TopicWindow > 5 {
		c.Memory.TopicWindow = 5
	}
	if c.Retrieval.ConfidenceThreshold <= 0 || c.Retrieval.ConfidenceThreshold >= 1 {
		return fmt.Errorf("retrieval.confidence_threshold must be in (0,1), got %f", c.Retrieval.ConfidenceThreshold)
	}
	if c.Retrieval.FallbackConfidence >= c.Retrieval.ConfidenceThreshold {
		return fmt.Errorf("retrieval.fallback_confidence must stay below the confidence threshold")
	}
	if c.Repetition.ReplyWindow <= 0 {
		c.Repetition.ReplyWindow = 5
	}
	return nil
}
