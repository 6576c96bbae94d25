// Package config holds the immutable, once-built-at-startup configuration
// for the retrieval core, replacing the "dynamic configuration via
// attribute setters" pattern with a single struct constructed once and
// passed by reference into every component.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root, immutable configuration. Build it once at process
// start via Load, then pass *Config by shared reference into every
// component constructor. Nothing mutates it after Load returns.
type Config struct {
	SaveDir   string          `yaml:"save_dir"`
	LLM       LLMConfig       `yaml:"llm"`
	Graph     GraphConfig     `yaml:"graph"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Cache     CacheConfig     `yaml:"cache"`
}

// LLMEndpoint describes one selectable model endpoint. Selection of which
// endpoint backs the reasoning/answer/fallback roles is configuration-only;
// the core never hard-codes a provider.
type LLMEndpoint struct {
	Provider    string        `yaml:"provider"` // "openai", "anthropic", "ollama"
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

// APIKey resolves the endpoint's API key from its configured env var.
func (e LLMEndpoint) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// LLMConfig holds the three call-site-selected LLM endpoints plus the
// embedding and reranker endpoints.
type LLMConfig struct {
	Reasoning LLMEndpoint `yaml:"reasoning"` // fast/cheap model for OpenIE/NER/decomposition
	Answer    LLMEndpoint `yaml:"answer"`    // synthesis model
	Fallback  LLMEndpoint `yaml:"fallback"`  // local model, e.g. Ollama
	Embedding LLMEndpoint `yaml:"embedding"`
	Reranker  LLMEndpoint `yaml:"reranker"`
}

// GraphConfig configures the passage-entity graph and PPR.
type GraphConfig struct {
	SnapshotPath      string  `yaml:"snapshot_path"`
	Neo4jURI          string  `yaml:"neo4j_uri"`
	Neo4jUser         string  `yaml:"neo4j_user"`
	Neo4jPasswordEnv  string  `yaml:"neo4j_password_env"`
	MirrorToNeo4j     bool    `yaml:"mirror_to_neo4j"`
	DampingFactor     float64 `yaml:"damping_factor"`      // default 0.5
	PassageNodeWeight float64 `yaml:"passage_node_weight"` // default 0.5
}

// Neo4jPassword resolves the mirror password from its configured env var.
func (g GraphConfig) Neo4jPassword() string {
	if g.Neo4jPasswordEnv == "" {
		return ""
	}
	return os.Getenv(g.Neo4jPasswordEnv)
}

// RetrievalConfig tunes retrieval-wide defaults; per-intent overrides live
// in internal/entityintent's IntentParams table.
type RetrievalConfig struct {
	BM25IndexPath     string  `yaml:"bm25_index_path"`
	RetrievalTopK     int     `yaml:"retrieval_top_k"`
	LinkingTopK       int     `yaml:"linking_top_k"`
	LenAfterRerank    int     `yaml:"len_after_rerank"`
	MinDocsStrict     int     `yaml:"min_docs_strict"`
	ReferenceMinScore float64 `yaml:"reference_min_score"`       // 0.4, single-entity
	MultiRefMinScore  float64 `yaml:"multi_reference_min_score"` // 0.5, multi-entity
}

// CacheConfig configures the content-addressed LLM/embedding/rerank cache.
type CacheConfig struct {
	Dir        string        `yaml:"dir"` // sqlite files live at <Dir>/<model>.sqlite (Dir defaults to <save_dir>/llm_cache)
	RedisAddr  string        `yaml:"redis_addr"`
	RedisDB    int           `yaml:"redis_db"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// Default returns a Config with the spec's documented defaults.
func Default() *Config {
	return &Config{
		SaveDir: "./data",
		LLM: LLMConfig{
			Reasoning: LLMEndpoint{Provider: "anthropic", Model: "claude-haiku", Timeout: 20 * time.Second, MaxRetries: 3, Temperature: 0, MaxTokens: 1024},
			Answer:    LLMEndpoint{Provider: "openai", Model: "gpt-4o-mini", Timeout: 30 * time.Second, MaxRetries: 3, Temperature: 0.2, MaxTokens: 1024},
			Fallback:  LLMEndpoint{Provider: "ollama", Model: "llama3.1", BaseURL: "http://localhost:11434", Timeout: 45 * time.Second, MaxRetries: 2},
			Embedding: LLMEndpoint{Provider: "openai", Model: "text-embedding-3-large", Timeout: 20 * time.Second, MaxRetries: 3},
			Reranker:  LLMEndpoint{Provider: "openai", Model: "rerank-default", Timeout: 20 * time.Second, MaxRetries: 3},
		},
		Graph: GraphConfig{
			SnapshotPath:      "./data/graph.gob",
			DampingFactor:     0.5,
			PassageNodeWeight: 0.5,
		},
		Retrieval: RetrievalConfig{
			BM25IndexPath:     "./data/bm25_index.gob",
			RetrievalTopK:     10,
			LinkingTopK:       20,
			LenAfterRerank:    8,
			MinDocsStrict:     3,
			ReferenceMinScore: 0.4,
			MultiRefMinScore:  0.5,
		},
		Cache: CacheConfig{
			Dir:        "./data/llm_cache",
			DefaultTTL: 30 * time.Minute,
		},
	}
}

// Load reads a YAML config file (if path is non-empty) over the defaults,
// then applies environment overrides, and returns the final immutable
// Config. SAVE_DIR, if set, overrides SaveDir and every path derived from it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if dir := os.Getenv("SAVE_DIR"); dir != "" {
		cfg.SaveDir = dir
		cfg.Graph.SnapshotPath = dir + "/graph.gob"
		cfg.Retrieval.BM25IndexPath = dir + "/bm25_index.gob"
		cfg.Cache.Dir = dir + "/llm_cache"
	}
	if v := os.Getenv("GRAPH_DAMPING_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Graph.DampingFactor = f
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
}

// ParseBoolEnv reads a boolean-ish env var (1/true/yes), defaulting to def.
func ParseBoolEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
