// Package config assembles typed settings from viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/bgdnvk/resonance/internal/ai"
)

type Knowledge struct {
	Source         string
	Artifact       string
	TopK           int
	SkipUnreadable bool
	GitHubToken    string
	GCSCredentials string
	AWS            AWS
}

// AWS configures the S3 corpus source and artifact store.
type AWS struct {
	Profile         string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Endpoint        string
}

type Analytics struct {
	// Provider is "lexicon" (offline) or "azure".
	Provider string
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

type Dispatch struct {
	MaxInFlight  int
	RetryBackoff time.Duration
	DualDeadline time.Duration
}

type Audit struct {
	// Driver is sqlite, pgx or mysql. An empty DSN disables auditing.
	Driver string
	DSN    string
}

type Config struct {
	Debug       bool
	Knowledge   Knowledge
	Analytic    ai.Profile
	Empathetic  ai.Profile
	Analytics   Analytics
	Dispatch    Dispatch
	Audit       Audit
	ServerAddr  string
	LexiconFile string
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("knowledge.source", "data/knowledge")
	v.SetDefault("knowledge.artifact", "db/localrag.json")
	v.SetDefault("knowledge.top_k", 4)
	v.SetDefault("knowledge.skip_unreadable", false)
	v.SetDefault("backends.analytic.provider", "openai")
	v.SetDefault("backends.analytic.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("backends.empathetic.provider", "anthropic")
	v.SetDefault("backends.empathetic.api_key_env", "ANTHROPIC_API_KEY")
	v.SetDefault("analytics.provider", "lexicon")
	v.SetDefault("dispatch.max_in_flight", 32)
	v.SetDefault("dispatch.retry_backoff", "250ms")
	v.SetDefault("dispatch.dual_deadline", "0s")
	v.SetDefault("extractor.timeout", "2s")
	v.SetDefault("audit.driver", "")
	v.SetDefault("audit.dsn", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("lexicon.file", "")
}

// Load reads the typed configuration from v. Defaults must already be set.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Debug: v.GetBool("debug"),
		Knowledge: Knowledge{
			Source:         v.GetString("knowledge.source"),
			Artifact:       v.GetString("knowledge.artifact"),
			TopK:           v.GetInt("knowledge.top_k"),
			SkipUnreadable: v.GetBool("knowledge.skip_unreadable"),
			GitHubToken:    v.GetString("knowledge.github_token"),
			GCSCredentials: v.GetString("knowledge.gcs_credentials"),
			AWS: AWS{
				Profile:         v.GetString("knowledge.aws.profile"),
				Region:          v.GetString("knowledge.aws.region"),
				AccessKeyID:     v.GetString("knowledge.aws.access_key_id"),
				SecretAccessKey: v.GetString("knowledge.aws.secret_access_key"),
				SessionToken:    v.GetString("knowledge.aws.session_token"),
				Endpoint:        v.GetString("knowledge.aws.endpoint"),
			},
		},
		Analytics: Analytics{
			Provider: v.GetString("analytics.provider"),
			Endpoint: v.GetString("analytics.endpoint"),
			APIKey:   v.GetString("analytics.api_key"),
			Timeout:  v.GetDuration("extractor.timeout"),
		},
		Dispatch: Dispatch{
			MaxInFlight:  v.GetInt("dispatch.max_in_flight"),
			RetryBackoff: v.GetDuration("dispatch.retry_backoff"),
			DualDeadline: v.GetDuration("dispatch.dual_deadline"),
		},
		Audit: Audit{
			Driver: v.GetString("audit.driver"),
			DSN:    v.GetString("audit.dsn"),
		},
		ServerAddr:  v.GetString("server.addr"),
		LexiconFile: v.GetString("lexicon.file"),
	}

	if err := v.UnmarshalKey("backends.analytic", &cfg.Analytic); err != nil {
		return Config{}, fmt.Errorf("failed to parse backends.analytic: %w", err)
	}
	if err := v.UnmarshalKey("backends.empathetic", &cfg.Empathetic); err != nil {
		return Config{}, fmt.Errorf("failed to parse backends.empathetic: %w", err)
	}

	if cfg.Knowledge.TopK <= 0 {
		return Config{}, fmt.Errorf("knowledge.top_k must be positive, got %d", cfg.Knowledge.TopK)
	}
	if cfg.Dispatch.MaxInFlight < 0 {
		return Config{}, fmt.Errorf("dispatch.max_in_flight must not be negative")
	}
	switch cfg.Analytics.Provider {
	case "lexicon", "":
	case "azure":
		if cfg.Analytics.Endpoint == "" {
			return Config{}, fmt.Errorf("analytics.endpoint is required for the azure provider")
		}
	default:
		return Config{}, fmt.Errorf("unknown analytics provider %q", cfg.Analytics.Provider)
	}
	return cfg, nil
}

// DefaultYAML is written by `resonance config init`.
const DefaultYAML = `# Resonance Configuration

knowledge:
  source: data/knowledge        # directory, s3://bucket/prefix, gs://bucket/prefix or github://owner/repo[/path][@ref]
  artifact: db/localrag.json    # local path, s3://bucket/key or gs://bucket/object
  top_k: 4
  # github_token: ghp_...
  # gcs_credentials: /path/to/service-account.json
  # aws:
  #   profile: default
  #   region: us-east-1
  #   endpoint: http://localhost:9000   # S3-compatible store

backends:
  analytic:
    provider: openai
    model: gpt-4o-mini
    api_key_env: OPENAI_API_KEY
  empathetic:
    provider: anthropic
    model: claude-3-5-sonnet-latest
    api_key_env: ANTHROPIC_API_KEY
  # empathetic:
  #   provider: bedrock
  #   aws_profile: default
  #   region: us-east-1

analytics:
  provider: lexicon             # lexicon or azure
  # endpoint: https://<resource>.cognitiveservices.azure.com
  # api_key: ...

extractor:
  timeout: 2s

dispatch:
  max_in_flight: 32             # 0 disables admission control
  retry_backoff: 250ms
  dual_deadline: 0s             # 0 uses the longest tier timeout

audit:
  driver: sqlite                # sqlite, pgx or mysql; leave dsn empty to disable
  dsn: db/audit.db

server:
  addr: ":8080"

lexicon:
  file: ""                      # optional YAML override of the keyword lists
`
