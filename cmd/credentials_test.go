package cmd

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/bgdnvk/resonance/internal/ai"
	"github.com/bgdnvk/resonance/internal/config"
)

type fakeSTS struct {
	out *sts.GetCallerIdentityOutput
	err error
}

func (f fakeSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return f.out, f.err
}

func TestRelevantChecks(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		artifact string
		want     []string
	}{
		{"local only", "data/knowledge", "db/localrag.json", []string{"backends", "tools"}},
		{"s3 artifact", "data/knowledge", "s3://bucket/index.json", []string{"backends", "aws", "tools"}},
		{"s3 source and artifact", "s3://bucket/docs", "s3://bucket/index.json", []string{"backends", "aws", "tools"}},
		{"github source", "github://acme/handbook", "db/localrag.json", []string{"backends", "github", "tools"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg config.Config
			cfg.Knowledge.Source = tt.source
			cfg.Knowledge.Artifact = tt.artifact
			if got := relevantChecks(cfg); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("relevantChecks() = %v, want %v", got, tt.want)
			}
		})
	}
}

// clearProviderKeys hides the conventional provider key variables so key
// resolution only sees what the test configures.
func clearProviderKeys(t *testing.T) {
	t.Helper()
	for _, env := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "DEEPSEEK_API_KEY", "MINIMAX_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(env, "")
	}
}

func TestCheckBackends(t *testing.T) {
	clearProviderKeys(t)
	var cfg config.Config
	cfg.Analytic = ai.Profile{Provider: "openai", APIKey: "sk-test"}
	cfg.Empathetic = ai.Profile{Provider: "bedrock", AWSProfile: "prod"}

	var buf bytes.Buffer
	if err := checkBackends(&buf, cfg); err != nil {
		t.Fatalf("checkBackends() error = %v", err)
	}
	if !strings.Contains(buf.String(), `bedrock via aws CLI profile "prod"`) {
		t.Errorf("output = %q", buf.String())
	}

	cfg.Empathetic = ai.Profile{Provider: "anthropic", APIKeyEnv: "RESONANCE_TEST_UNSET_KEY"}
	buf.Reset()
	err := checkBackends(&buf, cfg)
	if err == nil || !strings.Contains(err.Error(), "empathetic") {
		t.Errorf("expected missing empathetic key, got %v", err)
	}
}

func TestCheckBackendsUsesConventionalEnv(t *testing.T) {
	clearProviderKeys(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")

	var cfg config.Config
	cfg.Analytic = ai.Profile{Provider: "openai", APIKey: "sk-test"}
	cfg.Empathetic = ai.Profile{Provider: "anthropic"}

	var buf bytes.Buffer
	if err := checkBackends(&buf, cfg); err != nil {
		t.Fatalf("checkBackends() error = %v", err)
	}
	if !strings.Contains(buf.String(), "empathetic: anthropic key configured") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestCheckAWS(t *testing.T) {
	var buf bytes.Buffer
	err := checkAWS(context.Background(), &buf, fakeSTS{out: &sts.GetCallerIdentityOutput{
		Account: aws.String("123456789012"),
		Arn:     aws.String("arn:aws:iam::123456789012:user/indexer"),
	}})
	if err != nil {
		t.Fatalf("checkAWS() error = %v", err)
	}
	if !strings.Contains(buf.String(), "123456789012") || !strings.Contains(buf.String(), "user/indexer") {
		t.Errorf("output = %q", buf.String())
	}

	if err := checkAWS(context.Background(), &buf, fakeSTS{err: errors.New("expired token")}); err == nil {
		t.Error("expected error")
	}
}

func TestUsesBedrock(t *testing.T) {
	var cfg config.Config
	cfg.Analytic = ai.Profile{Provider: "openai"}
	cfg.Empathetic = ai.Profile{Provider: "anthropic"}
	if usesBedrock(cfg) {
		t.Error("usesBedrock() = true without a bedrock backend")
	}
	cfg.Empathetic.Provider = "Claude"
	if !usesBedrock(cfg) {
		t.Error("usesBedrock() = false with the claude alias")
	}
}
