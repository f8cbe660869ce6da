package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/spf13/cobra"

	"github.com/bgdnvk/resonance/internal/ai"
	"github.com/bgdnvk/resonance/internal/cli"
	"github.com/bgdnvk/resonance/internal/config"
	"github.com/bgdnvk/resonance/internal/knowledge"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Check the credentials resonance will use",
	Long: `Inspect the credentials behind the configured inference backends and
knowledge locations.

Examples:
  resonance credentials test
  resonance credentials test aws
  resonance credentials test backends
  resonance credentials test tools`,
}

var credentialsTestCmd = &cobra.Command{
	Use:   "test [backends|aws|github|tools]",
	Short: "Test configured credentials",
	Long: `Test that configured credentials are present and accepted.

If no target is specified, every check relevant to the configuration runs:
backends always, aws when the corpus or artifact lives in S3, github when the
corpus is a GitHub repository, and tools for the executables resonance
shells out to.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"backends", "aws", "github", "tools"},
	RunE:      runCredentialsTest,
}

func init() {
	rootCmd.AddCommand(credentialsCmd)
	credentialsCmd.AddCommand(credentialsTestCmd)
}

type callerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

func runCredentialsTest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	out := cmd.OutOrStdout()

	targets := relevantChecks(cfg)
	if len(args) > 0 {
		targets = []string{strings.ToLower(args[0])}
	}

	allPassed := true
	for _, target := range targets {
		fmt.Fprintf(out, "Testing %s credentials...\n", target)
		var err error
		switch target {
		case "backends":
			err = checkBackends(out, cfg)
		case "aws":
			var awsCfg aws.Config
			awsCfg, err = knowledge.AWSConfig(ctx, sourceOptions(cfg))
			if err == nil {
				err = checkAWS(ctx, out, sts.NewFromConfig(awsCfg))
			}
		case "github":
			err = checkGitHub(ctx, out, cfg)
		case "tools":
			err = checkTools(ctx, out, cli.NewDependencyChecker(), cfg)
		default:
			return fmt.Errorf("unsupported target: %s (supported: backends, aws, github, tools)", target)
		}
		if err != nil {
			allPassed = false
			fmt.Fprintf(out, "  FAILED: %v\n", err)
		}
		fmt.Fprintln(out)
	}

	if !allPassed {
		return fmt.Errorf("some credential tests failed")
	}
	return nil
}

func relevantChecks(cfg config.Config) []string {
	checks := []string{"backends"}
	locations := []string{cfg.Knowledge.Source, cfg.Knowledge.Artifact}
	for _, loc := range locations {
		if strings.HasPrefix(loc, "s3://") {
			checks = append(checks, "aws")
			break
		}
	}
	if strings.HasPrefix(cfg.Knowledge.Source, "github://") {
		checks = append(checks, "github")
	}
	return append(checks, "tools")
}

func checkBackends(w io.Writer, cfg config.Config) error {
	var missing []string
	for _, b := range []struct {
		role    string
		profile ai.Profile
	}{{"analytic", cfg.Analytic}, {"empathetic", cfg.Empathetic}} {
		provider := strings.ToLower(b.profile.Provider)
		switch {
		case provider == "bedrock" || provider == "claude":
			fmt.Fprintf(w, "  %s: bedrock via aws CLI profile %q\n", b.role, firstNonEmpty(b.profile.AWSProfile, "default"))
		case b.profile.ResolvedKey() != "":
			fmt.Fprintf(w, "  %s: %s key configured\n", b.role, firstNonEmpty(provider, "openai"))
		default:
			fmt.Fprintf(w, "  %s: %s key missing (set api_key or api_key_env)\n", b.role, firstNonEmpty(provider, "openai"))
			missing = append(missing, b.role)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no API key for %s", strings.Join(missing, ", "))
	}
	return nil
}

func checkAWS(ctx context.Context, w io.Writer, client callerIdentityAPI) error {
	id, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("sts get-caller-identity: %w", err)
	}
	fmt.Fprintf(w, "  account %s as %s\n", aws.ToString(id.Account), aws.ToString(id.Arn))
	return nil
}

func checkGitHub(ctx context.Context, w io.Writer, cfg config.Config) error {
	if cfg.Knowledge.GitHubToken == "" {
		fmt.Fprintln(w, "  no token configured; public repositories only")
		return nil
	}
	client := knowledge.NewGitHubClient(ctx, cfg.Knowledge.GitHubToken)
	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return fmt.Errorf("github token rejected: %w", err)
	}
	fmt.Fprintf(w, "  authenticated as %s\n", user.GetLogin())
	return nil
}

func usesBedrock(cfg config.Config) bool {
	for _, p := range []ai.Profile{cfg.Analytic, cfg.Empathetic} {
		switch strings.ToLower(p.Provider) {
		case "bedrock", "claude":
			return true
		}
	}
	return false
}

func checkTools(ctx context.Context, w io.Writer, checker *cli.DependencyChecker, cfg config.Config) error {
	tools := []cli.Tool{cli.AWSCLI(usesBedrock(cfg)), cli.PDFToText("")}
	for _, s := range checker.CheckAll(ctx, tools...) {
		if s.Installed {
			fmt.Fprintf(w, "  %s: %s\n", s.Name, firstNonEmpty(s.Version, "installed"))
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", s.Name, s.Message)
	}
	if missing := checker.CheckMissing(ctx, tools...); len(missing) > 0 {
		return fmt.Errorf("%s is required but not installed", missing[0].Name)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
