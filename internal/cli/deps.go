// Package cli detects the external executables resonance shells out to.
package cli

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// DependencyStatus represents the status of a CLI tool
type DependencyStatus struct {
	Name      string
	Installed bool
	Version   string
	Required  bool
	Message   string
}

// Tool describes an executable and how to read its version.
type Tool struct {
	Name        string
	VersionArgs []string
	VersionRe   *regexp.Regexp
	Required    bool
	Purpose     string
}

var (
	awsVersionRe       = regexp.MustCompile(`aws-cli/(\d+\.\d+\.\d+)`)
	pdftotextVersionRe = regexp.MustCompile(`pdftotext version (\d+\.\d+(?:\.\d+)?)`)
)

// AWSCLI is needed by the bedrock backend, which invokes models through
// `aws bedrock-runtime invoke-model`.
func AWSCLI(required bool) Tool {
	return Tool{
		Name:        "aws",
		VersionArgs: []string{"--version"},
		VersionRe:   awsVersionRe,
		Required:    required,
		Purpose:     "bedrock backend",
	}
}

// PDFToText is needed to index PDF documents.
func PDFToText(bin string) Tool {
	if bin == "" {
		bin = "pdftotext"
	}
	return Tool{
		Name:        bin,
		VersionArgs: []string{"-v"},
		VersionRe:   pdftotextVersionRe,
		Purpose:     "PDF extraction",
	}
}

// DependencyChecker handles detection of CLI tools
type DependencyChecker struct {
	lookPath func(string) (string, error)
	output   func(ctx context.Context, path string, args ...string) ([]byte, error)
}

// NewDependencyChecker creates a new dependency checker
func NewDependencyChecker() *DependencyChecker {
	return &DependencyChecker{
		lookPath: exec.LookPath,
		output: func(ctx context.Context, path string, args ...string) ([]byte, error) {
			// pdftotext prints its version on stderr
			return exec.CommandContext(ctx, path, args...).CombinedOutput()
		},
	}
}

// CheckAll checks each tool in order.
func (d *DependencyChecker) CheckAll(ctx context.Context, tools ...Tool) []DependencyStatus {
	statuses := make([]DependencyStatus, 0, len(tools))
	for _, t := range tools {
		statuses = append(statuses, d.Check(ctx, t))
	}
	return statuses
}

// CheckMissing returns only the required tools that are absent.
func (d *DependencyChecker) CheckMissing(ctx context.Context, tools ...Tool) []DependencyStatus {
	var missing []DependencyStatus
	for _, s := range d.CheckAll(ctx, tools...) {
		if s.Required && !s.Installed {
			missing = append(missing, s)
		}
	}
	return missing
}

func (d *DependencyChecker) Check(ctx context.Context, t Tool) DependencyStatus {
	status := DependencyStatus{Name: t.Name, Required: t.Required}

	path, err := d.lookPath(t.Name)
	if err != nil {
		status.Message = t.Name + " is not installed (needed for " + t.Purpose + ")"
		return status
	}
	status.Installed = true

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	output, err := d.output(ctx, path, t.VersionArgs...)
	if err != nil && len(output) == 0 {
		status.Message = "failed to get " + t.Name + " version"
		return status
	}

	status.Version = strings.TrimSpace(string(output))
	if t.VersionRe != nil {
		if m := t.VersionRe.FindStringSubmatch(status.Version); len(m) >= 2 {
			status.Version = m[1]
		}
	}
	return status
}
