package cli

import (
	"context"
	"errors"
	"testing"
)

func fakeChecker(installed map[string]string) *DependencyChecker {
	return &DependencyChecker{
		lookPath: func(name string) (string, error) {
			if _, ok := installed[name]; !ok {
				return "", errors.New("not found")
			}
			return "/usr/bin/" + name, nil
		},
		output: func(_ context.Context, path string, _ ...string) ([]byte, error) {
			for name, out := range installed {
				if path == "/usr/bin/"+name {
					return []byte(out), nil
				}
			}
			return nil, errors.New("unexpected path")
		},
	}
}

func TestCheckParsesVersion(t *testing.T) {
	checker := fakeChecker(map[string]string{
		"aws":       "aws-cli/2.15.0 Python/3.11.6 Linux/6.1 exe/x86_64",
		"pdftotext": "pdftotext version 24.02.0\nCopyright 2005-2024 The Poppler Developers",
	})

	tests := []struct {
		tool Tool
		want string
	}{
		{AWSCLI(true), "2.15.0"},
		{PDFToText(""), "24.02.0"},
	}
	for _, tt := range tests {
		t.Run(tt.tool.Name, func(t *testing.T) {
			status := checker.Check(context.Background(), tt.tool)
			if !status.Installed {
				t.Fatalf("%s reported missing: %s", tt.tool.Name, status.Message)
			}
			if status.Version != tt.want {
				t.Errorf("Version = %q, want %q", status.Version, tt.want)
			}
		})
	}
}

func TestCheckMissing(t *testing.T) {
	checker := fakeChecker(map[string]string{})

	missing := checker.CheckMissing(context.Background(), AWSCLI(true), PDFToText(""))
	if len(missing) != 1 || missing[0].Name != "aws" {
		t.Fatalf("CheckMissing() = %+v, want only aws", missing)
	}
	if missing[0].Message != "aws is not installed (needed for bedrock backend)" {
		t.Errorf("Message = %q", missing[0].Message)
	}

	if got := checker.CheckMissing(context.Background(), AWSCLI(false)); len(got) != 0 {
		t.Errorf("optional tool reported missing: %+v", got)
	}
}

func TestPDFToTextCustomBinary(t *testing.T) {
	if got := PDFToText("/opt/poppler/bin/pdftotext").Name; got != "/opt/poppler/bin/pdftotext" {
		t.Errorf("Name = %q", got)
	}
}
