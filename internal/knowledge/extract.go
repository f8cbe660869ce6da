package knowledge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"unicode/utf8"
)

// TextExtractor turns a binary document into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, name string, data []byte) (string, error)
}

// PDFToText shells out to poppler's pdftotext. The document is staged in a
// temp file because pdftotext only reads from disk.
type PDFToText struct {
	Binary string
}

func (p PDFToText) Extract(ctx context.Context, name string, data []byte) (string, error) {
	bin := p.Binary
	if bin == "" {
		bin = "pdftotext"
	}

	in, err := os.CreateTemp("", "resonance-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	inPath := in.Name()
	defer os.Remove(inPath)
	if _, err := in.Write(data); err != nil {
		in.Close()
		return "", fmt.Errorf("failed to stage %s: %w", name, err)
	}
	in.Close()

	// "-" writes extracted text to stdout
	cmd := exec.CommandContext(ctx, bin, "-layout", "-enc", "UTF-8", inPath, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext failed for %s: %w", name, err)
	}
	return string(out), nil
}

// documentText returns the indexable text for a document, routing PDFs
// through the extractor and requiring everything else to be valid UTF-8.
func documentText(ctx context.Context, ext TextExtractor, ref DocumentRef, data []byte) (string, error) {
	if IsPDF(ref.Path) {
		if ext == nil {
			return "", fmt.Errorf("no text extractor configured for %s", ref.Path)
		}
		text, err := ext.Extract(ctx, ref.Path, data)
		if err != nil {
			return "", err
		}
		return strings.ToValidUTF8(text, " "), nil
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s is not valid UTF-8 text", ref.Path)
	}
	return string(data), nil
}
