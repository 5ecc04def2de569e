package decode

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Decoder turns a document path plus optional password into the document's
// concatenated text. Implementations may be long-running; callers apply
// their own timeout through ctx.
type Decoder interface {
	Decode(ctx context.Context, path, password string) (string, error)
}

// PDFDecoder decodes PDF documents, including password-protected ones.
// Encrypted documents are decrypted to a temporary file first, then text is
// extracted page by page.
type PDFDecoder struct {
	maxFileSize int64
	maxTextSize int
	paths       *PathValidator
}

// NewPDFDecoder creates a decoder. maxFileSize bounds the input document
// size; paths may be nil to disable directory confinement.
func NewPDFDecoder(maxFileSize int64, paths *PathValidator) *PDFDecoder {
	return &PDFDecoder{
		maxFileSize: maxFileSize,
		maxTextSize: 10 * 1024 * 1024, // 10MB text limit
		paths:       paths,
	}
}

// Decode extracts the full text of the PDF at path. It fails with
// *NotFoundError, *EncryptionError or *CorruptError so callers can
// classify per-document outcomes.
func (d *PDFDecoder) Decode(ctx context.Context, path, password string) (string, error) {
	if path == "" {
		return "", &NotFoundError{Path: path}
	}
	if d.paths != nil {
		if err := d.paths.ValidatePath(path); err != nil {
			return "", &NotFoundError{Path: path}
		}
	}

	fileInfo, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", &NotFoundError{Path: path}
	}
	if err != nil {
		return "", &CorruptError{Path: path, Err: err}
	}
	if err := d.validateFile(path, fileInfo); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	textPath, cleanup, err := d.preparePlaintext(path, password)
	if err != nil {
		return "", err
	}
	defer cleanup()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.extractText(path, textPath)
}

func (d *PDFDecoder) validateFile(path string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return &CorruptError{Path: path, Err: fmt.Errorf("path is a directory, not a file")}
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return &CorruptError{Path: path, Err: fmt.Errorf("file is not a PDF")}
	}
	if d.maxFileSize > 0 && fileInfo.Size() > d.maxFileSize {
		return &CorruptError{
			Path: path,
			Err:  fmt.Errorf("file too large: %d bytes (max: %d bytes)", fileInfo.Size(), d.maxFileSize),
		}
	}
	return nil
}

// preparePlaintext probes the document for encryption and, when encrypted,
// decrypts it into a temporary file. It returns the path text extraction
// should read from plus a cleanup function.
func (d *PDFDecoder) preparePlaintext(path, password string) (string, func(), error) {
	noop := func() {}

	f, err := os.Open(path)
	if err != nil {
		return "", noop, &CorruptError{Path: path, Err: err}
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if password != "" {
		conf.UserPW = password
		conf.OwnerPW = password
	}

	pdfCtx, err := api.ReadContext(f, conf)
	if err != nil {
		if isPasswordError(err) {
			return "", noop, &EncryptionError{Path: path, Err: err}
		}
		return "", noop, &CorruptError{Path: path, Err: err}
	}

	if pdfCtx.Encrypt == nil {
		return path, noop, nil
	}
	if password == "" {
		return "", noop, &EncryptionError{Path: path}
	}

	tmp, err := os.CreateTemp("", "docfields-*.pdf")
	if err != nil {
		return "", noop, &CorruptError{Path: path, Err: fmt.Errorf("cannot create temp file: %w", err)}
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if err := api.DecryptFile(path, tmpPath, conf); err != nil {
		cleanup()
		if isPasswordError(err) {
			return "", noop, &EncryptionError{Path: path, Err: err}
		}
		return "", noop, &CorruptError{Path: path, Err: err}
	}
	return tmpPath, cleanup, nil
}

// isPasswordError distinguishes authentication failures from structural
// ones. pdfcpu does not export a stable error value for this, so the check
// is on the message.
func isPasswordError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "password")
}

// extractText concatenates the plain text of every page. Pages that fail to
// extract are skipped; a document yielding no text at all is corrupt for
// this pipeline's purposes.
func (d *PDFDecoder) extractText(origPath, textPath string) (string, error) {
	f, pdfReader, err := pdf.Open(textPath)
	if err != nil {
		return "", &CorruptError{Path: origPath, Err: fmt.Errorf("failed to open PDF: %w", err)}
	}
	defer f.Close()

	var builder strings.Builder
	totalLength := 0
	for pageNum := 1; pageNum <= pdfReader.NumPage(); pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if totalLength+len(content) > d.maxTextSize {
			remaining := d.maxTextSize - totalLength
			if remaining > 0 {
				builder.WriteString(content[:remaining])
			}
			break
		}
		builder.WriteString(content)
		totalLength += len(content)
		if pageNum < pdfReader.NumPage() {
			builder.WriteString("\n")
		}
	}

	text := builder.String()
	if strings.TrimSpace(text) == "" {
		return "", &CorruptError{Path: origPath, Err: fmt.Errorf("no text content could be extracted")}
	}
	return text, nil
}
