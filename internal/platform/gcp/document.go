package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/lessonbank-backend/internal/platform/ctxutil"
	"github.com/yungbote/lessonbank-backend/internal/platform/envutil"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

const (
	maxTitleRunes   = 500
	maxInlineBytes  = 20 << 20
	defaultLocation = "us"
)

var ErrUnsupportedReference = errors.New("document reference must be a gs:// URI")

type DocumentConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	Timeout          time.Duration

	CredentialsJSON string
	CredentialsFile string
	QuotaProject    string
}

func DocumentConfigFromEnv() DocumentConfig {
	return DocumentConfig{
		ProjectID:        envutil.String("DOCUMENTAI_PROJECT_ID", ""),
		Location:         envutil.String("DOCUMENTAI_LOCATION", defaultLocation),
		ProcessorID:      envutil.String("DOCUMENTAI_PROCESSOR_ID", ""),
		ProcessorVersion: envutil.String("DOCUMENTAI_PROCESSOR_VERSION", ""),
		Timeout:          envutil.Seconds("DOCUMENTAI_TIMEOUT_SECONDS", 3*time.Minute),
		CredentialsJSON:  envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", ""),
		CredentialsFile:  envutil.String("GOOGLE_APPLICATION_CREDENTIALS", ""),
		QuotaProject:     envutil.String("GOOGLE_CLOUD_QUOTA_PROJECT", ""),
	}
}

// Enabled reports whether a Document AI processor is configured.
func (c DocumentConfig) Enabled() bool {
	return processorName(c.ProjectID, c.Location, c.ProcessorID, c.ProcessorVersion) != ""
}

// ExtractedDocument is the title and plain-text body read from a lesson document.
type ExtractedDocument struct {
	Title    string
	Body     string
	MimeType string
	Pages    int
}

// DocumentExtractor reads lesson documents from Cloud Storage. Plain text objects
// are read directly; everything else goes through the Document AI OCR processor.
type DocumentExtractor struct {
	log *logger.Logger
	cfg DocumentConfig

	docClient *documentai.DocumentProcessorClient
	storage   *storage.Client
}

func NewDocumentExtractor(ctx context.Context, log *logger.Logger, cfg DocumentConfig) (*DocumentExtractor, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.Location == "" {
		cfg.Location = defaultLocation
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	slog := log.With("service", "gcp.DocumentExtractor")

	st, err := storage.NewClient(ctx, cfg.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	e := &DocumentExtractor{log: slog, cfg: cfg, storage: st}

	if cfg.Enabled() {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
		docOpts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, cfg.clientOptions()...)
		c, err := documentai.NewDocumentProcessorClient(ctx, docOpts...)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("documentai client: %w", err)
		}
		e.docClient = c
		slog.Info("Document AI initialized", "endpoint", endpoint, "processor", cfg.ProcessorID)
	} else {
		slog.Warn("Document AI processor not configured; only text documents can be extracted")
	}
	return e, nil
}

func (e *DocumentExtractor) Close() error {
	if e == nil {
		return nil
	}
	if e.docClient != nil {
		_ = e.docClient.Close()
	}
	if e.storage != nil {
		_ = e.storage.Close()
	}
	return nil
}

// Extract reads ref (gs://bucket/object) and returns its title and body.
func (e *DocumentExtractor) Extract(ctx context.Context, ref string) (ExtractedDocument, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	bucket, key, err := ParseGCSURI(ref)
	if err != nil {
		return ExtractedDocument{}, err
	}
	obj := e.storage.Bucket(bucket).Object(key)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return ExtractedDocument{}, fmt.Errorf("stat %s: %w", ref, err)
	}
	mime := MimeTypeFor(key, attrs.ContentType)

	if strings.HasPrefix(mime, "text/") {
		if attrs.Size > maxInlineBytes {
			return ExtractedDocument{}, fmt.Errorf("%s is %d bytes; text documents are limited to %d", ref, attrs.Size, maxInlineBytes)
		}
		rc, err := obj.NewReader(ctx)
		if err != nil {
			return ExtractedDocument{}, fmt.Errorf("read %s: %w", ref, err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return ExtractedDocument{}, fmt.Errorf("read %s: %w", ref, err)
		}
		body := strings.TrimSpace(string(b))
		return ExtractedDocument{Title: TitleFromText(body), Body: body, MimeType: mime, Pages: 1}, nil
	}

	if e.docClient == nil {
		return ExtractedDocument{}, fmt.Errorf("cannot extract %s (%s): document ai processor not configured", ref, mime)
	}
	name := processorName(e.cfg.ProjectID, e.cfg.Location, e.cfg.ProcessorID, e.cfg.ProcessorVersion)
	resp, err := e.docClient.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: name,
		Source: &documentaipb.ProcessRequest_GcsDocument{
			GcsDocument: &documentaipb.GcsDocument{GcsUri: ref, MimeType: mime},
		},
	})
	if err != nil {
		return ExtractedDocument{}, fmt.Errorf("documentai ProcessDocument (gcs): %w", err)
	}
	out := ExtractedDocument{MimeType: mime}
	if resp != nil && resp.Document != nil {
		out.Body = BodyFromDocument(resp.Document)
		out.Pages = len(resp.Document.Pages)
	}
	out.Title = TitleFromText(out.Body)
	e.log.Debug("document extracted", "ref", ref, "mime_type", mime, "pages", out.Pages, "chars", len(out.Body))
	return out, nil
}

// BodyFromDocument joins paragraph text page by page, falling back to the raw
// document text when the processor returned no layout.
func BodyFromDocument(doc *documentaipb.Document) string {
	if doc == nil {
		return ""
	}
	pages := []string{}
	for _, p := range doc.Pages {
		if p == nil {
			continue
		}
		var b strings.Builder
		for _, para := range p.Paragraphs {
			if para == nil || para.Layout == nil {
				continue
			}
			t := strings.TrimSpace(textFromAnchor(doc.Text, para.Layout.TextAnchor))
			if t == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(t)
		}
		if b.Len() > 0 {
			pages = append(pages, b.String())
		}
	}
	if len(pages) == 0 {
		return strings.TrimSpace(doc.Text)
	}
	return strings.Join(pages, "\n\n")
}

// TitleFromText returns the first non-blank line, whitespace collapsed and capped at 500 runes.
func TitleFromText(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = collapseWhitespace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > maxTitleRunes {
			r := []rune(line)
			line = strings.TrimSpace(string(r[:maxTitleRunes]))
		}
		return line
	}
	return ""
}

// MimeTypeFor prefers the object's stored content type and falls back to the extension.
func MimeTypeFor(name, contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "application/pdf"
	}
}

// ParseGCSURI splits gs://bucket/key.
func ParseGCSURI(uri string) (bucket, key string, err error) {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", ErrUnsupportedReference
	}
	rest := strings.TrimPrefix(uri, "gs://")
	i := strings.Index(rest, "/")
	if i <= 0 || i == len(rest)-1 {
		return "", "", fmt.Errorf("invalid gcs uri %q: want gs://bucket/object", uri)
	}
	return rest[:i], rest[i+1:], nil
}

func textFromAnchor(full string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || len(anchor.TextSegments) == 0 || full == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		if seg == nil {
			continue
		}
		start := int(seg.StartIndex)
		end := int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(full) {
			end = len(full)
		}
		if start >= end {
			continue
		}
		b.WriteString(full[start:end])
	}
	return b.String()
}

func processorName(project, location, processorID, version string) string {
	project = strings.TrimSpace(project)
	location = strings.TrimSpace(location)
	processorID = strings.TrimSpace(processorID)
	version = strings.TrimSpace(version)

	if project == "" || location == "" || processorID == "" {
		return ""
	}
	base := fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID)
	if version != "" {
		return base + "/processorVersions/" + version
	}
	return base
}
