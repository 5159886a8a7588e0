package documents

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rmitchellscott/creativeforge/internal/compressor"
	"github.com/rmitchellscott/creativeforge/internal/logging"
	"github.com/rmitchellscott/creativeforge/internal/pdfprocessor"
	"github.com/rmitchellscott/creativeforge/internal/storage"
	"github.com/rmitchellscott/creativeforge/internal/upload"
)

// DownloadBase is the route documents are served from.
const DownloadBase = "/api/documents/download/"

// InputError is a request the document tools cannot act on.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

func inputErrorf(format string, args ...interface{}) error {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

// Settings configures external tools and page layout.
type Settings struct {
	PageSize  string
	Mutool    string
	PDFToText string
	// Images fetches remote images while laying out HTML. nil leaves them
	// as links.
	Images ImageFetcher
}

// Service runs the document tools against the shared store. Inputs are
// upload.Files; outputs land under documents/.
type Service struct {
	store    storage.Backend
	settings Settings
	now      func() time.Time
}

func NewService(store storage.Backend, s Settings) *Service {
	return &Service{store: store, settings: s, now: time.Now}
}

// FileResult is the common part of every response.
type FileResult struct {
	Filename    string `json:"filename"`
	DownloadURL string `json:"downloadUrl"`
	FileSize    int64  `json:"fileSize"`
}

type MergeResult struct {
	FileResult
	PagesCount int `json:"pagesCount"`
}

type SplitFile struct {
	Filename    string `json:"filename"`
	DownloadURL string `json:"downloadUrl"`
	PageNumber  int    `json:"pageNumber,omitempty"`
	PageRange   string `json:"pageRange,omitempty"`
}

type SplitResult struct {
	Files      []SplitFile `json:"files"`
	TotalPages int         `json:"totalPages"`
	SplitType  string      `json:"splitType"`
}

type CompressResult struct {
	FileResult
	OriginalName     string  `json:"originalName"`
	OriginalSize     int64   `json:"originalSize"`
	CompressedSize   int64   `json:"compressedSize"`
	CompressionRatio float64 `json:"compressionRatio"`
}

type ConvertResult struct {
	FileResult
	OriginalName    string `json:"originalName"`
	ConvertedFormat string `json:"convertedFormat"`
	ExtractedText   string `json:"extractedText,omitempty"`
}

type ExtractResult struct {
	FileResult
	ExtractedText  string `json:"extractedText"`
	FullText       string `json:"fullText"`
	WordCount      int    `json:"wordCount"`
	CharacterCount int    `json:"characterCount"`
}

// Split types.
const (
	SplitPages = "pages"
	SplitRange = "range"
)

// SplitOptions selects how a PDF is split. Start and End are 1-based and
// only used for SplitRange; End 0 means the last page.
type SplitOptions struct {
	Type  string
	Start int
	End   int
}

func isPDF(f upload.File) bool {
	return f.MIME == "application/pdf" || f.Ext() == "pdf"
}

// workdir creates a scratch directory; the returned func removes it.
func workdir() (string, func(), error) {
	dir, err := os.MkdirTemp("", "documents-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

func (s *Service) publish(ctx context.Context, filename, localPath string) (FileResult, error) {
	if err := storage.PutFile(ctx, s.store, storage.Join(storage.PrefixDocuments, filename), localPath); err != nil {
		return FileResult{}, err
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return FileResult{}, err
	}
	return FileResult{Filename: filename, DownloadURL: DownloadBase + filename, FileSize: info.Size()}, nil
}

func (s *Service) publishBytes(ctx context.Context, filename string, data []byte) (FileResult, error) {
	if err := storage.PutBytes(ctx, s.store, storage.Join(storage.PrefixDocuments, filename), data); err != nil {
		return FileResult{}, err
	}
	return FileResult{Filename: filename, DownloadURL: DownloadBase + filename, FileSize: int64(len(data))}, nil
}

// Merge concatenates at least two PDFs in upload order.
func (s *Service) Merge(ctx context.Context, files []upload.File) (*MergeResult, error) {
	var pdfs []upload.File
	for _, f := range files {
		if isPDF(f) {
			pdfs = append(pdfs, f)
		}
	}
	if len(pdfs) < 2 {
		return nil, inputErrorf("At least 2 PDF files are required")
	}

	dir, cleanup, err := workdir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	paths := make([]string, 0, len(pdfs))
	for _, f := range pdfs {
		p, err := storage.FetchToDir(ctx, s.store, f.Key, dir)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}

	filename := fmt.Sprintf("merged-%s.pdf", storage.Stamp(s.now()))
	out := filepath.Join(dir, filename)
	pages, err := pdfprocessor.Merge(paths, out)
	if err != nil {
		return nil, err
	}
	res, err := s.publish(ctx, filename, out)
	if err != nil {
		return nil, err
	}
	return &MergeResult{FileResult: res, PagesCount: pages}, nil
}

// Split writes one PDF per page, or a single PDF for a page range.
func (s *Service) Split(ctx context.Context, f upload.File, opts SplitOptions) (*SplitResult, error) {
	if !isPDF(f) {
		return nil, inputErrorf("Only PDF files can be split")
	}
	if opts.Type == "" {
		opts.Type = SplitPages
	}
	if opts.Type != SplitPages && opts.Type != SplitRange {
		return nil, inputErrorf("Unknown split type: %s", opts.Type)
	}

	dir, cleanup, err := workdir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	in, err := storage.FetchToDir(ctx, s.store, f.Key, dir)
	if err != nil {
		return nil, err
	}
	total, err := pdfprocessor.PageCount(in)
	if err != nil {
		return nil, err
	}

	stamp := storage.Stamp(s.now())
	result := &SplitResult{TotalPages: total, SplitType: opts.Type}
	outDir := filepath.Join(dir, "out")

	if opts.Type == SplitPages {
		paths, err := pdfprocessor.SplitPages(in, outDir, func(page int) string {
			return fmt.Sprintf("page-%d-%s.pdf", page, stamp)
		})
		if err != nil {
			return nil, err
		}
		for i, p := range paths {
			res, err := s.publish(ctx, filepath.Base(p), p)
			if err != nil {
				return nil, err
			}
			result.Files = append(result.Files, SplitFile{Filename: res.Filename, DownloadURL: res.DownloadURL, PageNumber: i + 1})
		}
		return result, nil
	}

	r, err := pdfprocessor.Range{From: opts.Start, To: opts.End}.Resolve(total)
	if err != nil {
		return nil, inputErrorf("Invalid page range: %d-%d (document has %d pages)", opts.Start, opts.End, total)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}
	filename := fmt.Sprintf("split-%d-%d-%s.pdf", r.From, r.To, stamp)
	out := filepath.Join(outDir, filename)
	if err := pdfprocessor.Extract(in, out, r); err != nil {
		return nil, err
	}
	res, err := s.publish(ctx, filename, out)
	if err != nil {
		return nil, err
	}
	result.Files = []SplitFile{{Filename: res.Filename, DownloadURL: res.DownloadURL, PageRange: fmt.Sprintf("%d-%d", r.From, r.To)}}
	return result, nil
}

// Compress rewrites a PDF through Ghostscript. preset is a PDFSETTINGS
// value such as "/screen"; empty uses GS_SETTINGS.
func (s *Service) Compress(ctx context.Context, f upload.File, preset string) (*CompressResult, error) {
	if !isPDF(f) {
		return nil, inputErrorf("Only PDF files can be compressed")
	}
	if !compressor.ValidSettings(preset) {
		return nil, inputErrorf("Unknown compression preset: %s", preset)
	}

	dir, cleanup, err := workdir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	in, err := storage.FetchToDir(ctx, s.store, f.Key, dir)
	if err != nil {
		return nil, err
	}
	c, err := compressor.CompressPDF(ctx, in, preset)
	if err != nil {
		return nil, err
	}

	// Ghostscript can grow already optimised files; keep the smaller one.
	outPath := c.Path
	if c.CompressedSize >= c.OriginalSize {
		outPath = in
	}
	filename := storage.OutputName("compressed", s.now(), f.OriginalName, "pdf")
	res, err := s.publish(ctx, filename, outPath)
	if err != nil {
		return nil, err
	}
	return &CompressResult{
		FileResult:       res,
		OriginalName:     f.OriginalName,
		OriginalSize:     c.OriginalSize,
		CompressedSize:   res.FileSize,
		CompressionRatio: math.Round(c.Ratio()*1000) / 10,
	}, nil
}

// ToPDF lays out DOCX, Markdown, plain text or HTML as a PDF. Only text and
// basic structure survive.
func (s *Service) ToPDF(ctx context.Context, f upload.File) (*ConvertResult, error) {
	data, err := storage.ReadAll(ctx, s.store, f.Key)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSuffix(f.OriginalName, filepath.Ext(f.OriginalName))
	var body string
	switch ext := f.Ext(); {
	case ext == "docx" || strings.Contains(f.MIME, "wordprocessingml"):
		text, err := ReadDOCXText(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, inputErrorf("Could not read DOCX: %v", err)
		}
		body = TextToHTML(text)
	case ext == "md" || ext == "markdown":
		md, err := RenderMarkdown(string(data))
		if err != nil {
			return nil, err
		}
		if md.Metadata.Title != "" {
			title = md.Metadata.Title
		}
		body = md.HTML
	case ext == "html" || ext == "htm" || strings.HasPrefix(f.MIME, "text/html"):
		article, err := ExtractArticle(bytes.NewReader(data), nil)
		if err != nil {
			return nil, err
		}
		if article.Title != "" {
			title = article.Title
		}
		body = article.HTML
	case ext == "txt" || strings.HasPrefix(f.MIME, "text/plain"):
		body = TextToHTML(string(data))
	case isPDF(f):
		return nil, inputErrorf("File is already a PDF")
	default:
		return nil, inputErrorf("Unsupported document type: %s", f.OriginalName)
	}
	if strings.TrimSpace(body) == "" {
		body = "<p></p>"
	}

	dir, cleanup, err := workdir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	filename := storage.OutputName("document", s.now(), f.OriginalName, "pdf")
	out := filepath.Join(dir, filename)
	opts := PDFOptions{Title: title, PageSize: s.settings.PageSize, Mutool: s.settings.Mutool}
	if err := HTMLToPDF(ctx, body, out, opts, s.settings.Images); err != nil {
		return nil, err
	}
	res, err := s.publish(ctx, filename, out)
	if err != nil {
		return nil, err
	}
	logging.Logf("[DOCUMENTS] %s -> %s", f.OriginalName, filename)
	return &ConvertResult{FileResult: res, OriginalName: f.OriginalName, ConvertedFormat: "PDF"}, nil
}

// PDFToDOCX writes the text layer of a PDF as a DOCX, one paragraph per
// non-empty line.
func (s *Service) PDFToDOCX(ctx context.Context, f upload.File) (*ConvertResult, error) {
	if !isPDF(f) {
		return nil, inputErrorf("Only PDF files can be converted to DOCX")
	}
	text, err := s.pdfText(ctx, f)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := WriteDOCX(&buf, strings.Split(text, "\n")); err != nil {
		return nil, fmt.Errorf("failed to write DOCX: %w", err)
	}
	filename := storage.OutputName("document", s.now(), f.OriginalName, "docx")
	res, err := s.publishBytes(ctx, filename, buf.Bytes())
	if err != nil {
		return nil, err
	}

	preview := []rune(text)
	if len(preview) > 200 {
		preview = preview[:200]
	}
	return &ConvertResult{
		FileResult:      res,
		OriginalName:    f.OriginalName,
		ConvertedFormat: "DOCX",
		ExtractedText:   string(preview) + "...",
	}, nil
}

// ExtractText pulls plain text out of PDF, DOCX, HTML, Markdown or text
// files and stores it as extracted-text-<unixms>-<rand>.txt.
func (s *Service) ExtractText(ctx context.Context, f upload.File) (*ExtractResult, error) {
	var text string
	switch ext := f.Ext(); {
	case isPDF(f):
		t, err := s.pdfText(ctx, f)
		if err != nil {
			return nil, err
		}
		text = t
	case ext == "docx" || strings.Contains(f.MIME, "wordprocessingml"):
		data, err := storage.ReadAll(ctx, s.store, f.Key)
		if err != nil {
			return nil, err
		}
		t, err := ReadDOCXText(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, inputErrorf("Could not read DOCX: %v", err)
		}
		text = t
	case ext == "html" || ext == "htm" || strings.HasPrefix(f.MIME, "text/html"):
		r, err := s.store.Get(ctx, f.Key)
		if err != nil {
			return nil, err
		}
		article, err := ExtractArticle(r, nil)
		r.Close()
		if err != nil {
			return nil, err
		}
		text = article.Text
	case ext == "txt" || ext == "md" || strings.HasPrefix(f.MIME, "text/"):
		data, err := storage.ReadAll(ctx, s.store, f.Key)
		if err != nil {
			return nil, err
		}
		text = string(data)
	default:
		return nil, inputErrorf("Unsupported document type: %s", f.OriginalName)
	}

	filename := fmt.Sprintf("extracted-text-%s.txt", storage.Stamp(s.now()))
	res, err := s.publishBytes(ctx, filename, []byte(text))
	if err != nil {
		return nil, err
	}
	st := Stats(text)
	return &ExtractResult{
		FileResult:     res,
		ExtractedText:  st.Preview,
		FullText:       text,
		WordCount:      st.WordCount,
		CharacterCount: st.CharacterCount,
	}, nil
}

func (s *Service) pdfText(ctx context.Context, f upload.File) (string, error) {
	dir, cleanup, err := workdir()
	if err != nil {
		return "", err
	}
	defer cleanup()

	in, err := storage.FetchToDir(ctx, s.store, f.Key, dir)
	if err != nil {
		return "", err
	}
	return PDFText(ctx, s.settings.PDFToText, in)
}
