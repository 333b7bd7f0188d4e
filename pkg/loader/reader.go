// Package loader reads a directory of files into documents.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/xhad/docqa/internal/models"
)

var (
	ErrDirNotFound = errors.New("data directory not found")
	ErrNoFiles     = errors.New("no files found")
)

type Config struct {
	Dir           string
	Recursive     bool
	Extensions    []string // allow-list such as ".pdf"; empty accepts every file
	Exclude       []string // glob patterns matched against the base name
	ExcludeHidden bool
	NumFilesLimit int
}

// fileReader turns one file into zero or more documents. Metadata common to
// every file is added by the DirectoryReader afterwards.
type fileReader func(ctx context.Context, path string) ([]models.Document, error)

type DirectoryReader struct {
	config  Config
	readers map[string]fileReader
}

func NewDirectoryReader(config Config) *DirectoryReader {
	normalized := make([]string, 0, len(config.Extensions))
	for _, ext := range config.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	config.Extensions = normalized

	return &DirectoryReader{
		config: config,
		readers: map[string]fileReader{
			".pdf":  readPDF,
			".html": readHTML,
			".htm":  readHTML,
			".csv":  readCSV,
		},
	}
}

// Load reads every matching file under the configured directory, in lexical
// path order.
func (r *DirectoryReader) Load(ctx context.Context) ([]models.Document, error) {
	files, err := r.listFiles()
	if err != nil {
		return nil, err
	}

	var documents []models.Document
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		docs, err := r.loadFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		documents = append(documents, docs...)
	}

	return documents, nil
}

func (r *DirectoryReader) listFiles() ([]string, error) {
	info, err := os.Stat(r.config.Dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrDirNotFound, r.config.Dir)
	}

	var files []string
	err = filepath.WalkDir(r.config.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == r.config.Dir {
			return nil
		}

		if d.IsDir() {
			if !r.config.Recursive || (r.config.ExcludeHidden && isHidden(d.Name())) {
				return filepath.SkipDir
			}
			return nil
		}

		if r.accept(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", r.config.Dir, err)
	}

	sort.Strings(files)
	if r.config.NumFilesLimit > 0 && len(files) > r.config.NumFilesLimit {
		files = files[:r.config.NumFilesLimit]
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFiles, r.config.Dir)
	}

	return files, nil
}

func (r *DirectoryReader) accept(name string) bool {
	if r.config.ExcludeHidden && isHidden(name) {
		return false
	}

	for _, pattern := range r.config.Exclude {
		if matched, _ := filepath.Match(pattern, name); matched {
			return false
		}
	}

	if len(r.config.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range r.config.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (r *DirectoryReader) loadFile(ctx context.Context, path string) ([]models.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	read, ok := r.readers[ext]
	if !ok {
		read = readText
	}

	docs, err := read(ctx, path)
	if err != nil {
		return nil, err
	}

	fileType := mime.TypeByExtension(ext)
	if fileType == "" {
		fileType = "application/octet-stream"
	}

	out := docs[:0]
	for _, doc := range docs {
		doc.Content = sanitizeUTF8(doc.Content)
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}

		if doc.Metadata == nil {
			doc.Metadata = make(map[string]interface{})
		}
		doc.Metadata["file_path"] = path
		doc.Metadata["file_name"] = filepath.Base(path)
		doc.Metadata["file_type"] = fileType
		doc.Metadata["file_size"] = info.Size()
		doc.Metadata["last_modified_date"] = info.ModTime().Format("2006-01-02")

		if doc.Source == "" {
			doc.Source = path
		}
		if doc.Title == "" {
			doc.Title = filepath.Base(path)
		}
		if doc.ID == "" {
			name := path
			if page, ok := doc.Metadata["page_label"]; ok {
				name = fmt.Sprintf("%s#%v", path, page)
			}
			doc.ID = DocumentID(name)
		}
		out = append(out, doc)
	}

	return out, nil
}

// DocumentID derives a stable ID from a source name, so re-ingesting the same
// file produces the same IDs.
func DocumentID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}
