package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/xhad/docqa/internal/models"
)

// readPDF returns one document per page. Pages that fail to decode are
// skipped rather than failing the whole file.
func readPDF(_ context.Context, path string) (docs []models.Document, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("failed to parse PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}

	numPages := reader.NumPage()
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}

		docs = append(docs, models.Document{
			Content: strings.TrimSpace(text),
			Metadata: map[string]interface{}{
				"page_label":  fmt.Sprint(i),
				"total_pages": numPages,
			},
		})
	}

	return docs, nil
}

func readHTML(_ context.Context, path string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, err
	}

	return []models.Document{{
		Title:    strings.TrimSpace(doc.Find("title").First().Text()),
		Content:  ExtractMainContent(doc),
		Metadata: map[string]interface{}{},
	}}, nil
}

// readCSV folds every row into a single document.
func readCSV(ctx context.Context, path string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := documentloaders.NewCSV(f).Load(ctx)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, row.PageContent)
	}

	return []models.Document{{
		Content: strings.Join(lines, "\n\n"),
		Metadata: map[string]interface{}{
			"rows": len(rows),
		},
	}}, nil
}

func readText(ctx context.Context, path string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	loaded, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]models.Document, 0, len(loaded))
	for _, d := range loaded {
		docs = append(docs, models.Document{Content: d.PageContent, Metadata: d.Metadata})
	}
	return docs, nil
}

var contentSelectors = []string{
	"main",
	"article",
	".content",
	"#content",
	".documentation",
	"#documentation",
}

var noisePatterns = []string{
	"Cookie Policy",
	"Accept Cookies",
	"Privacy Policy",
	"Terms of Service",
}

// ExtractMainContent returns the text of the first main-content container in
// doc, falling back to the body.
func ExtractMainContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()

	var content string
	for _, selector := range contentSelectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	if strings.TrimSpace(content) == "" {
		content = doc.Find("body").Text()
	}

	return cleanContent(content)
}

func cleanContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}
	return strings.TrimSpace(content)
}
