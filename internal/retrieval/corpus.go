package retrieval

import (
	"encoding/csv"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Document is a single corpus source file, ready for chunking.
type Document struct {
	ID      string
	Title   string
	Source  string
	Text    string
	ModTime time.Time
}

// frontMatter is the optional YAML block at the top of .md and .txt
// files, delimited by "---" lines.
type frontMatter struct {
	Title  string `yaml:"title"`
	Source string `yaml:"source"`
}

// corpusExtensions lists the file types the loader ingests.
var corpusExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".csv": true,
}

// LoadDocuments walks dir and loads every supported file into a
// Document. Unreadable or malformed files are logged and skipped so
// one bad file cannot block an index build. Results are sorted by ID
// for deterministic chunk ordering.
func LoadDocuments(dir string) ([]Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus path %s is not a directory", dir)
	}

	var docs []Document
	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !corpusExtensions[ext] {
			return nil
		}

		doc, err := loadDocument(dir, path, ext)
		if err != nil {
			log.Printf("Warning: skipping corpus file %s: %v", path, err)
			return nil
		}
		if strings.TrimSpace(doc.Text) == "" {
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus directory: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func loadDocument(root, path, ext string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	doc := Document{
		ID:      filepath.ToSlash(rel),
		ModTime: info.ModTime().UTC(),
	}

	switch ext {
	case ".csv":
		text, err := renderCSV(data)
		if err != nil {
			return Document{}, err
		}
		doc.Text = text
	default:
		meta, body := splitFrontMatter(string(data))
		doc.Text = body
		if meta != nil {
			doc.Title = meta.Title
			doc.Source = meta.Source
		}
	}
	if doc.Title == "" {
		doc.Title = strings.TrimSuffix(filepath.Base(path), ext)
	}
	return doc, nil
}

// splitFrontMatter strips a leading YAML front-matter block. A file
// without one, or with one that fails to parse, is returned whole.
func splitFrontMatter(text string) (*frontMatter, string) {
	if !strings.HasPrefix(text, "---\n") && !strings.HasPrefix(text, "---\r\n") {
		return nil, text
	}
	rest := text[strings.Index(text, "\n")+1:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, text
	}

	var meta frontMatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return nil, text
	}
	body := rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\r")
	body = strings.TrimPrefix(body, "\n")
	return &meta, body
}

// renderCSV turns each data row into one prose line of
// "header: value | header: value" pairs so tabular advisories embed
// and retrieve like text.
func renderCSV(data []byte) (string, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) < 2 {
		return "", nil
	}

	headers := records[0]
	var lines []string
	for _, row := range records[1:] {
		var pairs []string
		for i, value := range row {
			value = strings.TrimSpace(value)
			if value == "" || i >= len(headers) {
				continue
			}
			pairs = append(pairs, fmt.Sprintf("%s: %s", strings.TrimSpace(headers[i]), value))
		}
		if len(pairs) > 0 {
			lines = append(lines, strings.Join(pairs, " | "))
		}
	}
	return strings.Join(lines, "\n"), nil
}
