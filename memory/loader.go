package memory

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Chunking defaults for LoadDir, in characters.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// LoadDir walks dir recursively, splits every *.txt and *.md file into
// chunks and stores them with a "source" metadata entry. It returns the number
// of stored passages.
func (m *InMemoryStore) LoadDir(dir string) (int, error) {
	n := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
		default:
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		rel, _ := filepath.Rel(dir, path)

		for i, chunk := range Split(string(data), DefaultChunkSize, DefaultChunkOverlap) {
			m.Store(chunk, map[string]any{"source": filepath.ToSlash(rel), "chunk": i})
			n++
		}

		return nil
	})
	if err != nil {
		return n, fmt.Errorf("load knowledge dir %s: %w", dir, err)
	}

	return n, nil
}

// Split packs paragraphs of text into chunks of at most size characters.
// Paragraphs longer than size are cut into windows overlapping by overlap
// characters.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var (
		chunks  []string
		current []rune
	)

	flush := func() {
		if s := strings.TrimSpace(string(current)); s != "" {
			chunks = append(chunks, s)
		}
		current = current[:0]
	}

	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		runes := []rune(strings.TrimSpace(para))
		if len(runes) == 0 {
			continue
		}

		if len(runes) > size {
			flush()
			for start := 0; start < len(runes); start += size - overlap {
				end := min(start+size, len(runes))
				chunks = append(chunks, strings.TrimSpace(string(runes[start:end])))
				if end == len(runes) {
					break
				}
			}
			continue
		}

		if len(current) > 0 && len(current)+2+len(runes) > size {
			flush()
		}

		if len(current) > 0 {
			current = append(current, '\n', '\n')
		}
		current = append(current, runes...)
	}

	flush()

	return chunks
}
