package insightfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ExtractText pulls the page content streams out of the PDF at path and
// concatenates them in page order. The result is raw PDF content, good
// enough as summarization input, not a faithful text rendering.
func ExtractText(path string) (string, error) {
	outDir, err := os.MkdirTemp("", "marketlens-extract-")
	if err != nil {
		return "", fmt.Errorf("create extraction dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(path, outDir, nil, nil); err != nil {
		return "", fmt.Errorf("extract pdf content: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("read extraction dir: %w", err)
	}

	type pageFile struct {
		page int
		name string
	}
	var pages []pageFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(e.Name(), "page_%d", &n); err != nil {
			if _, err := fmt.Sscanf(e.Name(), "Content_page_%d", &n); err != nil {
				continue
			}
		}
		pages = append(pages, pageFile{page: n, name: e.Name()})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].page < pages[j].page })

	var b strings.Builder
	for i, p := range pages {
		content, err := os.ReadFile(filepath.Join(outDir, p.name))
		if err != nil {
			continue
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.Write(content)
	}
	return b.String(), nil
}
