package bundle

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kokistudios/vulnlife/internal/render"
	"github.com/kokistudios/vulnlife/internal/stage"
)

const (
	// Ext is the export bundle file extension.
	Ext = ".tar.gz"

	reportFile   = "report.md"
	manifestFile = "manifest.yaml"
	styleFile    = "views/style.css"
)

// Manifest describes the contents of an export bundle.
type Manifest struct {
	Version    string       `yaml:"version"`
	Title      string       `yaml:"title"`
	ExportedAt time.Time    `yaml:"exported_at"`
	Overall    int          `yaml:"overall_completion"`
	Stages     []StageScore `yaml:"stages"`
	Files      []string     `yaml:"files"`
}

// StageScore is one stage's completion as recorded in the manifest.
type StageScore struct {
	Num        int    `yaml:"num"`
	Title      string `yaml:"title"`
	Completion int    `yaml:"completion"`
	Present    bool   `yaml:"present"`
}

// Bundle is the content read back from an export.
type Bundle struct {
	Manifest Manifest
	Markdown string
	Views    map[render.View]string
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<link rel="stylesheet" href="style.css">
</head>
<body>
%s
</body>
</html>
`

// Export renders every view of markdown and writes them, the source and a
// manifest into a gzipped tarball at outputPath. A directory outputPath
// gets a file named after the report title.
func Export(markdown string, r *render.Renderer, outputPath string) (Manifest, string, error) {
	title := stage.ExtractTitle(markdown)
	outputPath = resolveOutput(outputPath, title)

	report := r.Completion(markdown)
	manifest := Manifest{
		Version:    "1",
		Title:      title,
		ExportedAt: time.Now().UTC().Truncate(time.Second),
		Overall:    report.Overall,
	}
	for _, sc := range report.Stages {
		manifest.Stages = append(manifest.Stages, StageScore{
			Num:        sc.StageNum,
			Title:      sc.Title,
			Completion: sc.Completion,
			Present:    sc.Present,
		})
	}

	files := []entry{{reportFile, []byte(markdown)}}
	for _, v := range render.Views() {
		page := fmt.Sprintf(pageTemplate, html.EscapeString(title), r.RenderString(v, markdown))
		files = append(files, entry{viewPath(v), []byte(page)})
	}
	if ch, ok := r.Highlighter.(*render.ChromaHighlighter); ok {
		if css, err := ch.CSS(); err == nil {
			files = append(files, entry{styleFile, []byte(css)})
		}
	}
	for _, f := range files {
		manifest.Files = append(manifest.Files, f.name)
	}

	manifestData, err := yaml.Marshal(manifest)
	if err != nil {
		return Manifest{}, "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	files = append(files, entry{manifestFile, manifestData})

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return Manifest{}, "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := writeArchive(outputPath, files, manifest.ExportedAt); err != nil {
		os.Remove(outputPath)
		return Manifest{}, "", err
	}
	return manifest, outputPath, nil
}

type entry struct {
	name string
	data []byte
}

func writeArchive(path string, files []entry, modTime time.Time) error {
	outFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	gw := gzip.NewWriter(outFile)
	tw := tar.NewWriter(gw)
	for _, f := range files {
		header := &tar.Header{
			Name:    f.name,
			Size:    int64(len(f.data)),
			Mode:    0644,
			ModTime: modTime,
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}
		if _, err := tw.Write(f.data); err != nil {
			return fmt.Errorf("failed to write tar content: %w", err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish tar: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip: %w", err)
	}
	return outFile.Close()
}

func resolveOutput(outputPath, title string) string {
	name := slug(title) + Ext
	if outputPath == "" {
		return name
	}
	if info, err := os.Stat(outputPath); err == nil && info.IsDir() {
		return filepath.Join(outputPath, name)
	}
	if !strings.HasSuffix(outputPath, Ext) {
		outputPath += Ext
	}
	return outputPath
}

func slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "report"
	}
	return s
}

func viewPath(v render.View) string {
	return "views/" + string(v) + ".html"
}

// Import reads an export bundle back.
func Import(bundlePath string) (*Bundle, error) {
	inFile, err := os.Open(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle: %w", err)
	}
	defer inFile.Close()

	gr, err := gzip.NewReader(inFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read gzip: %w", err)
	}
	defer gr.Close()

	b := &Bundle{Views: make(map[render.View]string)}
	var sawManifest, sawReport bool
	tr := tar.NewReader(gr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar: %w", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}
		switch {
		case header.Name == manifestFile:
			if err := yaml.Unmarshal(data, &b.Manifest); err != nil {
				return nil, fmt.Errorf("invalid manifest: %w", err)
			}
			sawManifest = true
		case header.Name == reportFile:
			b.Markdown = string(data)
			sawReport = true
		case strings.HasPrefix(header.Name, "views/") && strings.HasSuffix(header.Name, ".html"):
			name := strings.TrimSuffix(strings.TrimPrefix(header.Name, "views/"), ".html")
			if v, err := render.ParseView(name); err == nil {
				b.Views[v] = string(data)
			}
		}
	}
	if !sawManifest {
		return nil, fmt.Errorf("bundle missing %s", manifestFile)
	}
	if !sawReport {
		return nil, fmt.Errorf("bundle missing %s", reportFile)
	}
	return b, nil
}
