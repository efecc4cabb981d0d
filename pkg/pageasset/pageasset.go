// Package pageasset serves a single HTML document that can live on disk and
// be edited while the process runs. When the file is missing, an optional
// fallback document is served instead.
package pageasset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/net/html"
)

const sourceEmbedded = "embedded"

var (
	ErrUnavailable = errors.New("page unavailable")
	ErrNotHTML     = errors.New("document has no html content")
)

type Page struct {
	path     string
	fallback []byte
	logger   *slog.Logger

	mu      sync.RWMutex
	content []byte
	title   string
	source  string
}

func New(path string, fallback []byte, logger *slog.Logger) *Page {
	return &Page{
		path:     path,
		fallback: fallback,
		logger:   logger,
	}
}

// Load reads the page from disk, falling back to the embedded document when
// the file is missing. A disk copy that cannot be read or parsed, such as a
// file truncated mid-save, does not take the page down: the last good
// document stays in place, or the fallback is served if there is none yet.
func (p *Page) Load() error {
	content, source, err := p.read()
	if err == nil {
		var title string
		title, err = inspect(content)
		if err == nil {
			p.set(content, title, source)
			return nil
		}
	}
	loadErr := fmt.Errorf("failed to load control page: %w", err)

	if _, ok := p.Content(); ok {
		p.logger.Warn("keeping previous control page", "error", err)
		return loadErr
	}

	if source != sourceEmbedded && len(p.fallback) > 0 {
		if title, ferr := inspect(p.fallback); ferr == nil {
			p.set(p.fallback, title, sourceEmbedded)
			return loadErr
		}
	}

	return loadErr
}

func (p *Page) set(content []byte, title, source string) {
	p.mu.Lock()
	p.content, p.title, p.source = content, title, source
	p.mu.Unlock()

	p.logger.Info("control page loaded", "source", source, "title", title, "bytes", len(content))
}

func (p *Page) read() ([]byte, string, error) {
	if p.path != "" {
		content, err := os.ReadFile(p.path)
		if err == nil {
			return content, p.path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}
	}

	if len(p.fallback) == 0 {
		return nil, "", ErrUnavailable
	}

	return p.fallback, sourceEmbedded, nil
}

// Content returns the current document and whether one is available.
func (p *Page) Content() ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.content, p.content != nil
}

func (p *Page) Title() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.title
}

// Watch reloads the page whenever its file changes, until ctx is done.
// The parent directory is watched so that editors replacing the file by
// rename are noticed.
func (p *Page) Watch(ctx context.Context) error {
	if p.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(p.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			if err := p.Load(); err != nil {
				p.logger.Warn("control page reload failed", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("control page watcher error", "error", err)
		}
	}
}

// inspect checks that the document contains markup and returns its title.
func inspect(content []byte) (string, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return "", ErrNotHTML
	}

	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	var elements int
	var title string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			elements++
			if n.Data == "title" && title == "" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	// html, head and body are synthesized for any input
	if elements <= 3 && !bytes.Contains(bytes.ToLower(content), []byte("<body")) {
		return "", ErrNotHTML
	}

	return title, nil
}
