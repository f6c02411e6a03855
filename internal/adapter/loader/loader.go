// Package loader reads staged documents and their descriptor tags.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"intramind/internal/adapter/fs"
	"intramind/internal/domain"
	"intramind/internal/port"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Descriptor is the document_metadata.yaml file: tags keyed by file name.
type Descriptor struct {
	Documents map[string]map[string]any `yaml:"documents"`
}

// ReadDescriptor parses the metadata descriptor at path.
func ReadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewConfigurationError("loader", "metadata file %s not found", path)
		}
		return nil, err
	}

	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, domain.NewConfigurationError("loader", "parse metadata %s: %v", path, err)
	}
	if d.Documents == nil {
		return nil, domain.NewConfigurationError("loader", "metadata %s has no documents section", path)
	}
	return &d, nil
}

// Tags returns the flattened tags for relPath. An exact relative-path entry
// wins over a bare file name entry.
func (d *Descriptor) Tags(relPath string) (map[string]string, bool) {
	raw, ok := d.Documents[relPath]
	if !ok {
		raw, ok = d.Documents[path.Base(relPath)]
	}
	if !ok {
		return nil, false
	}

	tags := make(map[string]string, len(raw)+1)
	for k, v := range raw {
		tags[k] = flatten(v)
	}
	return tags, true
}

func flatten(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, flatten(p))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

// Loader walks a data directory and returns one SourceDocument per
// described text file.
type Loader struct {
	walker          port.FileWalker
	cleanWhitespace bool
	log             zerolog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithCleanWhitespace collapses whitespace runs in document text.
func WithCleanWhitespace(on bool) Option {
	return func(l *Loader) { l.cleanWhitespace = on }
}

// WithLogger sets the logger used to report skipped files.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

func New(walker port.FileWalker, opts ...Option) *Loader {
	if walker == nil {
		walker = fs.NewWalker([]string{"**/*.txt", "**/*.md"}, nil)
	}
	l := &Loader{walker: walker, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every walked file that has a descriptor entry. The
// source_file tag is the slash-separated path relative to dataDir and
// overrides any descriptor value of the same name.
func (l *Loader) Load(dataDir, metadataPath string) ([]domain.SourceDocument, error) {
	desc, err := ReadDescriptor(metadataPath)
	if err != nil {
		return nil, err
	}

	files, err := l.walker.Walk(dataDir)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dataDir, err)
	}

	docs := make([]domain.SourceDocument, 0, len(files))
	for _, f := range files {
		tags, ok := desc.Tags(f.RelPath)
		if !ok {
			l.log.Debug().Str("file", f.RelPath).Msg("no metadata entry, skipping")
			continue
		}

		text, err := fs.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.RelPath, err)
		}
		text = strings.ToValidUTF8(text, "")
		if l.cleanWhitespace {
			text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
		}

		tags[domain.MetaSourceFile] = f.RelPath
		docs = append(docs, domain.SourceDocument{Text: text, Metadata: tags})
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].SourceFile() < docs[j].SourceFile() })
	return docs, nil
}
