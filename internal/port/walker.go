package port

import "intramind/internal/domain"

type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	RelPath string
	ModTime int64
	Size    int64
}

// DocumentLoader turns a staged directory into source documents.
type DocumentLoader interface {
	Load(dataDir, metadataPath string) ([]domain.SourceDocument, error)
}
