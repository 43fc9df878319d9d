package media

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store defines the interface for durable placement of uploaded and
// converted byte blobs.
type Store interface {
	// Put stores data under kind, generating a collision-resistant name.
	// the suggested name contributes only its extension; client-supplied
	// names are never trusted as storage keys. returns the relative path.
	Put(kind Kind, suggestedName string, data io.Reader) (string, error)
	// Get retrieves a reader for a stored blob
	Get(relativePath string) (io.ReadCloser, os.FileInfo, error)
	// Delete removes a blob. deleting a non-existent path is a no-op success
	Delete(relativePath string) error
	// Exists reports whether a blob is present
	Exists(relativePath string) bool
	// FullPath returns the absolute filesystem path for a relative path
	FullPath(relativePath string) (string, error)
}

// LocalStorage implements the Store interface using the local filesystem
type LocalStorage struct {
	basePath        string        // absolute path to the STORAGE_ROOT
	subDirMap       map[Kind]string // maps Kind to subdirectory name (e.g., "uploads")
	resolvedPathMap map[Kind]string // maps Kind to full absolute path
}

// NewLocalStorage creates a new local filesystem store
func NewLocalStorage(basePath string, subDirs map[Kind]string) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	resolvedPaths := make(map[Kind]string)
	for kind, subDir := range subDirs {
		fullPath := filepath.Join(absBasePath, subDir)
		if !strings.HasPrefix(filepath.Clean(fullPath), absBasePath) {
			return nil, fmt.Errorf("invalid subdirectory configuration: '%s' resolves outside base path '%s'", subDir, absBasePath)
		}
		resolvedPaths[kind] = fullPath
	}

	log.Printf("media.store: Initialized LocalStorage at %s", absBasePath)
	return &LocalStorage{
		basePath:        absBasePath,
		subDirMap:       subDirs,
		resolvedPathMap: resolvedPaths,
	}, nil
}

// getKindDir resolves the absolute path for a given storage kind
func (ls *LocalStorage) getKindDir(kind Kind) (string, error) {
	dirPath, ok := ls.resolvedPathMap[kind]
	if !ok {
		log.Printf("media.store: Warning - kind '%s' not explicitly configured, using as subdirectory name", kind)
		dirPath = filepath.Join(ls.basePath, string(kind))

		if !strings.HasPrefix(filepath.Clean(dirPath), ls.basePath) {
			return "", fmt.Errorf("kind '%s' resolves outside base path", kind)
		}
		ls.resolvedPathMap[kind] = dirPath
	}
	return dirPath, nil
}

// ensureDir creates the directory for the kind if it doesn't exist
func (ls *LocalStorage) ensureDir(kind Kind) (string, error) {
	dirPath, err := ls.getKindDir(kind)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", dirPath, err)
	}
	return dirPath, nil
}

// Put saves data under a freshly generated UUID name. suggestedName is
// only consulted for a sanitised extension and retained nowhere else.
func (ls *LocalStorage) Put(kind Kind, suggestedName string, data io.Reader) (string, error) {
	targetDir, err := ls.ensureDir(kind)
	if err != nil {
		return "", err
	}

	fileUUID, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID for stored file: %w", err)
	}
	finalFilename := fileUUID.String() + sanitizeExtension(suggestedName)

	fullSavePath := filepath.Join(targetDir, finalFilename)

	outFile, err := os.Create(fullSavePath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file '%s': %w", fullSavePath, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}

	relativePath, err := filepath.Rel(ls.basePath, fullSavePath)
	if err != nil {
		log.Printf("media.store: Error calculating relative path for '%s' from '%s': %v", fullSavePath, ls.basePath, err)
		return "", fmt.Errorf("internal error calculating relative path: %w", err)
	}

	return filepath.ToSlash(relativePath), nil
}

func (ls *LocalStorage) Get(relativePath string) (io.ReadCloser, os.FileInfo, error) {
	fullPath, err := ls.FullPath(relativePath)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("file not found at '%s': %w", relativePath, err)
		}
		return nil, nil, fmt.Errorf("failed to open file '%s': %w", relativePath, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to stat file '%s': %w", relativePath, err)
	}

	return file, info, nil
}

// Delete removes a stored file
func (ls *LocalStorage) Delete(relativePath string) error {
	fullPath, err := ls.FullPath(relativePath)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) { // Ignore "not exist" errors
		return fmt.Errorf("failed to delete file '%s': %w", relativePath, err)
	}
	if err == nil {
		log.Printf("media.store: Deleted file %s", fullPath)
	}
	return nil
}

// Exists reports whether a stored file is present
func (ls *LocalStorage) Exists(relativePath string) bool {
	fullPath, err := ls.FullPath(relativePath)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// FullPath calculates the absolute path and performs security check
func (ls *LocalStorage) FullPath(relativePath string) (string, error) {
	// clean the relative path first to prevent simple traversal tricks
	cleanRelativePath := filepath.Clean(relativePath)

	fullPath := filepath.Join(ls.basePath, cleanRelativePath)

	absFullPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", relativePath, err)
	}

	if !strings.HasPrefix(absFullPath, ls.basePath) {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}

	return absFullPath, nil
}

// sanitizeExtension extracts a safe, lowercase extension (with dot)
// from a client-supplied name, or "" when there is none worth keeping.
func sanitizeExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if ext == "" || ext == "." {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	if len(ext) > 8 {
		return ""
	}
	return ext
}
