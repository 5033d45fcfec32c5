package corpus

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/archcatalog/catalog/logger"
	"github.com/bmatcuk/doublestar/v4"
)

const nodeModulesDir = "node_modules"

// Accessor gives read-only access to a directory of cloned repositories, one sub-directory per
// repository. It holds no cursor state and is safe for concurrent use.
type Accessor struct {
	root     string
	excludes []string
	logger   logger.Logger
}

// New resolves root to an absolute path. A blank root stays blank and makes every operation
// report the corpus as unavailable.
func New(logger logger.Logger, root string, excludes []string) *Accessor {
	root = strings.TrimSpace(root)
	if root == "" {
		logger.Warn("no corpus root configured")
	} else if absRoot, err := filepath.Abs(root); err == nil {
		root = absRoot
	}

	validExcludes := make([]string, 0, len(excludes))
	for _, pattern := range excludes {
		if !doublestar.ValidatePattern(pattern) {
			logger.Warn("ignoring invalid exclude pattern", "pattern", pattern)
			continue
		}
		validExcludes = append(validExcludes, pattern)
	}

	return &Accessor{root: root, excludes: validExcludes, logger: logger}
}

func (a *Accessor) Root() string {
	return a.root
}

// Check reports whether the corpus root exists and can be listed.
func (a *Accessor) Check() error {
	if err := a.checkConfigured(); err != nil {
		return err
	}

	info, err := os.Stat(a.root)
	if err != nil {
		return &CorpusUnavailableError{Root: a.root, Err: err}
	}
	if !info.IsDir() {
		return &CorpusUnavailableError{Root: a.root, Err: errors.New("not a directory")}
	}

	dir, err := os.Open(a.root)
	if err != nil {
		return &CorpusUnavailableError{Root: a.root, Err: err}
	}
	defer dir.Close()

	if _, err := dir.ReadDir(1); err != nil && !errors.Is(err, io.EOF) {
		return &CorpusUnavailableError{Root: a.root, Err: err}
	}

	return nil
}

// ListRepositories returns the repository names in lexical order.
func (a *Accessor) ListRepositories() ([]string, error) {
	if err := a.checkConfigured(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(a.root)
	if err != nil {
		a.logger.Warn("could not list corpus root", "root", a.root, "err", err.Error())
		return nil, &CorpusUnavailableError{Root: a.root, Err: err}
	}

	repositories := make([]string, 0, len(entries))
	for _, entry := range entries {
		// symlinked repositories are not followed
		if !entry.IsDir() || isSkippedDir(entry.Name()) {
			continue
		}
		repositories = append(repositories, entry.Name())
	}

	return repositories, nil
}

func (a *Accessor) RepositoryExists(repository string) bool {
	if a.checkConfigured() != nil {
		return false
	}
	if err := validateRepository(repository); err != nil {
		return false
	}

	info, err := os.Lstat(filepath.Join(a.root, repository))
	return err == nil && info.IsDir()
}

func (a *Accessor) ReadFile(repository string, relativePath string) ([]byte, error) {
	data, _, err := a.ReadFileHead(repository, relativePath, 0)
	return data, err
}

// ReadFileHead reads at most limit bytes of a file and reports whether the file was longer.
// A limit of zero or less reads the whole file.
func (a *Accessor) ReadFileHead(repository string, relativePath string, limit int64) ([]byte, bool, error) {
	fullPath, err := a.resolve(repository, relativePath)
	if err != nil {
		return nil, false, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, &NotFoundError{Repository: repository, Path: relativePath}
		}
		return nil, false, fmt.Errorf("failed to open %s/%s: %w", repository, relativePath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, false, fmt.Errorf("failed to stat %s/%s: %w", repository, relativePath, err)
	}
	if info.IsDir() {
		return nil, false, &NotFoundError{Repository: repository, Path: relativePath}
	}

	if limit <= 0 {
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read %s/%s: %w", repository, relativePath, err)
		}
		return data, false, nil
	}

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s/%s: %w", repository, relativePath, err)
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}

	return data, false, nil
}

// Walk lazily yields the slash-separated paths of the regular files of a repository in lexical
// order. Hidden directories, node_modules, excluded paths and symlinks are skipped. Every call
// starts a fresh traversal.
func (a *Accessor) Walk(repository string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if a.checkConfigured() != nil {
			return
		}
		if err := validateRepository(repository); err != nil {
			a.logger.Warn("refusing to walk repository", "repository", repository, "err", err.Error())
			return
		}

		repoDir := filepath.Join(a.root, repository)
		if info, err := os.Lstat(repoDir); err != nil || !info.IsDir() {
			a.logger.Debug("repository directory is not walkable", "repository", repository)
			return
		}

		_ = filepath.WalkDir(repoDir, func(currentPath string, d fs.DirEntry, err error) error {
			if err != nil {
				a.logger.Warn("could not walk through file or directory", "path", currentPath, "err", err.Error())
				return nil
			}
			if currentPath == repoDir {
				return nil
			}

			relPath, err := filepath.Rel(repoDir, currentPath)
			if err != nil {
				return nil
			}
			relPath = filepath.ToSlash(relPath)

			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}

			if d.IsDir() {
				if isSkippedDir(d.Name()) || a.isExcluded(relPath) {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() || a.isExcluded(relPath) {
				return nil
			}

			if !yield(relPath) {
				return fs.SkipAll
			}
			return nil
		})
	}
}

func (a *Accessor) resolve(repository string, relativePath string) (string, error) {
	if err := validateRepository(repository); err != nil {
		return "", err
	}
	cleanPath, err := validateRelativePath(repository, relativePath)
	if err != nil {
		return "", err
	}
	if err := a.checkConfigured(); err != nil {
		return "", err
	}

	repoDir := filepath.Join(a.root, repository)
	realRepoDir, err := filepath.EvalSymlinks(repoDir)
	if err != nil {
		return "", &NotFoundError{Repository: repository}
	}

	fullPath := filepath.Join(repoDir, filepath.FromSlash(cleanPath))
	realPath, err := filepath.EvalSymlinks(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &NotFoundError{Repository: repository, Path: relativePath}
		}
		return "", fmt.Errorf("failed to resolve %s/%s: %w", repository, relativePath, err)
	}

	rel, err := filepath.Rel(realRepoDir, realPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &InvalidPathError{Repository: repository, Path: relativePath, Reason: "resolves outside the repository"}
	}

	return realPath, nil
}

func (a *Accessor) isExcluded(relPath string) bool {
	for _, pattern := range a.excludes {
		if matched, err := doublestar.Match(pattern, relPath); err == nil && matched {
			return true
		}
	}
	return false
}

func (a *Accessor) checkConfigured() error {
	if a.root == "" {
		return &CorpusUnavailableError{Root: a.root, Err: errNoRoot}
	}
	return nil
}

func isSkippedDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == nodeModulesDir
}

func validateRepository(repository string) error {
	invalid := func(reason string) error {
		return &InvalidPathError{Repository: repository, Reason: reason}
	}

	switch {
	case strings.TrimSpace(repository) == "":
		return invalid("repository name is empty")
	case strings.ContainsAny(repository, "/\\\x00"):
		return invalid("repository name must be a single path element")
	case strings.HasPrefix(repository, "."):
		return invalid("hidden repositories are not served")
	case repository == nodeModulesDir:
		return invalid("node_modules is not a repository")
	}

	return nil
}

// validateRelativePath rejects traversal lexically, before the filesystem is touched, and
// returns the cleaned slash-separated path.
func validateRelativePath(repository string, relativePath string) (string, error) {
	invalid := func(reason string) error {
		return &InvalidPathError{Repository: repository, Path: relativePath, Reason: reason}
	}

	if strings.TrimSpace(relativePath) == "" {
		return "", invalid("path is empty")
	}
	if strings.Contains(relativePath, "\x00") {
		return "", invalid("path contains a null byte")
	}

	normalized := strings.ReplaceAll(relativePath, "\\", "/")
	if strings.HasPrefix(normalized, "/") || filepath.IsAbs(relativePath) || filepath.VolumeName(relativePath) != "" {
		return "", invalid("absolute paths are not allowed")
	}
	if len(normalized) >= 2 && normalized[1] == ':' {
		return "", invalid("drive paths are not allowed")
	}

	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return "", invalid("path traversal is not allowed")
		}
	}

	cleanPath := path.Clean(normalized)
	if cleanPath == "." {
		return "", invalid("path does not name a file")
	}

	return cleanPath, nil
}
