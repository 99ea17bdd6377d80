package watch

import (
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"
)

// DefaultIgnore lists paths never reported to the server
var DefaultIgnore = []string{
	".git",
	".hg",
	".svn",
	"node_modules",
	".idea",
	".vscode",
	"*.swp",
	"*~",
	".DS_Store",
}

// IgnoreFile is read from every watched root
const IgnoreFile = ".gitignore"

// Matcher decides which paths under a root are ignored
type Matcher struct {
	root      string
	gitignore *ignore.GitIgnore
}

// LoadMatcher compiles the root's ignore file together with DefaultIgnore and
// extra. A missing ignore file is not an error.
func LoadMatcher(root string, extra []string, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	var lines []string
	data, err := os.ReadFile(filepath.Join(root, IgnoreFile))
	if err != nil {
		logger.Debug("no ignore file found, using default ignore rules", zap.String("root", root))
	} else {
		lines = strings.Split(string(data), "\n")
	}
	lines = append(lines, DefaultIgnore...)
	lines = append(lines, extra...)

	return &Matcher{
		root:      root,
		gitignore: ignore.CompileIgnoreLines(lines...),
	}
}

// Root returns the directory the matcher's patterns are relative to
func (m *Matcher) Root() string {
	return m.root
}

// Contains reports whether path is inside the matcher's root
func (m *Matcher) Contains(path string) bool {
	rel, err := filepath.Rel(m.root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Ignored reports whether path matches an ignore rule. Paths outside the root
// are never ignored.
func (m *Matcher) Ignored(path string) bool {
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == "." || !m.Contains(path) {
		return false
	}
	return m.gitignore.MatchesPath(filepath.ToSlash(rel))
}
