package sessiontoken

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
)

// FileProvider implements TokenProvider by rereading cookies.properties
// (spec.md §6.2's persisted-state layout) on every FetchToken call. It is
// the bootstrap/fallback provider this service ships with: the real
// headless-browser driver that mints a fresh cookie is out of scope
// (spec.md §1) and, when present, is wired in as a different
// TokenProvider implementation that writes to the same file. Reading the
// file fresh on every call means an external process (or operator) can
// rotate the cookie without restarting marketwatch.
type FileProvider struct {
	path string
	key  string
}

// NewFileProvider returns a FileProvider reading key from the properties
// file at path.
func NewFileProvider(path, key string) *FileProvider {
	if key == "" {
		key = "m_h5_tk"
	}
	return &FileProvider{path: path, key: key}
}

// FetchToken reads the current cookie value out of the properties file.
func (p *FileProvider) FetchToken(ctx context.Context) (string, error) {
	v := viper.New()
	v.SetConfigFile(p.path)
	v.SetConfigType("properties")
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("sessiontoken: read %s: %w", p.path, err)
	}
	cookie := v.GetString(p.key)
	if cookie == "" {
		return "", fmt.Errorf("sessiontoken: %s has no value for %q", p.path, p.key)
	}
	return cookie, nil
}
