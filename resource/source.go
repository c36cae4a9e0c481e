package resource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"
)

// ErrNotServed is returned by a Source for URIs outside its prefixes.
var ErrNotServed = errors.New("resource: uri not served by source")

// Format is the serialization of a raw schema document.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
	FormatJSONC
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatJSONC:
		return "jsonc"
	default:
		return "yaml"
	}
}

// Raw is an undecoded schema document.
type Raw struct {
	Data   []byte
	Format Format
}

// Source provides raw schema documents by URI. Sources return an error
// wrapping ErrNotServed for URIs they are not responsible for.
type Source interface {
	Load(ctx context.Context, uri string) (Raw, error)
}

// Lister is implemented by sources that can enumerate their URIs.
type Lister interface {
	URIs() ([]string, error)
}

// Mount maps a URI prefix to a directory of an fs.FS.
type Mount struct {
	Prefix string
	Dir    string
}

// FSStore serves schema documents from an fs.FS, typically an embed.FS.
// The URI remainder after a mount prefix names a file under the mount
// directory; the extensions .yaml, .yml, .json and .jsonc are tried in order.
type FSStore struct {
	fsys   fs.FS
	mounts []Mount
}

var storeExts = []string{".yaml", ".yml", ".json", ".jsonc"}

// NewFSStore returns a store over fsys. Longer prefixes take precedence.
func NewFSStore(fsys fs.FS, mounts ...Mount) *FSStore {
	ms := append([]Mount(nil), mounts...)
	sort.SliceStable(ms, func(i, j int) bool { return len(ms[i].Prefix) > len(ms[j].Prefix) })
	return &FSStore{fsys: fsys, mounts: ms}
}

func (s *FSStore) Load(_ context.Context, uri string) (Raw, error) {
	for _, m := range s.mounts {
		rel, ok := strings.CutPrefix(uri, m.Prefix)
		if !ok {
			continue
		}
		if rel == "" || strings.Contains(rel, "..") {
			return Raw{}, fmt.Errorf("resource: %q: %w", uri, ErrNotServed)
		}
		base := path.Join(m.Dir, rel)
		if ext := path.Ext(base); ext != "" && hasExt(ext) {
			return s.read(base)
		}
		for _, ext := range storeExts {
			raw, err := s.read(base + ext)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return raw, err
		}
		return Raw{}, fmt.Errorf("resource: no file for %q under %s: %w", uri, m.Dir, fs.ErrNotExist)
	}
	return Raw{}, fmt.Errorf("resource: %q: %w", uri, ErrNotServed)
}

func (s *FSStore) read(name string) (Raw, error) {
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return Raw{}, err
	}
	return Raw{Data: data, Format: formatOf(name, data)}, nil
}

// URIs lists every schema URI the store serves, sorted.
func (s *FSStore) URIs() ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, m := range s.mounts {
		err := fs.WalkDir(s.fsys, m.Dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			ext := path.Ext(p)
			if d.IsDir() || !hasExt(ext) {
				return nil
			}
			rel := strings.TrimPrefix(strings.TrimSuffix(p, ext), strings.TrimSuffix(m.Dir, "/")+"/")
			if uri := m.Prefix + rel; !seen[uri] {
				seen[uri] = true
				out = append(out, uri)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("resource: list %s: %w", m.Dir, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

func hasExt(ext string) bool {
	for _, e := range storeExts {
		if e == ext {
			return true
		}
	}
	return false
}

// MapStore serves documents from memory. The format is sniffed from content.
type MapStore map[string]string

func (m MapStore) Load(_ context.Context, uri string) (Raw, error) {
	s, ok := m[uri]
	if !ok {
		return Raw{}, fmt.Errorf("resource: %q: %w", uri, ErrNotServed)
	}
	return Raw{Data: []byte(s), Format: formatOf("", []byte(s))}, nil
}

func (m MapStore) URIs() ([]string, error) {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// maxRemoteSchema bounds the size of a fetched schema document.
const maxRemoteSchema = 4 << 20

// HTTPFetcher loads schemas over HTTP(S) for URIs under its prefixes.
type HTTPFetcher struct {
	client   *http.Client
	prefixes []string
}

// NewHTTPFetcher returns a fetcher limited to the given URL prefixes. A
// zero timeout leaves the client without a deadline; the resolver still
// bounds every load.
func NewHTTPFetcher(timeout time.Duration, prefixes ...string) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}, prefixes: append([]string(nil), prefixes...)}
}

// WithClient replaces the HTTP client.
func (f *HTTPFetcher) WithClient(c *http.Client) *HTTPFetcher {
	f.client = c
	return f
}

func (f *HTTPFetcher) Load(ctx context.Context, uri string) (Raw, error) {
	if !f.serves(uri) {
		return Raw{}, fmt.Errorf("resource: %q: %w", uri, ErrNotServed)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return Raw{}, err
	}
	req.Header.Set("Accept", "application/schema+json, application/json, application/yaml;q=0.9, */*;q=0.1")
	resp, err := f.client.Do(req)
	if err != nil {
		return Raw{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Raw{}, fmt.Errorf("resource: GET %s: %s", uri, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteSchema+1))
	if err != nil {
		return Raw{}, err
	}
	if len(data) > maxRemoteSchema {
		return Raw{}, fmt.Errorf("resource: GET %s: document exceeds %d bytes", uri, maxRemoteSchema)
	}
	format := formatOf(req.URL.Path, data)
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		switch {
		case strings.HasSuffix(mt, "json"):
			format = FormatJSONC
		case strings.HasSuffix(mt, "yaml"):
			format = FormatYAML
		}
	}
	return Raw{Data: data, Format: format}, nil
}

func (f *HTTPFetcher) serves(uri string) bool {
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		return false
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(uri, p) {
			return true
		}
	}
	return false
}

// formatOf picks a format from the file extension, falling back to content.
func formatOf(name string, data []byte) Format {
	switch path.Ext(name) {
	case ".json":
		return FormatJSON
	case ".jsonc":
		return FormatJSONC
	case ".yaml", ".yml":
		return FormatYAML
	}
	if t := bytes.TrimSpace(data); len(t) > 0 && (t[0] == '{' || t[0] == '/') {
		return FormatJSONC
	}
	return FormatYAML
}
