// Package urlpath canonicalizes module specifiers, query suffixes and
// file-system paths the way the rest of the dev server expects: forward
// slashes everywhere, a single place that knows about the reserved /@fs/
// and /@id/ prefixes, and helpers for injecting or stripping the query
// string the transform pipeline and HMR engine use as a cache buster.
package urlpath

import (
	"net/url"
	"path"
	"strings"
)

const (
	// FsPrefix marks an absolute file-system path in a URL. The dev
	// server's router serves it only for files under the dependency cache
	// directory; other paths under it are not served.
	FsPrefix = "/@fs/"
	// IdPrefix marks a module whose id is not a normal file path. The dev
	// server's router has no route for it.
	IdPrefix = "/@id/"
	// NullByte marks a virtual module id on the server side;
	// EncodeVirtualId swaps it for IdPrefix when an id goes into a URL.
	NullByte = '\x00'
	// NullSentinel is the wire-safe stand-in for NullByte.
	NullSentinel = "__x00__"
)

// ToPosix converts a host-OS path to forward-slash form.
func ToPosix(p string) string {
	if strings.IndexByte(p, '\\') == -1 {
		return p
	}
	return strings.ReplaceAll(p, "\\", "/")
}

// CleanURL strips a trailing `?...` (and `#...`) suffix, returning the bare
// path and the original query string so callers can decide whether to keep
// it (e.g. the transform pipeline needs the query to tell a CSS request
// apart from a `?raw` request, and keys its cache on the path plus query).
func CleanURL(raw string) (pathname string, query string) {
	pathname = raw
	if i := strings.IndexByte(pathname, '#'); i >= 0 {
		pathname = pathname[:i]
	}
	if i := strings.IndexByte(pathname, '?'); i >= 0 {
		query = pathname[i+1:]
		pathname = pathname[:i]
	}
	return
}

// InjectQuery inserts q before any existing search string and after the
// path, preserving a trailing hash fragment.
func InjectQuery(rawURL string, q string) string {
	hash := ""
	u := rawURL
	if i := strings.IndexByte(u, '#'); i >= 0 {
		hash = u[i:]
		u = u[:i]
	}
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i] + "?" + q + "&" + u[i+1:] + hash
	}
	return u + "?" + q + hash
}

// WithTimestamp appends (or replaces) the "t" query parameter used to
// cache-bust a stale module after HMR invalidation.
func WithTimestamp(rawURL string, ts int64) string {
	pathname, query := CleanURL(rawURL)
	values, _ := url.ParseQuery(query)
	values.Set("t", itoa(ts))
	return pathname + "?" + values.Encode()
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// IsHttpSpecifier returns true if the specifier is a remote URL.
func IsHttpSpecifier(specifier string) bool {
	return strings.HasPrefix(specifier, "https://") || strings.HasPrefix(specifier, "http://")
}

// IsRelativeSpecifier returns true if the specifier is a relative path
// import such as "./foo" or "../foo".
func IsRelativeSpecifier(specifier string) bool {
	return strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

// IsAbsolutePathSpecifier returns true if the specifier is an absolute
// server-root path (e.g. "/src/foo.js") or a file:// URL.
func IsAbsolutePathSpecifier(specifier string) bool {
	return strings.HasPrefix(specifier, "/") || strings.HasPrefix(specifier, "file://")
}

// ResolveRelative joins a relative specifier seen inside importer's
// source (a server-root pathname such as "/src/app.js") against
// importer's own directory, producing the absolute server-root path the
// browser will actually request - the same path EnsureEntryFromUrl
// assigns the real node once that request arrives.
func ResolveRelative(importer, specifier string) string {
	joined := path.Join(path.Dir(importer), specifier)
	if !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return joined
}

// IsVirtualId reports whether id is a rollup-style virtual module id: one
// that does not correspond to a file on disk and is never watched.
func IsVirtualId(id string) bool {
	return len(id) > 0 && id[0] == NullByte
}

// IsBareSpecifier returns true for specifiers the dependency optimizer
// owns: not relative, not absolute, not a remote URL, not virtual.
func IsBareSpecifier(specifier string) bool {
	if specifier == "" || IsVirtualId(specifier) {
		return false
	}
	return !IsRelativeSpecifier(specifier) && !IsAbsolutePathSpecifier(specifier) && !IsHttpSpecifier(specifier)
}

// EncodeVirtualId replaces a leading null byte with IdPrefix so the id
// can be safely embedded in a URL path; NullSentinel is not used.
func EncodeVirtualId(id string) string {
	if !IsVirtualId(id) {
		return id
	}
	return IdPrefix + id[1:]
}

// DecodeVirtualId reverses EncodeVirtualId.
func DecodeVirtualId(urlPath string) (id string, ok bool) {
	if !strings.HasPrefix(urlPath, IdPrefix) {
		return "", false
	}
	return string(NullByte) + strings.TrimPrefix(urlPath, IdPrefix), true
}

// IsWithinRoot reports whether an absolute, cleaned path sits inside root
// (or equals it). The dev server's /@fs/ route does not call it.
func IsWithinRoot(root, absPath string) bool {
	root = strings.TrimSuffix(ToPosix(root), "/")
	absPath = ToPosix(absPath)
	return absPath == root || strings.HasPrefix(absPath, root+"/")
}
