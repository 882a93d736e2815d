package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"vite.dev/core/internal/urlpath"
)

// Analysis is what the import-analysis sub-transform extracts from a
// module's already-plugin-transformed source: every URL it statically or
// dynamically imports, and its HMR self-registration (accept and
// acceptExports calls against import.meta.hot; dispose and prune calls
// are not scanned).
type Analysis struct {
	ImportedUrls    []string
	AcceptedDeps    []string
	AcceptedExports []string
	IsSelfAccepting bool
}

// Resolver maps a specifier seen inside importer's source to the URL the
// browser should request. Bare specifiers are handed to the dependency
// optimizer; relative/absolute specifiers pass through url-cleaned.
type Resolver interface {
	ResolveImport(specifier, importer string) (url string, err error)
}

// ImportAnalyzer is the transform pipeline's import-rewriting stage: it
// rewrites bare imports to resolved URLs lazily, per request, against
// whatever the optimizer currently knows.
//
// There is no Go analogue of es-module-lexer readily available, so
// specifiers are located with a conservative regex scan rather than a
// full parse: it only needs to find import/export statement heads and
// import.meta.hot.* call sites, not build a complete AST.
type ImportAnalyzer struct {
	resolver Resolver
}

// NewImportAnalyzer builds an analyzer that resolves bare specifiers via r.
func NewImportAnalyzer(r Resolver) *ImportAnalyzer {
	return &ImportAnalyzer{resolver: r}
}

var (
	staticImportRe = regexp.MustCompile(`(?m)^\s*import\s+(?:[^'"]+?\s+from\s+)?['"]([^'"]+)['"]\s*;?`)
	exportFromRe   = regexp.MustCompile(`(?m)^\s*export\s+(?:\*(?:\s+as\s+\w+)?|\{[^}]*\})\s+from\s+['"]([^'"]+)['"]\s*;?`)
	dynamicImport  = regexp.MustCompile(`\bimport\(\s*['"]([^'"]+)['"]\s*\)`)

	hotAcceptSelf = regexp.MustCompile(`import\.meta\.hot\.accept\(\s*(?:\(|function)`)
	hotAcceptBare = regexp.MustCompile(`import\.meta\.hot\.accept\(\s*\)`)
	hotAcceptDeps = regexp.MustCompile(`import\.meta\.hot\.accept\(\s*(\[[^\]]*\]|['"][^'"]+['"])\s*(?:,|\))`)
	hotAcceptExps = regexp.MustCompile(`import\.meta\.hot\.acceptExports\(\s*(\[[^\]]*\]|['"][^'"]+['"])\s*(?:,|\))`)
)

// Analyze rewrites bare/relative import specifiers in code to absolute
// dev-server URLs and extracts the HMR registration surface. A non-zero
// hmrTimestamp is appended as a t= query to every relative or absolute
// import; the pipeline passes the importing module's own
// LastHMRTimestamp, and the importees' timestamps are not consulted.
func (a *ImportAnalyzer) Analyze(code, importer string, hmrTimestamp int64) (*Analysis, string, error) {
	an := &Analysis{}

	rewrite := func(specifier string) (string, error) {
		url, err := a.resolveSpecifier(specifier, importer)
		if err != nil {
			return "", err
		}
		an.ImportedUrls = append(an.ImportedUrls, stripTimestamp(url))
		if hmrTimestamp > 0 && (urlpath.IsRelativeSpecifier(specifier) || urlpath.IsAbsolutePathSpecifier(specifier)) {
			url = urlpath.WithTimestamp(url, hmrTimestamp)
		}
		return url, nil
	}

	var rewriteErr error
	replace := func(re *regexp.Regexp, s string) string {
		return re.ReplaceAllStringFunc(s, func(m string) string {
			sub := re.FindStringSubmatch(m)
			spec := sub[1]
			url, err := rewrite(spec)
			if err != nil {
				rewriteErr = err
				return m
			}
			return strings.Replace(m, spec, url, 1)
		})
	}

	out := code
	out = replace(staticImportRe, out)
	out = replace(exportFromRe, out)
	out = replace(dynamicImport, out)
	if rewriteErr != nil {
		return nil, "", fmt.Errorf("import analysis of %s: %w", importer, rewriteErr)
	}

	if hotAcceptBare.MatchString(out) || hotAcceptSelf.MatchString(out) {
		an.IsSelfAccepting = true
	}
	if m := hotAcceptDeps.FindStringSubmatch(out); m != nil {
		deps, err := a.resolveDepsList(parseStringListArg(m[1]), importer)
		if err != nil {
			return nil, "", fmt.Errorf("import analysis of %s: %w", importer, err)
		}
		an.AcceptedDeps = deps
	}
	if m := hotAcceptExps.FindStringSubmatch(out); m != nil {
		an.AcceptedExports = parseStringListArg(m[1])
	}

	return an, out, nil
}

// resolveDepsList resolves each raw specifier an accept() call names to
// the same canonical URL its import edge was recorded under, so
// acceptedHmrDeps can be matched against the graph's real node URLs
// instead of the raw specifier text.
func (a *ImportAnalyzer) resolveDepsList(specifiers []string, importer string) ([]string, error) {
	resolved := make([]string, 0, len(specifiers))
	for _, spec := range specifiers {
		url, err := a.resolveSpecifier(spec, importer)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, stripTimestamp(url))
	}
	return resolved, nil
}

func (a *ImportAnalyzer) resolveSpecifier(specifier, importer string) (string, error) {
	if urlpath.IsHttpSpecifier(specifier) {
		return specifier, nil
	}
	if urlpath.IsBareSpecifier(specifier) {
		return a.resolver.ResolveImport(specifier, importer)
	}
	pathname, query := urlpath.CleanURL(specifier)
	if urlpath.IsRelativeSpecifier(specifier) {
		pathname = urlpath.ResolveRelative(importer, pathname)
	}
	if query != "" {
		return pathname + "?" + query, nil
	}
	return pathname, nil
}

func stripTimestamp(url string) string {
	pathname, query := urlpath.CleanURL(url)
	if query == "" {
		return pathname
	}
	kept := make([]string, 0)
	for _, kv := range strings.Split(query, "&") {
		if strings.HasPrefix(kv, "t=") {
			continue
		}
		kept = append(kept, kv)
	}
	if len(kept) == 0 {
		return pathname
	}
	return pathname + "?" + strings.Join(kept, "&")
}

// parseStringListArg turns a single-quoted-string literal or a JS array
// literal of string literals (as it appears verbatim in source) into a Go
// slice. It only needs to handle the two shapes accept()/acceptExports()
// actually take.
func parseStringListArg(raw string) []string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
		var out []string
		for _, part := range strings.Split(raw, ",") {
			if s, ok := unquote(strings.TrimSpace(part)); ok {
				out = append(out, s)
			}
		}
		return out
	}
	if s, ok := unquote(raw); ok {
		return []string{s}
	}
	return nil
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') {
		if q, err := strconv.Unquote(`"` + strings.Trim(s, `'"`) + `"`); err == nil {
			return q, true
		}
		return strings.Trim(s, `'"`), true
	}
	return "", false
}
