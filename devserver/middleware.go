package devserver

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ije/rex"

	"vite.dev/core/internal/clientjs"
	"vite.dev/core/internal/mime"
)

// isTransformable reports whether pathname is served through the
// transform pipeline rather than as a raw static asset.
func isTransformable(pathname string) bool {
	switch filepath.Ext(strings.SplitN(pathname, "?", 2)[0]) {
	case ".js", ".mjs", ".jsx", ".ts", ".mts", ".tsx", ".css":
		return true
	default:
		return false
	}
}

// corsMiddleware: an empty allow-list (or one containing "*") sends
// "Access-Control-Allow-Origin: *"; otherwise a listed origin is echoed
// back, a preflight from any other origin is refused with 403, and other
// requests from an unlisted origin pass on without the header.
func corsMiddleware(allowOrigins []string) rex.Handle {
	allow := make(map[string]bool, len(allowOrigins))
	wildcard := len(allowOrigins) == 0
	for _, o := range allowOrigins {
		if o == "*" {
			wildcard = true
			continue
		}
		allow[o] = true
	}
	return func(ctx *rex.Context) any {
		origin := ctx.R.Header.Get("Origin")
		isPreflight := ctx.R.Method == http.MethodOptions
		h := ctx.W.Header()
		switch {
		case wildcard:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && allow[origin]:
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Vary", "Origin")
		case origin != "" && isPreflight:
			return rex.Status(403, "forbidden")
		}
		if isPreflight {
			h.Set("Access-Control-Allow-Headers", "*")
			h.Set("Access-Control-Max-Age", "86400")
			return rex.NoContent()
		}
		return ctx.Next()
	}
}

// router returns the single terminal rex.Handle that dispatches every
// request the middleware chain lets through: one big pathname switch
// rather than per-route registration.
func (s *Server) router() rex.Handle {
	return func(ctx *rex.Context) any {
		pathname := ctx.R.URL.Path

		switch {
		case pathname == "/@vite/client":
			ctx.SetHeader("Content-Type", "application/javascript; charset=utf-8")
			ctx.SetHeader("Cache-Control", "no-cache")
			return clientjs.ClientJS()

		case pathname == "/@vite/hmr":
			if err := s.channel.Upgrade(ctx.W, ctx.R); err != nil {
				s.logger.Errorf("hmr upgrade: %v", err)
				return rex.Status(400, "websocket upgrade failed")
			}
			return rex.NoContent()

		case strings.HasPrefix(pathname, "/@fs/"+s.store.Root()+"/"):
			return rex.File(pathname[len("/@fs"):])

		case strings.HasSuffix(pathname, ".html") || pathname == "/":
			return s.serveHTML(ctx, pathname)

		case isTransformable(pathname):
			return s.serveTransformed(ctx, pathname)

		default:
			if ct := mime.GetContentType(pathname); ct != "" {
				ctx.SetHeader("Content-Type", ct)
			}
			return rex.File(filepath.Join(s.cfg.Root, filepath.FromSlash(pathname)))
		}
	}
}

func (s *Server) serveHTML(ctx *rex.Context, pathname string) any {
	if pathname == "/" {
		pathname = "/index.html"
	}
	f, err := httpOpen(s.cfg.Root, pathname)
	if err != nil {
		return rex.Status(404, "not found")
	}
	defer f.Close()

	rewritten, err := rewriteHTML(f)
	if err != nil {
		return rex.Status(500, "failed to rewrite html: "+err.Error())
	}
	ctx.SetHeader("Content-Type", "text/html; charset=utf-8")
	ctx.SetHeader("Cache-Control", "no-cache")
	return rewritten
}

func (s *Server) serveTransformed(ctx *rex.Context, pathname string) any {
	rawURL := pathname
	if ctx.R.URL.RawQuery != "" {
		rawURL += "?" + ctx.R.URL.RawQuery
	}
	result, err := s.pipeline.TransformRequest(ctx.R.Context(), rawURL)
	if err != nil {
		return rex.Status(500, "transform failed: "+err.Error())
	}
	if ctx.R.Header.Get("If-None-Match") == result.ETag {
		return rex.Status(http.StatusNotModified, nil)
	}
	ctx.SetHeader("Etag", result.ETag)
	ctx.SetHeader("Content-Type", contentTypeFor(pathname))
	ctx.SetHeader("Cache-Control", "no-cache")
	return result.Code
}

// contentTypeFor is the transformed-output content type: every
// transformable extension (.ts, .jsx, .css, ...) compiles down to
// plain JS or CSS by the time it leaves the pipeline, so this
// intentionally does not delegate to mime.GetContentType (which
// reports the source extension's own type, e.g. text/typescript).
func contentTypeFor(pathname string) string {
	if strings.HasSuffix(strings.SplitN(pathname, "?", 2)[0], ".css") {
		return "text/css; charset=utf-8"
	}
	return "application/javascript; charset=utf-8"
}
