package optimize

import (
	"errors"

	"github.com/ije/esbuild-internal/config"
	"github.com/ije/esbuild-internal/js_ast"
	"github.com/ije/esbuild-internal/js_parser"
	"github.com/ije/esbuild-internal/logger"
)

// NeedsInterop parses source with esbuild's internal JS/TS parser and
// reports whether it is authored as CommonJS, in which case the
// dependency optimizer must emit a default-export interop wrapper
// instead of re-exporting the module's bindings directly.
//
// This uses the same parser to classify a module's ast.ExportsKind that
// a CDN build pipeline would use to reject CommonJS outright (a
// production build only ever serves real ES modules to the browser),
// whereas here
// a CommonJS result is not an error — it is the signal that tells the
// optimizer to wrap the source instead of passing it through.
func NeedsInterop(filename, source string) (needsInterop bool, err error) {
	log := logger.NewDeferLog(logger.DeferLogNoVerboseOrDebug, nil)
	ext := extOf(filename)
	parserOpts := js_parser.OptionsFromConfig(&config.Options{
		JSX: config.JSXOptions{
			Parse: ext == ".jsx" || ext == ".tsx",
		},
		TS: config.TSOptions{
			Parse: ext == ".ts" || ext == ".tsx" || ext == ".mts",
		},
	})
	ast, pass := js_parser.Parse(log, logger.Source{
		Index:          0,
		KeyPath:        logger.Path{Text: filename},
		PrettyPaths:    logger.PrettyPaths{Rel: filename},
		IdentifierName: "module",
		Contents:       source,
	}, parserOpts)
	if !pass {
		return false, errors.New("invalid syntax: " + filename)
	}
	return ast.ExportsKind == js_ast.ExportsCommonJS, nil
}

func extOf(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			return filename[i:]
		}
		if filename[i] == '/' {
			break
		}
	}
	return ""
}
