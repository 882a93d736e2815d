package devserver

import (
	"bytes"
	"io"

	"golang.org/x/net/html"
)

// rewriteHTML token-walks an HTML entry and injects the client runtime
// script immediately after <head>.
func rewriteHTML(r io.Reader) ([]byte, error) {
	var out bytes.Buffer
	tokenizer := html.NewTokenizer(r)
	injected := false

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			if tokenizer.Err() == io.EOF {
				break
			}
			return nil, tokenizer.Err()
		}
		out.Write(tokenizer.Raw())
		if !injected && tt == html.StartTagToken {
			tagName, _ := tokenizer.TagName()
			if string(tagName) == "head" {
				out.WriteString(`<script type="module" src="/@vite/client"></script>`)
				injected = true
			}
		}
	}
	if !injected {
		out.WriteString(`<script type="module" src="/@vite/client"></script>`)
	}
	return out.Bytes(), nil
}
