package server

import (
	"bytes"

	"golang.org/x/net/html"
)

// liveReloadScript reconnects after the server restarts and reloads the page
// on every message.
const liveReloadScript = `<script>(function(){` +
	`var p=location.protocol==="https:"?"wss:":"ws:";` +
	`function c(){var s=new WebSocket(p+"//"+location.host+"` + LiveReloadPath + `");` +
	`s.onmessage=function(){location.reload();};` +
	`s.onclose=function(){setTimeout(c,1000);};}` +
	`c();})();</script>`

// InjectLiveReload inserts script before the last </body> tag of doc, or
// appends it when there is none.
func InjectLiveReload(doc []byte, script string) []byte {
	out := make([]byte, 0, len(doc)+len(script))
	offset := lastBodyClose(doc)
	if offset < 0 {
		out = append(out, doc...)
		return append(out, script...)
	}

	out = append(out, doc[:offset]...)
	out = append(out, script...)
	return append(out, doc[offset:]...)
}

// lastBodyClose returns the byte offset of the last </body> end tag, or -1.
// Text that only looks like a tag (inside scripts, comments or attributes) is
// not matched.
func lastBodyClose(doc []byte) int {
	z := html.NewTokenizer(bytes.NewReader(doc))
	pos, last := 0, -1

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return last
		}
		raw := z.Raw()
		if tt == html.EndTagToken {
			if name, _ := z.TagName(); string(name) == "body" {
				last = pos
			}
		}
		pos += len(raw)
	}
}
