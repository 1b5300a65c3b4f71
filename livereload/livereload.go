// Package livereload reloads open pages in the browser when the markdown,
// static assets or layout they're built from change on disk.
package livereload

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/livebud/sse"
	"github.com/livebud/watcher"
	"github.com/matthewmueller/httpbuf"
	"golang.org/x/sync/errgroup"
)

// DefaultPath is where browsers subscribe to reload events
const DefaultPath = "/livereload"

// Event is a server-sent event (SSE) sent to the browser
type Event = sse.Event

func New(log *slog.Logger) *Reloader {
	return &Reloader{DefaultPath, log, sse.New(log)}
}

type Reloader struct {
	Path string
	log  *slog.Logger
	sse  *sse.Handler
}

// Middleware serves the event stream and injects the client script into
// HTML responses that have a closing body tag.
func (r *Reloader) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == r.Path && req.Header.Get("Accept") == "text/event-stream" {
			r.sse.ServeHTTP(w, req)
			return
		}
		rw := httpbuf.Wrap(w)
		defer rw.Flush()
		next.ServeHTTP(rw, req)
		// Partial and error responses are passed through untouched
		if rw.Status != http.StatusOK || !isHTML(rw.Header().Get("Content-Type")) {
			return
		}
		body, ok := inject(rw.Body, r.Path)
		if !ok {
			return
		}
		rw.Body = body
		rw.Header().Set("Content-Length", strconv.Itoa(len(body)))
		// Pages change underneath the browser, so never cache them
		rw.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		rw.Header().Set("Last-Modified", "0")
	})
}

// Publish an event to every connected browser
func (r *Reloader) Publish(ctx context.Context, event *Event) error {
	return r.sse.Publish(ctx, event)
}

// Watch the directories and publish a reload event for each batch of
// changes. Events are encoded as "op:path;op:path".
func (r *Reloader) Watch(ctx context.Context, dirs ...string) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, dir := range dirs {
		eg.Go(func() error {
			r.log.Debug("livereload: watching", "dir", dir)
			return watcher.Watch(ctx, dir, func(events []watcher.Event) error {
				r.reload(ctx, events)
				return nil
			})
		})
	}
	return eg.Wait()
}

func (r *Reloader) reload(ctx context.Context, events []watcher.Event) {
	var data bytes.Buffer
	for i, event := range events {
		if i > 0 {
			data.WriteByte(';')
		}
		data.WriteString(event.String())
	}
	r.log.Debug("livereload: reloading", "events", data.String())
	if err := r.Publish(ctx, &Event{Type: "reload", Data: data.Bytes()}); err != nil {
		r.log.Error("livereload: unable to publish", "error", err, "events", data.String())
	}
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/html"
}

// Client script attached to the end of the body
const script = `<script type="text/javascript">
(function() {
	const es = new EventSource(%[1]q)
	es.addEventListener("open", function() {
		console.debug("livereload: connected to", %[1]q)
	})
	es.addEventListener("reload", function(e) {
		const events = e.data.split(";").map(function(ev) {
			const parts = ev.split(":")
			return { op: parts[0], path: parts.slice(1).join(":") }
		})
		const custom = new CustomEvent("reload", { bubbles: true, cancelable: true, detail: { events } })
		// Listeners may call preventDefault() to handle the reload themselves
		if (document.dispatchEvent(custom)) document.location.reload()
	})
	window.addEventListener("beforeunload", function() { es.close() })
})()
</script>
`

func inject(html []byte, path string) ([]byte, bool) {
	index := bytes.LastIndex(html, []byte("</body>"))
	if index < 0 {
		return html, false
	}
	tag := fmt.Sprintf(script, path)
	out := make([]byte, 0, len(html)+len(tag))
	out = append(out, html[:index]...)
	out = append(out, tag...)
	out = append(out, html[index:]...)
	return out, true
}
