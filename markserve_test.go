package markserve_test

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/matthewmueller/markserve"
)

func contains(haystack, needle string) error {
	if strings.Contains(haystack, needle) {
		return nil
	}
	return fmt.Errorf("expected the following to contain %s:\n\n%s", needle, haystack)
}

func notContains(haystack, needle string) error {
	if !strings.Contains(haystack, needle) {
		return nil
	}
	return fmt.Errorf("expected the following to not contain %s:\n\n%s", needle, haystack)
}

// write files relative to dir
func write(t testing.TB, dir string, files map[string]string) {
	t.Helper()
	for path, data := range files {
		path = filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func setup(t testing.TB, files map[string]string) (*markserve.Config, string) {
	t.Helper()
	dir := t.TempDir()
	write(t, dir, files)
	config := markserve.DefaultConfig()
	config.Content = filepath.Join(dir, "contents")
	config.Static = filepath.Join(dir, "assets")
	for _, d := range []string{config.Content, config.Static} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	return config, dir
}

func serve(t testing.TB, config *markserve.Config) *httptest.Server {
	t.Helper()
	server, err := markserve.New(slog.Default(), config)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { server.Close() })
	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)
	return ts
}

func request(t testing.TB, method, url string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	return res, string(body)
}

var site = map[string]string{
	"contents/index.md":      "# Welcome\n\nHello",
	"contents/about.md":      "About **us**",
	"contents/docs/intro.md": "Getting started",
	"contents/titled.md":     "---\ntitle: Titled Page\n---\nWith a title",
	"assets/style.css":       "body { color: red }",
	"assets/docs/index.html": "<html><body>asset index</body></html>",
	"secret.md":              "top secret",
}

func TestHome(t *testing.T) {
	is := is.New(t)
	config, _ := setup(t, site)
	ts := serve(t, config)
	res, body := request(t, "GET", ts.URL+"/")
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Content-Type"), "text/html; charset=utf-8")
	is.NoErr(contains(body, "<title>Home</title>"))
	is.NoErr(contains(body, "Welcome</h1>"))
	is.NoErr(contains(body, "<p>Hello</p>"))
}

func TestHomeMissing(t *testing.T) {
	is := is.New(t)
	config, _ := setup(t, nil)
	ts := serve(t, config)
	res, body := request(t, "GET", ts.URL+"/")
	is.Equal(res.StatusCode, 200)
	is.NoErr(contains(body, "<title>Home</title>"))
	is.NoErr(contains(body, "<p>Not Found</p>"))
}

func TestNamedPage(t *testing.T) {
	is := is.New(t)
	config, _ := setup(t, site)
	ts := serve(t, config)
	res, body := request(t, "GET", ts.URL+"/about")
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Content-Type"), "text/html; charset=utf-8")
	is.NoErr(contains(body, "<p>About <strong>us</strong></p>"))
	is.NoErr(contains(body, "<title></title>"))

	res, body = request(t, "GET", ts.URL+"/docs/intro")
	is.Equal(res.StatusCode, 200)
	is.NoErr(contains(body, "<p>Getting started</p>"))
}

func TestNamedPageFrontmatterTitle(t *testing.T) {
	is := is.New(t)
	config, _ := setup(t, site)
	ts := serve(t, config)
	res, body := request(t, "GET", ts.URL+"/titled")
	is.Equal(res.StatusCode, 200)
	is.NoErr(contains(body, "<title>Titled Page</title>"))
	is.NoErr(contains(body, "<p>With a title</p>"))
	is.NoErr(notContains(body, "title: Titled Page"))
}

func TestMissingPage(t *testing.T) {
	is := is.New(t)
	config, _ := setup(t, site)
	ts := serve(t, config)
	res, body := request(t, "GET", ts.URL+"/missing-page")
	is.Equal(res.StatusCode, 200)
	is.NoErr(contains(body, "<p>Not Found</p>"))
	is.NoErr(contains(body, "<title></title>"))
}

func TestPageOutsideContent(t *testing.T) {
	is := is.New(t)
	config, _ := setup(t, site)
	server, err := markserve.New(slog.Default(), config)
	is.NoErr(err)
	defer server.Close()
	for _, target := range []string{"/../secret", "/docs/../../secret", "/%2e%2e/secret"} {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
		is.NoErr(notContains(rec.Body.String(), "top secret"))
	}
}

func TestStatic(t *testing.T) {
	is := is.New(t)
	config, _ := setup(t, site)
	ts := serve(t, config)
	res, body := request(t, "GET", ts.URL+"/static/style.css")
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Content-Type"), "text/css; charset=utf-8")
	is.Equal(body, "body { color: red }")

	res, body = request(t, "GET", ts.URL+"/static/docs/index.html")
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Content-Type"), "text/html; charset=utf-8")
	is.Equal(body, "<html><body>asset index</body></html>")
}

func TestStaticMissing(t *testing.T) {
	is := is.New(t)
	config, _ := setup(t, site)
	ts := serve(t, config)
	for _, path := range []string{"/static/does-not-exist.png", "/static/docs"} {
		res, body := request(t, "GET", ts.URL+path)
		is.Equal(res.StatusCode, 404)
		is.Equal(res.Header.Get("Content-Type"), "text/html; charset=utf-8")
		is.NoErr(contains(body, "<title>404</title>"))
		is.NoErr(contains(body, "<p>Not Found</p>"))
	}
}

func TestUnmatchedRoute(t *testing.T) {
	is := is.New(t)
	config, _ := setup(t, site)
	ts := serve(t, config)
	for _, method := range []string{"POST", "PUT", "DELETE"} {
		res, body := request(t, method, ts.URL+"/about")
		is.Equal(res.StatusCode, 404)
		is.NoErr(contains(body, "<title>404</title>"))
		is.NoErr(contains(body, "<p>Not Found</p>"))
	}
}

func TestUnroutablePath(t *testing.T) {
	is := is.New(t)
	config, _ := setup(t, site)
	server, err := markserve.New(slog.Default(), config)
	is.NoErr(err)
	defer server.Close()
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest("GET", "*", nil))
	is.Equal(rec.Code, 404)
	is.Equal(rec.Header().Get("Content-Type"), "text/html; charset=utf-8")
	is.NoErr(contains(rec.Body.String(), "<title>404</title>"))
	is.NoErr(contains(rec.Body.String(), "<p>Not Found</p>"))
}

func TestHead(t *testing.T) {
	is := is.New(t)
	config, _ := setup(t, site)
	ts := serve(t, config)
	res, body := request(t, "HEAD", ts.URL+"/about")
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Content-Type"), "text/html; charset=utf-8")
	is.Equal(body, "")
}

func TestIdempotent(t *testing.T) {
	is := is.New(t)
	config, _ := setup(t, site)
	ts := serve(t, config)
	for _, path := range []string{"/", "/about", "/missing", "/static/nope"} {
		_, first := request(t, "GET", ts.URL+path)
		_, second := request(t, "GET", ts.URL+path)
		is.Equal(first, second)
	}
}

func TestRenderFailure(t *testing.T) {
	is := is.New(t)
	config, dir := setup(t, site)
	write(t, dir, map[string]string{
		"layout.html": `<title>{{ .Title }}</title>{{ template "missing" }}`,
	})
	config.Template = filepath.Join(dir, "layout.html")
	ts := serve(t, config)
	res, body := request(t, "GET", ts.URL+"/about")
	is.Equal(res.StatusCode, 500)
	is.Equal(res.Header.Get("Content-Type"), "text/plain; charset=utf-8")
	is.True(strings.HasPrefix(body, "Failed to render template. Error: "))
	is.NoErr(contains(body, "missing"))
}

func TestCustomLayout(t *testing.T) {
	is := is.New(t)
	config, dir := setup(t, site)
	write(t, dir, map[string]string{
		"layout.html": `<h1>{{ .Title }}</h1><article>{{ .Body }}</article>`,
	})
	config.Template = filepath.Join(dir, "layout.html")
	ts := serve(t, config)
	_, body := request(t, "GET", ts.URL+"/")
	is.True(strings.HasPrefix(body, "<h1>Home</h1><article><h1"))
}

func TestNewErrors(t *testing.T) {
	is := is.New(t)
	config, dir := setup(t, site)
	config.Content = filepath.Join(dir, "nope")
	_, err := markserve.New(slog.Default(), config)
	is.True(err != nil)

	config, dir = setup(t, site)
	write(t, dir, map[string]string{"bad.html": "{{ .Title "})
	config.Template = filepath.Join(dir, "bad.html")
	_, err = markserve.New(slog.Default(), config)
	is.True(err != nil)
}

func TestLiveReload(t *testing.T) {
	is := is.New(t)
	config, _ := setup(t, site)
	config.Live = true
	ts := serve(t, config)
	res, body := request(t, "GET", ts.URL+"/about")
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Cache-Control"), "no-cache, no-store, must-revalidate")
	is.NoErr(contains(body, `new EventSource("/livereload")`))

	res, body = request(t, "GET", ts.URL+"/static/style.css")
	is.Equal(res.StatusCode, 200)
	is.NoErr(notContains(body, "EventSource"))
}
