package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func doRequest(srv *Server, method, target string, form url.Values) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Length", strconv.Itoa(body.Len()))
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func postMessage(srv *Server, form url.Values) *httptest.ResponseRecorder {
	return doRequest(srv, http.MethodPost, "/message", form)
}

func TestPostThenRead(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t, newTestConfig(t))

	// When Alice posts a message
	rec := postMessage(srv, url.Values{"username": {"Alice"}, "message": {"Hello"}})

	// Then the client is redirected to the top page
	req.Equal(http.StatusFound, rec.Code)
	req.Equal("/", rec.Header().Get("Location"))

	// And the message is listed
	rec = doRequest(srv, http.MethodGet, "/read", nil)
	req.Equal(http.StatusOK, rec.Code)
	req.Equal(contentTypeHTML, rec.Header().Get("Content-Type"))
	req.Contains(rec.Body.String(), "Alice")
	req.Contains(rec.Body.String(), "Hello")
	req.Contains(rec.Body.String(), "Messages (1)")
}

func TestPostMessage_DefaultUsername(t *testing.T) {
	testCases := []struct {
		name string
		form url.Values
	}{
		{"ユーザー名なし", url.Values{"message": {"no name given"}}},
		{"空のユーザー名", url.Values{"username": {""}, "message": {"no name given"}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			srv, st := newTestServer(t, newTestConfig(t))

			rec := postMessage(srv, tc.form)
			req.Equal(http.StatusFound, rec.Code)

			messages, err := st.Load(t.Context())
			req.NoError(err)
			req.Len(messages, 1)
			for _, record := range messages {
				req.Equal("Anonymous", record.Username)
				req.Equal("no name given", record.Message)
			}

			rec = doRequest(srv, http.MethodGet, "/read", nil)
			req.Contains(rec.Body.String(), "Anonymous")
		})
	}
}

func TestPostMessage_EmptyMessage(t *testing.T) {
	req := require.New(t)
	srv, st := newTestServer(t, newTestConfig(t))

	rec := postMessage(srv, url.Values{"username": {"Bob"}})
	req.Equal(http.StatusFound, rec.Code)

	messages, err := st.Load(t.Context())
	req.NoError(err)
	req.Len(messages, 1)
	for _, record := range messages {
		req.Equal("Bob", record.Username)
		req.Empty(record.Message)
	}
}

func TestReadMessages_EscapesMarkup(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t, newTestConfig(t))

	postMessage(srv, url.Values{
		"username": {"<b>Mallory</b>"},
		"message":  {"<script>alert('x')</script>"},
	})

	body := doRequest(srv, http.MethodGet, "/read", nil).Body.String()
	req.Contains(body, "&lt;script&gt;")
	req.Contains(body, "&lt;b&gt;Mallory&lt;/b&gt;")
	req.NotContains(body, "<script>")
	req.NotContains(body, "<b>Mallory")
}

func TestReadMessages_NoStoreFile(t *testing.T) {
	req := require.New(t)
	cfg := newTestConfig(t)
	srv, _ := newTestServer(t, cfg)

	rec := doRequest(srv, http.MethodGet, "/read", nil)
	req.Equal(http.StatusOK, rec.Code)
	req.Contains(rec.Body.String(), "Messages (0)")
	req.Contains(rec.Body.String(), "No messages yet.")

	// 読み込みだけではファイルは作られない
	_, err := os.Stat(cfg.Storage.Path)
	req.True(os.IsNotExist(err))
}

func TestReadMessages_MalformedStore(t *testing.T) {
	req := require.New(t)
	cfg := newTestConfig(t)
	req.NoError(os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755))
	req.NoError(os.WriteFile(cfg.Storage.Path, []byte("{broken"), 0o644))
	srv, _ := newTestServer(t, cfg)

	rec := doRequest(srv, http.MethodGet, "/read", nil)
	req.Equal(http.StatusInternalServerError, rec.Code)
	req.Equal("internal error", rec.Body.String())

	// 壊れたストアへの投稿も失敗する
	rec = postMessage(srv, url.Values{"username": {"Alice"}, "message": {"Hello"}})
	req.Equal(http.StatusInternalServerError, rec.Code)
}

func TestSequentialPosts(t *testing.T) {
	req := require.New(t)
	srv, st := newTestServer(t, newTestConfig(t))

	postMessage(srv, url.Values{"username": {"Alice"}, "message": {"first"}})
	postMessage(srv, url.Values{"username": {"Bob"}, "message": {"second"}})

	messages, err := st.Load(t.Context())
	req.NoError(err)
	req.Len(messages, 2)

	body := doRequest(srv, http.MethodGet, "/read", nil).Body.String()
	req.Contains(body, "Messages (2)")
	req.Less(strings.Index(body, "first"), strings.Index(body, "second"))
}

func TestConcurrentPosts(t *testing.T) {
	req := require.New(t)
	srv, st := newTestServer(t, newTestConfig(t))

	const posts = 25
	codes := make(chan int, posts)
	var wg sync.WaitGroup
	for i := 0; i < posts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- postMessage(srv, url.Values{"username": {"crowd"}, "message": {"hi"}}).Code
		}()
	}
	wg.Wait()
	close(codes)
	for code := range codes {
		req.Equal(http.StatusFound, code)
	}

	messages, err := st.Load(t.Context())
	req.NoError(err)
	req.Len(messages, posts)
}

func TestPostMessage_RejectedBodies(t *testing.T) {
	srv, st := newTestServer(t, newTestConfig(t))

	t.Run("Content-Lengthなし", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader("username=Alice&message=Hello"))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.ContentLength = -1
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, r)
		require.Equal(t, http.StatusLengthRequired, rec.Code)
	})

	t.Run("Content-Lengthヘッダなし", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader("username=Alice&message=Hello"))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, r)
		require.Equal(t, http.StatusLengthRequired, rec.Code)
	})

	t.Run("不正なUTF-8", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader("username=%ff%fe&message=Hello"))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.Header.Set("Content-Length", strconv.FormatInt(r.ContentLength, 10))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, r)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("不正なエンコード", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader("username=%zz&message=Hello"))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.Header.Set("Content-Length", strconv.FormatInt(r.ContentLength, 10))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, r)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	messages, err := st.Load(t.Context())
	require.NoError(t, err)
	require.Empty(t, messages)
}

func TestStaticPages(t *testing.T) {
	srv, _ := newTestServer(t, newTestConfig(t))

	testCases := []struct {
		name     string
		path     string
		contains string
	}{
		{"トップページ", "/", "<h1>Guestbook</h1>"},
		{"投稿フォーム", "/message", `<form action="/message" method="post">`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(srv, http.MethodGet, tc.path, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, contentTypeHTML, rec.Header().Get("Content-Type"))
			require.Contains(t, rec.Body.String(), tc.contains)
		})
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := newTestServer(t, newTestConfig(t))

	testCases := []struct {
		name   string
		method string
		path   string
	}{
		{"未定義のGET", http.MethodGet, "/nope"},
		{"末尾スラッシュ", http.MethodGet, "/read/"},
		{"未定義のPOST", http.MethodPost, "/nope"},
		{"一覧へのPOST", http.MethodPost, "/read"},
		{"PUTメソッド", http.MethodPut, "/message"},
		{"staticディレクトリ", http.MethodGet, "/static"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(srv, tc.method, tc.path, nil)
			require.Equal(t, http.StatusNotFound, rec.Code)
			require.Contains(t, rec.Body.String(), "The page you are looking for does not exist.")
		})
	}
}

func TestNotFound_Fallback(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Assets.TemplatesDir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Assets.TemplatesDir, "index.html"), []byte("<p>home</p>"), 0o644))
	srv, _ := newTestServer(t, cfg)

	rec := doRequest(srv, http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "<h1>404 Not Found</h1>", rec.Body.String())

	// テンプレートが無いページも404
	rec = doRequest(srv, http.MethodGet, "/message", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = doRequest(srv, http.MethodGet, "/read", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "<p>home</p>", rec.Body.String())
}

func TestStaticAssets(t *testing.T) {
	root := t.TempDir()
	staticDir := filepath.Join(root, "static")
	require.NoError(t, os.MkdirAll(filepath.Join(staticDir, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "css", "site.css"), []byte("body{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "blob"), []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("top secret"), 0o644))

	cfg := newTestConfig(t)
	cfg.Assets.StaticDir = staticDir
	srv, _ := newTestServer(t, cfg)

	testCases := []struct {
		name           string
		path           string
		expectedStatus int
		expectedType   string
	}{
		{"拡張子から判定", "/static/css/site.css", http.StatusOK, "text/css; charset=utf-8"},
		{"内容から判定", "/static/blob", http.StatusOK, "image/png"},
		{"存在しないファイル", "/static/css/missing.css", http.StatusNotFound, ""},
		{"ディレクトリ", "/static/css", http.StatusNotFound, ""},
		{"ルート", "/static/", http.StatusNotFound, ""},
		{"親ディレクトリへの移動", "/static/../secret.txt", http.StatusNotFound, ""},
		{"エンコードされた移動", "/static/%2e%2e/secret.txt", http.StatusNotFound, ""},
		{"途中での移動", "/static/css/../../secret.txt", http.StatusNotFound, ""},
		{"正規化されていないパス", "/static/css//site.css", http.StatusNotFound, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(srv, http.MethodGet, tc.path, nil)
			require.Equal(t, tc.expectedStatus, rec.Code)
			require.NotContains(t, rec.Body.String(), "top secret")
			if tc.expectedType != "" {
				require.Equal(t, tc.expectedType, rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestStaticAssets_Embedded(t *testing.T) {
	srv, _ := newTestServer(t, newTestConfig(t))

	rec := doRequest(srv, http.MethodGet, "/static/logo.svg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "<svg")
}

func TestRequestID(t *testing.T) {
	srv, _ := newTestServer(t, newTestConfig(t))

	first := doRequest(srv, http.MethodGet, "/", nil).Header().Get(requestIDHeader)
	second := doRequest(srv, http.MethodGet, "/nope", nil).Header().Get(requestIDHeader)

	require.Len(t, first, 36)
	require.Len(t, second, 36)
	require.NotEqual(t, first, second)
}

func TestResolveStatic(t *testing.T) {
	testCases := []struct {
		requested string
		expected  string
		ok        bool
	}{
		{"/style.css", "style.css", true},
		{"/css/site.css", "css/site.css", true},
		{"/", "", false},
		{"/..", "", false},
		{"/../x", "", false},
		{"/a/../b", "", false},
		{"/./a", "", false},
		{"/a//b", "", false},
		{"/a\\..\\b", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.requested, func(t *testing.T) {
			name, ok := resolveStatic(tc.requested)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.expected, name)
		})
	}
}
