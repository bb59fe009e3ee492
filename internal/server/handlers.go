package server

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"guestbook/internal/render"
	"guestbook/internal/store"
)

const (
	contentTypeHTML   = "text/html; charset=utf-8"
	internalErrorBody = "internal error"
)

// MessageInput は投稿フォームの内容
type MessageInput struct {
	Username string `form:"username"`
	Message  string `form:"message"`
}

// GuestbookHandler はゲストブックの各エンドポイントを実装する
type GuestbookHandler struct {
	renderer *render.Renderer
	store    store.Store
	static   fs.FS
	log      *slog.Logger
}

// NewGuestbookHandler は新しいGuestbookHandlerを作成する
func NewGuestbookHandler(renderer *render.Renderer, st store.Store, static fs.FS, log *slog.Logger) *GuestbookHandler {
	return &GuestbookHandler{
		renderer: renderer,
		store:    st,
		static:   static,
		log:      log,
	}
}

// Index はトップページ
func (h *GuestbookHandler) Index(c *gin.Context) {
	h.serveTemplate(c, render.IndexTemplate)
}

// MessageForm は投稿フォームページ
func (h *GuestbookHandler) MessageForm(c *gin.Context) {
	h.serveTemplate(c, render.MessageTemplate)
}

// ReadMessages はメッセージ一覧ページ
func (h *GuestbookHandler) ReadMessages(c *gin.Context) {
	messages, err := h.store.Load(c.Request.Context())
	if err != nil {
		h.internalError(c, "メッセージの読み込みに失敗", err)
		return
	}

	page, err := h.renderer.RenderList(messages)
	if errors.Is(err, render.ErrNotFound) {
		h.NotFound(c)
		return
	}
	if err != nil {
		h.internalError(c, "一覧ページの描画に失敗", err)
		return
	}

	c.Data(http.StatusOK, contentTypeHTML, page)
}

// PostMessage は投稿を受け付けてストアに追記する
func (h *GuestbookHandler) PostMessage(c *gin.Context) {
	// Content-Lengthの無い本文は空として扱わず拒否する (chunkedも含む)
	if _, ok := c.Request.Header["Content-Length"]; !ok || c.Request.ContentLength < 0 {
		c.String(http.StatusLengthRequired, "length required")
		return
	}

	var form MessageInput
	if err := c.ShouldBindWith(&form, binding.FormPost); err != nil {
		h.log.Warn("フォームの解析に失敗", "error", err)
		c.String(http.StatusBadRequest, "bad request")
		return
	}
	if !utf8.ValidString(form.Username) || !utf8.ValidString(form.Message) {
		c.String(http.StatusBadRequest, "invalid utf-8")
		return
	}

	ts, err := h.store.Append(c.Request.Context(), store.Record{
		Username: form.Username,
		Message:  form.Message,
	})
	if err != nil {
		h.internalError(c, "メッセージの保存に失敗", err)
		return
	}

	h.log.Info("メッセージを受け付けました", "timestamp", ts, "request_id", c.GetString(requestIDKey))
	c.Redirect(http.StatusFound, "/")
}

// Static は /static/ 以下のファイルを配信する
func (h *GuestbookHandler) Static(c *gin.Context) {
	name, ok := resolveStatic(c.Param("filepath"))
	if !ok {
		h.log.Warn("不正な静的ファイルパス", "path", c.Request.URL.Path)
		h.NotFound(c)
		return
	}

	data, err := readStatic(h.static, name)
	if errors.Is(err, errStaticNotFound) {
		h.NotFound(c)
		return
	}
	if err != nil {
		h.internalError(c, "静的ファイルの読み込みに失敗", err)
		return
	}

	c.Data(http.StatusOK, contentType(name, data), data)
}

// NotFound は404ページを返す
func (h *GuestbookHandler) NotFound(c *gin.Context) {
	c.Data(http.StatusNotFound, contentTypeHTML, h.renderer.NotFoundPage())
}

// serveTemplate はテンプレートをそのまま返す
func (h *GuestbookHandler) serveTemplate(c *gin.Context, name string) {
	page, err := h.renderer.RenderStatic(name)
	if errors.Is(err, render.ErrNotFound) {
		h.NotFound(c)
		return
	}
	if err != nil {
		h.internalError(c, "テンプレートの読み込みに失敗", err)
		return
	}

	c.Data(http.StatusOK, contentTypeHTML, page)
}

// internalError はエラーをログに残して500を返す
func (h *GuestbookHandler) internalError(c *gin.Context, msg string, err error) {
	h.log.Error(msg, "error", err, "path", c.Request.URL.Path, "request_id", c.GetString(requestIDKey))
	c.String(http.StatusInternalServerError, internalErrorBody)
}
