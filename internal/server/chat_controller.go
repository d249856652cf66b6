package server

import (
	"context"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"slmchat/internal/config"
	"slmchat/internal/domain"
	"slmchat/internal/ingest"
	"slmchat/internal/logger"
	"slmchat/internal/session"
)

type chatController struct {
	store    *session.Store
	models   config.ModelTable
	defaults domain.Params
	hub      *Hub
	logger   logger.Logger
	// background is the parent of turns that outlive their request.
	background context.Context
}

func (c *chatController) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/models", c.Models)

	s := api.Group("/sessions")
	s.Post("", c.Create)
	s.Get("/:id", c.Show)
	s.Post("/:id/credential", c.SetCredential)
	s.Post("/:id/document", c.Upload)
	s.Post("/:id/messages", c.SendMessage)
	s.Delete("/:id/history", c.ClearHistory)

	app.Get("/ws/sessions/:id", c.ServeWs)
}

func (c *chatController) session(ctx *fiber.Ctx) (*session.Session, error) {
	sess, ok := c.store.Get(ctx.Params("id"))
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return sess, nil
}

func (c *chatController) Models(ctx *fiber.Ctx) error {
	return ctx.JSON(SuccessResponse("Success get models", ModelsResponse{
		Models:   c.models.Names(),
		Default:  c.models.Default(),
		Defaults: c.defaults,
		Bounds: Bounds{
			MinTemperature: domain.MinTemperature,
			MaxTemperature: domain.MaxTemperature,
			MinTopP:        domain.MinTopP,
			MaxTopP:        domain.MaxTopP,
			MinMaxLength:   domain.MinMaxLength,
			MaxMaxLength:   domain.MaxMaxLength,
		},
	}))
}

func (c *chatController) Create(ctx *fiber.Ctx) error {
	sess := c.store.Create()
	c.logger.Info("HTTP", "Session created", map[string]interface{}{"session": sess.ID()})
	return ctx.Status(fiber.StatusCreated).JSON(SuccessResponse("Success create session", view(sess)))
}

func (c *chatController) Show(ctx *fiber.Ctx) error {
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(SuccessResponse("Success show session", view(sess)))
}

func (c *chatController) SetCredential(ctx *fiber.Ctx) error {
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	var req CredentialRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	valid, status := sess.SetCredential(req.Token)
	return ctx.JSON(SuccessResponse(status, CredentialResponse{Valid: valid, Status: status}))
}

func (c *chatController) Upload(ctx *fiber.Ctx) error {
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart field 'file' is required")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	res := sess.Upload(ctx.UserContext(), &ingest.Upload{Name: fh.Filename, Data: data})
	resp := UploadResponse{Result: res}
	if res.OK() {
		resp.Document = document(sess)
	}

	code := fiber.StatusOK
	switch res.Kind {
	case domain.KindCredential:
		code = fiber.StatusUnauthorized
	case domain.KindIngestion:
		code = fiber.StatusUnprocessableEntity
	}
	return ctx.Status(code).JSON(BaseResponse[UploadResponse]{Success: res.OK(), Message: res.Text, Data: resp})
}

// SendMessage runs phase one of a turn and answers 202, leaving phase two to
// a goroutine whose result arrives over the websocket. With ?wait=true both
// phases run inside the request. While a turn is running on the session
// further messages get 409.
func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	var req SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := ValidateRequest(req); err != nil {
		return err
	}

	params := req.Params(c.defaults)
	if err := params.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	pending, res := sess.Begin(req.Message, req.Model, params)
	if pending == nil {
		resp := SendMessageResponse{
			Accepted:     false,
			Status:       res.Text,
			Conversation: nonNil(sess.Conversation()),
		}
		if res.Kind == domain.KindBusy {
			return ctx.Status(fiber.StatusConflict).JSON(BaseResponse[SendMessageResponse]{Success: false, Message: res.Text, Data: resp})
		}
		return ctx.JSON(SuccessResponse(res.Text, resp))
	}

	status := res.Text
	turn := pending.Turn
	if ctx.QueryBool("wait", false) {
		_, status = sess.Complete(ctx.UserContext(), pending)
		return ctx.JSON(SuccessResponse("Success send message", SendMessageResponse{
			Accepted:     true,
			Turn:         &turn,
			Status:       status,
			Conversation: nonNil(sess.Conversation()),
		}))
	}

	go sess.Complete(c.background, pending)
	return ctx.Status(fiber.StatusAccepted).JSON(SuccessResponse("Message accepted", SendMessageResponse{
		Accepted:     true,
		Turn:         &turn,
		Status:       status,
		Conversation: nonNil(sess.Conversation()),
	}))
}

func (c *chatController) ClearHistory(ctx *fiber.Ctx) error {
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	status := sess.Clear()
	return ctx.JSON(SuccessResponse(status, view(sess)))
}

func (c *chatController) ServeWs(ctx *fiber.Ctx) error {
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	if c.hub == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "live updates are not enabled")
	}
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}
	id := sess.ID()
	return websocket.New(func(conn *websocket.Conn) {
		c.logger.Info("HTTP", "Starting websocket stream", map[string]interface{}{"session": id})
		ServeWs(c.hub, conn, id)
		c.logger.Info("HTTP", "Websocket stream ended", map[string]interface{}{"session": id})
	})(ctx)
}

func view(sess *session.Session) SessionResponse {
	return SessionResponse{
		ID:            sess.ID(),
		HasCredential: sess.HasCredential(),
		Status:        sess.Status(),
		Conversation:  nonNil(sess.Conversation()),
		Document:      document(sess),
	}
}

func document(sess *session.Session) *DocumentResponse {
	ix := sess.Index()
	if ix == nil {
		return nil
	}
	return &DocumentResponse{FileName: ix.FileName(), Chunks: ix.Len(), Summary: ix.Summary()}
}

func nonNil(c domain.Conversation) domain.Conversation {
	if c == nil {
		return domain.Conversation{}
	}
	return c
}
