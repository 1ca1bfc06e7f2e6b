package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/viral32111/LiveChat/domain/chat"
	"github.com/viral32111/LiveChat/modules/attachments"
	"github.com/viral32111/LiveChat/modules/broadcast"
	"github.com/viral32111/LiveChat/modules/lifecycle"
	chatsession "github.com/viral32111/LiveChat/modules/session"
)

const (
	sessionGuestKey = "guestID"
	localGuestID    = "guestID"
	localRoomID     = "roomID"
	uploadField     = "files"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes() {
	m.app.Get("/health", m.healthHandler)

	// WebSocket endpoint
	m.app.Use("/api/chat", m.requireChatUpgrade)
	m.app.Get("/api/chat", websocket.New(m.handleChat))

	api := m.app.Group("/api")

	api.Post("/name", m.chooseName)
	api.Get("/name", m.getName)
	api.Delete("/session", m.endSession)

	api.Get("/rooms", m.listRooms)
	api.Post("/room", m.createRoom)
	api.Get("/room", m.getRoom)
	api.Get("/room/:code", m.joinRoom)
	api.Delete("/room", m.leaveRoom)

	api.Post("/upload", m.upload)
	m.app.Get(attachments.PathPrefix+":key", m.serveAttachment)

	if m.cfg.ClientDir != "" {
		m.app.Static("/", m.cfg.ClientDir)
	}
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":        "api",
			"connections":   m.registry.Size(),
			"chat_sessions": m.activeSessions(),
		},
	})
}

// currentSession loads the cookie session and the guest id stored in it.
func (m *APIModule) currentSession(c *fiber.Ctx) (*session.Session, string, error) {
	sess, err := m.sessions.Get(c)
	if err != nil {
		return nil, "", &APIError{
			Status:  fiber.StatusInternalServerError,
			Code:    ErrorDatabaseFindFailure,
			Message: "failed to load session",
			Err:     err,
		}
	}
	guestID, _ := sess.Get(sessionGuestKey).(string)
	return sess, guestID, nil
}

// requireGuest returns the session's guest id, failing when no name has
// been chosen yet.
func (m *APIModule) requireGuest(c *fiber.Ctx) (string, error) {
	_, guestID, err := m.currentSession(c)
	if err != nil {
		return "", err
	}
	if guestID == "" {
		return "", fromError(chat.ErrNameNotChosen, ErrorNameNotChosen)
	}
	return guestID, nil
}

// chooseName handles POST /api/name.
func (m *APIModule) chooseName(c *fiber.Ctx) error {
	sess, currentGuestID, err := m.currentSession(c)
	if err != nil {
		return err
	}

	fields, err := decodeObject(c)
	if err != nil {
		return err
	}
	desiredName, err := stringField(fields, "desiredName")
	if err != nil {
		return err
	}

	guestID, chosen, err := m.lifecycle.ChooseName(c.UserContext(), currentGuestID, desiredName)
	if err != nil {
		return fromError(err, ErrorDatabaseInsertFailure)
	}

	if err := sess.Regenerate(); err != nil {
		return &APIError{Status: fiber.StatusInternalServerError, Code: ErrorDatabaseInsertFailure, Message: "failed to regenerate session", Err: err}
	}
	sess.Set(sessionGuestKey, guestID)
	if err := sess.Save(); err != nil {
		return &APIError{Status: fiber.StatusInternalServerError, Code: ErrorDatabaseInsertFailure, Message: "failed to save session", Err: err}
	}

	m.logger.Info("Guest chose name", "guestID", guestID, "name", chosen)
	return c.JSON(ChooseNameResponse{ChosenName: chosen})
}

// getName handles GET /api/name.
func (m *APIModule) getName(c *fiber.Ctx) error {
	sess, guestID, err := m.currentSession(c)
	if err != nil {
		return err
	}
	if guestID == "" {
		return c.JSON(NameResponse{})
	}

	name, err := m.lifecycle.GetName(c.UserContext(), guestID)
	if err != nil {
		return fromError(err, ErrorDatabaseFindFailure)
	}
	if name == "" {
		// The guest is gone, forget it so a new name can be chosen.
		sess.Delete(sessionGuestKey)
		if err := sess.Save(); err != nil {
			m.logger.Warn("Failed to save session", "error", err)
		}
		return c.JSON(NameResponse{})
	}
	return c.JSON(NameResponse{Name: &name})
}

// endSession handles DELETE /api/session.
func (m *APIModule) endSession(c *fiber.Ctx) error {
	sess, guestID, err := m.currentSession(c)
	if err != nil {
		return err
	}
	if guestID == "" {
		return fromError(chat.ErrNameNotChosen, ErrorNameNotChosen)
	}

	endErr := m.lifecycle.EndSession(c.UserContext(), guestID)
	if endErr != nil && !errors.Is(endErr, chat.ErrNameNotChosen) {
		return fromError(endErr, ErrorDatabaseDeleteFailure)
	}

	if err := sess.Destroy(); err != nil {
		return &APIError{Status: fiber.StatusInternalServerError, Code: ErrorSessionDestroyFailure, Message: "failed to destroy session", Err: err}
	}
	if endErr != nil {
		return fromError(endErr, ErrorDatabaseDeleteFailure)
	}

	m.logger.Info("Guest ended session", "guestID", guestID)
	return c.JSON(EmptyResponse{})
}

// listRooms handles GET /api/rooms.
func (m *APIModule) listRooms(c *fiber.Ctx) error {
	guestID, err := m.requireGuest(c)
	if err != nil {
		return err
	}

	rooms, err := m.lifecycle.ListPublicRooms(c.UserContext(), guestID)
	if err != nil {
		return fromError(err, ErrorDatabaseFindFailure)
	}
	response := PublicRoomsResponse{PublicRooms: rooms}
	if response.PublicRooms == nil {
		response.PublicRooms = []lifecycle.PublicRoom{}
	}
	return c.JSON(response)
}

// createRoom handles POST /api/room.
func (m *APIModule) createRoom(c *fiber.Ctx) error {
	guestID, err := m.requireGuest(c)
	if err != nil {
		return err
	}

	fields, err := decodeObject(c)
	if err != nil {
		return err
	}
	name, err := stringField(fields, "name")
	if err != nil {
		return err
	}
	isPrivate, err := boolField(fields, "isPrivate")
	if err != nil {
		return err
	}

	created, err := m.lifecycle.CreateRoom(c.UserContext(), guestID, name, isPrivate)
	if err != nil {
		return fromError(err, ErrorDatabaseInsertFailure)
	}
	return c.JSON(CreateRoomResponse{
		Name:      created.Name,
		IsPrivate: created.IsPrivate,
		JoinCode:  created.JoinCode,
	})
}

// getRoom handles GET /api/room.
func (m *APIModule) getRoom(c *fiber.Ctx) error {
	guestID, err := m.requireGuest(c)
	if err != nil {
		return err
	}

	view, err := m.lifecycle.GetRoom(c.UserContext(), guestID)
	if err != nil {
		return fromError(err, ErrorDatabaseFindFailure)
	}
	return c.JSON(RoomResponse{
		Name:      view.Name,
		IsPrivate: view.IsPrivate,
		JoinCode:  view.JoinCode,
		Guests:    view.Guests,
		Messages:  view.Messages,
	})
}

// joinRoom handles GET /api/room/:code.
func (m *APIModule) joinRoom(c *fiber.Ctx) error {
	guestID, err := m.requireGuest(c)
	if err != nil {
		return err
	}

	joined, err := m.lifecycle.JoinRoom(c.UserContext(), guestID, c.Params("code"))
	if err != nil {
		return fromError(err, ErrorDatabaseOperationFailure)
	}
	return c.JSON(JoinRoomResponse{Code: joined.Code})
}

// leaveRoom handles DELETE /api/room.
func (m *APIModule) leaveRoom(c *fiber.Ctx) error {
	guestID, err := m.requireGuest(c)
	if err != nil {
		return err
	}

	if err := m.lifecycle.LeaveRoom(c.UserContext(), guestID); err != nil {
		return fromError(err, ErrorDatabaseOperationFailure)
	}
	return c.JSON(EmptyResponse{})
}

// upload handles POST /api/upload.
func (m *APIModule) upload(c *fiber.Ctx) error {
	if _, err := m.requireGuest(c); err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return &APIError{Status: fiber.StatusBadRequest, Code: ErrorInvalidContentType, Message: "expected a multipart form", Err: err}
	}

	headers := form.File[uploadField]
	if len(headers) > attachments.MaxFiles {
		return fromError(fmt.Errorf("%w: %d, at most %d", attachments.ErrTooManyFiles, len(headers), attachments.MaxFiles), ErrorDatabaseInsertFailure)
	}

	uploads := make([]attachments.Upload, 0, len(headers))
	for _, header := range headers {
		if header.Size > attachments.MaxFileSize {
			return fromError(fmt.Errorf("%w: %s", attachments.ErrFileTooLarge, header.Filename), ErrorDatabaseInsertFailure)
		}
		file, err := header.Open()
		if err != nil {
			return &APIError{Status: fiber.StatusBadRequest, Code: ErrorPayloadMalformedValue, Message: "failed to read uploaded file", Err: err}
		}
		data, err := io.ReadAll(io.LimitReader(file, attachments.MaxFileSize+1))
		_ = file.Close()
		if err != nil {
			return &APIError{Status: fiber.StatusBadRequest, Code: ErrorPayloadMalformedValue, Message: "failed to read uploaded file", Err: err}
		}
		uploads = append(uploads, attachments.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get(fiber.HeaderContentType),
			Data:        data,
		})
	}

	stored, err := m.files.Store(c.UserContext(), uploads)
	if err != nil {
		return fromError(err, ErrorDatabaseInsertFailure)
	}
	return c.JSON(UploadResponse(stored))
}

// serveAttachment handles GET /attachments/:key.
func (m *APIModule) serveAttachment(c *fiber.Ctx) error {
	reader, info, err := m.files.Open(c.UserContext(), c.Params("key"))
	if err != nil {
		return fromError(err, ErrorDatabaseFindFailure)
	}

	c.Set(fiber.HeaderContentType, info.ContentType)
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	if info.Digest != "" {
		c.Set(fiber.HeaderETag, `"`+info.Digest+`"`)
	}
	return c.SendStream(reader, int(info.Size))
}

// requireChatUpgrade admits only websocket upgrades from guests in a room.
func (m *APIModule) requireChatUpgrade(c *fiber.Ctx) error {
	guestID, err := m.requireGuest(c)
	if err != nil {
		return err
	}

	roomID, err := m.lifecycle.CurrentRoom(c.UserContext(), guestID)
	if err != nil {
		return fromError(err, ErrorDatabaseFindFailure)
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return newAPIError(fiber.StatusUpgradeRequired, ErrorMustUpgradeToWebSocket, "must upgrade to websocket")
	}

	c.Locals(localGuestID, guestID)
	c.Locals(localRoomID, roomID)
	return c.Next()
}

// handleChat runs a chat session on an accepted websocket.
func (m *APIModule) handleChat(conn *websocket.Conn) {
	guestID, _ := conn.Locals(localGuestID).(string)
	roomID, _ := conn.Locals(localRoomID).(string)

	s := chatsession.New(conn, guestID, roomID, m.registry, m.lifecycle, m.cfg.Chat, m.logger)
	if !m.track(s) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(broadcast.CloseGoingAway, broadcast.ReasonShutdown))
		_ = conn.Close()
		return
	}
	defer m.untrack(s)

	s.Run(context.Background())
}

// decodeObject reads a JSON object request body.
func decodeObject(c *fiber.Ctx) (map[string]json.RawMessage, error) {
	if !c.Is("json") {
		return nil, newAPIError(fiber.StatusBadRequest, ErrorInvalidContentType, "content type must be application/json")
	}
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 {
		return nil, newAPIError(fiber.StatusBadRequest, ErrorMissingPayload, "request body is empty")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, newAPIError(fiber.StatusBadRequest, ErrorPayloadMalformedValue, "request body must be a JSON object")
	}
	return fields, nil
}

func stringField(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok {
		return "", newAPIError(fiber.StatusBadRequest, ErrorPayloadMissingProperty, "missing property "+name)
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", newAPIError(fiber.StatusBadRequest, ErrorPayloadMalformedValue, name+" must be a string")
	}
	return value, nil
}

func boolField(fields map[string]json.RawMessage, name string) (bool, error) {
	raw, ok := fields[name]
	if !ok {
		return false, newAPIError(fiber.StatusBadRequest, ErrorPayloadMissingProperty, "missing property "+name)
	}
	var value bool
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, newAPIError(fiber.StatusBadRequest, ErrorPayloadMalformedValue, name+" must be a boolean")
	}
	return value, nil
}
