package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viral32111/LiveChat/domain/chat"
	"github.com/viral32111/LiveChat/domain/room"
	"github.com/viral32111/LiveChat/modules/attachments"
	"github.com/viral32111/LiveChat/modules/broadcast"
	"github.com/viral32111/LiveChat/modules/lifecycle"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)          {}
func (m *mockLogger) Info(msg string, args ...any)           {}
func (m *mockLogger) Warn(msg string, args ...any)           {}
func (m *mockLogger) Error(msg string, args ...any)          {}
func (m *mockLogger) With(args ...any) types.Logger          { return m }
func (m *mockLogger) WithError(err error) types.Logger       { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

const (
	testRoomID   = "room-1"
	testRoomName = "Lounge"
	testJoinCode = "AABBCC"
)

// fakeLifecycle is an in-memory LifecyclePort with a single room.
type fakeLifecycle struct {
	mu        sync.Mutex
	guests    map[string]string
	members   map[string]string
	nextID    int
	err       error
	roomViews int
}

func newFakeLifecycle() *fakeLifecycle {
	return &fakeLifecycle{
		guests:  make(map[string]string),
		members: make(map[string]string),
	}
}

func (f *fakeLifecycle) failure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeLifecycle) guest(guestID string) error {
	if _, ok := f.guests[guestID]; !ok {
		return chat.ErrNameNotChosen
	}
	return nil
}

func (f *fakeLifecycle) ChooseName(_ context.Context, currentGuestID, name string) (string, string, error) {
	if err := f.failure(); err != nil {
		return "", "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.guests[currentGuestID]; ok {
		return "", "", chat.ErrNameAlreadyChosen
	}
	if len(name) < 2 {
		return "", "", chat.ErrNameInvalid
	}
	f.nextID++
	id := "guest-" + string(rune('0'+f.nextID))
	f.guests[id] = name
	return id, name, nil
}

func (f *fakeLifecycle) GetName(_ context.Context, guestID string) (string, error) {
	if err := f.failure(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.guests[guestID], nil
}

func (f *fakeLifecycle) CreateRoom(_ context.Context, guestID, name string, isPrivate bool) (*lifecycle.CreatedRoom, error) {
	if err := f.failure(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guest(guestID); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, chat.ErrRoomNameInvalid
	}
	f.members[guestID] = testRoomID
	return &lifecycle.CreatedRoom{ID: testRoomID, Name: name, IsPrivate: isPrivate, JoinCode: testJoinCode}, nil
}

func (f *fakeLifecycle) JoinRoom(_ context.Context, guestID, code string) (*lifecycle.JoinedRoom, error) {
	if err := f.failure(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guest(guestID); err != nil {
		return nil, err
	}
	if !strings.EqualFold(code, testJoinCode) {
		return nil, chat.ErrRoomNotFound
	}
	f.members[guestID] = testRoomID
	return &lifecycle.JoinedRoom{ID: testRoomID, Name: testRoomName, Code: testJoinCode}, nil
}

func (f *fakeLifecycle) LeaveRoom(_ context.Context, guestID string) error {
	if err := f.failure(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[guestID]; !ok {
		return chat.ErrRoomNotJoined
	}
	delete(f.members, guestID)
	return nil
}

func (f *fakeLifecycle) Disconnect(context.Context, string, string) error {
	return nil
}

func (f *fakeLifecycle) EndSession(_ context.Context, guestID string) error {
	if err := f.failure(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guest(guestID); err != nil {
		return err
	}
	delete(f.guests, guestID)
	delete(f.members, guestID)
	return nil
}

func (f *fakeLifecycle) GetRoom(_ context.Context, guestID string) (*lifecycle.RoomView, error) {
	if err := f.failure(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guest(guestID); err != nil {
		return nil, err
	}
	roomID, ok := f.members[guestID]
	if !ok {
		return nil, chat.ErrRoomNotJoined
	}
	f.roomViews++
	return &lifecycle.RoomView{
		ID:       roomID,
		Name:     testRoomName,
		Guests:   []broadcast.GuestPayload{{Name: f.guests[guestID], IsRoomCreator: true}},
		Messages: []broadcast.ChatMessagePayload{},
	}, nil
}

func (f *fakeLifecycle) CurrentRoom(_ context.Context, guestID string) (string, error) {
	if err := f.failure(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guest(guestID); err != nil {
		return "", err
	}
	roomID, ok := f.members[guestID]
	if !ok {
		return "", chat.ErrRoomNotJoined
	}
	return roomID, nil
}

func (f *fakeLifecycle) roomViewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roomViews
}

func (f *fakeLifecycle) ListPublicRooms(_ context.Context, guestID string) ([]lifecycle.PublicRoom, error) {
	if err := f.failure(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guest(guestID); err != nil {
		return nil, err
	}
	if len(f.members) == 0 {
		return nil, nil
	}
	return []lifecycle.PublicRoom{{Name: testRoomName, GuestCount: len(f.members), JoinCode: testJoinCode}}, nil
}

func (f *fakeLifecycle) PostMessage(context.Context, string, string, string, []room.Attachment) (string, error) {
	return "message-1", nil
}

// fakeFiles is an in-memory AttachmentStore.
type fakeFiles struct {
	mu      sync.Mutex
	uploads []attachments.Upload
	files   map[string][]byte
}

func (f *fakeFiles) Store(_ context.Context, uploads []attachments.Upload) ([]room.Attachment, error) {
	if len(uploads) == 0 {
		return nil, attachments.ErrNoFiles
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]room.Attachment, 0, len(uploads))
	for _, u := range uploads {
		f.uploads = append(f.uploads, u)
		out = append(out, room.Attachment{Type: u.ContentType, Path: attachments.PathPrefix + u.Filename})
	}
	return out, nil
}

func (f *fakeFiles) Open(_ context.Context, key string) (io.ReadCloser, *attachments.FileInfo, error) {
	data, ok := f.files[key]
	if !ok {
		return nil, nil, attachments.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), &attachments.FileInfo{
		Key:         key,
		ContentType: "image/png",
		Size:        int64(len(data)),
		Digest:      "SHA-256=abc",
	}, nil
}

type testEnv struct {
	module    *APIModule
	lifecycle *fakeLifecycle
	files     *fakeFiles
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		lifecycle: newFakeLifecycle(),
		files:     &fakeFiles{files: map[string][]byte{"cat.png": []byte("png-bytes")}},
	}
	m := NewModule(Config{}, &mockLogger{})
	m.lifecycle = env.lifecycle
	m.registry = broadcast.NewRegistry(&mockLogger{})
	m.files = env.files
	m.setupApp()
	env.module = m
	return env
}

func (e *testEnv) do(t *testing.T, method, path, contentType string, body io.Reader, cookie *http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := e.module.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) doJSON(t *testing.T, method, path, body string, cookie *http.Cookie) *http.Response {
	t.Helper()
	return e.do(t, method, path, "application/json", strings.NewReader(body), cookie)
}

// chooseName picks a name and returns the session cookie.
func (e *testEnv) chooseName(t *testing.T, name string) *http.Cookie {
	t.Helper()
	resp := e.doJSON(t, http.MethodPost, "/api/name", `{"desiredName":"`+name+`"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie, "session cookie not set")
	return cookie
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	return nil
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func requireError(t *testing.T, resp *http.Response, status int, code ErrorCode) {
	t.Helper()
	assert.Equal(t, status, resp.StatusCode)
	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, code, body.Error)
	assert.NotEmpty(t, body.Message)
}

func TestChooseName(t *testing.T) {
	env := newTestEnv(t)

	resp := env.doJSON(t, http.MethodPost, "/api/name", `{"desiredName":"Alice"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, "Alice", decodeBody[ChooseNameResponse](t, resp).ChosenName)

	resp = env.do(t, http.MethodGet, "/api/name", "", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	name := decodeBody[NameResponse](t, resp).Name
	require.NotNil(t, name)
	assert.Equal(t, "Alice", *name)

	resp = env.doJSON(t, http.MethodPost, "/api/name", `{"desiredName":"Alicia"}`, cookie)
	requireError(t, resp, http.StatusBadRequest, ErrorNameAlreadyChosen)
}

func TestChooseName_PayloadErrors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantCode    ErrorCode
	}{
		{"not json", "text/plain", `desiredName=Alice`, ErrorInvalidContentType},
		{"empty body", "application/json", ``, ErrorMissingPayload},
		{"missing property", "application/json", `{"name":"Alice"}`, ErrorPayloadMissingProperty},
		{"not an object", "application/json", `["Alice"]`, ErrorPayloadMalformedValue},
		{"wrong type", "application/json", `{"desiredName":42}`, ErrorPayloadMalformedValue},
		{"invalid name", "application/json", `{"desiredName":"A"}`, ErrorPayloadMalformedValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			resp := env.do(t, http.MethodPost, "/api/name", tt.contentType, strings.NewReader(tt.body), nil)
			requireError(t, resp, http.StatusBadRequest, tt.wantCode)
		})
	}
}

func TestGetName_WithoutSession(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/name", "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	value, ok := body["name"]
	assert.True(t, ok)
	assert.Nil(t, value)
}

func TestRoutes_RequireName(t *testing.T) {
	env := newTestEnv(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/rooms"},
		{http.MethodPost, "/api/room"},
		{http.MethodGet, "/api/room"},
		{http.MethodGet, "/api/room/AABBCC"},
		{http.MethodDelete, "/api/room"},
		{http.MethodDelete, "/api/session"},
		{http.MethodPost, "/api/upload"},
		{http.MethodGet, "/api/chat"},
	}

	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			resp := env.doJSON(t, r.method, r.path, `{}`, nil)
			requireError(t, resp, http.StatusUnauthorized, ErrorNameNotChosen)
		})
	}
}

func TestRoomFlow(t *testing.T) {
	env := newTestEnv(t)
	creator := env.chooseName(t, "Alice")
	joiner := env.chooseName(t, "Bob")

	resp := env.doJSON(t, http.MethodPost, "/api/room", `{"name":"Lounge","isPrivate":false}`, creator)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decodeBody[CreateRoomResponse](t, resp)
	assert.Equal(t, CreateRoomResponse{Name: "Lounge", IsPrivate: false, JoinCode: testJoinCode}, created)

	resp = env.do(t, http.MethodGet, "/api/rooms", "", nil, joiner)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rooms := decodeBody[PublicRoomsResponse](t, resp)
	require.Len(t, rooms.PublicRooms, 1)
	assert.Equal(t, testJoinCode, rooms.PublicRooms[0].JoinCode)

	resp = env.do(t, http.MethodGet, "/api/room/aabbcc", "", nil, joiner)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testJoinCode, decodeBody[JoinRoomResponse](t, resp).Code)

	resp = env.do(t, http.MethodGet, "/api/room", "", nil, joiner)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decodeBody[RoomResponse](t, resp)
	assert.Equal(t, testRoomName, view.Name)
	assert.Len(t, view.Guests, 1)

	resp = env.do(t, http.MethodDelete, "/api/room", "", nil, joiner)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/room", "", nil, joiner)
	requireError(t, resp, http.StatusForbidden, ErrorRoomNotJoined)

	resp = env.do(t, http.MethodGet, "/api/room", "", nil, joiner)
	requireError(t, resp, http.StatusForbidden, ErrorRoomNotJoined)

	resp = env.do(t, http.MethodGet, "/api/room/ZZZZZZ", "", nil, joiner)
	requireError(t, resp, http.StatusNotFound, ErrorDatabaseFindFailure)
}

func TestGetRooms_EmptyDirectory(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.chooseName(t, "Alice")

	resp := env.do(t, http.MethodGet, "/api/rooms", "", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"publicRooms":[]}`, string(body))
}

func TestCreateRoom_PayloadErrors(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.chooseName(t, "Alice")

	resp := env.doJSON(t, http.MethodPost, "/api/room", `{"name":"Lounge"}`, cookie)
	requireError(t, resp, http.StatusBadRequest, ErrorPayloadMissingProperty)

	resp = env.doJSON(t, http.MethodPost, "/api/room", `{"name":"Lounge","isPrivate":"yes"}`, cookie)
	requireError(t, resp, http.StatusBadRequest, ErrorPayloadMalformedValue)

	resp = env.doJSON(t, http.MethodPost, "/api/room", `{"name":"","isPrivate":true}`, cookie)
	requireError(t, resp, http.StatusBadRequest, ErrorPayloadMalformedValue)
}

func TestStoreFailures(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.chooseName(t, "Alice")

	env.lifecycle.mu.Lock()
	env.lifecycle.err = chat.StoreFailure("query", errors.New("disk I/O error"))
	env.lifecycle.mu.Unlock()

	tests := []struct {
		method   string
		path     string
		body     string
		wantCode ErrorCode
	}{
		{http.MethodPost, "/api/room", `{"name":"Lounge","isPrivate":false}`, ErrorDatabaseInsertFailure},
		{http.MethodGet, "/api/rooms", ``, ErrorDatabaseFindFailure},
		{http.MethodGet, "/api/room", ``, ErrorDatabaseFindFailure},
		{http.MethodGet, "/api/room/AABBCC", ``, ErrorDatabaseOperationFailure},
		{http.MethodDelete, "/api/session", ``, ErrorDatabaseDeleteFailure},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := env.doJSON(t, tt.method, tt.path, tt.body, cookie)
			requireError(t, resp, http.StatusInternalServerError, tt.wantCode)
		})
	}
}

func TestEndSession(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.chooseName(t, "Alice")

	resp := env.do(t, http.MethodDelete, "/api/session", "", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/name", "", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, decodeBody[NameResponse](t, resp).Name)

	resp = env.do(t, http.MethodGet, "/api/rooms", "", nil, cookie)
	requireError(t, resp, http.StatusUnauthorized, ErrorNameNotChosen)
}

func TestChat_Gates(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.chooseName(t, "Alice")

	resp := env.do(t, http.MethodGet, "/api/chat", "", nil, cookie)
	requireError(t, resp, http.StatusForbidden, ErrorRoomNotJoined)

	resp = env.do(t, http.MethodGet, "/api/room/AABBCC", "", nil, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/chat", "", nil, cookie)
	requireError(t, resp, http.StatusUpgradeRequired, ErrorMustUpgradeToWebSocket)

	assert.Zero(t, env.lifecycle.roomViewCount(), "the gate must not load the room view")
}

func multipartBody(t *testing.T, files map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, contentType := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="`+uploadField+`"; filename="`+name+`"`)
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte("data:" + name))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.chooseName(t, "Alice")

	body, contentType := multipartBody(t, map[string]string{
		"cat.png":   "image/png",
		"notes.txt": "text/plain",
	})
	resp := env.do(t, http.MethodPost, "/api/upload", contentType, body, cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stored := decodeBody[[]room.Attachment](t, resp)
	assert.Len(t, stored, 2)

	env.files.mu.Lock()
	uploads := env.files.uploads
	env.files.mu.Unlock()
	require.Len(t, uploads, 2)
	for _, u := range uploads {
		assert.Equal(t, "data:"+u.Filename, string(u.Data))
		assert.NotEmpty(t, u.ContentType)
	}
}

func TestUpload_Errors(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.chooseName(t, "Alice")

	body, contentType := multipartBody(t, nil)
	resp := env.do(t, http.MethodPost, "/api/upload", contentType, body, cookie)
	requireError(t, resp, http.StatusBadRequest, ErrorNoFilesUploaded)

	resp = env.doJSON(t, http.MethodPost, "/api/upload", `{}`, cookie)
	requireError(t, resp, http.StatusBadRequest, ErrorInvalidContentType)

	tooMany := make(map[string]string)
	for _, name := range []string{"a.png", "b.png", "c.png", "d.png", "e.png", "f.png"} {
		tooMany[name] = "image/png"
	}
	body, contentType = multipartBody(t, tooMany)
	resp = env.do(t, http.MethodPost, "/api/upload", contentType, body, cookie)
	requireError(t, resp, http.StatusBadRequest, ErrorPayloadMalformedValue)
}

func TestServeAttachment(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, attachments.PathPrefix+"cat.png", "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	resp = env.do(t, http.MethodGet, attachments.PathPrefix+"missing.png", "", nil, nil)
	requireError(t, resp, http.StatusNotFound, ErrorNoData)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/nothing", "", nil, nil)
	requireError(t, resp, http.StatusNotFound, ErrorNoData)
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/health", "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decodeBody[HealthResponse](t, resp).Status)
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
	}{
		{"name already chosen", chat.ErrNameAlreadyChosen, http.StatusBadRequest, ErrorNameAlreadyChosen},
		{"name not chosen", chat.ErrNameNotChosen, http.StatusUnauthorized, ErrorNameNotChosen},
		{"room not joined", chat.ErrRoomNotJoined, http.StatusForbidden, ErrorRoomNotJoined},
		{"validation", chat.ErrContentInvalid, http.StatusBadRequest, ErrorPayloadMalformedValue},
		{"room not found", chat.ErrRoomNotFound, http.StatusNotFound, ErrorDatabaseFindFailure},
		{"store failure", chat.StoreFailure("insert", errors.New("locked")), http.StatusInternalServerError, ErrorDatabaseInsertFailure},
		{"transport failure", errors.New("no responders"), http.StatusInternalServerError, ErrorDatabaseInsertFailure},
		{"no files", attachments.ErrNoFiles, http.StatusBadRequest, ErrorNoFilesUploaded},
		{"rejected file", attachments.ErrFileRejected, http.StatusBadRequest, ErrorPayloadMalformedValue},
		{"missing attachment", attachments.ErrNotFound, http.StatusNotFound, ErrorNoData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := fromError(tt.err, ErrorDatabaseInsertFailure)
			assert.Equal(t, tt.wantStatus, apiErr.Status)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestFromError_HidesInternalDetails(t *testing.T) {
	apiErr := fromError(errors.New("dial tcp 10.0.0.5:4222: refused"), ErrorDatabaseOperationFailure)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), apiErr.Message)
	assert.ErrorContains(t, apiErr, "refused")
}

func TestParseRedisAddr(t *testing.T) {
	tests := []struct {
		addr     string
		wantHost string
		wantPort int
	}{
		{"localhost:6380", "localhost", 6380},
		{":6379", "127.0.0.1", 6379},
		{"redis", "127.0.0.1", 6379},
		{"redis:port", "redis", 6379},
		{"", "127.0.0.1", 6379},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			host, port := parseRedisAddr(tt.addr)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}

func TestModule_StartRequiresDependencies(t *testing.T) {
	m := NewModule(Config{}, &mockLogger{})
	assert.ErrorContains(t, m.Start(context.Background()), "lifecycle")

	m.lifecycle = newFakeLifecycle()
	assert.ErrorContains(t, m.Start(context.Background()), "broadcast")

	m.SetBroadcastModule(broadcast.NewModule(&mockLogger{}))
	assert.ErrorContains(t, m.Start(context.Background()), "attachments")
}

func TestModule_StopWithoutStart(t *testing.T) {
	m := NewModule(Config{}, &mockLogger{})
	assert.NoError(t, m.Stop(context.Background()))
	assert.False(t, m.Health(context.Background()).Healthy)
}
