package attachments

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viral32111/LiveChat/events"
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

// createTestModule starts a mono application with an in-memory attachments
// bucket and returns a started module wired to it.
func createTestModule(t *testing.T) *Module {
	t.Helper()

	app, err := mono.NewMonoApplication(
		mono.WithLogLevel(mono.LogLevelError),
	)
	require.NoError(t, err)

	plugin, err := fsjetstream.New(fsjetstream.Config{
		Buckets: []fsjetstream.BucketConfig{
			{
				Name:        BucketName,
				Description: "Test attachments",
				MaxBytes:    64 * 1024 * 1024,
				Storage:     fsjetstream.MemoryStorage,
			},
		},
	})
	require.NoError(t, err)
	require.NoError(t, app.RegisterPlugin(plugin, "storage"))
	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(func() {
		_ = app.Stop(context.Background())
	})

	module := NewModule(&mockLogger{})
	module.SetPlugin("storage", plugin)
	require.NoError(t, module.Start(context.Background()))
	return module
}

func TestStoreAndOpen(t *testing.T) {
	ctx := context.Background()
	service := createTestModule(t).Service()

	stored, err := service.Store(ctx, []Upload{
		{Filename: "cat.PNG", ContentType: "image/png", Data: []byte("png-bytes")},
		{Filename: "notes", ContentType: "text/plain", Data: []byte("hello")},
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)

	assert.Equal(t, "image/png", stored[0].Type)
	assert.True(t, strings.HasPrefix(stored[0].Path, PathPrefix))
	assert.True(t, strings.HasSuffix(stored[0].Path, ".png"))
	assert.Equal(t, "text/plain", stored[1].Type)

	key, err := KeyFromPath(stored[0].Path)
	require.NoError(t, err)

	reader, info, err := service.Open(ctx, key)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, "cat.PNG", info.OriginalName)
	assert.EqualValues(t, len("png-bytes"), info.Size)
}

func TestStore_Rejections(t *testing.T) {
	service := createTestModule(t).Service()
	small := []byte("x")

	tests := []struct {
		name    string
		uploads []Upload
		wantErr error
	}{
		{"no files", nil, ErrNoFiles},
		{"too many files", make([]Upload, MaxFiles+1), ErrTooManyFiles},
		{"too large", []Upload{{Filename: "big.txt", ContentType: "text/plain", Data: bytes.Repeat(small, MaxFileSize+1)}}, ErrFileTooLarge},
		{"executable", []Upload{{Filename: "setup.exe", ContentType: "image/png", Data: small}}, ErrFileRejected},
		{"script by name", []Upload{{Filename: "run.SH", ContentType: "text/plain", Data: small}}, ErrFileRejected},
		{"raw binary", []Upload{{Filename: "blob", ContentType: "application/octet-stream", Data: small}}, ErrFileRejected},
		{"missing content type is raw binary", []Upload{{Filename: "blob", Data: small}}, ErrFileRejected},
		{"one bad file fails all", []Upload{
			{Filename: "ok.png", ContentType: "image/png", Data: small},
			{Filename: "lib.dll", ContentType: "image/png", Data: small},
		}, ErrFileRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Store(context.Background(), tt.uploads)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	service := createTestModule(t).Service()

	_, _, err := service.Open(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, _, err = service.Open(context.Background(), "4b1f9c3e-1d2a-4c7e-9f0b-2a6d8e5c1b3f.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	service := createTestModule(t).Service()

	stored, err := service.Store(ctx, []Upload{
		{Filename: "a.png", ContentType: "image/png", Data: []byte("a")},
		{Filename: "b.png", ContentType: "image/png", Data: []byte("b")},
	})
	require.NoError(t, err)

	deleted, err := service.Delete(ctx, []string{
		stored[0].Path,
		stored[1].Path,
		"https://example.com/elsewhere.png",
		PathPrefix + "4b1f9c3e-1d2a-4c7e-9f0b-2a6d8e5c1b3f.png",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	key, err := KeyFromPath(stored[0].Path)
	require.NoError(t, err)
	_, _, err = service.Open(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHandleRoomDeleted(t *testing.T) {
	ctx := context.Background()
	module := createTestModule(t)

	stored, err := module.Service().Store(ctx, []Upload{
		{Filename: "a.png", ContentType: "image/png", Data: []byte("a")},
	})
	require.NoError(t, err)

	err = module.handleRoomDeleted(ctx, events.RoomDeletedEvent{
		RoomID:          "room-1",
		AttachmentPaths: []string{stored[0].Path},
	}, nil)
	require.NoError(t, err)

	key, err := KeyFromPath(stored[0].Path)
	require.NoError(t, err)
	_, _, err = module.Service().Open(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestModule_StartWithoutPlugin(t *testing.T) {
	module := NewModule(&mockLogger{})
	assert.Error(t, module.Start(context.Background()))
}

func TestRejected(t *testing.T) {
	tests := []struct {
		filename    string
		contentType string
		want        bool
	}{
		{"photo.jpg", "image/jpeg", false},
		{"clip.mp4", "video/mp4", false},
		{"readme.txt", "text/plain; charset=utf-8", false},
		{"tool.exe", "image/png", true},
		{"LIB.DLL", "text/plain", true},
		{"start.bat", "text/plain", true},
		{"start.cmd", "text/plain", true},
		{"profile.bash", "text/plain", true},
		{"script", "application/x-sh", true},
		{"legacy", "application/x-msdownload", true},
		{"unknown", "application/octet-stream", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, rejected(tt.filename, tt.contentType))
		})
	}
}

func TestExtensionOf(t *testing.T) {
	tests := map[string]string{
		"cat.png":          ".png",
		"CAT.JPEG":         ".jpeg",
		"archive.tar.gz":   ".gz",
		"noextension":      "",
		"dir/../evil.png":  ".png",
		"weird.p%g":        "",
		"trailingdot.":     "",
		"long." + strings.Repeat("a", 20): "",
	}

	for input, want := range tests {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, want, extensionOf(input))
		})
	}
}

func TestKeyFromPath(t *testing.T) {
	valid := PathPrefix + "4b1f9c3e-1d2a-4c7e-9f0b-2a6d8e5c1b3f.png"
	key, err := KeyFromPath(valid)
	require.NoError(t, err)
	assert.Equal(t, "4b1f9c3e-1d2a-4c7e-9f0b-2a6d8e5c1b3f.png", key)

	for _, path := range []string{
		"/elsewhere/4b1f9c3e-1d2a-4c7e-9f0b-2a6d8e5c1b3f.png",
		PathPrefix + "not-a-uuid.png",
		PathPrefix + "4b1f9c3e-1d2a-4c7e-9f0b-2a6d8e5c1b3f.p/g",
	} {
		_, err := KeyFromPath(path)
		assert.ErrorIs(t, err, ErrInvalidKey, path)
	}
}
