package sessions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rebeliceyang/lazymy/internal/models"
)

func newTestStore(t *testing.T) (*Store, string, keyring.Keyring) {
	t.Helper()
	dir := t.TempDir()
	ring := keyring.NewArrayKeyring(nil)
	store, err := NewStore(dir, NewPasswordStoreWithKeyring(ring), nil)
	require.NoError(t, err)
	return store, dir, ring
}

func TestStore_CreateKeepsPasswordOutOfFile(t *testing.T) {
	store, dir, ring := newTestStore(t)

	cfg := models.NewConnectionConfig()
	cfg.Name = "local"
	cfg.Password = "s3cret"
	created, err := store.Create(cfg)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", created.Password)

	path := filepath.Join(dir, FileName)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "s3cret")

	var onDisk []models.ConnectionConfig
	require.NoError(t, yaml.Unmarshal(data, &onDisk))
	require.Len(t, onDisk, 1)
	assert.Equal(t, "local", onDisk[0].Name)
	assert.Equal(t, "localhost", onDisk[0].Host)
	assert.Equal(t, 3306, onDisk[0].Port)

	item, err := ring.Get(cfg.UUID)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(item.Data))
}

func TestStore_Reload(t *testing.T) {
	store, dir, ring := newTestStore(t)

	cfg := models.NewConnectionConfig()
	cfg.Password = "pw"
	_, err := store.Create(cfg)
	require.NoError(t, err)

	reopened, err := NewStore(dir, NewPasswordStoreWithKeyring(ring), nil)
	require.NoError(t, err)
	require.Equal(t, 1, reopened.Len())
	assert.Empty(t, reopened.List()[0].Password)

	got, err := reopened.Get(cfg.UUID)
	require.NoError(t, err)
	assert.Equal(t, "pw", got.Password)
	assert.Equal(t, "Unnamed", got.Name)
}

func TestStore_CreateAssignsUUID(t *testing.T) {
	store, _, _ := newTestStore(t)

	created, err := store.Create(models.ConnectionConfig{Name: "x", Host: "db", Port: 3307})
	require.NoError(t, err)
	assert.NotEmpty(t, created.UUID)

	_, err = store.Create(created)
	assert.Error(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestStore_UpdateAndDelete(t *testing.T) {
	store, _, ring := newTestStore(t)

	cfg := models.NewConnectionConfig()
	cfg.Password = "old"
	_, err := store.Create(cfg)
	require.NoError(t, err)

	cfg.Host = "db.internal"
	cfg.Password = "new"
	require.NoError(t, store.Update(cfg))

	got, err := store.Get(cfg.UUID)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", got.Host)
	assert.Equal(t, "new", got.Password)

	require.NoError(t, store.Delete(cfg.UUID))
	assert.Equal(t, 0, store.Len())
	_, err = ring.Get(cfg.UUID)
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)

	var nf *models.NotFoundError
	assert.ErrorAs(t, store.Delete(cfg.UUID), &nf)
	assert.ErrorAs(t, store.Update(cfg), &nf)
	_, err = store.Get(cfg.UUID)
	assert.ErrorAs(t, err, &nf)
}

func TestStore_WithoutPasswordStore(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil, nil)
	require.NoError(t, err)

	cfg := models.NewConnectionConfig()
	cfg.Password = "pw"
	_, err = store.Create(cfg)
	require.NoError(t, err)

	got, err := store.Get(cfg.UUID)
	require.NoError(t, err)
	assert.Empty(t, got.Password)
}

func TestStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not yaml"), 0600))

	_, err := NewStore(dir, nil, nil)
	assert.Error(t, err)
}

func TestPasswordStore(t *testing.T) {
	ps := NewPasswordStoreWithKeyring(keyring.NewArrayKeyring(nil))

	_, err := ps.Get("missing")
	assert.ErrorIs(t, err, ErrPasswordNotFound)

	require.NoError(t, ps.Save(models.ConnectionConfig{UUID: "u1"}))
	_, err = ps.Get("u1")
	assert.ErrorIs(t, err, ErrPasswordNotFound)

	require.NoError(t, ps.Save(models.ConnectionConfig{UUID: "u1", Password: "pw"}))
	pw, err := ps.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, "pw", pw)

	require.NoError(t, ps.Delete("u1"))
	require.NoError(t, ps.Delete("u1"))
}

func TestParseMachineID(t *testing.T) {
	id, err := parseMachineID("  | \"IOPlatformUUID\" = \"ABC-123\"\n", "IOPlatformUUID")
	require.NoError(t, err)
	assert.Equal(t, "ABC-123", id)

	id, err = parseMachineID("UUID\r\n4C4C4544-0042\r\n", "")
	require.NoError(t, err)
	assert.Equal(t, "4C4C4544-0042", id)
}
