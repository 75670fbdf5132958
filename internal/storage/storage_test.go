package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/rental-checkout/internal/models"
)

func setupRedisKV(t *testing.T) (*RedisKV, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisKV(client), mr
}

func TestMemoryKV_ExpiresEntries(t *testing.T) {
	kv := NewMemoryKV()
	now := time.Now()
	kv.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "a", []byte("1"), time.Minute))
	b, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(b))

	now = now.Add(2 * time.Minute)
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryKV_ZeroTTLNeverExpires(t *testing.T) {
	kv := NewMemoryKV()
	now := time.Now()
	kv.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "a", []byte("1"), 0))
	now = now.Add(24 * time.Hour)
	_, err := kv.Get(ctx, "a")
	assert.NoError(t, err)
}

func TestRedisKV_RoundTripAndTTL(t *testing.T) {
	kv, mr := setupRedisKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", []byte("v"), time.Hour))
	assert.True(t, mr.Exists("k"))
	b, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(b))

	mr.FastForward(2 * time.Hour)
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisKV_Delete(t *testing.T) {
	kv, mr := setupRedisKV(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, kv.Delete(ctx, "k"))
	assert.False(t, mr.Exists("k"))
}

func TestScope_NamespacesDoNotOverlap(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()
	a := NewScope(kv, "handoff", time.Hour)
	b := NewScope(kv, "recall", time.Hour)

	require.NoError(t, a.Write(ctx, "s1", map[string]string{"x": "1"}))
	var out map[string]string
	err := b.Read(ctx, "s1", &out)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, a.Read(ctx, "s1", &out))
	assert.Equal(t, "1", out["x"])
}

func TestScope_CorruptValue(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()
	s := NewScope(kv, "handoff", time.Hour)
	require.NoError(t, kv.Set(ctx, "handoff:s1", []byte("{not json"), 0))

	var out map[string]any
	err := s.Read(ctx, "s1", &out)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestKVContactStore_ExpiredSaveDeletes(t *testing.T) {
	kv := NewMemoryKV()
	store := NewKVContactStore(kv)
	ctx := context.Background()
	c := models.ContactInfo{FullName: "Ada", Email: "ada@example.com", PhoneNumber: "08012345678"}

	require.NoError(t, store.SaveContact(ctx, "v1", c, time.Now().Add(time.Hour)))
	got, err := store.LoadContact(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, c, got)

	require.NoError(t, store.SaveContact(ctx, "v1", c, time.Now().Add(-time.Second)))
	_, err = store.LoadContact(ctx, "v1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresContactStore_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresContactStoreFromDB(db)

	mock.ExpectExec("INSERT INTO remembered_contacts").
		WithArgs("v1", "Ada", "ada@example.com", "08012345678", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.SaveContact(context.Background(), "v1", models.ContactInfo{FullName: "Ada", Email: "ada@example.com", PhoneNumber: "08012345678"}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresContactStore_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresContactStoreFromDB(db)

	rows := sqlmock.NewRows([]string{"full_name", "email", "phone_number", "secondary_phone_number"}).
		AddRow("Ada", "ada@example.com", "08012345678", "")
	mock.ExpectQuery("SELECT full_name, email, phone_number, secondary_phone_number FROM remembered_contacts").
		WithArgs("v1").
		WillReturnRows(rows)

	c, err := store.LoadContact(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", c.FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresContactStore_LoadMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresContactStoreFromDB(db)

	mock.ExpectQuery("SELECT full_name").
		WithArgs("v2").
		WillReturnRows(sqlmock.NewRows([]string{"full_name", "email", "phone_number", "secondary_phone_number"}))

	_, err = store.LoadContact(context.Background(), "v2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresContactStore_LoadError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresContactStoreFromDB(db)

	mock.ExpectQuery("SELECT full_name").WillReturnError(errors.New("boom"))
	_, err = store.LoadContact(context.Background(), "v3")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
