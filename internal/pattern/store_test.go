package pattern

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writePartitionFile(t *testing.T, path string, pf partitionFile) {
	t.Helper()
	data, err := json.Marshal(pf)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestLoadInstallsDefaultsWhenEmpty(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, store.Load(context.Background()))

	assert.Greater(t, store.Count(), 0, "store must never be empty after Load")

	p, err := store.Get("builtin.docker_permission_denied")
	require.NoError(t, err)
	assert.Equal(t, "permission", p.Category)
	assert.Equal(t, SourceManual, p.Source)
}

func TestLoadMergesPartitions(t *testing.T) {
	dir := t.TempDir()
	writePartitionFile(t, filepath.Join(dir, builtinDirName, "docker.json"), partitionFile{
		Name:     "docker",
		Patterns: []*Pattern{validPattern("builtin.a")},
	})
	writePartitionFile(t, filepath.Join(dir, builtinDirName, "network.json"), partitionFile{
		Name:     "network",
		Patterns: []*Pattern{validPattern("builtin.b")},
	})
	writePartitionFile(t, filepath.Join(dir, userFileName), partitionFile{
		Patterns: []*Pattern{validPattern("user.a")},
	})
	writePartitionFile(t, filepath.Join(dir, learnedFileName), partitionFile{
		Patterns: []*Pattern{validPattern("learned.a")},
	})

	store := NewStore(dir, zap.NewNop())
	require.NoError(t, store.Load(context.Background()))

	assert.Equal(t, 4, store.Count())

	learned, err := store.Get("learned.a")
	require.NoError(t, err)
	assert.True(t, learned.AutoGenerated)

	user, err := store.Get("user.a")
	require.NoError(t, err)
	assert.True(t, user.UserDefined)
}

func TestLoadSkipsInvalidEntries(t *testing.T) {
	dir := t.TempDir()
	bad := validPattern("bad.regex")
	bad.RegexPatterns = []string{`([unclosed`}
	writePartitionFile(t, filepath.Join(dir, userFileName), partitionFile{
		Patterns: []*Pattern{validPattern("user.good"), bad},
	})

	store := NewStore(dir, zap.NewNop())
	require.NoError(t, store.Load(context.Background()))

	_, err := store.Get("user.good")
	assert.NoError(t, err)
	_, err = store.Get("bad.regex")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadToleratesCorruptPartition(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, userFileName), []byte("{not json"), 0o644))
	writePartitionFile(t, filepath.Join(dir, learnedFileName), partitionFile{
		Patterns: []*Pattern{validPattern("learned.ok")},
	})

	store := NewStore(dir, zap.NewNop())
	require.NoError(t, store.Load(context.Background()))

	_, err := store.Get("learned.ok")
	assert.NoError(t, err)
}

func TestLoadIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writePartitionFile(t, filepath.Join(dir, userFileName), partitionFile{
		Patterns: []*Pattern{validPattern("user.a"), validPattern("user.b")},
	})

	store := NewStore(dir, zap.NewNop())
	require.NoError(t, store.Load(context.Background()))
	first := store.Count()

	require.NoError(t, store.Load(context.Background()))
	assert.Equal(t, first, store.Count(), "double Load must not duplicate entries")
}

func TestAddGetRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, store.Load(context.Background()))

	p := validPattern("user.roundtrip")
	require.NoError(t, store.Add(p))

	got, err := store.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.RegexPatterns, got.RegexPatterns)
	assert.Equal(t, p.Keywords, got.Keywords)
	assert.Equal(t, p.ConfidenceBase, got.ConfidenceBase)

	// Re-adding the same id fails.
	err = store.Add(validPattern("user.roundtrip"))
	assert.ErrorIs(t, err, ErrExists)
}

func TestUpdateRequiresExistingID(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, store.Load(context.Background()))

	err := store.Update(validPattern("ghost"))
	assert.ErrorIs(t, err, ErrNotFound)

	p := validPattern("user.upd")
	require.NoError(t, store.Add(p))

	before, err := store.Get(p.ID)
	require.NoError(t, err)

	p.Name = "renamed"
	require.NoError(t, store.Update(p))

	after, err := store.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", after.Name)
	assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
}

func TestRemove(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, store.Load(context.Background()))
	require.NoError(t, store.Add(validPattern("user.rm")))

	assert.True(t, store.Remove("user.rm"))
	assert.False(t, store.Remove("user.rm"))
}

func TestSaveLoadRoundTripExcludesBuiltins(t *testing.T) {
	dir := t.TempDir()
	writePartitionFile(t, filepath.Join(dir, builtinDirName, "base.json"), partitionFile{
		Name:     "base",
		Patterns: []*Pattern{validPattern("builtin.keep")},
	})

	store := NewStore(dir, zap.NewNop())
	require.NoError(t, store.Load(context.Background()))

	user := validPattern("user.saved")
	user.Source = SourceUser
	user.UserDefined = true
	require.NoError(t, store.Add(user))

	learned := validPattern("learned.saved")
	learned.Source = SourceLearning
	learned.AutoGenerated = true
	require.NoError(t, store.Add(learned))

	require.NoError(t, store.Save(context.Background()))

	// Built-ins are never re-serialized.
	data, err := os.ReadFile(filepath.Join(dir, userFileName))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "builtin.keep")

	fresh := NewStore(dir, zap.NewNop())
	require.NoError(t, fresh.Load(context.Background()))

	gotUser, err := fresh.Get("user.saved")
	require.NoError(t, err)
	assert.Equal(t, user.Name, gotUser.Name)
	assert.Equal(t, user.RegexPatterns, gotUser.RegexPatterns)

	gotLearned, err := fresh.Get("learned.saved")
	require.NoError(t, err)
	assert.True(t, gotLearned.AutoGenerated)
}

func TestGenerationBumpsOnMutation(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, store.Load(context.Background()))

	g0 := store.Generation()
	require.NoError(t, store.Add(validPattern("user.gen")))
	g1 := store.Generation()
	assert.Greater(t, g1, g0)

	store.Remove("user.gen")
	assert.Greater(t, store.Generation(), g1)
}

func TestGetByCategoryAndSearch(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, store.Load(context.Background()))

	perms := store.GetByCategory("permission")
	require.NotEmpty(t, perms)
	for _, p := range perms {
		assert.Equal(t, "permission", p.Category)
	}

	results := store.Search("docker")
	require.NotEmpty(t, results)
}

func TestAllReturnsSnapshot(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, store.Load(context.Background()))

	snapshot := store.All()
	count := len(snapshot)

	require.NoError(t, store.Add(validPattern("user.after_snapshot")))
	assert.Len(t, snapshot, count, "snapshot must not see later mutations")
}
