package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dreamlog/dreamlog/internal/database"
)

func setupServiceDB(t *testing.T) *database.Context {
	t.Helper()
	ctx, err := database.CreateDatabase(":memory:")
	if err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}

	t.Cleanup(func() {
		if err := database.CloseDatabase(ctx); err != nil {
			t.Fatalf("CloseDatabase error: %v", err)
		}
	})

	return ctx
}

func setupFileDB(t *testing.T, path string) *database.Context {
	t.Helper()
	ctx, err := database.CreateDatabase(path)
	if err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}

	t.Cleanup(func() {
		if err := database.CloseDatabase(ctx); err != nil {
			t.Fatalf("CloseDatabase error: %v", err)
		}
	})

	return ctx
}

func setupService(t *testing.T) *DreamService {
	t.Helper()
	svc, err := NewDreamService(context.Background(), setupServiceDB(t), zerolog.Nop())
	require.NoError(t, err)

	clock := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc
}

func newDream(date, title string, signs ...string) Dream {
	return Dream{
		Date:        date,
		Title:       title,
		Description: title + " description",
		Dreamsigns:  signs,
	}
}

func mustCreate(t *testing.T, svc *DreamService, dream Dream) *Dream {
	t.Helper()
	created, err := svc.Create(context.Background(), dream)
	require.NoError(t, err)
	return created
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	created := mustCreate(t, svc, newDream("2024-04-30", "flying", "sky", "sky", "wings"))
	require.NotEmpty(t, created.ID)
	require.NotEmpty(t, created.Rev)
	assert.Equal(t, "2024-05-01T07:00:01.000000000Z", created.Created)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, "2024-04-30", got.Date)
	assert.Equal(t, "flying", got.Title)
	assert.Equal(t, "flying description", got.Description)
	assert.Equal(t, []string{"sky", "sky", "wings"}, got.Dreamsigns)
}

func TestCreateNormalizesDate(t *testing.T) {
	svc := setupService(t)

	for input, want := range map[string]string{
		"2024-03-05":           "2024-03-05",
		"2024-03-05T23:10:00Z": "2024-03-05",
		"2024/03/05":           "2024-03-05",
		" 20240305 ":           "2024-03-05",
	} {
		created := mustCreate(t, svc, newDream(input, "dream"))
		assert.Equal(t, want, created.Date, "input %q", input)
	}

	dream := mustCreate(t, svc, newDream("2024-01-01", "no signs"))
	assert.Equal(t, []string{}, dream.Dreamsigns)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	tests := []Dream{
		newDream("", "missing date"),
		newDream("2024-01-01", ""),
		{Date: "2024-01-01", Title: "no description"},
		newDream("yesterday", "bad date"),
	}
	for _, dream := range tests {
		_, err := svc.Create(ctx, dream)
		require.ErrorIs(t, err, ErrValidation, "dream %#v", dream)
	}

	dreams, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, dreams)
}

func TestUpdateReplacesFieldsAndKeepsCreated(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	created := mustCreate(t, svc, newDream("2024-04-30", "flying", "sky"))

	change := *created
	change.Title = "falling"
	change.Date = "2024-05-02T01:00:00Z"
	change.Created = "1999-01-01T00:00:00.000000000Z"
	change.Dreamsigns = []string{"cliff"}

	updated, err := svc.Update(ctx, change)
	require.NoError(t, err)
	assert.NotEqual(t, created.Rev, updated.Rev)
	assert.Equal(t, created.Created, updated.Created)
	assert.Equal(t, "2024-05-02", updated.Date)
	assert.Equal(t, "falling", updated.Title)
	assert.Equal(t, []string{"cliff"}, updated.Dreamsigns)
}

func TestUpdateWithStaleRevisionConflicts(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	created := mustCreate(t, svc, newDream("2024-04-30", "flying"))
	first := *created
	first.Title = "first"
	current, err := svc.Update(ctx, first)
	require.NoError(t, err)

	stale := *created
	stale.Title = "stale"
	_, err = svc.Update(ctx, stale)
	require.ErrorIs(t, err, ErrConflict)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, current, got)
}

func TestUpdateMissingDream(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	missing := newDream("2024-01-01", "ghost")
	missing.ID = "does-not-exist"
	missing.Rev = "1-0"
	_, err := svc.Update(ctx, missing)
	require.ErrorIs(t, err, ErrNotFound)

	missing.Rev = ""
	_, err = svc.Update(ctx, missing)
	require.ErrorIs(t, err, ErrValidation)
}

func TestDeleteWithStaleRevisionConflicts(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	created := mustCreate(t, svc, newDream("2024-04-30", "flying"))
	change := *created
	change.Title = "changed"
	_, err := svc.Update(ctx, change)
	require.NoError(t, err)

	err = svc.Delete(ctx, created.ID, created.Rev)
	require.ErrorIs(t, err, ErrConflict)

	_, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)
}

func TestCreateThenDelete(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	created := mustCreate(t, svc, newDream("2024-04-30", "flying", "sky"))
	require.NoError(t, svc.Delete(ctx, created.ID, created.Rev))

	_, err := svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, ErrNotFound)

	err = svc.Delete(ctx, created.ID, created.Rev)
	require.ErrorIs(t, err, ErrNotFound)

	counts, err := svc.TagCounts(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestReservedIDsAreNotDreams(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	_, err := svc.Get(ctx, DesignID)
	require.ErrorIs(t, err, ErrNotFound)

	err = svc.Delete(ctx, DesignID, "1-0")
	require.ErrorIs(t, err, ErrNotFound)

	dreams, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, dreams)
}

func TestListAllOrdersByDateThenCreated(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	mustCreate(t, svc, newDream("2024-01-02", "a"))
	mustCreate(t, svc, newDream("2024-03-01", "b"))
	mustCreate(t, svc, newDream("2024-01-02", "c"))
	mustCreate(t, svc, newDream("2023-12-31", "d"))

	dreams, err := svc.ListAll(ctx)
	require.NoError(t, err)

	var titles []string
	for _, d := range dreams {
		titles = append(titles, d.Title)
	}
	assert.Equal(t, []string{"b", "c", "a", "d"}, titles)

	for i := 1; i < len(dreams); i++ {
		prev, cur := dreams[i-1], dreams[i]
		ordered := prev.Date > cur.Date || (prev.Date == cur.Date && prev.Created >= cur.Created)
		assert.True(t, ordered, "dreams %d and %d out of order", i-1, i)
	}
}

func TestTagCounts(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	mustCreate(t, svc, newDream("2024-01-01", "one", "teeth", "water", "teeth"))
	mustCreate(t, svc, newDream("2024-01-02", "two", "water", "flying"))
	mustCreate(t, svc, newDream("2024-01-03", "three", "water", "teeth", "ex"))
	mustCreate(t, svc, newDream("2024-01-04", "four"))

	all, err := svc.TagCounts(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []DreamsignCount{
		{Dreamsign: "teeth", Count: 3},
		{Dreamsign: "water", Count: 3},
		{Dreamsign: "ex", Count: 1},
		{Dreamsign: "flying", Count: 1},
	}, all)

	var sum int64
	for _, c := range all {
		sum += c.Count
	}
	assert.Equal(t, int64(8), sum)

	for k := 1; k <= 5; k++ {
		limited, err := svc.TagCounts(ctx, k)
		require.NoError(t, err)
		assert.Len(t, limited, min(k, len(all)))
		assert.Equal(t, all[:len(limited)], limited)
	}
}

func TestTagCountsFollowUpdates(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	created := mustCreate(t, svc, newDream("2024-01-01", "one", "teeth"))
	_, err := svc.TagCounts(ctx, 0)
	require.NoError(t, err)

	change := *created
	change.Dreamsigns = []string{"water", "water"}
	_, err = svc.Update(ctx, change)
	require.NoError(t, err)

	counts, err := svc.TagCounts(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []DreamsignCount{{Dreamsign: "water", Count: 2}}, counts)
}

func TestTagsWithPrefix(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	mustCreate(t, svc, newDream("2024-01-01", "one", "cat", "dog"))
	mustCreate(t, svc, newDream("2024-01-02", "two", "dove", "dog"))

	signs, err := svc.TagsWithPrefix(ctx, "do", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"dog", "dove"}, signs)

	signs, err = svc.TagsWithPrefix(ctx, "do", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"dog"}, signs)

	signs, err = svc.TagsWithPrefix(ctx, "d", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"dog", "dove"}, signs)

	signs, err = svc.TagsWithPrefix(ctx, "x", 5)
	require.NoError(t, err)
	assert.Empty(t, signs)

	signs, err = svc.TagsWithPrefix(ctx, "  ", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{}, signs)
}

func TestTagsWithPrefixOrdersByCodepoint(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	mustCreate(t, svc, newDream("2024-01-01", "one", "drive", "dream", "door", "car", "dré", "Dragon"))

	signs, err := svc.TagsWithPrefix(ctx, "dr", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"dream", "drive", "dré"}, signs)

	signs, err = svc.TagsWithPrefix(ctx, "dr", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"dream", "drive"}, signs)
}

func TestEnsureDesignIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dbCtx := setupServiceDB(t)
	docs := database.NewDocumentRepository(dbCtx)

	_, err := NewDreamService(ctx, dbCtx, zerolog.Nop())
	require.NoError(t, err)
	first, err := docs.Get(ctx, DesignID)
	require.NoError(t, err)

	svc, err := NewDreamService(ctx, dbCtx, zerolog.Nop())
	require.NoError(t, err)
	second, err := docs.Get(ctx, DesignID)
	require.NoError(t, err)
	assert.Equal(t, first.Rev, second.Rev)

	result, err := svc.EnsureDesign(ctx)
	require.NoError(t, err)
	assert.False(t, result.Updated)
	assert.Equal(t, first.Rev, result.Rev)

	var design database.DesignDocument
	require.NoError(t, json.Unmarshal(second.Body, &design))
	assert.Equal(t, DesignVersion, design.Version)
	assert.Equal(t, "dreamsigns", design.Views[DreamsignsView].Map.Emit)
}

func TestEnsureDesignUpgradesStaleVersion(t *testing.T) {
	ctx := context.Background()
	dbCtx := setupServiceDB(t)
	docs := database.NewDocumentRepository(dbCtx)

	oldRev, err := docs.Put(ctx, DesignID, "", json.RawMessage(`{"version":1,"views":{"dreamsigns":{"map":{"emit":"title"},"reduce":"_count"}}}`))
	require.NoError(t, err)

	svc, err := NewDreamService(ctx, dbCtx, zerolog.Nop())
	require.NoError(t, err)
	upgraded, err := docs.Get(ctx, DesignID)
	require.NoError(t, err)
	assert.NotEqual(t, oldRev, upgraded.Rev)

	_, err = NewDreamService(ctx, dbCtx, zerolog.Nop())
	require.NoError(t, err)
	again, err := docs.Get(ctx, DesignID)
	require.NoError(t, err)
	assert.Equal(t, upgraded.Rev, again.Rev)

	mustCreate(t, svc, newDream("2024-01-01", "title", "teeth"))
	counts, err := svc.TagCounts(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []DreamsignCount{{Dreamsign: "teeth", Count: 1}}, counts)
}

func TestReindex(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	mustCreate(t, svc, newDream("2024-01-01", "one", "teeth"))
	require.NoError(t, svc.Reindex(ctx))

	counts, err := svc.TagCounts(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []DreamsignCount{{Dreamsign: "teeth", Count: 1}}, counts)
}

func TestFailuresAreLoggedOnce(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	svc, err := NewDreamService(ctx, setupServiceDB(t), zerolog.New(&buf))
	require.NoError(t, err)
	buf.Reset()

	_, err = svc.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, database.ErrNotFound)

	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "get", svcErr.Op)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "get", entry["op"])
	assert.Equal(t, "not found", entry["kind"])
}

func TestConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)
	svc.now = time.Now

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := svc.Create(gctx, newDream("2024-01-01", fmt.Sprintf("dream %d", i), "shared"))
			return err
		})
	}
	require.NoError(t, g.Wait())

	dreams, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, dreams, 8)

	counts, err := svc.TagCounts(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []DreamsignCount{{Dreamsign: "shared", Count: 8}}, counts)
}

func TestConcurrentServicesShareFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dreams.db")
	stores := []*database.Context{setupFileDB(t, path), setupFileDB(t, path)}

	svcs := make([]*DreamService, len(stores))
	g, gctx := errgroup.WithContext(ctx)
	for i, store := range stores {
		g.Go(func() error {
			svc, err := NewDreamService(gctx, store, zerolog.Nop())
			svcs[i] = svc
			return err
		})
	}
	require.NoError(t, g.Wait())

	design, err := database.NewDocumentRepository(stores[0]).Get(ctx, DesignID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(design.Rev, "1-"), "design written more than once: %s", design.Rev)

	const perService = 10
	g, gctx = errgroup.WithContext(ctx)
	for i, svc := range svcs {
		for j := 0; j < perService; j++ {
			g.Go(func() error {
				_, err := svc.Create(gctx, newDream("2024-03-01", fmt.Sprintf("dream %d-%d", i, j), "shared"))
				return err
			})
		}
		g.Go(func() error {
			_, err := svc.ListAll(gctx)
			return err
		})
		g.Go(func() error {
			_, err := svc.TagCounts(gctx, 0)
			return err
		})
	}
	require.NoError(t, g.Wait())

	want := len(svcs) * perService
	for _, svc := range svcs {
		dreams, err := svc.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, dreams, want)

		counts, err := svc.TagCounts(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []DreamsignCount{{Dreamsign: "shared", Count: int64(want)}}, counts)
	}
}

func TestMissingDesignIsPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	dbCtx := setupServiceDB(t)
	svc, err := NewDreamService(ctx, dbCtx, zerolog.Nop())
	require.NoError(t, err)

	docs := database.NewDocumentRepository(dbCtx)
	design, err := docs.Get(ctx, DesignID)
	require.NoError(t, err)
	require.NoError(t, docs.Remove(ctx, DesignID, design.Rev))

	_, err = svc.TagCounts(ctx, 0)
	require.ErrorIs(t, err, ErrPersistence)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = svc.TagsWithPrefix(ctx, "te", 10)
	require.ErrorIs(t, err, ErrPersistence)
	assert.NotErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, svc.Reindex(ctx), ErrPersistence)

	_, err = svc.EnsureDesign(ctx)
	require.NoError(t, err)
	counts, err := svc.TagCounts(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Op: "update", Kind: ErrConflict, Err: fmt.Errorf("dream x")}
	assert.Equal(t, "update: revision conflict: dream x", err.Error())
	assert.Equal(t, "delete: not found", (&Error{Op: "delete", Kind: ErrNotFound}).Error())
}
