package services

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dreamlog/dreamlog/internal/database"
)

const (
	// DesignID is the reserved id of the dreamsign design document.
	DesignID = database.DesignPrefix + "dreamsigns"
	// DreamsignsView is the dreamsign frequency view inside DesignID.
	DreamsignsView = "dreamsigns"
	// DesignVersion is bumped whenever the view definition changes.
	DesignVersion = 2
)

// maxRune closes prefix range scans.
const maxRune = "\U0010FFFF"

var dateCreatedFields = []string{"date", "created"}

func dreamsignDesign() database.DesignDocument {
	return database.DesignDocument{
		Version: DesignVersion,
		Views: map[string]database.ViewDefinition{
			DreamsignsView: {
				Map:    database.MapDefinition{Emit: "dreamsigns"},
				Reduce: database.ReduceCount,
			},
		},
	}
}

// DreamService implements the dream journal on top of the document store. It
// is safe for concurrent use; SQLite serializes the writes.
type DreamService struct {
	db      *database.Context
	docs    *database.DocumentRepository
	views   *database.ViewRepository
	indexes *database.IndexManager
	logger  zerolog.Logger
	now     func() time.Time
}

// NewDreamService creates a DreamService and brings the dreamsign design
// document up to date.
func NewDreamService(ctx context.Context, dbCtx *database.Context, logger zerolog.Logger) (*DreamService, error) {
	if dbCtx == nil || dbCtx.DB == nil {
		return nil, errors.New("dream service: missing database context")
	}

	s := &DreamService{
		db:      dbCtx,
		docs:    database.NewDocumentRepository(dbCtx),
		views:   database.NewViewRepository(dbCtx),
		indexes: database.NewIndexManager(dbCtx),
		logger:  logger.With().Str("component", "dream_service").Logger(),
		now:     time.Now,
	}
	if _, err := s.EnsureDesign(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureDesign inserts the design document when absent and overwrites it when
// its version differs. A current design is left untouched.
func (s *DreamService) EnsureDesign(ctx context.Context) (database.UpsertResult, error) {
	const op = "ensure design"

	var result database.UpsertResult
	err := s.db.Exclusive(ctx, func() error {
		var err error
		result, err = s.docs.Upsert(ctx, DesignID, upgradeDesign)
		return err
	})
	if err != nil {
		return result, s.fail(op, err)
	}

	if result.Updated {
		s.logger.Info().Str("rev", result.Rev).Int("version", DesignVersion).Msg("dreamsign design updated")
	}
	return result, nil
}

func upgradeDesign(existing json.RawMessage) (json.RawMessage, bool, error) {
	if existing != nil {
		var current struct {
			Version int `json:"version"`
		}
		if err := json.Unmarshal(existing, &current); err == nil && current.Version == DesignVersion {
			return nil, false, nil
		}
	}

	body, err := json.Marshal(dreamsignDesign())
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

// Create stores a new dream and returns it as persisted.
func (s *DreamService) Create(ctx context.Context, dream Dream) (*Dream, error) {
	const op = "create"

	if err := s.prepare(op, &dream); err != nil {
		return nil, err
	}
	dream.Created = s.now().UTC().Format(CreatedLayout)

	body, err := json.Marshal(dream.body())
	if err != nil {
		return nil, s.fail(op, err)
	}
	id, _, err := s.docs.Post(ctx, body)
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.logger.Debug().Str("id", id).Msg("dream created")
	return s.read(ctx, op, id)
}

// Get returns the dream stored under id.
func (s *DreamService) Get(ctx context.Context, id string) (*Dream, error) {
	return s.read(ctx, "get", id)
}

// ListAll returns every dream, most recent date first and most recently
// created first within a date.
func (s *DreamService) ListAll(ctx context.Context) ([]Dream, error) {
	const op = "list"

	if _, err := s.indexes.CreateIndex(ctx, database.IndexDefinition{Fields: dateCreatedFields}); err != nil {
		return nil, s.fail(op, err)
	}

	docs, err := s.indexes.Find(ctx, database.FindRequest{
		NonNull: dateCreatedFields,
		Sort: []database.SortField{
			{Field: "date", Direction: database.SortDesc},
			{Field: "created", Direction: database.SortDesc},
		},
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	dreams := make([]Dream, 0, len(docs))
	for i := range docs {
		dream, err := dreamFromDocument(&docs[i])
		if err != nil {
			return nil, s.fail(op, fmt.Errorf("decode %s: %w", docs[i].ID, err))
		}
		dreams = append(dreams, dream)
	}
	return dreams, nil
}

// Update replaces the mutable fields of a stored dream. dream.Rev must be the
// current revision. Created is kept from the stored dream.
func (s *DreamService) Update(ctx context.Context, dream Dream) (*Dream, error) {
	const op = "update"

	if dream.ID == "" || dream.Rev == "" {
		return nil, s.fail(op, validationError(op, "id and revision are required"))
	}
	if database.IsReservedID(dream.ID) {
		return nil, s.fail(op, &Error{Op: op, Kind: ErrNotFound, Err: fmt.Errorf("dream %s", dream.ID)})
	}
	if err := s.prepare(op, &dream); err != nil {
		return nil, err
	}

	stored, err := s.docs.Get(ctx, dream.ID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	previous, err := dreamFromDocument(stored)
	if err != nil {
		return nil, s.fail(op, fmt.Errorf("decode %s: %w", dream.ID, err))
	}
	dream.Created = previous.Created

	body, err := json.Marshal(dream.body())
	if err != nil {
		return nil, s.fail(op, err)
	}
	if _, err := s.docs.Put(ctx, dream.ID, dream.Rev, body); err != nil {
		return nil, s.fail(op, err)
	}

	s.logger.Debug().Str("id", dream.ID).Msg("dream updated")
	return s.read(ctx, op, dream.ID)
}

// Delete removes the dream if rev is its current revision.
func (s *DreamService) Delete(ctx context.Context, id, rev string) error {
	const op = "delete"

	if id == "" || rev == "" {
		return s.fail(op, validationError(op, "id and revision are required"))
	}
	if database.IsReservedID(id) {
		return s.fail(op, &Error{Op: op, Kind: ErrNotFound, Err: fmt.Errorf("dream %s", id)})
	}
	if err := s.docs.Remove(ctx, id, rev); err != nil {
		return s.fail(op, err)
	}

	s.logger.Debug().Str("id", id).Msg("dream deleted")
	return nil
}

// TagCounts returns every dreamsign with its number of occurrences, highest
// count first. Ties are ordered by dreamsign. limit <= 0 returns all of them.
func (s *DreamService) TagCounts(ctx context.Context, limit int) ([]DreamsignCount, error) {
	const op = "tag counts"

	rows, err := s.views.Query(ctx, DesignID, DreamsignsView, database.ViewQuery{Group: true})
	if err != nil {
		return nil, s.fail(op, err)
	}

	counts := make([]DreamsignCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, DreamsignCount{Dreamsign: row.Key, Count: row.Value})
	}
	slices.SortStableFunc(counts, func(a, b DreamsignCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Dreamsign, b.Dreamsign)
	})

	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts, nil
}

// TagsWithPrefix returns up to limit distinct dreamsigns starting with prefix,
// in ascending order. A blank prefix matches nothing.
func (s *DreamService) TagsWithPrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	const op = "tags with prefix"

	if strings.TrimSpace(prefix) == "" {
		return []string{}, nil
	}

	end := prefix + maxRune
	rows, err := s.views.Query(ctx, DesignID, DreamsignsView, database.ViewQuery{
		Group:    true,
		StartKey: &prefix,
		EndKey:   &end,
		Limit:    limit,
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	signs := make([]string, 0, len(rows))
	for _, row := range rows {
		signs = append(signs, row.Key)
	}
	return signs, nil
}

// Reindex rebuilds the dreamsign view from the stored dreams.
func (s *DreamService) Reindex(ctx context.Context) error {
	if err := s.views.Rebuild(ctx, DesignID); err != nil {
		return s.fail("reindex", err)
	}
	s.logger.Info().Msg("dreamsign view rebuilt")
	return nil
}

func (s *DreamService) read(ctx context.Context, op, id string) (*Dream, error) {
	if database.IsReservedID(id) {
		return nil, s.fail(op, &Error{Op: op, Kind: ErrNotFound, Err: fmt.Errorf("dream %s", id)})
	}

	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	dream, err := dreamFromDocument(doc)
	if err != nil {
		return nil, s.fail(op, fmt.Errorf("decode %s: %w", id, err))
	}
	return &dream, nil
}

// prepare validates dream and normalizes its date in place.
func (s *DreamService) prepare(op string, dream *Dream) error {
	if err := validateDream(op, *dream); err != nil {
		return s.fail(op, err)
	}
	date, err := NormalizeDate(dream.Date)
	if err != nil {
		return s.fail(op, validationError(op, "invalid date %q", dream.Date))
	}
	dream.Date = date
	return nil
}

// fail logs err once and returns it as a *Error.
func (s *DreamService) fail(op string, err error) error {
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		svcErr = &Error{Op: op, Kind: kindOf(err), Err: err}
	}

	s.logger.Error().
		Err(svcErr.Err).
		Str("op", svcErr.Op).
		Str("kind", svcErr.Kind.Error()).
		Msg("dream service operation failed")
	return svcErr
}
