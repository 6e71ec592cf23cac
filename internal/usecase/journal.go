package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dreamlog/dreamlog/internal/database"
	"github.com/dreamlog/dreamlog/internal/services"
)

// ErrIncomplete is the cause of validation errors for dreams missing a
// required field.
var ErrIncomplete = errors.New("please fill out all of the fields")

// DefaultSuggestLimit caps Suggest when the caller passes no limit.
const DefaultSuggestLimit = 10

// Journal is the entry point used by the CLI and the MCP server.
type Journal struct {
	dreams *services.DreamService
	now    func() time.Time
}

func NewJournal(ctx context.Context, dbCtx *database.Context, logger zerolog.Logger) (*Journal, error) {
	svc, err := services.NewDreamService(ctx, dbCtx, logger)
	if err != nil {
		return nil, err
	}
	return &Journal{dreams: svc, now: time.Now}, nil
}

type RecordInput struct {
	Date        string
	Title       string
	Description string
	Dreamsigns  []string
}

// Record writes a new dream. An empty date means today.
func (u *Journal) Record(ctx context.Context, input RecordInput) (*services.Dream, error) {
	date := strings.TrimSpace(input.Date)
	if date == "" {
		date = u.now().Format(services.DateLayout)
	}

	dream := services.Dream{
		Date:        date,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Dreamsigns:  CleanDreamsigns(input.Dreamsigns),
	}
	if dream.Title == "" || dream.Description == "" {
		return nil, incomplete("record")
	}
	return u.dreams.Create(ctx, dream)
}

// ReviseInput changes the fields that are set. Rev is optional; without it the
// current revision is used.
type ReviseInput struct {
	ID          string
	Rev         string
	Date        *string
	Title       *string
	Description *string
	Dreamsigns  *[]string
}

func (u *Journal) Revise(ctx context.Context, input ReviseInput) (*services.Dream, error) {
	dream, err := u.dreams.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Rev != "" {
		dream.Rev = input.Rev
	}
	if input.Date != nil {
		dream.Date = strings.TrimSpace(*input.Date)
	}
	if input.Title != nil {
		dream.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		dream.Description = strings.TrimSpace(*input.Description)
	}
	if input.Dreamsigns != nil {
		dream.Dreamsigns = CleanDreamsigns(*input.Dreamsigns)
	}
	if dream.Date == "" || dream.Title == "" || dream.Description == "" {
		return nil, incomplete("revise")
	}

	return u.dreams.Update(ctx, *dream)
}

// Forget deletes a dream. Without rev the current revision is used.
func (u *Journal) Forget(ctx context.Context, id, rev string) error {
	if rev == "" {
		dream, err := u.dreams.Get(ctx, id)
		if err != nil {
			return err
		}
		rev = dream.Rev
	}
	return u.dreams.Delete(ctx, id, rev)
}

func (u *Journal) Show(ctx context.Context, id string) (*services.Dream, error) {
	return u.dreams.Get(ctx, id)
}

// Journal lists every dream, newest first.
func (u *Journal) Journal(ctx context.Context) ([]services.Dream, error) {
	return u.dreams.ListAll(ctx)
}

func (u *Journal) Dreamsigns(ctx context.Context, limit int) ([]services.DreamsignCount, error) {
	return u.dreams.TagCounts(ctx, limit)
}

// Suggest completes a partially typed dreamsign.
func (u *Journal) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	return u.dreams.TagsWithPrefix(ctx, prefix, limit)
}

// ResolveID expands ref to the id of a stored dream. ref is either a full id
// or an unambiguous prefix of one.
func (u *Journal) ResolveID(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", &services.Error{Op: "resolve", Kind: services.ErrValidation, Err: errors.New("dream id is required")}
	}

	dreams, err := u.dreams.ListAll(ctx)
	if err != nil {
		return "", err
	}

	var matches []string
	for _, dream := range dreams {
		if dream.ID == ref {
			return ref, nil
		}
		if strings.HasPrefix(dream.ID, ref) {
			matches = append(matches, dream.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", &services.Error{Op: "resolve", Kind: services.ErrNotFound, Err: fmt.Errorf("dream %s", ref)}
	case 1:
		return matches[0], nil
	default:
		return "", &services.Error{Op: "resolve", Kind: services.ErrValidation, Err: fmt.Errorf("id prefix %s matches %d dreams", ref, len(matches))}
	}
}

func (u *Journal) Reindex(ctx context.Context) error {
	return u.dreams.Reindex(ctx)
}

// ParseDreamsigns splits a comma separated list of dreamsigns.
func ParseDreamsigns(value string) []string {
	return CleanDreamsigns(strings.Split(value, ","))
}

// CleanDreamsigns trims each dreamsign and drops empty ones. Order and
// duplicates are kept.
func CleanDreamsigns(signs []string) []string {
	cleaned := make([]string, 0, len(signs))
	for _, sign := range signs {
		if sign = strings.TrimSpace(sign); sign != "" {
			cleaned = append(cleaned, sign)
		}
	}
	return cleaned
}

func incomplete(op string) error {
	return &services.Error{Op: op, Kind: services.ErrValidation, Err: ErrIncomplete}
}
