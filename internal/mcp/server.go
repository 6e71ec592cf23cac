package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/dreamlog/dreamlog/internal/database"
	"github.com/dreamlog/dreamlog/internal/services"
	"github.com/dreamlog/dreamlog/internal/usecase"
)

// Server exposes the dream journal as MCP tools
type Server struct {
	server  *mcp.Server
	dbCtx   *database.Context
	journal *usecase.Journal
	logger  zerolog.Logger
}

// NewServer opens the journal at dbPath and registers the tools
func NewServer(ctx context.Context, dbPath string, version string, logger zerolog.Logger) (*Server, error) {
	dbCtx, err := database.CreateDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	journal, err := usecase.NewJournal(ctx, dbCtx, logger)
	if err != nil {
		_ = database.CloseDatabase(dbCtx)
		return nil, err
	}

	s := newServer(journal, version, logger)
	s.dbCtx = dbCtx
	return s, nil
}

func newServer(journal *usecase.Journal, version string, logger zerolog.Logger) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "dreamlog",
		Version: version,
	}, nil)

	s := &Server{
		server:  mcpServer,
		journal: journal,
		logger:  logger.With().Str("component", "mcp").Logger(),
	}
	s.registerTools()
	return s
}

// Run serves the tools over stdio until ctx is done or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		_ = database.CloseDatabase(s.dbCtx)
	}()
	s.logger.Info().Msg("mcp server listening on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "dream_create",
		Description: "Record a new dream in the journal",
	}, s.handleCreate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "dream_get",
		Description: "Retrieve a dream by id",
	}, s.handleGet)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "dream_list",
		Description: "List all dreams, most recent first",
	}, s.handleList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "dream_update",
		Description: "Change fields of an existing dream",
	}, s.handleUpdate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "dream_delete",
		Description: "Delete a dream",
	}, s.handleDelete)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "dreamsign_counts",
		Description: "Count how often each dreamsign occurs, most frequent first",
	}, s.handleCounts)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "dreamsign_suggest",
		Description: "Complete a dreamsign prefix from the dreamsigns already recorded",
	}, s.handleSuggest)
}

// Input/Output types for each tool

type CreateInput struct {
	Date        string   `json:"date,omitempty" jsonschema:"Date of the dream as YYYY-MM-DD, today if omitted"`
	Title       string   `json:"title" jsonschema:"Short title"`
	Description string   `json:"description" jsonschema:"What happened in the dream"`
	Dreamsigns  []string `json:"dreamsigns,omitempty" jsonschema:"Recurring elements of the dream"`
}

type DreamOutput struct {
	Dream services.Dream `json:"dream"`
}

type GetInput struct {
	ID string `json:"id" jsonschema:"Id of the dream"`
}

type ListInput struct{}

type ListOutput struct {
	Dreams []services.Dream `json:"dreams"`
}

type UpdateInput struct {
	ID          string    `json:"id" jsonschema:"Id of the dream"`
	Rev         string    `json:"rev,omitempty" jsonschema:"Revision the change is based on, the current one if omitted"`
	Date        *string   `json:"date,omitempty" jsonschema:"New date as YYYY-MM-DD"`
	Title       *string   `json:"title,omitempty" jsonschema:"New title"`
	Description *string   `json:"description,omitempty" jsonschema:"New description"`
	Dreamsigns  *[]string `json:"dreamsigns,omitempty" jsonschema:"New dreamsigns, replacing the old ones"`
}

type DeleteInput struct {
	ID  string `json:"id" jsonschema:"Id of the dream"`
	Rev string `json:"rev,omitempty" jsonschema:"Revision to delete, the current one if omitted"`
}

type DeleteOutput struct {
	Message string `json:"message"`
}

type CountsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of dreamsigns, all if omitted"`
}

type CountsOutput struct {
	Dreamsigns []services.DreamsignCount `json:"dreamsigns"`
}

type SuggestInput struct {
	Prefix string `json:"prefix" jsonschema:"Beginning of the dreamsign"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of suggestions"`
}

type SuggestOutput struct {
	Suggestions []string `json:"suggestions"`
}

// Tool handlers

func (s *Server) handleCreate(ctx context.Context, req *mcp.CallToolRequest, input CreateInput) (*mcp.CallToolResult, DreamOutput, error) {
	dream, err := s.journal.Record(ctx, usecase.RecordInput{
		Date:        input.Date,
		Title:       input.Title,
		Description: input.Description,
		Dreamsigns:  input.Dreamsigns,
	})
	if err != nil {
		return nil, DreamOutput{}, fmt.Errorf("failed to create dream: %w", err)
	}
	return nil, DreamOutput{Dream: *dream}, nil
}

func (s *Server) handleGet(ctx context.Context, req *mcp.CallToolRequest, input GetInput) (*mcp.CallToolResult, DreamOutput, error) {
	dream, err := s.journal.Show(ctx, input.ID)
	if err != nil {
		return nil, DreamOutput{}, fmt.Errorf("failed to get dream: %w", err)
	}
	return nil, DreamOutput{Dream: *dream}, nil
}

func (s *Server) handleList(ctx context.Context, req *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, ListOutput, error) {
	dreams, err := s.journal.Journal(ctx)
	if err != nil {
		return nil, ListOutput{}, fmt.Errorf("failed to list dreams: %w", err)
	}
	return nil, ListOutput{Dreams: dreams}, nil
}

func (s *Server) handleUpdate(ctx context.Context, req *mcp.CallToolRequest, input UpdateInput) (*mcp.CallToolResult, DreamOutput, error) {
	dream, err := s.journal.Revise(ctx, usecase.ReviseInput{
		ID:          input.ID,
		Rev:         input.Rev,
		Date:        input.Date,
		Title:       input.Title,
		Description: input.Description,
		Dreamsigns:  input.Dreamsigns,
	})
	if err != nil {
		return nil, DreamOutput{}, fmt.Errorf("failed to update dream: %w", err)
	}
	return nil, DreamOutput{Dream: *dream}, nil
}

func (s *Server) handleDelete(ctx context.Context, req *mcp.CallToolRequest, input DeleteInput) (*mcp.CallToolResult, DeleteOutput, error) {
	if err := s.journal.Forget(ctx, input.ID, input.Rev); err != nil {
		return nil, DeleteOutput{}, fmt.Errorf("failed to delete dream: %w", err)
	}
	return nil, DeleteOutput{Message: fmt.Sprintf("Deleted dream '%s'", input.ID)}, nil
}

func (s *Server) handleCounts(ctx context.Context, req *mcp.CallToolRequest, input CountsInput) (*mcp.CallToolResult, CountsOutput, error) {
	counts, err := s.journal.Dreamsigns(ctx, input.Limit)
	if err != nil {
		return nil, CountsOutput{}, fmt.Errorf("failed to count dreamsigns: %w", err)
	}
	return nil, CountsOutput{Dreamsigns: counts}, nil
}

func (s *Server) handleSuggest(ctx context.Context, req *mcp.CallToolRequest, input SuggestInput) (*mcp.CallToolResult, SuggestOutput, error) {
	suggestions, err := s.journal.Suggest(ctx, input.Prefix, input.Limit)
	if err != nil {
		return nil, SuggestOutput{}, fmt.Errorf("failed to suggest dreamsigns: %w", err)
	}
	return nil, SuggestOutput{Suggestions: suggestions}, nil
}
