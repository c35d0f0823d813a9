package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"tenxcards-backend/internal/client"
	"tenxcards-backend/internal/database"
	"tenxcards-backend/internal/logger"
	"tenxcards-backend/internal/models"
	"tenxcards-backend/internal/repository"
	"tenxcards-backend/internal/review"
	"tenxcards-backend/internal/services"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(out io.Writer) *cli.App {
	app := &cli.App{
		Name:    "cardsctl",
		Usage:   "10xCards operations and generation tool",
		Version: Version,
		Writer:  out,
		Commands: []*cli.Command{
			migrateCmd(),
			generateCmd(),
			errorsCmd(),
		},
	}
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

var databaseURLFlag = &cli.StringFlag{
	Name:    "database-url",
	EnvVars: []string{"DATABASE_URL"},
	Usage:   "PostgreSQL connection string",
}

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Flags: []cli.Flag{
			databaseURLFlag,
			&cli.StringFlag{Name: "dir", EnvVars: []string{"MIGRATIONS_DIR"}, Value: "migrations", Usage: "Migrations directory"},
		},
		Action: func(c *cli.Context) error {
			log, err := logger.New(os.Getenv("ENV"), "")
			if err != nil {
				return outputError(err)
			}
			defer log.Sync()

			pool, err := openPool(c)
			if err != nil {
				return outputError(err)
			}
			defer pool.Close()

			if err := database.RunMigrations(c.Context, pool, c.String("dir"), log); err != nil {
				return outputError(err)
			}
			fmt.Fprintln(c.App.Writer, "✓ Database migrations applied")
			return nil
		},
	}
}

func errorsCmd() *cli.Command {
	return &cli.Command{
		Name:  "errors",
		Usage: "Print the most recent generation error logs",
		Flags: []cli.Flag{
			databaseURLFlag,
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Number of rows (1-100)"},
			&cli.StringFlag{Name: "user", Usage: "Only show errors for this user id"},
		},
		Action: func(c *cli.Context) error {
			limit := c.Int("limit")
			if limit < 1 || limit > 100 {
				return outputError(fmt.Errorf("--limit must be between 1 and 100"))
			}

			var userID *uuid.UUID
			if raw := c.String("user"); raw != "" {
				id, err := uuid.Parse(raw)
				if err != nil {
					return outputError(fmt.Errorf("--user: %w", err))
				}
				userID = &id
			}

			pool, err := openPool(c)
			if err != nil {
				return outputError(err)
			}
			defer pool.Close()

			logs, err := repository.NewErrorLogRepo(pool).ListRecent(c.Context, userID, limit)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, logs)
		},
	}
}

func generateCmd() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate flashcards from a file, review them and save the selection",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true, Usage: "Source file (.txt, .md, .pdf, .docx)"},
			&cli.StringFlag{Name: "server", EnvVars: []string{"TENXCARDS_SERVER"}, Value: "http://localhost:8080", Usage: "API base URL"},
			&cli.StringFlag{Name: "token", EnvVars: []string{"TENXCARDS_TOKEN"}, Usage: "Bearer access token"},
			&cli.StringFlag{Name: "email", EnvVars: []string{"TENXCARDS_EMAIL"}, Usage: "Log in with this email when no token is given"},
			&cli.StringFlag{Name: "password", EnvVars: []string{"TENXCARDS_PASSWORD"}, Usage: "Password for --email"},
			&cli.BoolFlag{Name: "accept-all", Usage: "Save every proposal"},
			&cli.StringFlag{Name: "accept", Usage: "Comma-separated proposal ids to save, e.g. 1,3,4"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the cards that would be saved without saving"},
			&cli.DurationFlag{Name: "timeout", Value: 3 * time.Minute, Usage: "Overall request timeout"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("accept-all") && c.IsSet("accept") {
				return outputError(fmt.Errorf("--accept-all and --accept are mutually exclusive"))
			}
			acceptIDs, err := parseIDs(c.String("accept"))
			if err != nil {
				return outputError(err)
			}

			sourceText, err := readSourceFile(c.String("file"))
			if err != nil {
				return outputError(err)
			}

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			api := client.New(c.String("server"), c.String("token"))
			if c.String("token") == "" && c.String("email") != "" {
				if _, err := api.Login(ctx, c.String("email"), c.String("password")); err != nil {
					return outputError(err)
				}
			}

			generated, err := api.Generate(ctx, sourceText)
			if err != nil {
				return outputError(err)
			}

			session := review.NewSession(generated.GenerationID, generated.FlashcardsProposals)
			session.SetSourceText(sourceText)

			sel := review.AcceptedOnly
			switch {
			case c.Bool("accept-all"):
				sel = review.All
			case len(acceptIDs) > 0:
				for _, id := range acceptIDs {
					if err := session.Accept(id); err != nil {
						return outputError(err)
					}
				}
			default:
				return outputJSON(c.App.Writer, reviewOutput{
					GenerationID: generated.GenerationID,
					Proposals:    session.Proposals(),
				})
			}

			if c.Bool("dry-run") {
				return outputJSON(c.App.Writer, reviewOutput{
					GenerationID: generated.GenerationID,
					Selection:    sel.String(),
					Pending:      session.Requests(sel),
				})
			}

			saved, err := session.BulkSave(ctx, sel, api)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, reviewOutput{
				GenerationID: generated.GenerationID,
				Selection:    sel.String(),
				Saved:        saved,
			})
		},
	}
}

type reviewOutput struct {
	GenerationID int64                    `json:"generation_id"`
	Selection    string                   `json:"selection,omitempty"`
	Proposals    []review.Proposal        `json:"proposals,omitempty"`
	Pending      []models.FlashcardCreate `json:"pending,omitempty"`
	Saved        []*models.Flashcard      `json:"saved,omitempty"`
}

// readSourceFile extracts and validates the source text locally so that
// obviously invalid input never reaches the generation endpoint.
func readSourceFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	text, err := services.NewFileExtractService().ExtractText(filepath.Base(path), data)
	if err != nil {
		return "", err
	}
	if err := services.ValidateSourceText(text); err != nil {
		return "", err
	}
	return text, nil
}

// parseIDs parses a comma-separated list of positive proposal ids.
func parseIDs(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id < 1 {
			return nil, fmt.Errorf("invalid proposal id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func openPool(c *cli.Context) (*pgxpool.Pool, error) {
	url := c.String("database-url")
	if url == "" {
		return nil, errors.New("DATABASE_URL is not set (use --database-url)")
	}
	return database.NewPostgresPool(url)
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		msg := fmt.Sprintf("[%s] %s", apiErr.Code, apiErr.Message)
		for field, detail := range apiErr.Details {
			msg += fmt.Sprintf("\n  %s: %s", field, detail)
		}
		return cli.Exit(msg, 1)
	}

	var valErr *services.ValidationError
	if errors.As(err, &valErr) {
		msg := "[VALIDATION_ERROR]"
		for field, detail := range valErr.Fields {
			msg += fmt.Sprintf(" %s: %s", field, detail)
		}
		return cli.Exit(msg, 1)
	}
	return cli.Exit(err.Error(), 1)
}
