// Package notion mirrors submitted applications into a Notion tracker
// database. Sync failures are logged and never block or roll back queue
// state; the queue remains the source of truth.
package notion

import (
	"context"
	"fmt"

	gnt "github.com/dstotijn/go-notion"

	"github.com/jonathan/autoapply/internal/types"
)

// Tracker records submitted applications in an external tracker.
type Tracker interface {
	RecordSubmission(ctx context.Context, item *types.QueueItem, candidate *types.JobCandidate) error
}

// Client writes tracker rows through the Notion API.
type Client struct {
	api        *gnt.Client
	databaseID string
}

// New creates a tracker client for the given database.
func New(token, databaseID string) *Client {
	return &Client{
		api:        gnt.NewClient(token),
		databaseID: databaseID,
	}
}

// Ping tries a tiny QueryDatabase to see if the DB is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.QueryDatabase(ctx, c.databaseID, &gnt.DatabaseQuery{
		PageSize: 1,
	})
	return err
}

// helper: build a valid Notion rich_text slice from a plain string.
func richText(s string) []gnt.RichText {
	if s == "" {
		return nil
	}
	return []gnt.RichText{
		{
			Text: &gnt.Text{
				Content: s,
			},
		},
	}
}

func buildSubmissionProperties(item *types.QueueItem, candidate *types.JobCandidate) gnt.DatabasePageProperties {
	props := gnt.DatabasePageProperties{}

	if candidate.Title != "" {
		props["Position"] = gnt.DatabasePageProperty{
			Title: richText(candidate.Title),
		}
	}

	if candidate.Company != "" {
		props["Company"] = gnt.DatabasePageProperty{
			RichText: richText(candidate.Company),
		}
	}

	if candidate.Location != "" {
		props["Location"] = gnt.DatabasePageProperty{
			RichText: richText(candidate.Location),
		}
	}

	props["Stage"] = gnt.DatabasePageProperty{
		Select: &gnt.SelectOptions{
			Name: "Applied",
		},
	}

	if item.Content != nil {
		props["Quality"] = gnt.DatabasePageProperty{
			Number: &item.Content.Scores.Quality,
		}
	}

	submittedAt := gnt.NewDateTime(item.UpdatedAt, true)
	props["Submitted At"] = gnt.DatabasePageProperty{
		Date: &gnt.Date{
			Start: submittedAt,
		},
	}

	return props
}

// RecordSubmission creates a tracker row for a submitted application.
func (c *Client) RecordSubmission(ctx context.Context, item *types.QueueItem, candidate *types.JobCandidate) error {
	props := buildSubmissionProperties(item, candidate)

	params := gnt.CreatePageParams{
		ParentType:             gnt.ParentTypeDatabase,
		ParentID:               c.databaseID,
		DatabasePageProperties: &props,
	}

	if _, err := c.api.CreatePage(ctx, params); err != nil {
		return fmt.Errorf("failed to create tracker page: %w", err)
	}
	return nil
}

// NoopTracker discards sync calls. Used when Notion is not configured.
type NoopTracker struct{}

func (NoopTracker) RecordSubmission(context.Context, *types.QueueItem, *types.JobCandidate) error {
	return nil
}
