package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	httpclient "github.com/Imaginary-Space/linear-stagehand-tests/internal/http"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/http/ratelimit"
)

// ErrNoAPIKey is returned when commenting is attempted without credentials.
var ErrNoAPIKey = errors.New("tracker: linear api key is not configured")

const commentCreateMutation = `mutation CommentCreate($input: CommentCreateInput!) {
  commentCreate(input: $input) {
    success
    comment { id }
  }
}`

// Commenter posts a comment to a ticket.
type Commenter interface {
	PostComment(ctx context.Context, ticketID, body string) error
}

// Client is a minimal Linear GraphQL client.
type Client struct {
	apiURL string
	apiKey string
	http   *httpclient.Client
}

// NewClient creates a Linear client.
func NewClient(apiURL, apiKey string, limits ratelimit.Config) *Client {
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		http:   httpclient.NewClient(limits),
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type commentCreateResponse struct {
	Data struct {
		CommentCreate struct {
			Success bool `json:"success"`
			Comment struct {
				ID string `json:"id"`
			} `json:"comment"`
		} `json:"commentCreate"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// PostComment adds a markdown comment to the issue with the given id.
func (c *Client) PostComment(ctx context.Context, ticketID, body string) error {
	if c.apiKey == "" {
		return ErrNoAPIKey
	}

	req := graphQLRequest{
		Query: commentCreateMutation,
		Variables: map[string]any{
			"input": map[string]any{
				"issueId": ticketID,
				"body":    body,
			},
		},
	}
	header := http.Header{}
	header.Set("Authorization", c.apiKey)

	var resp commentCreateResponse
	if err := c.http.DoJSON(ctx, http.MethodPost, c.apiURL, header, req, &resp); err != nil {
		return fmt.Errorf("failed to post comment on %s: %w", ticketID, err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("linear rejected comment on %s: %s", ticketID, strings.Join(msgs, "; "))
	}
	if !resp.Data.CommentCreate.Success {
		return fmt.Errorf("linear did not create comment on %s", ticketID)
	}
	return nil
}
