package github

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type ReviewThread struct {
	IsResolved bool
	Path       string
	Comments   []ReviewThreadComment
}

type ReviewThreadComment struct {
	Author    string
	Body      string
	CreatedAt string
}

type reviewThreadsResponse struct {
	Data struct {
		Repository struct {
			PullRequest struct {
				ReviewThreads struct {
					Nodes    []reviewThreadNode `json:"nodes"`
					PageInfo pageInfo           `json:"pageInfo"`
				} `json:"reviewThreads"`
			} `json:"pullRequest"`
		} `json:"repository"`
	} `json:"data"`
}

type reviewThreadNode struct {
	ID         string             `json:"id"`
	IsResolved bool               `json:"isResolved"`
	Path       string             `json:"path"`
	Comments   threadCommentsPage `json:"comments"`
}

type threadCommentsPage struct {
	Nodes    []reviewThreadCommentNode `json:"nodes"`
	PageInfo pageInfo                  `json:"pageInfo"`
}

type threadCommentsResponse struct {
	Data struct {
		Node struct {
			Comments threadCommentsPage `json:"comments"`
		} `json:"node"`
	} `json:"data"`
}

type reviewThreadCommentNode struct {
	Author struct {
		Login string `json:"login"`
	} `json:"author"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
}

type pageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

// ReviewThreads lists inline review threads of a pull request with the
// comments of each thread.
func (c *Client) ReviewThreads(ctx context.Context, cfg BackendConfig, number int) ([]ReviewThread, error) {
	owner, name := cfg.Owner, cfg.Repo

	query := `query($owner: String!, $name: String!, $number: Int!, $after: String) {
  repository(owner: $owner, name: $name) {
    pullRequest(number: $number) {
      reviewThreads(first: 100, after: $after) {
        nodes {
          id
          isResolved
          path
          comments(first: 100) {
            nodes {
              author { login }
              body
              createdAt
            }
            pageInfo {
              hasNextPage
              endCursor
            }
          }
        }
        pageInfo {
          hasNextPage
          endCursor
        }
      }
    }
  }
}`

	var threads []ReviewThread
	var after string
	for {
		args := []string{"api", "graphql", "-f", "query=" + query, "-f", "owner=" + owner, "-f", "name=" + name, "-F", fmt.Sprintf("number=%d", number)}
		if after != "" {
			args = append(args, "-f", "after="+after)
		}
		output, err := c.Runner.Run(ctx, cfg.Token, args, nil)
		if err != nil {
			return nil, backendErr("list review threads", err)
		}
		var resp reviewThreadsResponse
		if err := json.Unmarshal(output, &resp); err != nil {
			return nil, backendErr("list review threads", fmt.Errorf("failed to decode review threads: %w", err))
		}

		for _, node := range resp.Data.Repository.PullRequest.ReviewThreads.Nodes {
			thread := ReviewThread{
				IsResolved: node.IsResolved,
				Path:       node.Path,
				Comments:   threadComments(node.Comments.Nodes),
			}
			if !node.IsResolved && node.Comments.PageInfo.HasNextPage && node.Comments.PageInfo.EndCursor != nil {
				rest, err := c.remainingThreadComments(ctx, cfg.Token, node.ID, *node.Comments.PageInfo.EndCursor)
				if err != nil {
					return nil, err
				}
				thread.Comments = append(thread.Comments, rest...)
			}
			threads = append(threads, thread)
		}

		info := resp.Data.Repository.PullRequest.ReviewThreads.PageInfo
		if !info.HasNextPage || info.EndCursor == nil || strings.TrimSpace(*info.EndCursor) == "" {
			break
		}
		after = *info.EndCursor
	}

	return threads, nil
}

const threadCommentsQuery = `query($id: ID!, $after: String) {
  node(id: $id) {
    ... on PullRequestReviewThread {
      comments(first: 100, after: $after) {
        nodes {
          author { login }
          body
          createdAt
        }
        pageInfo {
          hasNextPage
          endCursor
        }
      }
    }
  }
}`

// remainingThreadComments pages through the comments of one thread that did
// not fit in the first page of the thread listing.
func (c *Client) remainingThreadComments(ctx context.Context, token string, threadID string, after string) ([]ReviewThreadComment, error) {
	var comments []ReviewThreadComment
	for after != "" {
		args := []string{"api", "graphql", "-f", "query=" + threadCommentsQuery, "-f", "id=" + threadID, "-f", "after=" + after}
		output, err := c.Runner.Run(ctx, token, args, nil)
		if err != nil {
			return nil, backendErr("list thread comments", err)
		}
		var resp threadCommentsResponse
		if err := json.Unmarshal(output, &resp); err != nil {
			return nil, backendErr("list thread comments", fmt.Errorf("failed to decode thread comments: %w", err))
		}
		page := resp.Data.Node.Comments
		comments = append(comments, threadComments(page.Nodes)...)
		after = ""
		if page.PageInfo.HasNextPage && page.PageInfo.EndCursor != nil {
			after = strings.TrimSpace(*page.PageInfo.EndCursor)
		}
	}
	return comments, nil
}

func threadComments(nodes []reviewThreadCommentNode) []ReviewThreadComment {
	out := make([]ReviewThreadComment, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, ReviewThreadComment{Author: n.Author.Login, Body: n.Body, CreatedAt: n.CreatedAt})
	}
	return out
}
