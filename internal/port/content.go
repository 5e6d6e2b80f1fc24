package port

import "context"

// ContentSource retrieves raw file contents for the files changed in a PR.
type ContentSource interface {
	// FetchAll fetches every path at the given commit and returns contents in
	// input order, regardless of completion order. A file that cannot be
	// fetched yields an empty string in its slot; only context cancellation
	// fails the whole call.
	FetchAll(ctx context.Context, repo, commitSHA string, paths []string) ([]string, error)
}
