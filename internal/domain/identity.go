package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIdentityDecode reports a stored id that does not follow the
// "{repo}:{pr_number}" encoding. Ids are produced only by EncodePRID, so a
// decode failure on a store response is an invariant violation, not a user
// error.
var ErrIdentityDecode = errors.New("malformed pr identity")

// EncodePRID encodes a repository name and PR number into the single opaque
// id used as the vector store key. Repository names may contain path
// separators; the PR number is always the trailing segment.
func EncodePRID(repo, prNumber string) string {
	return repo + ":" + prNumber
}

// DecodePRID is the inverse of EncodePRID. The PR number is the numeric
// segment after the last ':'; the repository is everything before it.
func DecodePRID(id string) (repo, prNumber string, err error) {
	i := strings.LastIndexByte(id, ':')
	if i <= 0 || i == len(id)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrIdentityDecode, id)
	}
	repo, prNumber = id[:i], id[i+1:]
	for _, r := range prNumber {
		if r < '0' || r > '9' {
			return "", "", fmt.Errorf("%w: non-numeric pr number in %q", ErrIdentityDecode, id)
		}
	}
	return repo, prNumber, nil
}

// PullRequestURL builds the canonical web URL for a PR.
func PullRequestURL(repo, prNumber string) string {
	return fmt.Sprintf("https://github.com/%s/pull/%s", repo, prNumber)
}
