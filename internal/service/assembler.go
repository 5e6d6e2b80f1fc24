package service

import (
	"fmt"
	"strings"

	"github.com/arturoeanton/go-pr-dedup/internal/domain"
)

// BuildChanges merges the four path groups and their fetched contents into
// the stable rendering order: added, then modified, then removed, then
// renamed, each group in input-list order. addedContent and modifiedContent
// must be index-aligned with their path lists; a missing fetch result is an
// empty string, which renders as empty content rather than failing the run.
func BuildChanges(added, modified, removed, renamed, addedContent, modifiedContent []string) []domain.FileChange {
	changes := make([]domain.FileChange, 0, len(added)+len(modified)+len(removed)+len(renamed))

	for i, path := range added {
		fc := domain.FileChange{Path: path, Action: domain.ActionAdded}
		if i < len(addedContent) {
			fc.Content = addedContent[i]
		}
		changes = append(changes, fc)
	}
	for i, path := range modified {
		fc := domain.FileChange{Path: path, Action: domain.ActionModified}
		if i < len(modifiedContent) {
			fc.Content = modifiedContent[i]
		}
		changes = append(changes, fc)
	}
	for _, path := range removed {
		changes = append(changes, domain.FileChange{Path: path, Action: domain.ActionRemoved})
	}
	for _, path := range renamed {
		changes = append(changes, domain.FileChange{Path: path, Action: domain.ActionRenamed})
	}
	return changes
}

// AssembleContent renders the file changes into one deterministic text blob.
// Each file renders as "{symbol} : {path}\n{content}\n", with the content
// line omitted for actions that carry none. A PR with no file changes at all
// (bot or automated PRs) renders as a single space so the pipeline still
// produces a vector.
func AssembleContent(changes []domain.FileChange) string {
	if len(changes) == 0 {
		return " "
	}

	var sb strings.Builder
	for _, fc := range changes {
		if fc.Action.HasContent() {
			fmt.Fprintf(&sb, "%c : %s\n%s\n", fc.Action.Symbol(), fc.Path, fc.Content)
		} else {
			fmt.Fprintf(&sb, "%c : %s\n", fc.Action.Symbol(), fc.Path)
		}
	}
	return sb.String()
}
