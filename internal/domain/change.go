package domain

// FileAction classifies how a single file changed within a pull request.
type FileAction int

const (
	ActionAdded FileAction = iota
	ActionModified
	ActionRemoved
	ActionRenamed
)

// Symbol returns the one-character marker used when rendering PR content.
func (a FileAction) Symbol() rune {
	switch a {
	case ActionAdded:
		return '+'
	case ActionModified:
		return 'M'
	case ActionRemoved:
		return '-'
	case ActionRenamed:
		return '^'
	default:
		return '?'
	}
}

// HasContent reports whether file content accompanies this action. Removed and
// renamed files are rendered by path only.
func (a FileAction) HasContent() bool {
	return a == ActionAdded || a == ActionModified
}

func (a FileAction) String() string {
	switch a {
	case ActionAdded:
		return "added"
	case ActionModified:
		return "modified"
	case ActionRemoved:
		return "removed"
	case ActionRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileChange is one changed file within a pull request. Content is populated
// only for added and modified files; a failed content fetch leaves it empty
// rather than failing the run.
type FileChange struct {
	Path    string
	Action  FileAction
	Content string
}
