package services

import (
	"fmt"
	"html/template"
	"time"

	"projectnest/internal/models"
	"projectnest/internal/utils"
)

// OrphanPolicy decides what BuildThreads does with a reply whose parent is
// not part of the input.
type OrphanPolicy int

const (
	// OrphanDrop leaves orphaned replies out of the forest.
	OrphanDrop OrphanPolicy = iota
	// OrphanPromote emits orphaned replies as top-level nodes.
	OrphanPromote
	// OrphanError fails the whole build with ErrOrphanedReply.
	OrphanError
)

// ParseOrphanPolicy maps the config spelling to a policy.
func ParseOrphanPolicy(s string) (OrphanPolicy, error) {
	switch s {
	case "", "drop":
		return OrphanDrop, nil
	case "promote":
		return OrphanPromote, nil
	case "error":
		return OrphanError, nil
	}
	return OrphanDrop, fmt.Errorf("%w: orphan policy %q", ErrInvalidInput, s)
}

func (p OrphanPolicy) String() string {
	switch p {
	case OrphanPromote:
		return "promote"
	case OrphanError:
		return "error"
	}
	return "drop"
}

// ThreadNode is a comment with its replies nested beneath it.
type ThreadNode struct {
	ID          uint                 `json:"id"`
	ProjectID   uint                 `json:"project_id"`
	AuthorID    uint                 `json:"author_id"`
	Content     string               `json:"content"`
	ContentHTML template.HTML        `json:"content_html"`
	ParentID    *uint                `json:"parent_id"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	Author      models.AuthorSummary `json:"author"`
	Replies     []*ThreadNode        `json:"replies"`
}

func newThreadNode(c models.Comment) *ThreadNode {
	n := &ThreadNode{
		ID:          c.ID,
		ProjectID:   c.ProjectID,
		AuthorID:    c.AuthorID,
		Content:     c.Content,
		ContentHTML: utils.RenderMarkdown(c.Content),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		Author:      c.Author.Summary(),
		Replies:     []*ThreadNode{},
	}
	if c.ParentID != nil {
		pid := *c.ParentID
		n.ParentID = &pid
	}
	return n
}

// Count returns the number of nodes in the forest, replies included.
func Count(forest []*ThreadNode) int {
	total := 0
	for _, n := range forest {
		total += 1 + Count(n.Replies)
	}
	return total
}

// ValidateComments rejects rows that cannot be threaded: zero id, missing
// project or author, blank content, zero creation time, a project other
// than projectID, or a repeated id.
func ValidateComments(projectID uint, comments []models.Comment) error {
	seen := make(map[uint]struct{}, len(comments))
	for i, c := range comments {
		switch {
		case c.ID == 0:
			return fmt.Errorf("%w: row %d has no id", ErrMalformedComment, i)
		case c.ProjectID == 0 || c.ProjectID != projectID:
			return fmt.Errorf("%w: comment %d belongs to project %d, want %d", ErrMalformedComment, c.ID, c.ProjectID, projectID)
		case c.AuthorID == 0:
			return fmt.Errorf("%w: comment %d has no author", ErrMalformedComment, c.ID)
		case c.Content == "":
			return fmt.Errorf("%w: comment %d has no content", ErrMalformedComment, c.ID)
		case c.CreatedAt.IsZero():
			return fmt.Errorf("%w: comment %d has no creation time", ErrMalformedComment, c.ID)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate comment id %d", ErrMalformedComment, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}

// BuildThreads turns a flat, creation-ordered comment list into a forest.
// Top-level nodes and every replies slice keep input order. Depth is not
// limited. A comment that names itself as parent counts as an orphan.
// Comments only reachable through a parent cycle are never emitted; under
// OrphanError they fail the build.
func BuildThreads(comments []models.Comment, policy OrphanPolicy) ([]*ThreadNode, error) {
	nodes := make(map[uint]*ThreadNode, len(comments))
	for _, c := range comments {
		nodes[c.ID] = newThreadNode(c)
	}

	roots := make([]*ThreadNode, 0, len(comments))
	for _, c := range comments {
		node := nodes[c.ID]
		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}

		parent, ok := nodes[*c.ParentID]
		if !ok || *c.ParentID == c.ID {
			switch policy {
			case OrphanPromote:
				roots = append(roots, node)
			case OrphanError:
				return nil, fmt.Errorf("%w: comment %d, parent %d", ErrOrphanedReply, c.ID, *c.ParentID)
			}
			continue
		}
		parent.Replies = append(parent.Replies, node)
	}

	if policy == OrphanError {
		if placed := Count(roots); placed != len(comments) {
			return nil, fmt.Errorf("%w: %d comments form a parent cycle", ErrOrphanedReply, len(comments)-placed)
		}
	}
	return roots, nil
}
