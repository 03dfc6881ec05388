package services

import "fmt"

// Query keys for the read cache. Prefixes are what mutations invalidate.
const (
	projectKeyPrefix      = "projects:"
	browseKeyPrefix       = "projects:browse:"
	commentKeyPrefix      = "comments:"
	conversationKeyPrefix = "conversations:"
)

func projectKey(slug string) string {
	return "projects:detail:" + slug
}

func commentsKey(projectID uint) string {
	return fmt.Sprintf("%sproject:%d", commentKeyPrefix, projectID)
}

func conversationsKey(userID uint) string {
	return fmt.Sprintf("conversations:user:%d", userID)
}
