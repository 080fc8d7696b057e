package models

// CreateTopicRequest opens a new voting topic.
type CreateTopicRequest struct {
	Title           string `json:"title"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// CreateTopicResponse is returned after a successful topic creation.
type CreateTopicResponse struct {
	TopicID  uint64 `json:"topic_id"`
	Deadline int64  `json:"deadline"`
}

// VoteRequest casts a yes/no vote on a topic.
type VoteRequest struct {
	Support bool `json:"support"`
}

// HasVotedResponse reports whether an account already voted on a topic.
type HasVotedResponse struct {
	TopicID uint64  `json:"topic_id"`
	Account Account `json:"account"`
	Voted   bool    `json:"voted"`
}
