package models

import (
	"encoding/json"
	"fmt"
)

// Reaction 访客对文章的态度，空值表示未表态
type Reaction string

const (
	ReactionNone    Reaction = ""
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
)

func ParseReaction(s string) (Reaction, error) {
	switch Reaction(s) {
	case ReactionLike, ReactionDislike:
		return Reaction(s), nil
	case ReactionNone, "none":
		return ReactionNone, nil
	}
	return ReactionNone, fmt.Errorf("unknown reaction %q", s)
}

// MarshalJSON 未表态编码为 null
func (r Reaction) MarshalJSON() ([]byte, error) {
	if r == ReactionNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

func (r *Reaction) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = ReactionNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseReaction(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// UserEngagement 单个访客对单篇文章的互动记录
type UserEngagement struct {
	Reaction Reaction `json:"reaction"`
	Rating   *int     `json:"rating"`
}

// IsZero {none, none} 的记录不应持久化
func (e UserEngagement) IsZero() bool {
	return e.Reaction == ReactionNone && e.Rating == nil
}

// Stars 返回评分，未评分为 0
func (e UserEngagement) Stars() int {
	if e.Rating == nil {
		return 0
	}
	return *e.Rating
}

// EngagementMap articleId -> 互动记录
type EngagementMap map[string]UserEngagement

// CommentReactionMap commentId -> 表情
type CommentReactionMap map[string]string
