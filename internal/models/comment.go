package models

import (
	"sort"
	"time"
)

const GuestAuthor = "Guest Reader"

// ReactionPalette 评论可用的表情
var ReactionPalette = []string{"👍", "❤️", "😂", "😮", "👏", "🔥"}

type Comment struct {
	ID        string         `json:"id"`
	ArticleID string         `json:"articleId"`
	Author    string         `json:"author"`
	Text      string         `json:"text"`
	CreatedAt time.Time      `json:"createdAt"`
	Reactions map[string]int `json:"reactions"`
}

type ReactionCount struct {
	Emoji string
	Count int
}

// Clone 深拷贝 reactions
func (c Comment) Clone() Comment {
	reactions := make(map[string]int, len(c.Reactions))
	for k, v := range c.Reactions {
		reactions[k] = v
	}
	c.Reactions = reactions
	return c
}

// ReactionList 按调色板顺序返回计数，调色板之外的表情按字典序排在后面
func (c Comment) ReactionList() []ReactionCount {
	order := make(map[string]int, len(ReactionPalette))
	for i, e := range ReactionPalette {
		order[e] = i
	}

	out := make([]ReactionCount, 0, len(c.Reactions))
	for emoji, count := range c.Reactions {
		if count > 0 {
			out = append(out, ReactionCount{Emoji: emoji, Count: count})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		oi, iok := order[out[i].Emoji]
		oj, jok := order[out[j].Emoji]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		}
		return out[i].Emoji < out[j].Emoji
	})
	return out
}

// InPalette 判断表情是否属于默认调色板
func InPalette(emoji string) bool {
	for _, e := range ReactionPalette {
		if e == emoji {
			return true
		}
	}
	return false
}
