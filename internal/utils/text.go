package utils

import (
	"hash/fnv"
	"strings"
	"unicode"
)

// Truncate 按字符截断，超长时追加 "..."
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimRightFunc(string(runes[:n]), unicode.IsSpace) + "..."
}

// DefaultExcerpt 未填写摘要时取正文前 n 个字符加省略号
func DefaultExcerpt(content string, n int) string {
	runes := []rune(content)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes) + "..."
}

// Initials 评论头像上显示的首字母
func Initials(name string) string {
	var out []rune
	for _, word := range strings.Fields(name) {
		r := []rune(word)[0]
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out = append(out, unicode.ToUpper(r))
		}
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}

var avatarColors = []string{"indigo", "rose", "amber", "emerald", "sky", "violet"}

// AvatarColor 同名作者总是得到相同的颜色
func AvatarColor(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	return avatarColors[h.Sum32()%uint32(len(avatarColors))]
}
