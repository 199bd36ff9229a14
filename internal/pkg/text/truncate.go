package text

// Truncate 将超长文本截断到 max 字节并追加省略号。
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
