package llm

import "strings"

const fence = "```"

// ExtractJSON 从模型回复中取出一个 JSON 值的文本，按顺序尝试：
//  1. 标注为 json 的代码块；
//  2. 任意一个内容以 { 或 [ 开头的代码块；
//  3. 第一个 { 到最后一个 } 之间的子串；
//  4. 原文。
func ExtractJSON(text string) string {
	if start := strings.Index(text, fence+"json"); start >= 0 {
		rest := text[start+len(fence)+len("json"):]
		if end := strings.Index(rest, fence); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}

	for rest := text; ; {
		open := strings.Index(rest, fence)
		if open < 0 {
			break
		}
		rest = rest[open+len(fence):]
		end := strings.Index(rest, fence)
		if end < 0 {
			break
		}
		inner := strings.TrimSpace(rest[:end])
		if strings.HasPrefix(inner, "{") || strings.HasPrefix(inner, "[") {
			return inner
		}
		rest = rest[end+len(fence):]
	}

	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			return text[start : end+1]
		}
	}
	return text
}
