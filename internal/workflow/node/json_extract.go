package node

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ExtractJSONObject 从模型输出中取出第一个能完整解析的 JSON 对象或数组。
// 模型常在 JSON 前后附带说明文字或 ``` 代码块，找不到时返回去空白的原文
func ExtractJSONObject(s string) string {
	raw := strings.TrimSpace(s)
	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' && raw[i] != '[' {
			continue
		}
		var v json.RawMessage
		dec := json.NewDecoder(strings.NewReader(raw[i:]))
		if err := dec.Decode(&v); err != nil {
			continue
		}
		return string(bytes.TrimSpace(v))
	}
	return raw
}
