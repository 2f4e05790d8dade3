package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ── 保序 JSON 辅助 ──
//
// encoding/json 解码 map 时会丢失键顺序，而"今天不在数据中时回退到第一个可用日"
// 依赖源文档中的键顺序，因此对象一律用 Token 流逐键解析。

// walkObject 按源文档顺序遍历 JSON 对象的每个键；重复键会被多次回调，由调用方决定取舍
func walkObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("期望 JSON 对象，实际为 %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("无效的对象键 %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("键 %q 解析失败: %w", key, err)
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}

	// 消费结尾的 '}'，其后只允许空白
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("JSON 对象之后存在多余内容")
	}
	return nil
}

// rawString 将 JSON 标量宽松地转为字符串：字符串原样、数字/布尔取字面量、null 为空
func rawString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("期望标量值，实际为 %s", abbreviate(string(trimmed)))
	default:
		return string(trimmed), nil
	}
}

// writeKey 写入 "key": 前缀
func writeKey(buf *bytes.Buffer, key string) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	return nil
}

func abbreviate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}
