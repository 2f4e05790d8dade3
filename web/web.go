// Package web 内嵌的页面模板
package web

import (
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates 解析全部页面模板；funcs 与内置函数合并
func Templates(funcs template.FuncMap) (*template.Template, error) {
	all := template.FuncMap{
		"join":  strings.Join,
		"lower": strings.ToLower,
		"page":  pageMeta,
	}
	for k, v := range funcs {
		all[k] = v
	}
	return template.New("").Funcs(all).ParseFS(templateFS, "templates/*.html")
}

// pageMeta 公共头部参数；refresh 为 0 时不自动刷新
func pageMeta(title string, dark bool, refresh int) map[string]interface{} {
	return map[string]interface{}{"Title": title, "Dark": dark, "Refresh": refresh}
}
