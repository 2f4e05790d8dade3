package dto

import "encoding/json"

// ── 管理网关请求 ──
// 登录与更新的字段名与既有网关协议保持一致，缺失字段由 Service 层判定

// LoginRequest 管理员登录（JSON 或表单）
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// UpdateRequest 整份课表覆盖；Data 须为班级对象数组
type UpdateRequest struct {
	Token string          `json:"token"`
	Data  json.RawMessage `json:"data"`
}

// ── 面板表单 ──

// PanelLoginForm 管理面板登录表单
type PanelLoginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

// PanelUpdateForm 管理面板批量编辑表单
type PanelUpdateForm struct {
	Data string `form:"data"`
}
