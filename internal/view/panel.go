package view

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"
	gocache "github.com/patrickmn/go-cache"
)

// 管理面板状态
const (
	PanelHidden  = "hidden"
	PanelLogin   = "login"
	PanelEditing = "editing"
)

// 管理面板事件
const (
	EvtShow    = "show"
	EvtHide    = "hide"
	EvtLoginOK = "login_ok"
	EvtLogout  = "logout"
)

// Notice 面板提示信息
type Notice struct {
	Text    string
	IsError bool
}

// Panel 单个客户端的管理面板会话
//
// 生命周期：hidden → login (show) → editing (login_ok) → login (logout) → hidden (hide)
type Panel struct {
	mu        sync.Mutex
	machine   *fsm.FSM
	token     string
	draft     string
	loginMsg  *Notice
	updateMsg *Notice
}

// NewPanel 创建处于 hidden 状态的面板
func NewPanel() *Panel {
	p := &Panel{}
	p.machine = fsm.NewFSM(
		PanelHidden,
		fsm.Events{
			{Name: EvtShow, Src: []string{PanelHidden}, Dst: PanelLogin},
			{Name: EvtHide, Src: []string{PanelLogin, PanelEditing}, Dst: PanelHidden},
			{Name: EvtLoginOK, Src: []string{PanelLogin}, Dst: PanelEditing},
			{Name: EvtLogout, Src: []string{PanelEditing}, Dst: PanelLogin},
		},
		fsm.Callbacks{
			"enter_" + PanelHidden: func(_ context.Context, _ *fsm.Event) {
				p.loginMsg = nil
				p.updateMsg = nil
			},
			"enter_" + PanelLogin: func(_ context.Context, e *fsm.Event) {
				if e.Event == EvtLogout {
					// 注销只清除本地 token，不通知服务端
					p.token = ""
					p.updateMsg = nil
				}
			},
		},
	)
	return p
}

// PanelView 渲染用的只读副本
type PanelView struct {
	State     string
	LoggedIn  bool
	Token     string
	Draft     string
	LoginMsg  *Notice
	UpdateMsg *Notice
}

// View 返回当前面板快照
func (p *Panel) View() PanelView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PanelView{
		State:     p.machine.Current(),
		LoggedIn:  p.machine.Current() == PanelEditing,
		Token:     p.token,
		Draft:     p.draft,
		LoginMsg:  p.loginMsg,
		UpdateMsg: p.updateMsg,
	}
}

// Token 当前登录 token
func (p *Panel) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

// Show 打开面板；隐藏前已登录时直接回到编辑状态
func (p *Panel) Show(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fire(ctx, EvtShow); err != nil {
		return err
	}
	if p.token != "" {
		return p.fire(ctx, EvtLoginOK)
	}
	return nil
}

// Hide 关闭面板
func (p *Panel) Hide(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fire(ctx, EvtHide)
}

// LoginSucceeded 保存 token，并用当前数据预填批量编辑框
func (p *Panel) LoginSucceeded(ctx context.Context, token, draft string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	// 未先打开面板直接提交登录表单
	if err := p.fire(ctx, EvtShow); err != nil {
		return err
	}
	if err := p.fire(ctx, EvtLoginOK); err != nil {
		return err
	}
	p.token = token
	p.draft = draft
	p.loginMsg = &Notice{Text: "Login successful"}
	return nil
}

// LoginFailed 记录登录失败原因，状态不变
func (p *Panel) LoginFailed(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loginMsg = &Notice{Text: msg, IsError: true}
}

// Logout 仅清除本地 token
func (p *Panel) Logout(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fire(ctx, EvtLogout)
}

// UpdateResult 记录批量更新结果；失败时保留用户输入
func (p *Panel) UpdateResult(draft, msg string, isErr bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.draft = draft
	p.updateMsg = &Notice{Text: msg, IsError: isErr}
}

// fire 调用方需持有 mu；当前状态不接受该事件时视为无操作，重复提交表单不会报错
func (p *Panel) fire(ctx context.Context, event string) error {
	if !p.machine.Can(event) {
		return nil
	}
	return p.machine.Event(ctx, event)
}

// ── 面板会话存储 ──

// PanelStore 按客户端保存面板会话，空闲超时后丢弃
type PanelStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewPanelStore 创建面板存储
func NewPanelStore(idle time.Duration) *PanelStore {
	return &PanelStore{cache: gocache.New(idle, idle)}
}

// Get 取客户端的面板，不存在时新建；每次访问顺延过期时间
func (s *PanelStore) Get(clientID string) *Panel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get(clientID); ok {
		p := v.(*Panel)
		s.cache.SetDefault(clientID, p)
		return p
	}
	p := NewPanel()
	s.cache.SetDefault(clientID, p)
	return p
}
