package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"academic-info/config"
	"academic-info/internal/dto"
	"academic-info/internal/gateway"
	"academic-info/internal/model"
	"academic-info/internal/source"
	"academic-info/pkg/jwt"
)

// ── 管理模块业务错误 ──

var (
	ErrMissingCredentials = errors.New("用户名和密码不能为空")
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrUnauthorized       = errors.New("未授权，请先登录")
	ErrInvalidJSON        = errors.New("数据不是有效的课表 JSON 数组")
	ErrRemoteGateway      = errors.New("远程管理网关暂时不可用")
)

// RoleAdmin 管理员角色
const RoleAdmin = "admin"

// Principal 已通过认证的调用方
type Principal struct {
	Username string
	Role     string
	Token    string // 远程模式下原样转发给网关
}

// AdminService 管理网关业务接口
//
// 设计说明：
//   - 本地模式：bcrypt 校验配置中的管理员密码，签发 HS256 JWT
//   - 远程模式：登录与更新原样转发到远程网关，本地只做 JSON 预校验
//   - 过期 token 与从未签发的 token 不区分，统一返回 ErrUnauthorized
//   - 不提供刷新与注销接口，注销仅由客户端丢弃 token
type AdminService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (string, error)
	Authenticate(ctx context.Context, token string) (*Principal, error)
	Update(ctx context.Context, req *dto.UpdateRequest) (string, error)
	EditSession(ctx context.Context, p *Principal, batch, day string, index int, patch *dto.SessionPatchRequest) (*dto.SessionResponse, error)
}

type adminService struct {
	cfg       *config.AuthConfig
	jwtMgr    *jwt.Manager
	gateway   *gateway.Client // 仅远程模式非 nil
	timetable TimetableService
	logger    *zap.Logger
}

// NewAdminService 创建 AdminService 实例
func NewAdminService(
	cfg *config.AuthConfig,
	jwtMgr *jwt.Manager,
	gw *gateway.Client,
	timetable TimetableService,
	logger *zap.Logger,
) AdminService {
	return &adminService{
		cfg:       cfg,
		jwtMgr:    jwtMgr,
		gateway:   gw,
		timetable: timetable,
		logger:    logger,
	}
}

func (s *adminService) remote() bool {
	return s.timetable.Capability() == source.CapRemoteEdit && s.gateway != nil
}

// ═══════════════════════════════════════════════════════════
// Login
// ═══════════════════════════════════════════════════════════

func (s *adminService) Login(ctx context.Context, req *dto.LoginRequest) (string, error) {
	// 1. 去除首尾空白后为空视为缺失，在任何校验之前拒绝
	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)
	if username == "" || password == "" {
		return "", ErrMissingCredentials
	}

	// 2. 远程模式直接转发
	if s.remote() {
		token, err := s.gateway.Login(ctx, username, password)
		if err != nil {
			return "", s.mapGatewayError(err, ErrInvalidCredentials)
		}
		return token, nil
	}

	// 3. 本地校验
	if s.cfg.AdminUsername == "" || s.cfg.AdminPasswordHash == "" || s.jwtMgr == nil {
		return "", ErrInvalidCredentials
	}
	if username != s.cfg.AdminUsername {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.jwtMgr.GenerateToken(username, RoleAdmin)
	if err != nil {
		s.logger.Error("生成 Token 失败", zap.Error(err))
		return "", err
	}
	s.logger.Info("管理员登录", zap.String("username", username))
	return token, nil
}

// Authenticate 校验 token；远程模式下无法本地校验，留给网关判定
func (s *adminService) Authenticate(_ context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	if s.remote() {
		return &Principal{Username: "remote", Role: RoleAdmin, Token: token}, nil
	}
	if s.jwtMgr == nil {
		return nil, ErrUnauthorized
	}
	claims, err := s.jwtMgr.ParseToken(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return &Principal{Username: claims.Username, Role: claims.Role, Token: token}, nil
}

// ═══════════════════════════════════════════════════════════
// Update 整份覆盖
// ═══════════════════════════════════════════════════════════

func (s *adminService) Update(ctx context.Context, req *dto.UpdateRequest) (string, error) {
	// 1. 认证
	p, err := s.Authenticate(ctx, req.Token)
	if err != nil {
		return "", err
	}

	// 2. 本地校验数据结构，失败时不做任何修改
	batches, err := ParseReplacement(req.Data)
	if err != nil {
		return "", err
	}

	// 3. 持久化
	if err := s.persist(ctx, p, batches, ""); err != nil {
		return "", err
	}
	return "Timetable updated successfully!", nil
}

// ParseReplacement 校验批量编辑数据：必须是班级对象组成的 JSON 数组
func ParseReplacement(data []byte) ([]model.BatchTimetable, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrInvalidJSON
	}
	batches, err := model.ParseBatches(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	seen := make(map[string]struct{}, len(batches))
	for i, b := range batches {
		if strings.TrimSpace(b.Batch) == "" {
			return nil, fmt.Errorf("%w: 第 %d 个班级缺少 batch", ErrInvalidJSON, i+1)
		}
		if _, dup := seen[b.Batch]; dup {
			return nil, fmt.Errorf("%w: 班级 %s 重复", ErrInvalidJSON, b.Batch)
		}
		seen[b.Batch] = struct{}{}
	}
	return batches, nil
}

// ═══════════════════════════════════════════════════════════
// EditSession 字段级编辑
// ═══════════════════════════════════════════════════════════

func (s *adminService) EditSession(
	ctx context.Context,
	p *Principal,
	batch, day string,
	index int,
	patch *dto.SessionPatchRequest,
) (*dto.SessionResponse, error) {
	if p == nil {
		return nil, ErrUnauthorized
	}
	if !s.timetable.Capability().CanEdit() {
		return nil, ErrReadOnlySource
	}

	snap, err := s.timetable.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	// 编辑副本，不触碰共享快照
	batches := model.CloneBatches(snap.Batches)
	var target *model.BatchTimetable
	for i := range batches {
		if batches[i].Batch == batch {
			target = &batches[i]
			break
		}
	}
	if target == nil {
		return nil, ErrBatchNotFound
	}

	dayIdx := -1
	for i := range target.Days {
		if strings.EqualFold(target.Days[i].Day, day) {
			dayIdx = i
			break
		}
	}
	if dayIdx < 0 {
		return nil, ErrDayNotFound
	}
	sessions := target.Days[dayIdx].Sessions
	if index < 0 || index >= len(sessions) {
		return nil, ErrSessionIndex
	}

	patch.Apply(&sessions[index])

	if err := s.persist(ctx, p, batches, batch); err != nil {
		return nil, err
	}
	resp := dto.NewSessionResponse(index, sessions[index])
	return &resp, nil
}

// persist 本地数据源落库；远程数据源转发网关后更新内存快照
// changed 非空时只有该班级被修改
func (s *adminService) persist(ctx context.Context, p *Principal, batches []model.BatchTimetable, changed string) error {
	if !s.remote() {
		if changed != "" {
			return s.timetable.ReplaceBatch(ctx, batches, changed, p.Username)
		}
		return s.timetable.Replace(ctx, batches, p.Username)
	}

	data, err := model.MarshalBatches(batches, false)
	if err != nil {
		return err
	}
	if _, err := s.gateway.Update(ctx, p.Token, data); err != nil {
		return s.mapGatewayError(err, ErrUnauthorized)
	}
	s.timetable.Install(batches)
	s.logger.Info("课表已通过远程网关更新", zap.Int("batches", len(batches)))
	return nil
}

// mapGatewayError 网关明确拒绝时带上网关的原因
func (s *adminService) mapGatewayError(err error, rejected error) error {
	var rej *gateway.RejectedError
	if errors.As(err, &rej) {
		if rej.Message == "" {
			return rejected
		}
		return fmt.Errorf("%w: %s", rejected, rej.Message)
	}
	s.logger.Warn("远程管理网关调用失败", zap.Error(err))
	return fmt.Errorf("%w: %v", ErrRemoteGateway, err)
}
