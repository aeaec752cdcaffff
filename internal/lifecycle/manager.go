package lifecycle

import (
	"context"
	"regexp"
	"time"

	"go.uber.org/zap"

	"carbon-monitor/internal/config"
	"carbon-monitor/internal/locks"
	"carbon-monitor/internal/models"
)

// CompanyStore 公司记录存储
type CompanyStore interface {
	Create(ctx context.Context, company *models.CompanyApplication) error
	GetByID(ctx context.Context, companyID string) (*models.CompanyApplication, error)
	ListByStatus(ctx context.Context, status models.ApplicationStatus) ([]*models.CompanyApplication, error)
	ApplyDecision(ctx context.Context, companyID string, to models.ApplicationStatus, emissionCap *float64, decidedAt time.Time) (bool, error)
}

// PrincipalStore 身份存储
type PrincipalStore interface {
	CreatePrincipal(ctx context.Context, email, password, role string) (string, error)
	Authenticate(ctx context.Context, email, password string) (*models.Principal, error)
}

// RecordCache 公司记录缓存（状态迁移后刷新，供聚合器资格检查读取）
type RecordCache interface {
	SetCompanyRecord(ctx context.Context, companyID string, status models.ApplicationStatus, emissionCap *float64) error
}

// RegistrationInput 注册输入（对应注册页表单字段）
type RegistrationInput struct {
	CompanyName        string
	RegistrationNumber string
	Email              string
	Password           string
	IndustrySector     string
	ProductionCapacity string
	EnergySource       string
	EnergyConsumption  string
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Manager 申请生命周期管理器
// 拥有公司记录的状态机：pending →（approve|reject）→ 终态。
// 同一公司的迁移与遥测摄入共用公司锁，防止迁移中途混入摄入
type Manager struct {
	config     *config.Config
	locks      *locks.CompanyLocks
	companies  CompanyStore
	principals PrincipalStore
	cache      RecordCache
	logger     *zap.Logger
}

// NewManager 创建生命周期管理器
func NewManager(
	cfg *config.Config,
	companyLocks *locks.CompanyLocks,
	companies CompanyStore,
	principals PrincipalStore,
	recordCache RecordCache,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		config:     cfg,
		locks:      companyLocks,
		companies:  companies,
		principals: principals,
		cache:      recordCache,
		logger:     logger,
	}
}

// Register 注册公司申请
// 必填字段缺失或邮箱已注册返回 ValidationError。
// 成功后记录为 pending 状态，emission_cap 为空，同时创建认证身份
func (m *Manager) Register(ctx context.Context, input RegistrationInput) (*models.CompanyApplication, error) {
	// 1. 校验必填身份字段
	if input.CompanyName == "" {
		return nil, &models.ValidationError{Field: "company_name", Reason: "required"}
	}
	if input.RegistrationNumber == "" {
		return nil, &models.ValidationError{Field: "registration_number", Reason: "required"}
	}
	if input.Email == "" {
		return nil, &models.ValidationError{Field: "email", Reason: "required"}
	}
	if !emailPattern.MatchString(input.Email) {
		return nil, &models.ValidationError{Field: "email", Reason: "invalid format"}
	}
	if input.Password == "" {
		return nil, &models.ValidationError{Field: "password", Reason: "required"}
	}

	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()

	// 2. 创建认证身份（邮箱重复在此处报 ValidationError）
	principalID, err := m.principals.CreatePrincipal(storeCtx, input.Email, input.Password, models.RoleCompany)
	if err != nil {
		return nil, err
	}

	// 3. 创建公司记录（公司ID沿用身份ID）
	company := &models.CompanyApplication{
		CompanyID:          principalID,
		PrincipalID:        principalID,
		CompanyName:        input.CompanyName,
		RegistrationNumber: input.RegistrationNumber,
		ContactEmail:       input.Email,
		IndustrySector:     optional(input.IndustrySector),
		ProductionCapacity: optional(input.ProductionCapacity),
		EnergySource:       optional(input.EnergySource),
		EnergyConsumption:  optional(input.EnergyConsumption),
		Status:             models.StatusPending,
		CreatedAt:          time.Now(),
	}

	if err := m.companies.Create(storeCtx, company); err != nil {
		return nil, err
	}

	m.refreshCache(ctx, company)

	m.logger.Info("Company registered",
		zap.String("company_id", company.CompanyID),
		zap.String("company_name", company.CompanyName),
	)

	return company, nil
}

// Approve 审批通过，分配排放上限
// 仅管理员可调用；仅 pending 可迁移。对已 approved 且上限相同的重试视为
// 幂等成功（超时重试安全），上限不同或已 rejected 返回 InvalidTransitionError
func (m *Manager) Approve(ctx context.Context, principal *models.Principal, companyID string, emissionCap float64) (*models.CompanyApplication, error) {
	if err := m.requireAdmin(principal); err != nil {
		return nil, err
	}
	if emissionCap <= 0 {
		return nil, &models.ValidationError{Field: "emission_cap", Reason: "must be positive"}
	}

	unlock := m.locks.Lock(companyID)
	defer unlock()

	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()

	company, err := m.companies.GetByID(storeCtx, companyID)
	if err != nil {
		return nil, err
	}

	switch company.Status {
	case models.StatusPending:
		decidedAt := time.Now()
		applied, err := m.companies.ApplyDecision(storeCtx, companyID, models.StatusApproved, &emissionCap, decidedAt)
		if err != nil {
			return nil, err
		}
		if !applied {
			// 条件更新落空：另一个决定先到，按当前状态重新判定
			return m.resolveApproveConflict(storeCtx, companyID, emissionCap)
		}

		company.Status = models.StatusApproved
		company.EmissionCap = &emissionCap
		company.DecidedAt = &decidedAt
		m.refreshCache(ctx, company)

		m.logger.Info("Company approved",
			zap.String("company_id", companyID),
			zap.String("admin", principal.PrincipalID),
			zap.Float64("emission_cap", emissionCap),
		)
		return company, nil

	case models.StatusApproved:
		// 幂等重试：相同上限的重复 approve 是 no-op 成功
		if company.EmissionCap != nil && *company.EmissionCap == emissionCap {
			return company, nil
		}
		return nil, &models.InvalidTransitionError{CompanyID: companyID, From: company.Status, To: models.StatusApproved}

	default: // rejected
		return nil, &models.InvalidTransitionError{CompanyID: companyID, From: company.Status, To: models.StatusApproved}
	}
}

// Reject 审批拒绝
// 仅管理员可调用；仅 pending 可迁移。重复 reject 是幂等成功，
// 已 approved 返回 InvalidTransitionError，原决定保持不变
func (m *Manager) Reject(ctx context.Context, principal *models.Principal, companyID string) (*models.CompanyApplication, error) {
	if err := m.requireAdmin(principal); err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(companyID)
	defer unlock()

	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()

	company, err := m.companies.GetByID(storeCtx, companyID)
	if err != nil {
		return nil, err
	}

	switch company.Status {
	case models.StatusPending:
		decidedAt := time.Now()
		applied, err := m.companies.ApplyDecision(storeCtx, companyID, models.StatusRejected, nil, decidedAt)
		if err != nil {
			return nil, err
		}
		if !applied {
			return m.resolveRejectConflict(storeCtx, companyID)
		}

		company.Status = models.StatusRejected
		company.EmissionCap = nil
		company.DecidedAt = &decidedAt
		m.refreshCache(ctx, company)

		m.logger.Info("Company rejected",
			zap.String("company_id", companyID),
			zap.String("admin", principal.PrincipalID),
		)
		return company, nil

	case models.StatusRejected:
		return company, nil

	default: // approved
		return nil, &models.InvalidTransitionError{CompanyID: companyID, From: company.Status, To: models.StatusRejected}
	}
}

// GetStatus 查询申请记录
func (m *Manager) GetStatus(ctx context.Context, companyID string) (*models.CompanyApplication, error) {
	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()

	return m.companies.GetByID(storeCtx, companyID)
}

// ListByStatus 按状态查询申请列表（管理端审核列表）
func (m *Manager) ListByStatus(ctx context.Context, status models.ApplicationStatus) ([]*models.CompanyApplication, error) {
	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()

	return m.companies.ListByStatus(storeCtx, status)
}

// Authenticate 认证邮箱口令
func (m *Manager) Authenticate(ctx context.Context, email, password string) (*models.Principal, error) {
	storeCtx, cancel := m.storeContext(ctx)
	defer cancel()

	return m.principals.Authenticate(storeCtx, email, password)
}

// resolveApproveConflict 条件更新落空后的判定
// 状态已变：若是相同上限的 approved 则视为幂等成功，否则是冲突决定
func (m *Manager) resolveApproveConflict(ctx context.Context, companyID string, emissionCap float64) (*models.CompanyApplication, error) {
	company, err := m.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company.Status == models.StatusApproved && company.EmissionCap != nil && *company.EmissionCap == emissionCap {
		return company, nil
	}
	return nil, &models.InvalidTransitionError{CompanyID: companyID, From: company.Status, To: models.StatusApproved}
}

// resolveRejectConflict 条件更新落空后的判定
func (m *Manager) resolveRejectConflict(ctx context.Context, companyID string) (*models.CompanyApplication, error) {
	company, err := m.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company.Status == models.StatusRejected {
		return company, nil
	}
	return nil, &models.InvalidTransitionError{CompanyID: companyID, From: company.Status, To: models.StatusRejected}
}

// requireAdmin 管理操作需要 admin 角色（显式角色声明，不做邮箱字符串匹配）
func (m *Manager) requireAdmin(principal *models.Principal) error {
	if principal == nil || principal.Role != models.RoleAdmin {
		return models.ErrPermissionDenied
	}
	return nil
}

// refreshCache 状态迁移后刷新公司记录缓存（尽力而为，失败只记日志）
func (m *Manager) refreshCache(ctx context.Context, company *models.CompanyApplication) {
	if err := m.cache.SetCompanyRecord(ctx, company.CompanyID, company.Status, company.EmissionCap); err != nil {
		m.logger.Warn("Failed to refresh company record cache",
			zap.String("company_id", company.CompanyID),
			zap.Error(err),
		)
	}
}

// storeContext 外部存储调用的有界超时
func (m *Manager) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(m.config.Store.TimeoutSec)*time.Second)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
