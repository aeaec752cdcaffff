package models

import (
	"time"
)

// ApplicationStatus 公司申请状态
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
)

// Principal 角色
const (
	RoleCompany = "company"
	RoleAdmin   = "admin"
)

// CompanyApplication 公司申请记录（对应 companies 表）
// 不变量：EmissionCap 非空 当且仅当 Status == approved；
// DecidedAt 非空 当且仅当 Status != pending
type CompanyApplication struct {
	CompanyID          string            `json:"company_id" db:"company_id"`
	PrincipalID        string            `json:"principal_id" db:"principal_id"`
	CompanyName        string            `json:"company_name" db:"company_name"`
	RegistrationNumber string            `json:"registration_number" db:"registration_number"`
	ContactEmail       string            `json:"contact_email" db:"contact_email"`
	IndustrySector     *string           `json:"industry_sector,omitempty" db:"industry_sector"`
	ProductionCapacity *string           `json:"production_capacity,omitempty" db:"production_capacity"`
	EnergySource       *string           `json:"energy_source,omitempty" db:"energy_source"`
	EnergyConsumption  *string           `json:"energy_consumption,omitempty" db:"energy_consumption"`
	Status             ApplicationStatus `json:"status" db:"status"`
	EmissionCap        *float64          `json:"emission_cap,omitempty" db:"emission_cap"` // tons/year，审批通过时设置
	CreatedAt          time.Time         `json:"created_at" db:"created_at"`
	DecidedAt          *time.Time        `json:"decided_at,omitempty" db:"decided_at"`
}

// IsDecided 是否已做出审批决定
func (c *CompanyApplication) IsDecided() bool {
	return c.Status != StatusPending
}

// IsApproved 是否已审批通过
func (c *CompanyApplication) IsApproved() bool {
	return c.Status == StatusApproved
}

// Principal 已认证的身份（公司所有者或管理员）
type Principal struct {
	PrincipalID string `json:"principal_id" db:"principal_id"`
	Email       string `json:"email" db:"email"`
	Role        string `json:"role" db:"role"`
}
