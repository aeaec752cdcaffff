package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"carbon-monitor/internal/cache"
	"carbon-monitor/internal/models"
)

// ComplianceReportHeader 合规报表表头
var ComplianceReportHeader = []string{
	"Company Name",
	"Registration Number",
	"Industry Sector",
	"Status",
	"Emission Cap (tons/year)",
	"Current Emissions",
	"Trend %",
	"Forecast",
	"Alert Severity",
	"Alert Reason",
	"Decided At",
}

// CompanyLister 公司列表查询
type CompanyLister interface {
	ListByStatus(ctx context.Context, status models.ApplicationStatus) ([]*models.CompanyApplication, error)
}

// ProjectionReader 遥测投影读取
type ProjectionReader interface {
	Get(ctx context.Context, companyID string) (*models.TelemetryProjection, error)
}

// Exporter 合规报表导出器
// 汇总全部公司的申请状态与最新遥测投影，生成 Excel 文件
type Exporter struct {
	companies   CompanyLister
	projections ProjectionReader
	logger      *zap.Logger
}

// NewExporter 创建导出器
func NewExporter(companies CompanyLister, projections ProjectionReader, logger *zap.Logger) *Exporter {
	return &Exporter{
		companies:   companies,
		projections: projections,
		logger:      logger,
	}
}

// Generate 生成合规报表
func (e *Exporter) Generate(ctx context.Context) ([]byte, error) {
	companies, err := e.companies.ListByStatus(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	f := excelize.NewFile()
	// 注意：这里不能 defer Close()，WriteTo 需要文件保持打开

	sheetName := "Compliance"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	// 写表头
	if err := f.SetSheetRow(sheetName, "A1", &ComplianceReportHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	// 逐公司写数据行
	for i, company := range companies {
		row := e.buildRow(ctx, company)
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row for company %s: %w", company.CompanyID, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel: %w", err)
	}
	f.Close()

	e.logger.Info("Compliance report generated",
		zap.Int("companies", len(companies)),
	)

	return buf.Bytes(), nil
}

// buildRow 组装单个公司的报表行
func (e *Exporter) buildRow(ctx context.Context, company *models.CompanyApplication) []interface{} {
	row := []interface{}{
		company.CompanyName,
		company.RegistrationNumber,
		deref(company.IndustrySector),
		string(company.Status),
		"",
		"", "", "", "", "",
		"",
	}

	if company.EmissionCap != nil {
		row[4] = *company.EmissionCap
	}
	if company.DecidedAt != nil {
		row[10] = company.DecidedAt.Format("2006-01-02 15:04:05")
	}

	projection, err := e.projections.Get(ctx, company.CompanyID)
	if err != nil {
		// 缓存未命中表示该公司暂无遥测，报表留空
		if !errors.Is(err, cache.ErrCacheMiss) {
			e.logger.Warn("Failed to read projection for report",
				zap.String("company_id", company.CompanyID),
				zap.Error(err),
			)
		}
		return row
	}

	if projection.Snapshot != nil {
		row[5] = projection.Snapshot.Current
		row[6] = projection.Snapshot.TrendPct
		row[7] = projection.Snapshot.Forecast
	}
	if projection.Alert != nil {
		row[8] = string(projection.Alert.Severity)
		row[9] = projection.Alert.Reason
	}

	return row
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
