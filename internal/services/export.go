package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/occhealth/pcmso-backend/internal/data/repos"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/render"
	"github.com/occhealth/pcmso-backend/internal/observability"
	"github.com/occhealth/pcmso-backend/internal/platform/apierr"
	"github.com/occhealth/pcmso-backend/internal/platform/dbctx"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

const (
	matrixSheet  = "Exames"
	summarySheet = "Resumo"
)

var matrixHeaders = []string{
	"Cargo", "Exame", "Origem", "Tipo", "Meses", "Regra avançada", "Periodicidade",
	"Admissional", "Periódico", "Retorno ao trabalho", "Mudança de função", "Demissional",
}

type ExportService interface {
	// ExportVersionXLSX renders a version's exam matrix as a workbook.
	ExportVersionXLSX(dbc dbctx.Context, versionID uuid.UUID) ([]byte, error)
}

type exportService struct {
	db           *gorm.DB
	log          *logger.Logger
	metrics      *observability.Metrics
	companies    repos.CompanyRepo
	versions     repos.PCMSOVersionRepo
	requirements repos.PCMSORequirementRepo
}

func NewExportService(
	db *gorm.DB,
	baseLog *logger.Logger,
	metrics *observability.Metrics,
	companies repos.CompanyRepo,
	versions repos.PCMSOVersionRepo,
	requirements repos.PCMSORequirementRepo,
) ExportService {
	return &exportService{
		db:           db,
		log:          baseLog.With("service", "ExportService"),
		metrics:      metrics,
		companies:    companies,
		versions:     versions,
		requirements: requirements,
	}
}

func (s *exportService) ExportVersionXLSX(dbc dbctx.Context, versionID uuid.UUID) (out []byte, err error) {
	dbc, op := startOperation(dbc, s.metrics, "pcmso.ExportVersionXLSX", idAttr("version_id", versionID))
	defer func() { op.end(err) }()

	version, err := s.versions.GetByID(dbc, versionID)
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	if version == nil {
		return nil, apierr.NotFound("version_not_found", "PCMSO version %s not found", versionID)
	}
	company, err := s.companies.GetByID(dbc, version.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if company == nil {
		return nil, apierr.NotFound("company_not_found", "company %s not found", version.CompanyID)
	}
	rows, err := s.requirements.ListByVersion(dbc, versionID)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", matrixSheet); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	for i, h := range matrixHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(matrixSheet, cell, h)
		f.SetCellStyle(matrixSheet, cell, cell, headerStyle)
	}
	for i, row := range rows {
		policy, err := row.Policy()
		if err != nil {
			return nil, fmt.Errorf("requirement %s: stored periodicity: %w", row.ID, err)
		}
		var months interface{} = ""
		if row.PeriodicityValue != nil {
			months = *row.PeriodicityValue
		}
		advanced := ""
		if policy.Rule != nil {
			advanced = string(policy.Rule.Kind())
		}
		values := []interface{}{
			row.JobTitle,
			row.ExamName,
			string(row.Source),
			string(row.PeriodicityType),
			months,
			advanced,
			render.Periodicity(policy),
			yesNo(row.OnAdmission),
			yesNo(row.Periodic),
			yesNo(row.OnReturn),
			yesNo(row.OnChange),
			yesNo(row.OnDismissal),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(matrixSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("xlsx row: %w", err)
		}
	}
	for i, w := range []float64{28, 36, 10, 12, 8, 20, 32, 12, 12, 18, 18, 12} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(matrixSheet, col, col, w)
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	signedAt := ""
	if version.SignedAt != nil {
		signedAt = version.SignedAt.UTC().Format(time.RFC3339)
	}
	summary := [][]interface{}{
		{"Empresa", company.TradeName},
		{"CNPJ", company.CNPJ},
		{"Título", version.Title},
		{"Versão", version.VersionNumber},
		{"Status", string(version.Status)},
		{"Assinada em", signedAt},
		{"Digest", version.Digest},
		{"Exames", len(rows)},
	}
	for i, values := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return nil, fmt.Errorf("xlsx row: %w", err)
		}
		f.SetCellStyle(summarySheet, cell, cell, headerStyle)
	}
	f.SetColWidth(summarySheet, "A", "A", 16)
	f.SetColWidth(summarySheet, "B", "B", 72)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.log.Debug("version exported", "version_id", versionID, "rows", len(rows), "bytes", buf.Len())
	return buf.Bytes(), nil
}

func yesNo(b bool) string {
	if b {
		return "Sim"
	}
	return "Não"
}
