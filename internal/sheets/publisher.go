package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/export"
	"github.com/Veraticus/condo-quotas/internal/quota"
)

// SchedulePublisher writes computed schedules to a spreadsheet tab.
type SchedulePublisher interface {
	Publish(ctx context.Context, s *quota.Schedule, title string) (string, error)
}

// Publisher writes quota schedules to Google Sheets.
type Publisher struct {
	service *sheets.Service
	logger  *slog.Logger
	now     func() time.Time
	config  Config
}

// NewPublisher creates a Google Sheets schedule publisher.
func NewPublisher(ctx context.Context, config Config, logger *slog.Logger) (*Publisher, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Publisher{
		config:  config,
		service: service,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Publish replaces the contents of the configured tab with the schedule and returns the
// spreadsheet ID written to.
func (p *Publisher) Publish(ctx context.Context, s *quota.Schedule, title string) (string, error) {
	report := NewScheduleReport(s, title, p.now())
	values := report.Values()

	p.logger.Info("publishing quota schedule",
		"budget_id", s.Budget.ID,
		"year", s.Budget.Year,
		"units", len(report.Rows))

	spreadsheetID, err := p.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	retryOpts := common.RetryOptions{
		MaxAttempts:  p.config.RetryAttempts,
		InitialDelay: p.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	var sheetID int64
	err = common.WithRetry(ctx, func() error {
		var tabErr error
		sheetID, tabErr = p.ensureTab(ctx, spreadsheetID)
		return tabErr
	}, retryOpts)
	if err != nil {
		return "", fmt.Errorf("failed to prepare tab %q: %w", p.config.TabName, err)
	}

	if clearErr := p.clearTab(ctx, spreadsheetID); clearErr != nil {
		return "", fmt.Errorf("failed to clear tab: %w", clearErr)
	}

	err = common.WithRetry(ctx, func() error {
		return p.writeData(ctx, spreadsheetID, values)
	}, retryOpts)
	if err != nil {
		return "", fmt.Errorf("failed to write data: %w", err)
	}

	if p.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return p.applyFormatting(ctx, spreadsheetID, sheetID, report)
		}, retryOpts)
		if err != nil {
			// Values are already written; formatting is cosmetic.
			p.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	p.logger.Info("schedule published",
		"spreadsheet_id", spreadsheetID,
		"tab", p.config.TabName,
		"rows_written", len(values))

	return spreadsheetID, nil
}

func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		tokenSource = oauthConfig(config.ClientID, config.ClientSecret, "").TokenSource(ctx, &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		})
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return srv, nil
}

func (p *Publisher) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if p.config.SpreadsheetID != "" {
		return p.config.SpreadsheetID, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    p.config.SpreadsheetName,
			TimeZone: p.config.TimeZone,
		},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: p.config.TabName}},
		},
	}

	created, err := p.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	p.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	// Later runs write into the same document.
	p.config.SpreadsheetID = created.SpreadsheetId
	return created.SpreadsheetId, nil
}

// ensureTab returns the sheet ID of the configured tab, adding the tab when missing.
func (p *Publisher) ensureTab(ctx context.Context, spreadsheetID string) (int64, error) {
	doc, err := p.service.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to access spreadsheet %s: %w", spreadsheetID, classifyAPIError(err))
	}
	for _, sheet := range doc.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == p.config.TabName {
			return sheet.Properties.SheetId, nil
		}
	}

	resp, err := p.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: p.config.TabName}}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to add tab: %w", classifyAPIError(err))
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil {
		return 0, fmt.Errorf("add tab returned no sheet properties")
	}

	p.logger.Debug("added tab", "tab", p.config.TabName)
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

// classifyAPIError marks quota exhaustion as a rate limit and other client errors as final,
// so WithRetry backs off or stops accordingly.
func classifyAPIError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return &common.RetryableError{Err: err, Retryable: false}
	default:
		return err
	}
}

func (p *Publisher) tabRange(cells string) string {
	return fmt.Sprintf("'%s'!%s", p.config.TabName, cells)
}

func (p *Publisher) clearTab(ctx context.Context, spreadsheetID string) error {
	_, err := p.service.Spreadsheets.Values.Clear(spreadsheetID, p.tabRange("A:Z"), &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return classifyAPIError(err)
}

func (p *Publisher) writeData(ctx context.Context, spreadsheetID string, values [][]any) error {
	for i := 0; i < len(values); i += p.config.BatchSize {
		end := min(i+p.config.BatchSize, len(values))
		batch := values[i:end]

		_, err := p.service.Spreadsheets.Values.Update(spreadsheetID, p.tabRange(fmt.Sprintf("A%d", i+1)), &sheets.ValueRange{Values: batch}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, classifyAPIError(err))
		}

		p.logger.Debug("wrote batch", "start_row", i+1, "rows", len(batch))
	}
	return nil
}

func (p *Publisher) applyFormatting(ctx context.Context, spreadsheetID string, sheetID int64, report *ScheduleReport) error {
	layout := report.Layout()
	columns := int64(quota.MonthsPerYear + 2)

	bold := func(startRow, endRow int64) *sheets.Request {
		return &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    startRow,
					EndRowIndex:      endRow,
					StartColumnIndex: 0,
					EndColumnIndex:   columns,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true}},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		}
	}

	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   1,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true, FontSize: 14},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		bold(layout.HeaderRow, layout.HeaderRow+1),
		bold(layout.TotalRow, layout.TotalRow+1),
		bold(layout.CategoryHeaderRow, layout.CategoryHeaderRow+1),
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    layout.HeaderRow + 1,
					EndRowIndex:      layout.TotalRow + 1,
					StartColumnIndex: 1,
					EndColumnIndex:   columns,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{Type: "NUMBER", Pattern: "#,##0.00"},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   columns,
				},
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: sheetID,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount:    layout.HeaderRow + 1,
						FrozenColumnCount: 1,
					},
				},
				Fields: "gridProperties.frozenRowCount,gridProperties.frozenColumnCount",
			},
		},
	}

	_, err := p.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return classifyAPIError(err)
}

// Layout holds zero-based row indexes of the sections written by Values.
type Layout struct {
	HeaderRow         int64
	TotalRow          int64
	CategoryHeaderRow int64
}

// Layout returns where each section of the tab lands.
func (r *ScheduleReport) Layout() Layout {
	header := int64(2)
	total := header + int64(len(r.Rows)) + 1
	return Layout{
		HeaderRow:         header,
		TotalRow:          total,
		CategoryHeaderRow: total + 2,
	}
}

// Values renders the report as sheet rows: a title block, the unit matrix with a totals
// line, then the category summary.
func (r *ScheduleReport) Values() [][]any {
	values := make([][]any, 0, len(r.Rows)+len(r.Categories)+7)

	values = append(values,
		[]any{r.Title},
		[]any{fmt.Sprintf("Generated %s", r.GeneratedAt.Format("2006-01-02 15:04"))},
	)

	header := export.Header()
	headerRow := make([]any, len(header))
	for i, label := range header {
		headerRow[i] = label
	}
	values = append(values, headerRow)

	for _, row := range r.Rows {
		line := make([]any, 0, quota.MonthsPerYear+2)
		line = append(line, row.Unit)
		for _, amount := range row.Monthly {
			line = append(line, amount.InexactFloat64())
		}
		values = append(values, append(line, row.Annual.InexactFloat64()))
	}

	totals := make([]any, 0, quota.MonthsPerYear+2)
	totals = append(totals, "Total")
	for _, amount := range r.MonthTotals() {
		totals = append(totals, amount.InexactFloat64())
	}
	values = append(values, append(totals, r.Total.InexactFloat64()))

	values = append(values,
		[]any{},
		[]any{"Category", "Scope", "Divisor", "Participants", "Monthly", "Annual"},
	)
	for _, category := range r.Categories {
		values = append(values, []any{
			category.Name,
			category.Scope,
			category.Divisor,
			category.Participants,
			category.Monthly.InexactFloat64(),
			category.Total.InexactFloat64(),
		})
	}
	return values
}
