package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"bilancio/internal/core"
	ports "bilancio/internal/ledger"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client exports transactions to a shared Google Sheets ledger. Rows land in
// a per-year sheet named "<year> <base>" so the family spreadsheet stays
// readable across years.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base sheet name without year (e.g. "Transactions"); code prefixes year.
	sheetBase string
}

// Ensure interface conformance
var (
	_ ports.Writer  = (*Client)(nil)
	_ ports.Deleter = (*Client)(nil)
)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_SHEET_NAME (default "Transactions") plus service account
// credentials via GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetBase := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetBase == "" {
		sheetBase = "Transactions"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// Append writes the transaction to its year sheet. Columns: ID, Date,
// Description, Amount, Category, Recurring. The ID column makes later
// deletion possible.
func (c *Client) Append(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheetName := yearPrefixedName(c.sheetBase, t.Date.Year())
	units := float64(t.Amount.Cents) / 100.0
	recurring := ""
	if t.RecurringID != nil {
		recurring = strconv.FormatInt(*t.RecurringID, 10)
	}

	// Read the ID column once: it locates an already exported row for this
	// transaction, and otherwise gives the next empty row. Re-exports after
	// a partial failure overwrite in place instead of duplicating.
	rng := fmt.Sprintf("%s!A:A", sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get sheet dimensions for %s: %w", sheetName, err)
	}
	targetRow := rowForID(resp.Values, t.ID)
	if targetRow == 0 {
		targetRow = len(resp.Values) + 1
	} else {
		slog.InfoContext(ctx, "Overwriting existing ledger row", "id", t.ID, "sheet", sheetName, "row", targetRow)
	}

	dataRange := fmt.Sprintf("%s!A%d:F%d", sheetName, targetRow, targetRow)
	vr := &gsheet.ValueRange{Values: [][]any{{
		t.ID, t.Date.Format("2006-01-02"), t.Description, units, t.Category, recurring,
	}}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", dataRange, err)
	}

	return dataRange, nil
}

// Delete finds the row holding the transaction ID and removes it. Searching
// every year sheet is unnecessary in practice; rows are deleted shortly
// after export, so only the current year sheets are scanned.
func (c *Client) Delete(ctx context.Context, id int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet metadata: %w", err)
	}

	for _, sheet := range meta.Sheets {
		title := sheet.Properties.Title
		if !strings.HasSuffix(title, " "+c.sheetBase) && title != c.sheetBase {
			continue
		}

		rng := fmt.Sprintf("%s!A:A", title)
		resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("read %s: %w", rng, err)
		}

		if row := rowForID(resp.Values, id); row > 0 {
			i := row - 1
			req := &gsheet.BatchUpdateSpreadsheetRequest{
				Requests: []*gsheet.Request{{
					DeleteDimension: &gsheet.DeleteDimensionRequest{
						Range: &gsheet.DimensionRange{
							SheetId:    sheet.Properties.SheetId,
							Dimension:  "ROWS",
							StartIndex: int64(i),
							EndIndex:   int64(i + 1),
						},
					},
				}},
			}
			if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
				return fmt.Errorf("delete row in %s: %w", title, err)
			}
			slog.InfoContext(ctx, "Deleted ledger row", "id", id, "sheet", title, "row", i+1)
			return nil
		}
	}

	// Already absent is not an error; the export may never have happened.
	slog.WarnContext(ctx, "Ledger row not found for deletion", "id", id)
	return nil
}

// rowForID scans an ID column for the transaction ID and returns its
// 1-based row number, or 0 when absent.
func rowForID(column [][]any, id int64) int {
	want := strconv.FormatInt(id, 10)
	for i, row := range column {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == want {
			return i + 1
		}
	}
	return 0
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
