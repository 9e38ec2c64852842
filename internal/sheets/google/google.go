package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"budgetrecon/internal/core"
	"budgetrecon/internal/googleauth"
	ports "budgetrecon/internal/sheets"
	"budgetrecon/internal/workbook"

	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultTabPrefix names the tabs holding classifications, one per file.
const DefaultTabPrefix = "Classifications"

// maxTitle is the longest tab title the Sheets API accepts.
const maxTitle = 100

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	tabPrefix     string
	retry         googleauth.RetryPolicy
}

// Ensure interface conformance
var (
	_ ports.ClassificationStore = (*Client)(nil)
	_ ports.ClassificationIndex = (*Client)(nil)
	_ ports.GridReader          = (*Client)(nil)
)

// Options configures New. SpreadsheetID is the spreadsheet holding the
// classification tabs; it may be empty for a client used only as a GridReader.
type Options struct {
	SpreadsheetID string
	TabPrefix     string
	Credentials   googleauth.Credentials
	Retry         *googleauth.RetryPolicy
	// ClientOptions replace the credential-derived options when set.
	ClientOptions []goption.ClientOption
}

// NewFromEnv creates a Sheets client from environment variables.
// Optional: GOOGLE_SPREADSHEET_ID, CLASSIFICATION_TAB_PREFIX (default
// "Classifications"), plus the credential variables read by googleauth.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Options{
		SpreadsheetID: strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		TabPrefix:     strings.TrimSpace(os.Getenv("CLASSIFICATION_TAB_PREFIX")),
		Credentials:   googleauth.CredentialsFromEnv(),
	})
}

func New(ctx context.Context, o Options) (*Client, error) {
	opts := o.ClientOptions
	if len(opts) == 0 {
		var err error
		opts, err = googleauth.ClientOptions(ctx, o.Credentials, gsheet.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("sheets credentials: %w", err)
		}
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	prefix := o.TabPrefix
	if prefix == "" {
		prefix = DefaultTabPrefix
	}
	retry := googleauth.DefaultRetry
	if o.Retry != nil {
		retry = *o.Retry
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", o.SpreadsheetID, "tab_prefix", prefix)
	return &Client{svc: svc, spreadsheetID: o.SpreadsheetID, tabPrefix: prefix, retry: retry}, nil
}

func (c *Client) ready() error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if c.spreadsheetID == "" {
		return errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	return nil
}

// Load reads the classification tab of fileKey. A missing tab yields no
// entries.
func (c *Client) Load(ctx context.Context, fileKey string) ([]core.ClassificationEntry, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	rng := a1(tabTitle(c.tabPrefix, fileKey), "A1:H")
	var resp *gsheet.ValueRange
	err := googleauth.Retry(ctx, c.retry, "load classifications", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
		return err
	})
	if missingRange(err) {
		return []core.ClassificationEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return valuesToEntries(fileKey, resp.Values)
}

// Save replaces the classification tab of fileKey, creating it if needed.
func (c *Client) Save(ctx context.Context, fileKey string, entries []core.ClassificationEntry, actor string) error {
	if err := c.ready(); err != nil {
		return err
	}
	stamp := time.Now().UTC()
	stamped := make([]core.ClassificationEntry, len(entries))
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("validate entry: %w", err)
		}
		e.FileKey, e.UpdatedBy, e.UpdatedAt = fileKey, actor, stamp
		stamped[i] = e
	}

	title := tabTitle(c.tabPrefix, fileKey)
	if err := c.ensureTab(ctx, title); err != nil {
		return err
	}
	return googleauth.Retry(ctx, c.retry, "save classifications", func(ctx context.Context) error {
		if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, a1(title, "A:H"), &gsheet.ClearValuesRequest{}).
			Context(ctx).Do(); err != nil {
			return fmt.Errorf("clear %s: %w", title, err)
		}
		vr := &gsheet.ValueRange{Values: entriesToValues(fileKey, stamped)}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, a1(title, "A1"), vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("update %s: %w", title, err)
		}
		return nil
	})
}

// FileKeys lists the file keys stored in classification tabs.
func (c *Client) FileKeys(ctx context.Context) ([]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	titles, err := c.tabTitles(ctx, c.spreadsheetID)
	if err != nil {
		return nil, err
	}
	var ranges []string
	for _, t := range titles {
		if strings.HasPrefix(t, c.tabPrefix+" ") {
			ranges = append(ranges, a1(t, "B1"))
		}
	}
	if len(ranges) == 0 {
		return []string{}, nil
	}
	var resp *gsheet.BatchGetValuesResponse
	err = googleauth.Retry(ctx, c.retry, "list classification files", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).Ranges(ranges...).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read file keys: %w", err)
	}
	keys := make([]string, 0, len(resp.ValueRanges))
	for _, vr := range resp.ValueRanges {
		if len(vr.Values) > 0 && len(vr.Values[0]) > 0 {
			if k := strings.TrimSpace(fmt.Sprint(vr.Values[0][0])); k != "" {
				keys = append(keys, k)
			}
		}
	}
	return keys, nil
}

// ReadGrid reads one tab of any spreadsheet the credentials can see. An empty
// sheet name reads the first tab.
func (c *Client) ReadGrid(ctx context.Context, spreadsheetID, sheet string) (workbook.Grid, error) {
	if c.svc == nil {
		return workbook.Grid{}, errors.New("sheets service not initialized")
	}
	if strings.TrimSpace(sheet) == "" {
		titles, err := c.tabTitles(ctx, spreadsheetID)
		if err != nil {
			return workbook.Grid{}, err
		}
		if len(titles) == 0 {
			return workbook.Grid{}, workbook.ErrNoSheets
		}
		sheet = titles[0]
	}
	var resp *gsheet.ValueRange
	err := googleauth.Retry(ctx, c.retry, "read grid", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Spreadsheets.Values.Get(spreadsheetID, a1(sheet, "")).
			ValueRenderOption("UNFORMATTED_VALUE").
			DateTimeRenderOption("FORMATTED_STRING").
			Context(ctx).Do()
		return err
	})
	if missingRange(err) {
		return workbook.Grid{}, fmt.Errorf("%w: %q", workbook.ErrSheetNotFound, sheet)
	}
	if err != nil {
		return workbook.Grid{}, fmt.Errorf("read %s: %w", sheet, err)
	}
	return workbook.FromValues(sheet, 1, resp.Values), nil
}

func (c *Client) tabTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	var resp *gsheet.Spreadsheet
	err := googleauth.Retry(ctx, c.retry, "list tabs", func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet %s: %w", spreadsheetID, err)
	}
	titles := make([]string, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}
	return titles, nil
}

func (c *Client) ensureTab(ctx context.Context, title string) error {
	titles, err := c.tabTitles(ctx, c.spreadsheetID)
	if err != nil {
		return err
	}
	if indexOf(titles, title) >= 0 {
		return nil
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
	}}}
	err = googleauth.Retry(ctx, c.retry, "add tab", func(ctx context.Context) error {
		_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("add tab %s: %w", title, err)
	}
	slog.InfoContext(ctx, "Created classification tab", "tab", title)
	return nil
}

var entryHeader = []interface{}{"Category", "Sub-category", "Period", "Status", "Amount", "Updated By", "Updated At"}

// entriesToValues lays out a tab: the file key on row 1, a header on row 2,
// then one row per entry.
func entriesToValues(fileKey string, entries []core.ClassificationEntry) [][]interface{} {
	out := make([][]interface{}, 0, len(entries)+2)
	out = append(out, []interface{}{"File", fileKey}, entryHeader)
	for _, e := range entries {
		out = append(out, []interface{}{
			e.Category, e.SubCategory, e.Period, string(e.Status),
			e.Amount.StringFixed(2), e.UpdatedBy, e.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func valuesToEntries(fileKey string, values [][]interface{}) ([]core.ClassificationEntry, error) {
	out := []core.ClassificationEntry{}
	header := -1
	var cols []string
	for i, row := range values {
		cells := toStrings(row)
		if indexOf(cells, "Category") >= 0 && indexOf(cells, "Period") >= 0 {
			header, cols = i, cells
			break
		}
	}
	if header < 0 {
		return out, nil
	}
	idx := func(name string) int { return indexOf(cols, name) }
	iCat, iSub, iPer, iStat := idx("Category"), idx("Sub-category"), idx("Period"), idx("Status")
	iAmt, iBy, iAt := idx("Amount"), idx("Updated By"), idx("Updated At")
	for n, row := range values[header+1:] {
		cells := toStrings(row)
		cat, sub := safeGet(cells, iCat), safeGet(cells, iSub)
		if cat == "" && sub == "" {
			continue
		}
		status, err := core.ParseStatusLabel(safeGet(cells, iStat))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", header+n+2, err)
		}
		e := core.ClassificationEntry{
			FileKey:     fileKey,
			Category:    cat,
			SubCategory: sub,
			Period:      safeGet(cells, iPer),
			Status:      status,
			UpdatedBy:   safeGet(cells, iBy),
		}
		if d, ok := core.ParseAmount(safeGet(cells, iAmt)); ok {
			e.Amount = d
		} else {
			e.Amount = decimal.Zero
		}
		if t, err := time.Parse(time.RFC3339, safeGet(cells, iAt)); err == nil {
			e.UpdatedAt = t
		}
		out = append(out, e)
	}
	return out, nil
}

// tabTitle returns "<prefix> <fileKey>" without the characters the Sheets API
// rejects in titles, cut to the title limit.
func tabTitle(prefix, fileKey string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '*', '?', ':', '/', '\\', '\'':
			return '_'
		}
		return r
	}, strings.TrimSpace(fileKey))
	title := []rune(prefix + " " + clean)
	if len(title) > maxTitle {
		title = title[:maxTitle]
	}
	return string(title)
}

// a1 quotes a tab title for an A1 range; cells may be empty for the whole tab.
func a1(title, cells string) string {
	q := "'" + strings.ReplaceAll(title, "'", "''") + "'"
	if cells == "" {
		return q
	}
	return q + "!" + cells
}

// missingRange reports the errors the API returns for a tab that does not
// exist.
func missingRange(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusNotFound ||
		(gerr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(gerr.Message), "unable to parse range"))
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
