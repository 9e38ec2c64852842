package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"budgetrecon/internal/budget"
	"budgetrecon/internal/classification"
	"budgetrecon/internal/core"
	"budgetrecon/internal/fx"
	"budgetrecon/internal/middleware/trace"
	"budgetrecon/internal/report"
	"budgetrecon/internal/services"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		RequestID: trace.GetRequestID(r.Context()),
	})
}

// reportView carries the four views of one reconciliation.
type reportView struct {
	Subcategories []core.RowDisplay `json:"subcategories"`
	Categories    []core.RowDisplay `json:"categories"`
	Hierarchy     []core.RowDisplay `json:"hierarchy"`
	Total         core.RowDisplay   `json:"total"`
}

type reportResponse struct {
	Request            report.Request         `json:"request"`
	Filter             core.Classification    `json:"filter"`
	BudgetFormat       budget.Format          `json:"budget_format"`
	Expenses           int                    `json:"expenses"`
	Views              reportView             `json:"views"`
	Rates              *fx.Snapshot           `json:"rates,omitempty"`
	Vendors            []string               `json:"vendors"`
	Categories         []string               `json:"categories"`
	Trend              []report.MonthTotal    `json:"trend"`
	Summary            classification.Summary `json:"summary"`
	BudgetDiagnostics  []core.Diagnostic      `json:"budget_diagnostics"`
	ExpenseDiagnostics []core.Diagnostic      `json:"expense_diagnostics"`
	Warnings           []string               `json:"warnings"`
	DurationMS         int64                  `json:"duration_ms"`
}

func displayRows(rows []core.ReconciliationRow) []core.RowDisplay {
	out := make([]core.RowDisplay, len(rows))
	for i, r := range rows {
		out[i] = r.Display()
	}
	return out
}

func newReportResponse(rep *report.Report) reportResponse {
	warnings := make([]string, len(rep.Warnings))
	for i, w := range rep.Warnings {
		warnings[i] = w.Error()
	}
	resp := reportResponse{
		Request:            rep.Request,
		Filter:             rep.Filter,
		BudgetFormat:       rep.BudgetFormat,
		Rates:              rep.Rates,
		Vendors:            rep.Vendors,
		Categories:         rep.Categories,
		Trend:              rep.Trend,
		Summary:            rep.Summary,
		BudgetDiagnostics:  rep.BudgetDiagnostics,
		ExpenseDiagnostics: rep.ExpenseDiagnostics,
		Warnings:           warnings,
		DurationMS:         rep.Duration.Milliseconds(),
	}
	if res := rep.Result; res != nil {
		resp.Expenses = res.Expenses
		resp.Views = reportView{
			Subcategories: displayRows(res.Subcategories),
			Categories:    displayRows(res.Categories),
			Hierarchy:     displayRows(res.Hierarchy),
			Total:         res.Total.Display(),
		}
	}
	return resp
}

func isNotBudget(err error) bool {
	return errors.Is(err, services.ErrNotBudget)
}
