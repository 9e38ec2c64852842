package core

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

const (
	FileTypeBudgetOPEX  FileType = "budget(opex)"
	FileTypeBudgetCAPEX FileType = "budget(capex)"
	FileTypeExpense     FileType = "expense"
)

// FileType tags an uploaded workbook.
type FileType string

var budgetTypePattern = regexp.MustCompile(`^budget\((opex|capex)\)$`)

// ParseFileType accepts "budget(opex)", "budget(capex)" and "expense" in any
// case.
func ParseFileType(s string) (FileType, error) {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if s == string(FileTypeExpense) {
		return FileTypeExpense, nil
	}
	if m := budgetTypePattern.FindStringSubmatch(s); m != nil {
		return FileType("budget(" + m[1] + ")"), nil
	}
	return "", fmt.Errorf("unknown file type %q", s)
}

func (t FileType) IsBudget() bool {
	return t == FileTypeBudgetOPEX || t == FileTypeBudgetCAPEX
}

// Classification returns the expense classification a budget file covers.
func (t FileType) Classification() Classification {
	switch t {
	case FileTypeBudgetOPEX:
		return ClassOPEX
	case FileTypeBudgetCAPEX:
		return ClassCAPEX
	default:
		return ""
	}
}

// Tag is the suffix appended to stored file names.
func (t FileType) Tag() string {
	switch t {
	case FileTypeBudgetOPEX:
		return "opex"
	case FileTypeBudgetCAPEX:
		return "capex"
	default:
		return "expense"
	}
}

// TaggedName inserts "~<tag>" before the extension: "plan.xlsx" becomes
// "plan~opex.xlsx". Names that already carry the tag are returned unchanged.
func TaggedName(name string, t FileType) string {
	name = strings.TrimSpace(name)
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if ext == "" {
		ext = ".xlsx"
	}
	suffix := "~" + t.Tag()
	if strings.HasSuffix(strings.ToLower(base), suffix) {
		return base + ext
	}
	return base + suffix + ext
}

// UploadedFile is a registry record for a stored workbook.
type UploadedFile struct {
	Name       string    `json:"name"`
	Type       FileType  `json:"type"`
	Uploader   string    `json:"uploader"`
	UploadedAt time.Time `json:"uploaded_at"`
	Location   string    `json:"location"`
}

// FileTypeFromName recovers the type from a name produced by TaggedName.
func FileTypeFromName(name string) (FileType, bool) {
	base := strings.ToLower(strings.TrimSuffix(path.Base(name), path.Ext(name)))
	switch {
	case strings.HasSuffix(base, "~opex"):
		return FileTypeBudgetOPEX, true
	case strings.HasSuffix(base, "~capex"):
		return FileTypeBudgetCAPEX, true
	case strings.HasSuffix(base, "~expense"):
		return FileTypeExpense, true
	default:
		return "", false
	}
}
