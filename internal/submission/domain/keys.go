package domain

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	termdomain "github.com/slpk/loandocs/internal/term/domain"
)

var unsafeKeyChars = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// SanitizeName reduces a display name to a blob-key-safe segment. Letters
// and digits in any script are kept, so distinct Thai names stay distinct.
func SanitizeName(name string) string {
	s := unsafeKeyChars.ReplaceAllString(strings.TrimSpace(name), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}

// DraftKey builds the staging key for a draft file. Drafts are keyed by
// student id, not name, so a name change never strands them.
func DraftKey(studentID, reqID string, index int, fileName string, ts time.Time) string {
	return fmt.Sprintf("draft_documents/%s/%s_%d_%d%s",
		studentID, reqID, index, ts.UnixMilli(), ext(fileName))
}

// FinalKey builds the permanent key a file is copied to on submit.
func FinalKey(ownerName string, t termdomain.Term, reqID string, index int, fileName string, ts time.Time) string {
	return fmt.Sprintf("student_documents/%s/%s/term_%s/%s_%d_%d%s",
		SanitizeName(ownerName), t.AcademicYear, t.Number, reqID, index, ts.UnixMilli(), ext(fileName))
}

func ext(fileName string) string {
	e := strings.ToLower(path.Ext(fileName))
	if e == "" {
		return ".bin"
	}
	return e
}
