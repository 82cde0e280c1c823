package issues

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Sajid-al-islam/plannig-poker/internal/domain"
)

// ImportCSV adds one issue per non-empty line, split on the first comma
// into title and optional description. Embedded commas in titles are
// not escaped; that matches the export format and is a known
// limitation. The import is not transactional: a failed line stops the
// import with the preceding lines already added.
func (s *Service) ImportCSV(ctx context.Context, gameID, csvText string) (int, error) {
	imported := 0
	for _, line := range strings.Split(csvText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		title, description, _ := strings.Cut(line, ",")
		title = strings.TrimSpace(title)
		description = strings.TrimSpace(description)
		if title == "" {
			continue
		}

		if _, err := s.AddIssue(ctx, gameID, title, description); err != nil {
			s.log.Warn("csv import stopped partway",
				zap.String("game_id", gameID),
				zap.Int("imported", imported),
				zap.Error(err))
			return imported, fmt.Errorf("import stopped after %d issues: %w", imported, err)
		}
		imported++
	}

	return imported, nil
}

// ExportCSV renders the backlog as CSV with a Title,Description,Estimate
// header. Field values are double-quoted verbatim; embedded quotes are
// not escaped, mirroring the import's naive parsing.
func ExportCSV(issues []domain.Issue) string {
	var b strings.Builder
	b.WriteString("Title,Description,Estimate\n")
	for i, issue := range issues {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, `"%s","%s","%s"`, issue.Title, issue.Description, issue.Estimate)
	}
	return b.String()
}
