package digest

import (
	"fmt"
	"strings"

	"kimiaxe-digest-bot/internal/domain"
)

const (
	emptyReleasedLine = "No releases shipped today."
	emptyUpcomingLine = "No planned items in the next 7 days."
)

// FormatDigestMessage формирует текстовое представление дайджеста.
// Чистая функция, порядок записей не меняется.
func FormatDigestMessage(d domain.Digest) string {
	return strings.Join([]string{
		fmt.Sprintf("🚀 KimiAxe Daily Product Digest (%s)", d.DateKey),
		"",
		"Today Released:",
		formatReleased(d.ReleasedToday),
		"",
		"Coming Next (7 Days):",
		formatUpcoming(d.Upcoming),
	}, "\n")
}

func formatReleased(entries []domain.DigestEntry) string {
	if len(entries) == 0 {
		return emptyReleasedLine
	}
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		blocks = append(blocks, fmt.Sprintf("✅ %s (%s)\n• %s\n• %s", e.SiteName, e.SiteDomain, e.Title, e.Summary))
	}
	return strings.Join(blocks, "\n\n")
}

func formatUpcoming(entries []domain.DigestEntry) string {
	if len(entries) == 0 {
		return emptyUpcomingLine
	}
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		target := ""
		if e.TargetDate != nil {
			target = domain.DateKey(*e.TargetDate)
		}
		blocks = append(blocks, fmt.Sprintf("🗓️ %s — %s\n• %s\n• %s", target, e.SiteName, e.Title, e.Summary))
	}
	return strings.Join(blocks, "\n\n")
}
