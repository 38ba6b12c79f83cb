package digest

import (
	"strings"
	"testing"
	"time"

	"kimiaxe-digest-bot/internal/domain"
)

func TestFormatDigestMessageEmptySections(t *testing.T) {
	message := FormatDigestMessage(domain.Digest{DateKey: "2024-06-01"})

	mustContain(t, message, "🚀 KimiAxe Daily Product Digest (2024-06-01)")
	mustContain(t, message, "Today Released:\nNo releases shipped today.")
	mustContain(t, message, "Coming Next (7 Days):\nNo planned items in the next 7 days.")
}

func TestFormatDigestMessageReleasedBlock(t *testing.T) {
	releasedAt := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	message := FormatDigestMessage(domain.Digest{
		DateKey: "2024-06-01",
		ReleasedToday: []domain.DigestEntry{{
			Update: domain.Update{
				Title:      "New pricing",
				Summary:    "Launched tiered pricing",
				ReleasedAt: &releasedAt,
			},
			SiteName:   "Acme",
			SiteDomain: "acme.io",
		}},
	})

	mustContain(t, message, "✅ Acme (acme.io)\n• New pricing\n• Launched tiered pricing")
	mustContain(t, message, "No planned items in the next 7 days.")
}

func TestFormatDigestMessageUpcomingBlock(t *testing.T) {
	target := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)
	later := time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)
	message := FormatDigestMessage(domain.Digest{
		DateKey: "2024-06-01",
		Upcoming: []domain.DigestEntry{
			{
				Update:   domain.Update{Title: "SMS API v2", Summary: "New bulk endpoints", TargetDate: &target},
				SiteName: "AxeSMS", SiteDomain: "axesms.com",
			},
			{
				Update:   domain.Update{Title: "Wallet limits", Summary: "Higher tiers", TargetDate: &later},
				SiteName: "AxeWallet", SiteDomain: "axewallet.com",
			},
		},
	})

	mustContain(t, message, "🗓️ 2024-06-04 — AxeSMS\n• SMS API v2\n• New bulk endpoints")
	mustContain(t, message, "No releases shipped today.")

	// Форматтер не пересортировывает: порядок блоков совпадает со снимком.
	first := strings.Index(message, "AxeSMS")
	second := strings.Index(message, "AxeWallet")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("ожидали порядок блоков как в снимке, получили: %q", message)
	}
}

func mustContain(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Fatalf("ожидали найти подстроку %q в %q", substr, s)
	}
}
