package ui

import (
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"
)

// Theme defines UI color tokens used across widgets and text tags.
type Theme struct {
	// Widget colors
	Bg          tcell.Color
	Surface     tcell.Color
	Border      tcell.Color
	FocusBorder tcell.Color
	SelectionBg tcell.Color
	SelectionFg tcell.Color
	TextPrimary tcell.Color
	TextMuted   tcell.Color
	Accent      tcell.Color
	Header      tcell.Color

	// Table colors
	TableHeader   tcell.Color
	TableHeaderBg tcell.Color
	TableRow      tcell.Color
	TableRowMuted tcell.Color

	// Verdict colors (widgets)
	VerdictAI        tcell.Color
	VerdictAuthentic tcell.Color

	// Text tag colors (for tview dynamic color markup)
	TagTextPrimary string
	TagMuted       string
	TagAccent      string
	TagSuccess     string
	TagWarning     string
	TagError       string
}

// helpers
func hex(s string) tcell.Color { return tcell.GetColor(s) }

func themeDark() Theme {
	return Theme{
		Bg:          hex("#0e1116"),
		Surface:     hex("#12161e"),
		Border:      hex("#2b3240"),
		FocusBorder: hex("#4aa8ff"),
		SelectionBg: hex("#2b3240"),
		SelectionFg: hex("#cfd8e3"),
		TextPrimary: hex("#e6edf3"),
		TextMuted:   hex("#8a939f"),
		Accent:      hex("#2dd4bf"),
		Header:      hex("#eab308"),

		TableHeader:   hex("#eab308"),
		TableHeaderBg: hex("#1a2332"),
		TableRow:      hex("#e6edf3"),
		TableRowMuted: hex("#94a3b8"),

		VerdictAI:        hex("#ef4444"),
		VerdictAuthentic: hex("#22c55e"),

		TagTextPrimary: "#e6edf3",
		TagMuted:       "#8a939f",
		TagAccent:      "#2dd4bf",
		TagSuccess:     "#22c55e",
		TagWarning:     "#f59e0b",
		TagError:       "#ef4444",
	}
}

func themeLight() Theme {
	return Theme{
		Bg:          hex("#f6f8fa"),
		Surface:     hex("#ffffff"),
		Border:      hex("#d0d7de"),
		FocusBorder: hex("#1f6feb"),
		SelectionBg: hex("#e2e8f0"),
		SelectionFg: hex("#111827"),
		TextPrimary: hex("#111827"),
		TextMuted:   hex("#6b7280"),
		Accent:      hex("#2563eb"),
		Header:      hex("#1f2937"),

		TableHeader:   hex("#1f2937"),
		TableHeaderBg: hex("#e5e7eb"),
		TableRow:      hex("#111827"),
		TableRowMuted: hex("#6b7280"),

		VerdictAI:        hex("#b91c1c"),
		VerdictAuthentic: hex("#15803d"),

		TagTextPrimary: "#111827",
		TagMuted:       "#6b7280",
		TagAccent:      "#2563eb",
		TagSuccess:     "#15803d",
		TagWarning:     "#b45309",
		TagError:       "#b91c1c",
	}
}

func themeHighContrast() Theme {
	return Theme{
		Bg:          hex("#000000"),
		Surface:     hex("#000000"),
		Border:      hex("#ffffff"),
		FocusBorder: hex("#ffff00"),
		SelectionBg: hex("#ffffff"),
		SelectionFg: hex("#000000"),
		TextPrimary: hex("#ffffff"),
		TextMuted:   hex("#cccccc"),
		Accent:      hex("#00ffff"),
		Header:      hex("#ffffff"),

		TableHeader:   hex("#ffffff"),
		TableHeaderBg: hex("#000000"),
		TableRow:      hex("#ffffff"),
		TableRowMuted: hex("#cccccc"),

		VerdictAI:        hex("#ff0000"),
		VerdictAuthentic: hex("#00ff00"),

		TagTextPrimary: "#ffffff",
		TagMuted:       "#cccccc",
		TagAccent:      "#00ffff",
		TagSuccess:     "#00ff00",
		TagWarning:     "#ffff00",
		TagError:       "#ff0000",
	}
}

func themeNeon() Theme {
	return Theme{
		Bg:          hex("#0f0b14"),
		Surface:     hex("#14111a"),
		Border:      hex("#45385a"),
		FocusBorder: hex("#ff79c6"),
		SelectionBg: hex("#2a1f3d"),
		SelectionFg: hex("#f8f5ff"),
		TextPrimary: hex("#f8f5ff"),
		TextMuted:   hex("#b8a8c9"),
		Accent:      hex("#ff6ac1"),
		Header:      hex("#ff79c6"),

		TableHeader:   hex("#ff79c6"),
		TableHeaderBg: hex("#301d49"),
		TableRow:      hex("#f8f5ff"),
		TableRowMuted: hex("#b8a8c9"),

		VerdictAI:        hex("#ff3b30"),
		VerdictAuthentic: hex("#00d084"),

		TagTextPrimary: "#f8f5ff",
		TagMuted:       "#b8a8c9",
		TagAccent:      "#ff6ac1",
		TagSuccess:     "#00d084",
		TagWarning:     "#ffd166",
		TagError:       "#ff5555",
	}
}

func themeColorblindSafe() Theme {
	// Blue/orange verdicts instead of red/green.
	return Theme{
		Bg:          hex("#0e1116"),
		Surface:     hex("#12161e"),
		Border:      hex("#2b3240"),
		FocusBorder: hex("#4aa8ff"),
		SelectionBg: hex("#2b3240"),
		SelectionFg: hex("#e6edf3"),
		TextPrimary: hex("#e6edf3"),
		TextMuted:   hex("#8a939f"),
		Accent:      hex("#80b1d3"),
		Header:      hex("#fee08b"),

		TableHeader:   hex("#fee08b"),
		TableHeaderBg: hex("#232a38"),
		TableRow:      hex("#e6edf3"),
		TableRowMuted: hex("#94a3b8"),

		VerdictAI:        hex("#e66101"),
		VerdictAuthentic: hex("#5e3c99"),

		TagTextPrimary: "#e6edf3",
		TagMuted:       "#8a939f",
		TagAccent:      "#80b1d3",
		TagSuccess:     "#5ab4ac",
		TagWarning:     "#fdb863",
		TagError:       "#e66101",
	}
}

// themeNames is the cycle order for the theme toggle.
var themeNames = []string{"dark", "light", "neon", "cb-safe", "high-contrast"}

func themeByName(name string) (Theme, string) {
	switch name {
	case "light":
		return themeLight(), "light"
	case "neon":
		return themeNeon(), "neon"
	case "cb-safe":
		return themeColorblindSafe(), "cb-safe"
	case "high-contrast":
		return themeHighContrast(), "high-contrast"
	default:
		return themeDark(), "dark"
	}
}

func nextThemeName(current string) string {
	for i, n := range themeNames {
		if n == current {
			return themeNames[(i+1)%len(themeNames)]
		}
	}
	return themeNames[0]
}

func detectTrueColor() bool {
	// Best-effort detection without initializing screen
	ct := strings.ToLower(os.Getenv("COLORTERM"))
	if strings.Contains(ct, "truecolor") || strings.Contains(ct, "24bit") {
		return true
	}
	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "truecolor") || strings.Contains(term, "24bit") || strings.Contains(term, "256color")
}
