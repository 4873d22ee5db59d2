package layouts

import (
	"fmt"
	"strings"

	"github.com/codr1/showcase/internal/models"
)

func getThemeCssVars(theme *models.Theme) string {
	defaultTheme := models.DefaultTheme()
	style := defaultTheme.ThemeStyle

	if theme != nil {
		style.Primary = themeColorOrDefault(theme.Primary, style.Primary)
		style.Secondary = themeColorOrDefault(theme.Secondary, style.Secondary)
		style.Accent = themeColorOrDefault(theme.Accent, style.Accent)
		style.Background = themeColorOrDefault(theme.Background, style.Background)
		style.Text = themeColorOrDefault(theme.Text, style.Text)
		style.Font = themeFontOrDefault(theme.Font, style.Font)
	}

	return fmt.Sprintf(
		":root{--theme-primary:%s;--theme-secondary:%s;--theme-accent:%s;--theme-background:%s;--theme-text:%s;--theme-font:%s;--theme-on-primary:%s;--theme-on-accent:%s;}",
		style.Primary,
		style.Secondary,
		style.Accent,
		style.Background,
		style.Text,
		style.Font,
		models.ReadableTextColor(style.Primary),
		models.ReadableTextColor(style.Accent),
	)
}

func themeColorOrDefault(value string, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	if !models.IsHexColor(trimmed) {
		return fallback
	}
	return trimmed
}

func themeFontOrDefault(value string, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || !models.IsFontFamily(trimmed) {
		return fallback
	}
	return trimmed
}
