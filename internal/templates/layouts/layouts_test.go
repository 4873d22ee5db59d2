package layouts

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/codr1/showcase/internal/models"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()

	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return buf.String()
}

func TestGetThemeCssVars(t *testing.T) {
	defaults := getThemeCssVars(nil)
	if !strings.Contains(defaults, "--theme-primary:#1f2937") {
		t.Fatalf("expected default primary, got %s", defaults)
	}

	vars := getThemeCssVars(&models.Theme{
		Name: "Dark",
		ThemeStyle: models.ThemeStyle{
			Primary:    "#000",
			Accent:     "not-a-color",
			Background: " #111111 ",
			Font:       "x;}body{display:none",
		},
	})
	for _, want := range []string{
		"--theme-primary:#000;",
		"--theme-accent:#2563eb;",
		"--theme-background:#111111;",
		"--theme-font:system-ui, sans-serif;",
		"--theme-on-primary:#FFFFFF;",
	} {
		if !strings.Contains(vars, want) {
			t.Errorf("css vars missing %q: %s", want, vars)
		}
	}
}

func TestHomeRendersRevealSections(t *testing.T) {
	html := render(t, Home("Studio <North>", nil, HomeSections()))

	if !strings.Contains(html, "<title>Studio &lt;North&gt;</title>") {
		t.Fatal("site name should be escaped in the title")
	}
	if !strings.Contains(html, `<section id="work" data-reveal data-reveal-once="true" data-reveal-threshold="0.2">`) {
		t.Fatalf("work section missing reveal attributes:\n%s", html)
	}
	if !strings.Contains(html, `data-reveal-margin="0px 0px -10% 0px"`) {
		t.Fatal("services section missing margin attribute")
	}
	if !strings.Contains(html, "IntersectionObserver") {
		t.Fatal("reveal script missing")
	}
}

func TestAdminThemes(t *testing.T) {
	themes := []models.Theme{
		{ID: "a", Name: "Light", UpdatedAt: time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)},
		{ID: "b", Name: "<Dark>", IsActive: true, ThemeStyle: models.ThemeStyle{Primary: "#000"}},
	}
	html := render(t, AdminThemes("Studio", themes, models.FirstActive(themes)))

	if !strings.Contains(html, `<strong id="active-theme">&lt;Dark&gt;</strong>`) {
		t.Fatalf("active theme not shown:\n%s", html)
	}
	if !strings.Contains(html, `data-theme-id="a"`) || !strings.Contains(html, "2025-01-02 03:04") {
		t.Fatal("theme row missing")
	}
	if !strings.Contains(html, "--theme-primary:#000;") {
		t.Fatal("admin page should use the active theme")
	}

	empty := render(t, AdminThemes("Studio", nil, nil))
	if !strings.Contains(empty, "No themes yet.") || !strings.Contains(empty, ">None<") {
		t.Fatalf("unexpected empty page:\n%s", empty)
	}
}
