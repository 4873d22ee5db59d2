package layouts

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/codr1/showcase/internal/models"
	"github.com/codr1/showcase/internal/visibility"
)

// Section is one block of the home page.
type Section struct {
	ID     string
	Title  string
	Body   string
	Reveal visibility.Options
}

// HomeSections is the marketing copy shown on the home page.
func HomeSections() []Section {
	return []Section{
		{
			ID:     "work",
			Title:  "Selected work",
			Body:   "Product sites, dashboards and brand systems shipped for small teams.",
			Reveal: visibility.Options{Once: true, Threshold: 0.2},
		},
		{
			ID:     "services",
			Title:  "Services",
			Body:   "Design, front-end engineering and hosting, end to end.",
			Reveal: visibility.Options{Once: true, Margin: "0px 0px -10% 0px", Threshold: 0.2},
		},
		{
			ID:     "contact",
			Title:  "Get in touch",
			Body:   "Tell us about your project and we will reply within two working days.",
			Reveal: visibility.Options{Threshold: 0.5},
		},
	}
}

// Home renders the landing page in the given (possibly nil) active theme.
func Home(siteName string, theme *models.Theme, sections []Section) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		name := templ.EscapeString(siteName)
		if _, err := fmt.Fprintf(w,
			`<header><strong>%s</strong></header><main><section id="hero"><h1>%s</h1><p>Websites that look like you.</p><a class="button" href="#contact">Start a project</a></section>`,
			name, name,
		); err != nil {
			return err
		}
		for _, section := range sections {
			if _, err := fmt.Fprintf(w, `<section id="%s"`, templ.EscapeString(section.ID)); err != nil {
				return err
			}
			if err := writeAttributes(w, section.Reveal.Attributes()); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, `><h2>%s</h2><p>%s</p></section>`,
				templ.EscapeString(section.Title), templ.EscapeString(section.Body),
			); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, `</main><footer>%s</footer>`, name)
		return err
	})
	return Base(siteName, theme, body)
}

// AdminThemes renders the theme overview for administrators.
func AdminThemes(siteName string, themes []models.Theme, active *models.Theme) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		activeName := "None"
		if active != nil {
			activeName = active.Name
		}
		if _, err := fmt.Fprintf(w,
			`<header><strong>%s</strong> admin</header><main><h1>Themes</h1><p>Active theme: <strong id="active-theme">%s</strong></p>`,
			templ.EscapeString(siteName), templ.EscapeString(activeName),
		); err != nil {
			return err
		}
		if len(themes) == 0 {
			_, err := io.WriteString(w, `<p>No themes yet.</p></main>`)
			return err
		}
		if _, err := io.WriteString(w,
			`<table><thead><tr><th>Name</th><th>Primary</th><th>Accent</th><th>Active</th><th>Updated</th></tr></thead><tbody>`,
		); err != nil {
			return err
		}
		for _, theme := range themes {
			activeMark := ""
			if theme.IsActive {
				activeMark = "Yes"
			}
			if _, err := fmt.Fprintf(w,
				`<tr data-theme-id="%s"><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				templ.EscapeString(theme.ID),
				templ.EscapeString(theme.Name),
				templ.EscapeString(theme.Primary),
				templ.EscapeString(theme.Accent),
				activeMark,
				theme.UpdatedAt.UTC().Format("2006-01-02 15:04"),
			); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table></main>`)
		return err
	})
	return Base(siteName+" admin", active, body)
}
