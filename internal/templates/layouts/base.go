package layouts

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/a-h/templ"

	"github.com/codr1/showcase/internal/models"
)

const baseStyles = `body{margin:0;font-family:var(--theme-font);background:var(--theme-background);color:var(--theme-text);}
header,footer{background:var(--theme-primary);color:var(--theme-on-primary);padding:1rem 2rem;}
main{max-width:64rem;margin:0 auto;padding:2rem;}
a.button{display:inline-block;background:var(--theme-accent);color:var(--theme-on-accent);padding:.75rem 1.5rem;border-radius:.5rem;text-decoration:none;}
section{padding:3rem 0;border-bottom:1px solid var(--theme-secondary);}
[data-reveal]{opacity:0;transform:translateY(1.5rem);transition:opacity .6s ease,transform .6s ease;}
[data-reveal].is-visible{opacity:1;transform:none;}
table{border-collapse:collapse;width:100%;}
th,td{text-align:left;padding:.5rem;border-bottom:1px solid var(--theme-secondary);}`

// revealScript toggles .is-visible on [data-reveal] elements using the same
// once/margin/threshold rules as visibility.Tracker.
const revealScript = `(function(){
if(!("IntersectionObserver" in window)){document.querySelectorAll("[data-reveal]").forEach(function(el){el.classList.add("is-visible");});return;}
document.querySelectorAll("[data-reveal]").forEach(function(el){
var once=el.dataset.revealOnce==="true";
var threshold=parseFloat(el.dataset.revealThreshold||"0");
var observer=new IntersectionObserver(function(entries){entries.forEach(function(e){
var visible=e.isIntersecting&&e.intersectionRatio>=threshold;
if(visible){el.classList.add("is-visible");if(once){observer.disconnect();}}
else if(!once){el.classList.remove("is-visible");}
});},{rootMargin:el.dataset.revealMargin||"0px",threshold:threshold});
observer.observe(el);
});
})();`

// Base wraps body in the site chrome with the theme's CSS variables applied.
func Base(title string, theme *models.Theme, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w,
			`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>%s</title><style>%s
%s</style></head><body>`,
			templ.EscapeString(title), getThemeCssVars(theme), baseStyles,
		); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, `<script>%s</script></body></html>`, revealScript)
		return err
	})
}

// writeAttributes renders attrs in key order so output is stable.
func writeAttributes(w io.Writer, attrs templ.Attributes) error {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var err error
		switch v := attrs[k].(type) {
		case string:
			if v == "" {
				_, err = fmt.Fprintf(w, ` %s`, templ.EscapeString(k))
			} else {
				_, err = fmt.Fprintf(w, ` %s="%s"`, templ.EscapeString(k), templ.EscapeString(v))
			}
		case bool:
			if v {
				_, err = fmt.Fprintf(w, ` %s`, templ.EscapeString(k))
			}
		default:
			_, err = fmt.Fprintf(w, ` %s="%s"`, templ.EscapeString(k), templ.EscapeString(fmt.Sprint(v)))
		}
		if err != nil {
			return err
		}
	}
	return nil
}
