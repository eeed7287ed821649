package notify

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
)

//go:embed templates/*.tpl
var defaultTemplates embed.FS

// DefaultAppName is exposed to templates as app_name.
const DefaultAppName = "go-accounts"

// Rendered is the output of a template set for one notification.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

type templateSet struct {
	subject *pongo2.Template
	text    *pongo2.Template
	html    *pongo2.Template
}

// Renderer renders per-purpose mail templates. Each purpose needs
// <purpose>.subject.tpl and <purpose>.txt.tpl, <purpose>.html.tpl is optional.
type Renderer struct {
	source  fs.FS
	globals pongo2.Context
	sets    map[accounts.Purpose]*templateSet
}

// RendererOption configures NewRenderer.
type RendererOption func(*Renderer)

// WithTemplateDir loads templates from a directory instead of the embedded set.
func WithTemplateDir(dir string) RendererOption {
	return func(r *Renderer) {
		if dir != "" {
			r.source = os.DirFS(dir)
		}
	}
}

// WithTemplateFS loads templates from fsys.
func WithTemplateFS(fsys fs.FS) RendererOption {
	return func(r *Renderer) {
		if fsys != nil {
			r.source = fsys
		}
	}
}

// WithGlobals merges data into every render context.
func WithGlobals(data map[string]any) RendererOption {
	return func(r *Renderer) {
		maps.Copy(r.globals, data)
	}
}

// NewRenderer compiles the templates for every purpose found in the source.
func NewRenderer(opts ...RendererOption) (*Renderer, error) {
	sub, err := fs.Sub(defaultTemplates, "templates")
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "embedded mail templates")
	}

	r := &Renderer{
		source:  sub,
		globals: pongo2.Context(TemplateHelpers()),
		sets:    map[accounts.Purpose]*templateSet{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	for _, purpose := range []accounts.Purpose{accounts.PurposeActivation, accounts.PurposeReset} {
		set, err := r.load(purpose)
		if err != nil {
			return nil, err
		}
		if set != nil {
			r.sets[purpose] = set
		}
	}

	if len(r.sets) == 0 {
		return nil, goerrors.New("no mail templates found", goerrors.CategoryBadInput).
			WithTextCode("MAIL_TEMPLATES_MISSING")
	}

	return r, nil
}

func (r *Renderer) load(purpose accounts.Purpose) (*templateSet, error) {
	subject, err := r.compile(purpose, "subject")
	if err != nil || subject == nil {
		return nil, err
	}

	text, err := r.compile(purpose, "txt")
	if err != nil {
		return nil, err
	}
	if text == nil {
		return nil, goerrors.New("text template missing", goerrors.CategoryBadInput).
			WithTextCode("MAIL_TEMPLATES_MISSING").
			WithMetadata(map[string]any{"purpose": purpose.String()})
	}

	html, err := r.compile(purpose, "html")
	if err != nil {
		return nil, err
	}

	return &templateSet{subject: subject, text: text, html: html}, nil
}

// compile returns nil, nil when the file does not exist.
func (r *Renderer) compile(purpose accounts.Purpose, part string) (*pongo2.Template, error) {
	name := fmt.Sprintf("%s.%s.tpl", purpose, part)
	raw, err := fs.ReadFile(r.source, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "read mail template").
			WithMetadata(map[string]any{"template": name})
	}

	tpl, err := pongo2.FromString(string(raw))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "compile mail template").
			WithTextCode("MAIL_TEMPLATE_INVALID").
			WithMetadata(map[string]any{"template": name})
	}
	return tpl, nil
}

// Supports reports whether templates exist for purpose.
func (r *Renderer) Supports(purpose accounts.Purpose) bool {
	_, ok := r.sets[purpose]
	return ok
}

// Render executes the templates of purpose with data layered over the globals.
func (r *Renderer) Render(purpose accounts.Purpose, data map[string]any) (Rendered, error) {
	set, ok := r.sets[purpose]
	if !ok {
		return Rendered{}, goerrors.New("no mail template for purpose", goerrors.CategoryBadInput).
			WithTextCode("MAIL_TEMPLATES_MISSING").
			WithMetadata(map[string]any{"purpose": purpose.String()})
	}

	ctx := pongo2.Context{}
	ctx.Update(r.globals)
	ctx.Update(pongo2.Context(data))

	var out Rendered
	var err error
	if out.Subject, err = set.subject.Execute(ctx); err != nil {
		return Rendered{}, renderError(err, purpose, "subject")
	}
	if out.Text, err = set.text.Execute(ctx); err != nil {
		return Rendered{}, renderError(err, purpose, "txt")
	}
	if set.html != nil {
		if out.HTML, err = set.html.Execute(ctx); err != nil {
			return Rendered{}, renderError(err, purpose, "html")
		}
	}

	// subjects are single line
	out.Subject = strings.Join(strings.Fields(out.Subject), " ")
	return out, nil
}

func renderError(err error, purpose accounts.Purpose, part string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, "render mail template").
		WithMetadata(map[string]any{"purpose": purpose.String(), "part": part})
}

// TemplateHelpers returns the globals available to every mail template.
//
//	{{ app_name }}
//	{{ purpose_label(purpose) }}
func TemplateHelpers() map[string]any {
	return map[string]any{
		"app_name":      DefaultAppName,
		"purpose_label": purposeLabel,
	}
}

func purposeLabel(purpose string) string {
	switch accounts.Purpose(purpose) {
	case accounts.PurposeActivation:
		return "account activation"
	case accounts.PurposeReset:
		return "password reset"
	}
	return purpose
}

// ExpiresIn renders a token lifetime as a short human label.
func ExpiresIn(ttl time.Duration) string {
	switch {
	case ttl <= 0:
		return "a limited time"
	case ttl%(24*time.Hour) == 0:
		return plural(int(ttl/(24*time.Hour)), "day")
	case ttl%time.Hour == 0:
		return plural(int(ttl/time.Hour), "hour")
	case ttl%time.Minute == 0:
		return plural(int(ttl/time.Minute), "minute")
	}
	return ttl.String()
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
