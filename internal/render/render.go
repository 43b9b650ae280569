// Package render builds the human-readable check-in lines and decides the
// per-run message batching policy.
package render

import (
	"strconv"
	"strings"
	"text/template"

	"slackbrew/internal/domain"
)

const untappdDomain = "https://untappd.com"

// One check-in line: user, beer, brewery, optional venue, optional rating,
// optional app deep link, optional quoted comment. Links use Slack's
// <url|label> mrkdwn form.
const lineTemplate = `:beer: *<{{.Domain}}/user/{{.Checkin.User.UserName}}|{{.Checkin.User.FirstName}} {{.Checkin.User.LastName}}>* is drinking a *<{{.Domain}}/b/{{.Checkin.Brewery.Slug}}/{{.Checkin.Beer.ID}}|{{.Checkin.Beer.Name}}>* by *<{{.Domain}}/w/{{.Checkin.Brewery.Slug}}/{{.Checkin.Brewery.ID}}|{{.Checkin.Brewery.Name}}>*{{if .Checkin.Venue}} at *<{{.Domain}}/v/{{.Checkin.Venue.Slug}}/{{.Checkin.Venue.ID}}|{{.Checkin.Venue.Name}}>*{{end}}{{if .Rating}} ({{.Rating}}/5){{end}}{{if .AppLinks}} | <untappd://checkin/{{.Checkin.ID}}|Toast »>{{end}}{{if .Checkin.Comment}}
>"{{.Checkin.Comment}}"{{end}}
`

// Formatter renders check-ins into Slack mrkdwn lines.
type Formatter struct {
	tmpl     *template.Template
	appLinks bool
}

// NewFormatter creates a Formatter. When appLinks is set every line gets a
// "Toast »" deep link into the Untappd app.
func NewFormatter(appLinks bool) *Formatter {
	return &Formatter{
		tmpl:     template.Must(template.New("checkin").Parse(lineTemplate)),
		appLinks: appLinks,
	}
}

// Line renders one check-in as a newline-terminated mrkdwn line, so lines
// stack cleanly when batched into a combined message.
func (f *Formatter) Line(c domain.Checkin) string {
	var b strings.Builder
	data := struct {
		Domain   string
		Checkin  domain.Checkin
		Rating   string
		AppLinks bool
	}{
		Domain:   untappdDomain,
		Checkin:  c,
		Rating:   formatRating(c.Rating),
		AppLinks: f.appLinks,
	}
	// The template over a value struct cannot fail at execution time.
	_ = f.tmpl.Execute(&b, data)
	return b.String()
}

// BadgeTitle builds the headline for a badge notification.
func BadgeTitle(c domain.Checkin, b domain.Badge) string {
	return c.User.FirstName + " " + c.User.LastName + " earned the " + b.Name + " badge!"
}

func formatRating(r float64) string {
	if r <= 0 {
		return ""
	}
	s := strings.TrimRight(strings.TrimRight(strconv.FormatFloat(r, 'f', 2, 64), "0"), ".")
	return s
}

// Watched reports whether a check-in belongs to one of the watched users.
// Matching is exact, case-insensitive set membership.
func Watched(c domain.Checkin, users map[string]struct{}) bool {
	_, ok := users[strings.ToLower(c.User.UserName)]
	return ok
}

// ComputeBatchingPolicy decides whether this run defers sending. If any
// watched check-in carries at least one photo, messages go out one per
// check-in so each picture lands right after its own text; otherwise all
// lines accumulate into a single combined message. The photo display flag
// does not factor in here, matching long-standing behavior.
func ComputeBatchingPolicy(checkins []domain.Checkin, users map[string]struct{}) bool {
	for _, c := range checkins {
		if Watched(c, users) && len(c.Photos) > 0 {
			return false
		}
	}
	return true
}
