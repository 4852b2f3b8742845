package report

import (
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/tracenav/tracenav/internal/model"
)

// indexTemplate lays out index.html: custom header, module sections, then
// the per-compile navigation directory. Contribution HTML is module-produced
// and already escaped at the leaf level.
var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Compilation Report</title>
<style>
{{.CSS}}
</style>
<script>
function toggleList(marker) {
  var ul = marker.parentElement.querySelector('ul');
  if (ul) { ul.hidden = !ul.hidden; }
}
</script>
</head>
<body>
{{.CustomHeader}}
<h1>Compilation Report</h1>
{{range .Contributions}}
<section>
<h2>{{.Section}}</h2>
{{.HTML}}
</section>
{{end}}
<h2>Compilations</h2>
{{range .Sections}}
<details open id="{{.Anchor}}">
<summary>{{.Title}}</summary>
<ul>
{{range .Entries}}<li><a href="{{.URL}}">{{.Name}}</a> {{.Suffix}}</li>
{{end}}</ul>
</details>
{{end}}
{{if .GlobalEntries}}
<h2>Global</h2>
<ul>
{{range .GlobalEntries}}<li><a href="{{.URL}}">{{.Name}}</a> {{.Suffix}}</li>
{{end}}</ul>
{{end}}
</body>
</html>
`))

type indexSection struct {
	Anchor  string
	Title   string
	Entries []DirectoryEntry
}

type indexContribution struct {
	Section string
	HTML    template.HTML
}

type indexData struct {
	CSS           template.CSS
	CustomHeader  template.HTML
	Contributions []indexContribution
	Sections      []indexSection
	GlobalEntries []DirectoryEntry
}

// GenerateIndex assembles index.html from the combined module output:
// compile-id sections in sorted order, the global section last, and every
// index contribution in registration order.
func GenerateIndex(combined *CombinedOutput, cfg Config) (string, error) {
	var ids []string
	for id := range combined.DirectoryEntries {
		if id != GlobalKey {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	data := indexData{
		CSS:           template.CSS(pageCSS),
		CustomHeader:  template.HTML(cfg.CustomHeaderHTML),
		GlobalEntries: combined.DirectoryEntries[GlobalKey],
	}
	for _, c := range combined.IndexContributions {
		data.Contributions = append(data.Contributions, indexContribution{
			Section: c.Section,
			HTML:    template.HTML(c.HTML),
		})
	}
	for _, id := range ids {
		data.Sections = append(data.Sections, indexSection{
			Anchor:  id,
			Title:   fmt.Sprintf("Compilation %s", model.DisplayName(id)),
			Entries: combined.DirectoryEntries[id],
		})
	}

	var b strings.Builder
	if err := indexTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render index: %w", err)
	}
	return b.String(), nil
}
