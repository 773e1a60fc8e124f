package renderer

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"

	"github.com/dustin/go-humanize"

	"github.com/northcutted/bundle-treemap/pkg/tree"
	"github.com/northcutted/bundle-treemap/pkg/types"
)

// DefaultTop is the number of largest modules listed per tree.
const DefaultTop = 10

// Metric names a size metric for ranking.
type Metric string

const (
	MetricDeclared   Metric = "declared"
	MetricEmitted    Metric = "emitted"
	MetricCompressed Metric = "compressed"
)

func (m Metric) of(s types.SizeTriple) int64 {
	switch m {
	case MetricDeclared:
		return s.Declared
	case MetricCompressed:
		return s.Compressed
	default:
		return s.Emitted
	}
}

// SummaryOptions tunes RenderSummary.
type SummaryOptions struct {
	// Top limits the largest-modules table; 0 selects DefaultTop and a
	// negative value lists every module.
	Top int
	// SortBy ranks modules; defaults to MetricEmitted.
	SortBy Metric
}

// SummaryContext holds all data passed to the template
type SummaryContext struct {
	Trees  []TreeSummary
	SortBy Metric
}

// TreeSummary is one result tree reduced to report rows.
type TreeSummary struct {
	Label   string
	Kind    types.NodeKind
	Sizes   types.SizeTriple
	Assets  []types.AssetInfo
	Modules int
	Top     []ModuleRow
}

// ModuleRow is one leaf of a tree.
type ModuleRow struct {
	Path  string
	Sizes types.SizeTriple
	Share float64 // percent of the tree by the ranking metric
}

const summaryTemplate = `# Bundle size report
{{- range .Trees }}

## {{ .Label }}{{ if eq .Kind "combined" }} ({{ .Modules }} modules across all chunks){{ end }}

| Metric | Size |
|--------|------|
| Declared | {{ bytes .Sizes.Declared }} |
| Emitted | {{ bytes .Sizes.Emitted }} |
| Compressed | {{ bytes .Sizes.Compressed }} |

{{- if .Assets }}

| Asset | Emitted | Compressed |
|-------|---------|------------|
{{- range .Assets }}
| {{ .Name }}{{ if .Missing }} (missing){{ end }} | {{ bytes .Emitted }} | {{ bytes .Compressed }} |
{{- end }}
{{- end }}

{{- if .Top }}

<details>
<summary>Largest modules by {{ $.SortBy }} size ({{ len .Top }} of {{ .Modules }})</summary>

| Module | Declared | Emitted | Compressed | Share |
|--------|----------|---------|------------|-------|
{{- range .Top }}
| {{ .Path }} | {{ bytes .Sizes.Declared }} | {{ bytes .Sizes.Emitted }} | {{ bytes .Sizes.Compressed }} | {{ printf "%.1f" .Share }}% |
{{- end }}
</details>
{{- else }}

*No modules.*
{{- end }}
{{- end }}
`

var summaryFuncs = template.FuncMap{
	"bytes": func(n int64) string {
		if n < 0 {
			n = 0
		}
		return humanize.Bytes(uint64(n))
	},
}

// RenderSummary generates a Markdown report for the given trees.
func RenderSummary(roots []*types.TreeNode, opts SummaryOptions) (string, error) {
	tmpl, err := template.New("summary").Funcs(summaryFuncs).Parse(summaryTemplate)
	if err != nil {
		return "", err
	}

	if opts.Top == 0 {
		opts.Top = DefaultTop
	}
	if opts.SortBy == "" {
		opts.SortBy = MetricEmitted
	}
	switch opts.SortBy {
	case MetricDeclared, MetricEmitted, MetricCompressed:
	default:
		return "", fmt.Errorf("unknown metric %q", opts.SortBy)
	}

	ctx := SummaryContext{SortBy: opts.SortBy}
	for _, root := range roots {
		if root != nil {
			ctx.Trees = append(ctx.Trees, summarize(root, opts))
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func summarize(root *types.TreeNode, opts SummaryOptions) TreeSummary {
	leaves := tree.Leaves(root)
	sort.SliceStable(leaves, func(i, j int) bool {
		a, b := opts.SortBy.of(leaves[i].SizeTriple), opts.SortBy.of(leaves[j].SizeTriple)
		if a != b {
			return a > b
		}
		return leaves[i].Path < leaves[j].Path
	})

	s := TreeSummary{
		Label:   root.Label,
		Kind:    root.Kind,
		Sizes:   root.SizeTriple,
		Assets:  root.Assets,
		Modules: len(leaves),
	}
	total := opts.SortBy.of(root.SizeTriple)
	for i, l := range leaves {
		if opts.Top > 0 && i >= opts.Top {
			break
		}
		row := ModuleRow{Path: l.Path, Sizes: l.SizeTriple}
		if total > 0 {
			row.Share = 100 * float64(opts.SortBy.of(l.SizeTriple)) / float64(total)
		}
		s.Top = append(s.Top, row)
	}
	return s
}
