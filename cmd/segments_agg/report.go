package main

import (
	"encoding/base64"
	"encoding/json"
	"html/template"
	"io"
	"os"
	"path/filepath"

	grob "github.com/MetalBlueberry/go-plotly/generated/v2.34.0/graph_objects"
	ptypes "github.com/MetalBlueberry/go-plotly/pkg/types"
	"github.com/gomlx/segments"
	"github.com/gomlx/segments/types/tensors"
	"github.com/gomlx/segments/types/xslices"
	"github.com/janpfeifer/gonb/gonbui/plotly"
	"github.com/pkg/errors"
)

// buildFigure assembles the plotly figure for one aggregated input: a bar trace
// per pooling operation, with each segment reduced to the mean over its columns
// so all operations share one y-axis, plus a line with the rows per segment.
func buildFigure(result *fileResult) *grob.Fig {
	segmentAxis := xslices.Iota(0, result.numSegments)
	fig := &grob.Fig{
		Layout: &grob.Layout{
			Title: &grob.LayoutTitle{
				Text: ptypes.S(result.item.name),
			},
			Xaxis: &grob.LayoutXaxis{
				Showgrid: ptypes.B(true),
			},
			Yaxis: &grob.LayoutYaxis{
				Showgrid: ptypes.B(true),
			},
		},
	}
	for _, op := range segments.PoolTypeValues() {
		pooled, found := result.pooled[op]
		if !found {
			continue
		}
		fig.Data = append(fig.Data, &grob.Bar{
			Type: grob.TraceTypeBar,
			Name: ptypes.S(op.String()),
			X:    ptypes.DataArray(segmentAxis),
			Y:    ptypes.DataArray(columnMeans(pooled)),
		})
	}
	fig.Data = append(fig.Data, &grob.Scatter{
		Name: ptypes.S("rows per segment"),
		Line: &grob.ScatterLine{
			Shape: grob.ScatterLineShapeLinear,
		},
		Mode: "lines+markers",
		X:    ptypes.DataArray(segmentAxis),
		Y:    ptypes.DataArray(tensors.CopyFlatData[int64](result.counts)),
	})
	return fig
}

// columnMeans reduces a pooled (numSegments, numCols) tensor to one value per
// segment, the mean over its columns.
func columnMeans(pooled *tensors.Tensor) []float64 {
	numSegments := pooled.Shape().Dimensions[0]
	numCols := pooled.Shape().Dimensions[1]
	means := make([]float64, numSegments)
	if numCols == 0 {
		return means
	}
	reduce := func(values []float64) {
		for seg := range means {
			var sum float64
			for _, value := range values[seg*numCols : (seg+1)*numCols] {
				sum += value
			}
			means[seg] = sum / float64(numCols)
		}
	}
	pooled.ConstFlatData(func(flat any) {
		switch values := flat.(type) {
		case []float64:
			reduce(values)
		case []float32:
			asFloat64 := make([]float64, len(values))
			for idx, value := range values {
				asFloat64[idx] = float64(value)
			}
			reduce(asFloat64)
		}
	})
	return means
}

// writeReport renders one plot per result into a single HTML file and returns
// its path. The file goes under outputDir if set, otherwise to a temporary file.
func writeReport(results []*fileResult, outputDir string) (string, error) {
	figures := make([][]byte, 0, len(results))
	for _, result := range results {
		figAsJSON, err := json.Marshal(buildFigure(result))
		if err != nil {
			return "", errors.Wrapf(err, "failed to marshal plotly figure for %q", result.item.name)
		}
		figures = append(figures, figAsJSON)
	}
	if outputDir != "" {
		reportPath := filepath.Join(outputDir, "segments_report.html")
		return reportPath, plotlyToHTMLFile(reportPath, figures...)
	}
	tmpFile, err := os.CreateTemp("", "segments-report-*.html")
	if err != nil {
		return "", errors.Wrap(err, "failed to create temporary file for the report")
	}
	if err = tmpFile.Close(); err != nil {
		return "", errors.Wrap(err, "failed to close temporary file for the report")
	}
	return tmpFile.Name(), plotlyToHTMLFile(tmpFile.Name(), figures...)
}

var (
	singleFileHTML = `<!DOCTYPE html>
	<head>
		<meta charset="utf-8">
		<script src="{{ .CDN }}"></script>
	</head>
	<body style="background-color: black;">
{{- range $i, $f := .Figures }}
		<div id="plot{{ $i }}"></div>
		{{ if not (eq $i (lastIdx $.Figures)) }}
		<hr style="border-color: gray;">
		{{ end }}
{{- end }}
	<script>
{{- range $i, $f := .Figures }}
		data = JSON.parse(atob('{{ $f }}'))
		Plotly.newPlot('plot{{ $i }}', data);
{{- end }}
	</script>
	</body>
</html>`
	singleFileHTMLTmpl = template.Must(template.New("plotly").Funcs(template.FuncMap{
		"lastIdx": func(a []string) int { return len(a) - 1 },
	}).Parse(singleFileHTML))
)

// writePlotlyAsHTML renders the Plotly figures (given as JSON) to an HTML page
// that can be served or saved to a file.
func writePlotlyAsHTML(w io.Writer, figuresAsJSON ...[]byte) error {
	data := &struct {
		CDN     string
		Figures []string
	}{
		CDN:     plotly.PlotlySrc,
		Figures: xslices.Map(figuresAsJSON, func(fig []byte) string { return base64.StdEncoding.EncodeToString(fig) }),
	}
	err := singleFileHTMLTmpl.Execute(w, data)
	if err != nil {
		return errors.Wrap(err, "failed to render plotly")
	}
	return nil
}

// plotlyToHTMLFile renders the Plotly figures (given as JSON) to an HTML file.
func plotlyToHTMLFile(fileName string, figuresAsJSON ...[]byte) error {
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "failed to create file %q", fileName)
	}
	if err = writePlotlyAsHTML(f, figuresAsJSON...); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "failed to close %q", fileName)
}
