// Package report renders a ticker's forensic findings as a standalone HTML
// dossier or a plain-text summary, with inline SVG charts.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/seenimoa/edgarwatch/pkg/models"
	"github.com/seenimoa/edgarwatch/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// SVG Charts
// ════════════════════════════════════════════════════════════════════

// ChartConfig holds rendering parameters for SVG charts.
type ChartConfig struct {
	Width        int    // SVG width in pixels (default: 720)
	Height       int    // SVG height in pixels (default: 320)
	MarginTop    int    // top margin (default: 40)
	MarginRight  int    // right margin (default: 90)
	MarginBottom int    // bottom margin (default: 20)
	MarginLeft   int    // left margin (default: 200)
	BgColor      string // background color (default: "#ffffff")
	TextColor    string // label color (default: "#333333")
	FontSize     int    // label font size (default: 11)
	Title        string
}

// DefaultChartConfig returns sensible defaults for chart rendering.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:        720,
		Height:       320,
		MarginTop:    40,
		MarginRight:  90,
		MarginBottom: 20,
		MarginLeft:   200,
		BgColor:      "#ffffff",
		TextColor:    "#333333",
		FontSize:     11,
	}
}

// plotArea returns the usable drawing area dimensions.
func (c ChartConfig) plotArea() (x, y, w, h int) {
	return c.MarginLeft, c.MarginTop,
		c.Width - c.MarginLeft - c.MarginRight,
		c.Height - c.MarginTop - c.MarginBottom
}

// ── Holdings changes ──

// ChangeBarChart draws one horizontal bar per position change, scaled
// around a zero line. Buys are green, sells red.
func ChangeBarChart(changes []models.HoldingChange, cfg ChartConfig) string {
	if cfg.Width == 0 {
		cfg = DefaultChartConfig()
	}
	if len(changes) == 0 {
		return emptySVG(cfg, "No position changes")
	}
	if cfg.Title == "" {
		cfg.Title = "Largest position changes (shares)"
	}

	px, py, pw, ph := cfg.plotArea()

	var minVal, maxVal float64
	for _, c := range changes {
		v := float64(c.Delta)
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	span := maxVal - minVal
	if span == 0 {
		span = 1
	}
	zeroX := float64(px) + (-minVal/span)*float64(pw)

	barH := math.Min(float64(ph)/float64(len(changes))*0.7, 24)
	gap := (float64(ph) - barH*float64(len(changes))) / float64(len(changes)+1)

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	fmt.Fprintf(&sb, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, cfg.Width, cfg.Height, cfg.BgColor)
	fmt.Fprintf(&sb, `<text x="%d" y="20" font-size="14" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
		cfg.Width/2, cfg.TextColor, escapeXML(cfg.Title))
	fmt.Fprintf(&sb, `<line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="#999" stroke-width="1"/>`,
		zeroX, py, zeroX, py+ph)

	for i, c := range changes {
		v := float64(c.Delta)
		by := float64(py) + gap + float64(i)*(barH+gap)
		bw := math.Abs(v) / span * float64(pw)
		bx, color := zeroX, "#16a34a"
		if v < 0 {
			bx, color = zeroX-bw, "#dc2626"
		}
		fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" rx="2"/>`,
			bx, by, bw, barH, color)
		fmt.Fprintf(&sb, `<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%s</text>`,
			px-8, by+barH/2+4, cfg.FontSize, cfg.TextColor, escapeXML(truncate(c.Issuer, 28)))
		fmt.Fprintf(&sb, `<text x="%.1f" y="%.1f" font-size="%d" fill="%s">%s</text>`,
			math.Max(bx+bw, zeroX)+5, by+barH/2+4, cfg.FontSize, cfg.TextColor, utils.FormatThousands(v))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// ── Health gauge ──

// HealthGauge draws a semicircular dial for an audit health score out of
// outOf. Scores below zero are pinned to the left edge.
func HealthGauge(score, outOf int, width int) string {
	if width == 0 {
		width = 200
	}
	if outOf <= 0 {
		outOf = 10
	}
	height := width/2 + 30
	cx := float64(width) / 2
	cy := float64(width)/2 - 10
	radius := float64(width)/2 - 20

	frac := math.Min(math.Max(float64(score)/float64(outOf), 0), 1)

	var color string
	switch {
	case frac < 0.4:
		color = "#dc2626"
	case frac < 0.7:
		color = "#ea580c"
	default:
		color = "#16a34a"
	}

	angle := math.Pi - frac*math.Pi
	endX := cx + radius*math.Cos(angle)
	endY := cy - radius*math.Sin(angle)
	needleX := cx + radius*0.85*math.Cos(angle)
	needleY := cy - radius*0.85*math.Sin(angle)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		width, height, width, height)
	fmt.Fprintf(&sb, `<rect width="%d" height="%d" fill="white"/>`, width, height)
	fmt.Fprintf(&sb, `<path d="M%.1f,%.1f A%.1f,%.1f 0 0,1 %.1f,%.1f" fill="none" stroke="#e5e7eb" stroke-width="12" stroke-linecap="round"/>`,
		cx-radius, cy, radius, radius, cx+radius, cy)
	if frac > 0 {
		// The arc never spans more than 180 degrees, so the large-arc flag stays 0.
		fmt.Fprintf(&sb, `<path d="M%.1f,%.1f A%.1f,%.1f 0 0,1 %.1f,%.1f" fill="none" stroke="%s" stroke-width="12" stroke-linecap="round"/>`,
			cx-radius, cy, radius, radius, endX, endY, color)
	}
	fmt.Fprintf(&sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#333" stroke-width="2"/>`, cx, cy, needleX, needleY)
	fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="5" fill="#333"/>`, cx, cy)
	fmt.Fprintf(&sb, `<text x="%.1f" y="%.1f" font-size="22" font-weight="bold" fill="%s" text-anchor="middle">%d/%d</text>`,
		cx, cy+25, color, score, outOf)
	fmt.Fprintf(&sb, `<text x="%.1f" y="%d" font-size="11" fill="#666" text-anchor="middle">Health score</text>`,
		cx, height-5)
	sb.WriteString("</svg>")
	return sb.String()
}

// ── SVG helpers ──

func svgHeader(cfg ChartConfig) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height)
}

func emptySVG(cfg ChartConfig, msg string) string {
	w, h := cfg.Width, cfg.Height
	if w == 0 {
		w = 400
	}
	if h == 0 {
		h = 200
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="%d" height="%d" fill="#f5f5f5"/><text x="%d" y="%d" text-anchor="middle" fill="#999" font-size="14">%s</text></svg>`,
		w, h, w, h, w/2, h/2, escapeXML(msg))
}

func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
