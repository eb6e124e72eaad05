package report

// DossierTemplate is the HTML template for the per-ticker dossier.
// Charts are inlined as SVG so the file has no external assets.
const DossierTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: #ffffff;
    --text: #1a1a2e;
    --muted: #6b7280;
    --border: #e5e7eb;
    --accent: #1e3a8a;
    --green: #16a34a;
    --red: #dc2626;
    --orange: #ea580c;
    --section-bg: #f8fafc;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: Georgia, 'Times New Roman', serif;
    color: var(--text);
    background: var(--bg);
    line-height: 1.6;
    max-width: 900px;
    margin: 0 auto;
    padding: 20px;
  }
  h1 { font-size: 1.6rem; color: var(--accent); }
  h2 { font-size: 1.15rem; margin: 24px 0 10px; padding-bottom: 4px; border-bottom: 2px solid var(--accent); }
  .muted { color: var(--muted); font-size: 0.85rem; }
  .header { border-bottom: 3px solid var(--accent); padding-bottom: 10px; margin-bottom: 14px; }
  .badge { display: inline-block; background: var(--accent); color: #fff; padding: 1px 10px; border-radius: 4px; font-weight: 700; }
  .banner { background: #fff7ed; border-left: 4px solid var(--orange); padding: 8px 12px; margin: 10px 0; }
  table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
  th, td { text-align: left; padding: 4px 6px; border-bottom: 1px solid var(--border); }
  th { background: var(--section-bg); }
  .num { text-align: right; font-variant-numeric: tabular-nums; }
  .kw { font-weight: 700; text-transform: uppercase; font-size: 0.8rem; }
  .esc { color: var(--red); }
  .del { color: var(--orange); }
  .alert { color: var(--red); font-weight: 600; }
  .grid { display: grid; grid-template-columns: 1fr 220px; gap: 16px; align-items: start; }
  pre { white-space: pre-wrap; background: var(--section-bg); padding: 10px; border-radius: 6px; font-size: 0.8rem; }
  .leads { white-space: pre-wrap; background: var(--section-bg); padding: 12px; border-radius: 6px; }
  footer { margin-top: 30px; border-top: 1px solid var(--border); padding-top: 8px; }
</style>
</head>
<body>

<div class="header">
  <h1>{{.Title}}</h1>
  <p><span class="badge">{{.Ticker}}</span> CIK {{.CIK}}{{if .Strategy}} · located via {{.Strategy}}{{end}}</p>
  {{if .FetchedAt}}<p class="muted">Fetched {{.FetchedAt}}{{if .RunID}} · run {{.RunID}}{{end}}</p>{{end}}
</div>

{{if .Placeholder}}
<div class="banner">Placeholder filings: no live source answered. Figures below are not drawn from real documents.</div>
{{end}}

{{if .ShowFilings}}
<h2>Filings</h2>
<table>
  <tr><th>Form</th><th>Date</th><th>Accession</th></tr>
  {{range .Filings}}
  <tr><td>{{.Form}}</td><td>{{.Date}}</td><td>{{if .URL}}<a href="{{.URL}}">{{.Accession}}</a>{{else}}{{.Accession}} <span class="muted">(placeholder)</span>{{end}}</td></tr>
  {{end}}
</table>
{{end}}

{{if .ShowRedline}}
<h2>Risk Factor Redline</h2>
<p>{{.Redline.AddedCount}} sentences added, {{.Redline.RemovedCount}} removed · risk score <strong>{{.Redline.RiskScore}}</strong></p>
{{if .LowConfidence}}<p class="muted">Low-confidence extraction for: {{range $i, $a := .LowConfidence}}{{if $i}}, {{end}}{{$a}}{{end}}</p>{{end}}
{{if .Redline.Escalations}}
<h3 class="esc">New risk escalations</h3>
<ul>{{range .Redline.Escalations}}<li><span class="kw">{{.Keyword}}</span> {{.Text}}</li>{{end}}</ul>
{{end}}
{{if .Redline.SilentDeletions}}
<h3 class="del">Silent deletions</h3>
<ul>{{range .Redline.SilentDeletions}}<li><span class="kw">{{.Keyword}}</span> {{.Text}}</li>{{end}}</ul>
{{end}}
{{if .Redline.DiffPreview}}<pre>{{.Redline.DiffPreview}}</pre>{{end}}
{{end}}

{{if .ShowFinancials}}
<h2>Financial Audit</h2>
<div class="grid">
<table>
  <tr><td>Current assets</td><td class="num">{{.Financials.CurrentAssets}}</td></tr>
  <tr><td>Current liabilities</td><td class="num">{{.Financials.CurrentLiabilities}}</td></tr>
  <tr><td>Cash</td><td class="num">{{.Financials.Cash}}</td></tr>
  <tr><td>Total debt</td><td class="num">{{.Financials.TotalDebt}}</td></tr>
  <tr><td>Total assets</td><td class="num">{{.Financials.TotalAssets}}</td></tr>
  <tr><td>Liquidity ratio</td><td class="num">{{.LiquidityRatio}}</td></tr>
  <tr><td>Cash change</td><td class="num">{{.CashChange}}</td></tr>
</table>
<div>{{.HealthChart}}</div>
</div>
{{range .Financials.Alerts}}<p class="alert">🚨 {{.Type}}: {{.Message}}</p>{{end}}
{{end}}

{{if .ShowHoldings}}
<h2>13F Whale Activity</h2>
<p>{{.Holdings.TotalPositions}} positions · {{.Holdings.ChangesCount}} changes · net conviction {{.NetConviction}} shares (<strong>{{.Holdings.ConvictionSignal}}</strong>)</p>
{{.HoldingsChart}}
{{if .Holdings.NewPositions}}
<h3>New positions</h3>
<table>
  <tr><th>Issuer</th><th>CUSIP</th><th class="num">Shares</th></tr>
  {{range .Holdings.NewPositions}}<tr><td>{{.Issuer}}</td><td>{{.CUSIP}}</td><td class="num">{{.CurrentShares}}</td></tr>{{end}}
</table>
{{end}}
{{if .Holdings.Exits}}
<h3>Exits</h3>
<table>
  <tr><th>Issuer</th><th>CUSIP</th><th class="num">Previous shares</th></tr>
  {{range .Holdings.Exits}}<tr><td>{{.Issuer}}</td><td>{{.CUSIP}}</td><td class="num">{{.PreviousShares}}</td></tr>{{end}}
</table>
{{end}}
{{end}}

{{if .ShowIntelligence}}
<h2>Scoop Leads</h2>
{{if .LeadsAt}}<p class="muted">Drafted {{.LeadsAt}}{{if .Intelligence.Model}} by {{.Intelligence.Model}}{{end}}</p>{{end}}
<div class="leads">{{.Intelligence.ScoopLeads}}</div>
{{end}}

{{if .ShowWarnings}}
<h2>Warnings</h2>
<ul>{{range .Warnings}}<li>{{.}}</li>{{end}}</ul>
{{end}}

<footer class="muted">Generated {{.GeneratedAt}} by {{.Author}}. Source documents: SEC EDGAR.</footer>
</body>
</html>
`
