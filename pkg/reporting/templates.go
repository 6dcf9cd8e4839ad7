/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: templates.go
Description: HTML template for the XSSentinel dashboard. Self-contained, no external assets,
so the report can be opened offline next to its evidence directory.
*/

package reporting

// dashboardTemplate is the main HTML template for the dashboard.
// Payloads are attacker-controlled strings; html/template escapes every interpolation.
const dashboardTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta http-equiv="Content-Security-Policy" content="default-src 'none'; img-src 'self'; style-src 'unsafe-inline'">
    <title>{{.Title}}</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; background: #f4f5fb; color: #333; }
        .container { max-width: 1400px; margin: 0 auto; padding: 20px; }
        .header { background: #fff; border-radius: 16px; padding: 24px; margin-bottom: 24px; box-shadow: 0 4px 16px rgba(0,0,0,0.08); }
        .header h1 { color: #4a5568; font-size: 2rem; margin-bottom: 8px; }
        .header p { color: #718096; }
        .tiles { display: grid; grid-template-columns: repeat(auto-fit, minmax(160px, 1fr)); gap: 16px; margin-bottom: 24px; }
        .tile { background: #fff; border-radius: 12px; padding: 16px; text-align: center; box-shadow: 0 2px 8px rgba(0,0,0,0.06); }
        .tile .value { font-size: 1.8rem; font-weight: 700; }
        .tile .label { color: #718096; font-size: 0.9rem; }
        .Critical { color: #c00; } .High { color: #e05a47; } .Medium { color: #c9a100; } .Low { color: #3c9a4b; } .Info { color: #3b6fd8; }
        .section { background: #fff; border-radius: 16px; padding: 20px; margin-bottom: 24px; box-shadow: 0 4px 16px rgba(0,0,0,0.08); }
        .section h2 { margin-bottom: 12px; color: #4a5568; }
        table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
        th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid #e2e8f0; vertical-align: top; }
        th { color: #4a5568; }
        code { font-family: Consolas, monospace; word-break: break-all; background: #f7fafc; padding: 1px 4px; border-radius: 4px; }
        .hit { border-left: 4px solid #e05a47; padding: 12px; margin-bottom: 12px; background: #fffaf9; border-radius: 8px; }
        .hit img { max-width: 480px; margin-top: 8px; border: 1px solid #e2e8f0; }
        .muted { color: #a0aec0; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.Title}}</h1>
            <p>Target: <code>{{.Report.Target}}</code> | Marker: <code>{{.Report.Marker}}</code> | Seed: {{.Report.Seed}} | Run: {{.Report.RunID}}</p>
            <p>Generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM"}} | Version: {{.Version}}{{if .Report.Interrupted}} | <strong>interrupted, partial results</strong>{{end}}</p>
        </div>

        <div class="tiles">
            <div class="tile"><div class="value">{{.Report.Summary.Total}}</div><div class="label">Attempts</div></div>
            <div class="tile"><div class="value">{{.Report.Summary.Executed}}</div><div class="label">Executed</div></div>
            <div class="tile"><div class="value">{{.Report.Summary.Reflected}}</div><div class="label">Reflected</div></div>
            <div class="tile"><div class="value">{{.Report.Summary.Errors}}</div><div class="label">Errors</div></div>
            {{range .Bands}}<div class="tile"><div class="value {{.Severity}}">{{.Count}}</div><div class="label">{{.Severity}}</div></div>{{end}}
        </div>

        <div class="section">
            <h2>Content Security Policy</h2>
            {{with .Report.CSP}}
            <p>Directive <code>{{.Directive}}</code>: inline {{.AllowsInline}}, eval {{.AllowsEval}}, data: {{.AllowsData}}, blob: {{.AllowsBlob}}</p>
            <p class="muted"><code>{{.Raw}}</code></p>
            {{else}}
            <p class="muted">No policy captured; payloads were not filtered.</p>
            {{end}}
            <p>{{range .Kinds}}{{.Kind}}: {{.Count}} &nbsp; {{end}}</p>
        </div>

        <div class="section">
            <h2>Hits</h2>
            {{range .Hits}}
            <div class="hit">
                <p><strong class="{{.Severity}}">{{.Severity}} {{.Score}}</strong> {{.Point}} | executed {{.Executed}} | reflected {{.Reflected}} | status {{status .HTTPStatus}}</p>
                <p>Payload: <code>{{.Payload}}</code></p>
                <p>URL: <code>{{.URL}}</code></p>
                {{if .ReflectionContexts}}<p>Contexts: {{range .ReflectionContexts}}<code>{{.}}</code> {{end}}</p>{{end}}
                {{if .Sinks}}<p>Sinks: {{range .Sinks}}<code>{{.Name}}</code> {{end}}</p>{{end}}
                {{if .Trace}}<p>Trace: <a href="{{rel .Trace}}">{{rel .Trace}}</a></p>{{end}}
                {{if .Screenshot}}<img src="{{rel .Screenshot}}" alt="screenshot">{{end}}
            </div>
            {{else}}
            <p class="muted">No execution or reflection signal observed.</p>
            {{end}}
        </div>

        <div class="section">
            <h2>All attempts</h2>
            <table>
                <tr><th>#</th><th>Severity</th><th>Score</th><th>Point</th><th>Exec</th><th>Refl</th><th>Status</th><th>Payload</th><th>Error</th></tr>
                {{range $i, $f := .Report.Findings}}
                <tr>
                    <td>{{$i}}</td><td class="{{$f.Severity}}">{{$f.Severity}}</td><td>{{$f.Score}}</td><td>{{$f.Point}}</td>
                    <td>{{if $f.Executed}}&#10003;{{end}}</td><td>{{if $f.Reflected}}&#10003;{{end}}</td><td>{{status $f.HTTPStatus}}</td>
                    <td><code>{{$f.Payload}}</code></td><td class="muted">{{$f.Error}}</td>
                </tr>
                {{end}}
            </table>
        </div>
    </div>
</body>
</html>
`
