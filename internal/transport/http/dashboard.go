package transporthttp

import (
	"html/template"

	spg "example.com/sensing-api/internal/storage/postgres"
)

type dashboardData struct {
	Vitals    []spg.VitalRow
	Locations []spg.LocationRow
	Events    []spg.EventRow
}

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"str": func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	},
	"num": func(p *float64) any {
		if p == nil {
			return ""
		}
		return *p
	},
	"dur": func(p *int) any {
		if p == nil {
			return ""
		}
		return *p
	},
}).Parse(`<html>
  <head>
    <title>Sensing Dashboard</title>
    <style>
      body { font-family: Arial, sans-serif; margin: 24px; }
      table { border-collapse: collapse; width: 100%; margin-bottom: 24px; }
      th, td { border: 1px solid #ddd; padding: 8px; font-size: 12px; }
      th { background: #f3f3f3; text-align: left; }
      h2 { margin-top: 24px; }
    </style>
  </head>
  <body>
    <h1>Sensing Ingestion Dashboard</h1>
    <p>Latest 20 rows per table.</p>
    <h2>sensor_vitals</h2>
    <table>
      <tr><th>time</th><th>device_id</th><th>metric_type</th><th>val</th></tr>
      {{range .Vitals}}<tr><td>{{.Time.Format "2006-01-02T15:04:05Z07:00"}}</td><td>{{.DeviceID}}</td><td>{{.MetricType}}</td><td>{{.Val}}</td></tr>
      {{end}}
    </table>
    <h2>sensor_location</h2>
    <table>
      <tr><th>time</th><th>device_id</th><th>coords</th><th>accuracy</th></tr>
      {{range .Locations}}<tr><td>{{.Time.Format "2006-01-02T15:04:05Z07:00"}}</td><td>{{.DeviceID}}</td><td>{{.Coords}}</td><td>{{num .Accuracy}}</td></tr>
      {{end}}
    </table>
    <h2>user_events</h2>
    <table>
      <tr><th>time</th><th>device_id</th><th>event_type</th><th>label</th><th>duration_sec</th><th>metadata</th></tr>
      {{range .Events}}<tr><td>{{.Time.Format "2006-01-02T15:04:05Z07:00"}}</td><td>{{.DeviceID}}</td><td>{{.EventType}}</td><td>{{str .Label}}</td><td>{{dur .DurationSec}}</td><td>{{str .Metadata}}</td></tr>
      {{end}}
    </table>
  </body>
</html>
`))
