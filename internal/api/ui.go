package api

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

var uiTemplates = template.Must(template.New("runs").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  <title>davbackup runs</title>
  <style>
    body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,Cantarell,Noto Sans,sans-serif;max-width:880px;margin:32px auto;padding:0 16px;color:#0b0b0b;background:#fafafa}
    h1{font-size:22px;margin:0 0 8px}
    .card{background:#fff;border:1px solid #e9e9e9;border-radius:10px;padding:16px;margin:12px 0}
    .btn{display:inline-block;background:#0b63e5;color:#fff;border:none;padding:10px 14px;border-radius:8px;cursor:pointer}
    .muted{color:#666}
    .mono{font-family:ui-monospace,SFMono-Regular,Menlo,Monaco,Consolas,monospace}
    .status{display:inline-block;padding:4px 8px;border-radius:6px;background:#efefef;font-size:12px}
    .failed{color:#b3261e}
  </style>
</head>
<body>
  <h1>davbackup</h1>
  <div class="card">
    <form method="post" action="/ui/runs">
      <button class="btn" type="submit"{{if .Busy}} disabled{{end}}>Start backup</button>
      {{if .Busy}}<span class="muted">a run is in progress</span>{{end}}
    </form>
  </div>
  {{range .Runs}}
  <div class="card">
    <div><span class="mono">{{.ID}}</span> <span class="status">{{.Status}}</span></div>
    <div class="muted">started {{.CreatedAt.Format "2006-01-02 15:04:05"}}</div>
    {{if .Error}}<div class="failed">{{.Error}}</div>{{end}}
    {{with .Report}}
      <div>{{.Tasks}} directories, {{len .Failed}} failed, took {{.Duration}}</div>
      {{range .Failed}}<div class="failed mono">{{.}}</div>{{end}}
    {{end}}
  </div>
  {{else}}
  <div class="muted">No runs yet</div>
  {{end}}
</body>
</html>
`))

// RegisterUIRoutes registers a minimal HTML status page without JS
func (a *API) RegisterUIRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(uiTemplates)
	router.GET("/", a.UIRuns)
	router.POST("/ui/runs", a.UIStartRun)
}

// UIRuns renders the run list
func (a *API) UIRuns(c *gin.Context) {
	c.HTML(http.StatusOK, "runs", gin.H{"Runs": a.runs.ListRuns(), "Busy": a.runs.IsBusy()})
}

// UIStartRun starts a run and redirects back to the list
func (a *API) UIStartRun(c *gin.Context) {
	if _, err := a.runs.Start(); err != nil {
		a.logger.Warn().Err(err).Msg("ui run start rejected")
	}
	c.Redirect(http.StatusFound, "/")
}
