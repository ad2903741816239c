package handlers

import (
	"html/template"
	"net/http"
)

// The callback responds with a small self-contained page; the user closes
// the tab and goes back to the chat either way.

var successPage = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Link complete</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
  display: flex; justify-content: center; align-items: center; min-height: 100vh; margin: 0;
  background: linear-gradient(135deg, #e8f5e9 0%, #c8e6c9 100%); }
.card { background: white; border-radius: 16px; padding: 40px;
  box-shadow: 0 8px 32px rgba(0,0,0,0.1); text-align: center; max-width: 400px; width: 90%; }
.icon { font-size: 64px; margin-bottom: 16px; }
h1 { color: #2e7d32; font-size: 24px; margin: 0 0 12px; }
p { color: #666; font-size: 16px; line-height: 1.6; }
.reward { color: #ff9800; font-weight: bold; font-size: 18px; }
</style>
</head>
<body>
<div class="card">
  <div class="icon">🌱</div>
  <h1>Link complete!</h1>
  <p>Your chat account is now tied to your site account</p>
  <p class="reward">🎁 Bind reward: +{{.Reward}} points</p>
  <p>You can head back to the chat now</p>
</div>
</body>
</html>`))

var failurePage = template.Must(template.New("failure").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Link failed</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
  display: flex; justify-content: center; align-items: center; min-height: 100vh; margin: 0;
  background: linear-gradient(135deg, #fce4ec 0%, #f8bbd0 100%); }
.card { background: white; border-radius: 16px; padding: 40px;
  box-shadow: 0 8px 32px rgba(0,0,0,0.1); text-align: center; max-width: 400px; width: 90%; }
.icon { font-size: 64px; margin-bottom: 16px; }
h1 { color: #c62828; font-size: 24px; margin: 0 0 12px; }
p { color: #666; font-size: 16px; line-height: 1.6; }
</style>
</head>
<body>
<div class="card">
  <div class="icon">😢</div>
  <h1>Link failed</h1>
  <p>{{.Message}}</p>
  <p>Go back to the chat and send /bind to try again</p>
</div>
</body>
</html>`))

func renderSuccess(w http.ResponseWriter, reward int64) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = successPage.Execute(w, map[string]any{"Reward": reward})
}

func renderFailure(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = failurePage.Execute(w, map[string]any{"Message": message})
}
