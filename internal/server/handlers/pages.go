package handlers

import (
	"net/http"
)

// PagesHandlers serve the built-in status page.
type PagesHandlers struct{}

// NewPagesHandlers creates a new pages handlers instance
func NewPagesHandlers() *PagesHandlers {
	return &PagesHandlers{}
}

// HandleRoot serves the status page on / and 404s everything else.
func (h *PagesHandlers) HandleRoot(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		http.NotFound(w, req)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(statusPage))
}

const statusPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>oakbridge</title>
<style>
  body { font-family: ui-monospace, monospace; background: #14161a; color: #d8dce2; margin: 2rem; }
  h1 { font-size: 1.2rem; }
  .state { display: inline-block; padding: 2px 10px; border-radius: 3px; background: #333; }
  .state.streaming { background: #1d5c2e; }
  .state.degraded { background: #7a5c1d; }
  .state.connecting { background: #1d4a5c; }
  .state.disconnected, .state.closing { background: #5c1d1d; }
  img { margin-top: 1rem; max-width: 640px; border: 1px solid #333; }
  pre { background: #1b1e24; padding: 1rem; overflow-x: auto; }
  .log { max-height: 14rem; overflow-y: auto; }
</style>
</head>
<body>
<h1>oakbridge <span id="state" class="state">...</span></h1>
<div id="device"></div>
<img id="snapshot" src="/api/snapshot" alt="snapshot">
<pre id="stats"></pre>
<pre id="log" class="log"></pre>
<script>
  const stateEl = document.getElementById('state');
  const deviceEl = document.getElementById('device');
  const statsEl = document.getElementById('stats');
  const logEl = document.getElementById('log');
  const snapEl = document.getElementById('snapshot');

  function setState(s) {
    stateEl.textContent = s;
    stateEl.className = 'state ' + s;
  }

  function logLine(text) {
    logEl.textContent += text + '\n';
    logEl.scrollTop = logEl.scrollHeight;
  }

  setInterval(() => { snapEl.src = '/api/snapshot?t=' + Date.now(); }, 1000);

  const ws = new WebSocket('ws://' + location.host + '/ws');
  ws.onmessage = (e) => {
    const msg = JSON.parse(e.data);
    if (msg.state) setState(msg.state);
    if (msg.type === 'stats') {
      statsEl.textContent = JSON.stringify(msg.stats, null, 2);
    } else if (msg.type === 'state-changed') {
      logLine(new Date().toLocaleTimeString() + '  ' + msg.from + ' -> ' + msg.state + '  (' + msg.reason + ')');
      deviceEl.textContent = msg.device ? msg.device.device.name + ' @ ' + msg.device.speed : '';
    } else if (msg.type === 'control-result') {
      logLine(new Date().toLocaleTimeString() + '  control ' + msg.command + (msg.ok ? ' ok' : ' failed: ' + msg.error));
    }
  };
  ws.onclose = () => { setState('offline'); logLine('feed closed'); };
</script>
</body>
</html>
`
