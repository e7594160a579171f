package web

// indexHTML is the single-page dashboard. It is embedded so the binary
// has no runtime file dependencies.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>TurtleBot3 Dashboard</title>
<style>
  body { font-family: ui-monospace, monospace; background: #111; color: #ddd; margin: 0; padding: 1rem; }
  h1 { font-size: 1.1rem; margin: 0 0 1rem; }
  .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(280px, 1fr)); gap: 1rem; }
  .card { background: #1b1b1b; border: 1px solid #333; border-radius: 6px; padding: 0.8rem; }
  .card h2 { font-size: 0.9rem; margin: 0 0 0.5rem; color: #8ab; }
  pre { margin: 0; font-size: 0.75rem; white-space: pre-wrap; word-break: break-all; }
  #logs { height: 14rem; overflow-y: auto; font-size: 0.75rem; }
  .ok { color: #7c6; } .bad { color: #e66; }
  .lvl-WARN { color: #da3; } .lvl-ERROR { color: #e66; }
  form { display: flex; gap: 0.5rem; margin-top: 0.5rem; }
  input { flex: 1; background: #222; color: #ddd; border: 1px solid #444; border-radius: 4px; padding: 0.4rem; }
  button { background: #345; color: #ddd; border: 0; border-radius: 4px; padding: 0.4rem 0.8rem; cursor: pointer; }
</style>
</head>
<body>
<h1>TurtleBot3 <span id="healthy"></span></h1>
<div class="grid">
  <div class="card"><h2>Health</h2><pre id="health">...</pre></div>
  <div class="card"><h2>Goal</h2><pre id="goal">...</pre></div>
  <div class="card"><h2>Modules</h2><pre id="modules">...</pre></div>
  <div class="card"><h2>Voice</h2><pre id="voice">...</pre></div>
  <div class="card">
    <h2>Command</h2>
    <pre id="result"></pre>
    <form id="cmd"><input id="text" placeholder="go to the kitchen" autocomplete="off"><button>Send</button></form>
  </div>
  <div class="card" style="grid-column: 1 / -1;"><h2>Logs</h2><div id="logs"></div></div>
</div>
<script>
const fmt = (v) => JSON.stringify(v, null, 1);
const el = (id) => document.getElementById(id);

function applyStatus(doc) {
  if (doc.healthy !== undefined) {
    el('healthy').textContent = doc.healthy ? 'healthy' : 'unhealthy';
    el('healthy').className = doc.healthy ? 'ok' : 'bad';
  }
  if (doc.health) el('health').textContent = fmt(doc.health);
  if (doc.goal) el('goal').textContent = fmt(doc.goal);
  if (doc.modules) {
    el('modules').textContent = doc.modules.map(m => m.name + ': ' + m.status).join('\n');
  }
  if (doc.voice) el('voice').textContent = fmt(doc.voice);
}

function connect(path, onmsg) {
  const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + path);
  ws.onmessage = (e) => onmsg(JSON.parse(e.data));
  ws.onclose = () => setTimeout(() => connect(path, onmsg), 2000);
}

connect('/ws/status', (evt) => {
  if (evt.type === 'status') applyStatus(evt.data);
});

connect('/ws/logs', (entry) => {
  const div = document.createElement('div');
  div.className = 'lvl-' + entry.level;
  div.textContent = entry.time + ' ' + entry.level + ' ' + entry.message;
  const logs = el('logs');
  logs.appendChild(div);
  while (logs.childElementCount > 300) logs.removeChild(logs.firstChild);
  logs.scrollTop = logs.scrollHeight;
});

el('cmd').addEventListener('submit', async (e) => {
  e.preventDefault();
  const text = el('text').value.trim();
  if (!text) return;
  const resp = await fetch('/api/command', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({text}),
  });
  const res = await resp.json();
  el('result').textContent = res.response || res.error || fmt(res);
  el('text').value = '';
});
</script>
</body>
</html>
`
