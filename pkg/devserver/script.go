package devserver

const (
	// EventsPath is the Server-Sent-Events endpoint
	EventsPath = "/__livereload"
	// ScriptPath serves ClientScript
	ScriptPath = "/__livereload.js"
)

// ClientScript connects to EventsPath and applies the received events
const ClientScript = `(() => {
  if (window.__assetpipe_lr) return;
  window.__assetpipe_lr = true;

  function refreshStyles() {
    document.querySelectorAll('link[rel="stylesheet"]').forEach((link) => {
      const url = new URL(link.href, location.href);
      if (url.origin !== location.origin) return;
      url.searchParams.set('__lr', Date.now());
      const next = link.cloneNode();
      next.href = url.toString();
      next.onload = () => link.remove();
      link.after(next);
    });
  }

  function connect() {
    const es = new EventSource('` + EventsPath + `');
    es.onmessage = (e) => {
      let ev;
      try { ev = JSON.parse(e.data); } catch (_) { return; }
      if (ev.type === 'reload') location.reload();
      else if (ev.type === 'css') refreshStyles();
      else if (ev.type === 'error') console.error('[assetpipe] ' + (ev.task ? ev.task + ': ' : '') + ev.message);
    };
    es.onerror = () => {
      es.close();
      setTimeout(connect, 2000);
    };
  }
  connect();
})();
`

const scriptTag = `<script src="` + ScriptPath + `"></script>`
