package server

// ScriptTag is the HTML snippet pages include to load the reconciler.
const ScriptTag = `<script src="` + ClientScriptPath + `" defer></script>`

// ClientScript is the browser-side reconciler. It keeps a websocket open
// when it can, falls back to polling while disconnected, applies patches
// by target id and swap mode, and reports targets that no longer exist so
// the server can stop the background work feeding them.
const ClientScript = `
(function(){
    'use strict';
    if (window.__psuiPatch) return;
    window.__psuiPatch = (function(){
        var pollEndpoint = '` + PollPath + `';
        var invalidEndpoint = '` + InvalidPath + `';
        var wsPath = '` + WebSocketPath + `';
        var socket = null;
        var reconnectTimer = 0;
        var retry = 0;
        var pollTimer = 0;
        var pollInterval = 1500;

        function notifyInvalid(id){
            if (!id) { return; }
            try {
                fetch(invalidEndpoint, {
                    method: 'POST',
                    headers: { 'Content-Type': 'application/json' },
                    body: JSON.stringify({ id: id })
                });
            } catch(_) { }
        }

        function applyPatch(patch){
            if (!patch) { return; }
            var id = String(patch.id || '');
            if (!id) { return; }
            var swap = String(patch.swap || 'inline');
            var html = String(patch.html || '');
            if (swap === 'none') { return; }
            var el = document.getElementById(id);
            if (!el) {
                notifyInvalid(id);
                return;
            }
            try {
                if (swap === 'inline') { el.innerHTML = html; }
                else if (swap === 'outline') { el.outerHTML = html; }
                else if (swap === 'append') { el.insertAdjacentHTML('beforeend', html); }
                else if (swap === 'prepend') { el.insertAdjacentHTML('afterbegin', html); }
            } catch(_) { }
        }

        function applyPatches(list){
            if (!Array.isArray(list)) { return; }
            for (var i = 0; i < list.length; i++) { applyPatch(list[i]); }
        }

        function handleMessage(event){
            if (!event || !event.data) { return; }
            var data = null;
            try { data = JSON.parse(event.data); } catch(_) { return; }
            if (!data) { return; }
            var type = String(data.type || '');
            if (type === 'patch') { applyPatches(data.patches || []); return; }
            if (type === 'reload') { try { window.location.reload(); } catch(_){} }
        }

        function poll(){
            try {
                fetch(pollEndpoint, { method: 'GET', headers: { 'Accept': 'application/json' } })
                    .then(function(resp){ if (!resp.ok) throw new Error('HTTP ' + resp.status); return resp.json(); })
                    .then(function(data){ if (data) { applyPatches(data.patches || []); } })
                    .catch(function(){});
            } catch(_) { }
        }

        function startPolling(){
            if (pollTimer) { return; }
            poll();
            pollTimer = setInterval(poll, pollInterval);
        }

        function stopPolling(){
            if (!pollTimer) { return; }
            try { clearInterval(pollTimer); } catch(_){}
            pollTimer = 0;
        }

        function cleanupSocket(){
            if (!socket) { return; }
            try {
                socket.onopen = null;
                socket.onmessage = null;
                socket.onclose = null;
                socket.onerror = null;
            } catch(_) { }
            socket = null;
        }

        function scheduleReconnect(){
            if (reconnectTimer) { return; }
            var attempt = retry;
            retry = Math.min(retry + 1, 6);
            var delay = Math.min(1200 * Math.pow(2, attempt), 10000);
            reconnectTimer = setTimeout(function(){
                reconnectTimer = 0;
                connect();
            }, delay);
        }

        function connect(){
            var proto = 'ws';
            try { proto = window.location.protocol === 'https:' ? 'wss' : 'ws'; } catch(_){}
            var host = '';
            try { host = window.location.host || ''; } catch(_){}
            if (!host) {
                startPolling();
                return;
            }
            try {
                var ws = new WebSocket(proto + '://' + host + wsPath);
                socket = ws;
                ws.onopen = function(){
                    retry = 0;
                    stopPolling();
                    poll();
                };
                ws.onmessage = handleMessage;
                ws.onerror = function(){
                    cleanupSocket();
                    scheduleReconnect();
                    startPolling();
                };
                ws.onclose = function(){
                    cleanupSocket();
                    scheduleReconnect();
                    startPolling();
                };
            } catch(_) {
                scheduleReconnect();
                startPolling();
            }
        }

        connect();
        startPolling();
        return { notifyInvalid: notifyInvalid, poll: poll };
    })();
})();
`
