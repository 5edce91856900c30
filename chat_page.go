package main

// chatPage is the browser UI served at GET /. It talks to /api/models,
// /api/chat and /api/transcribe.
const chatPage = `<!DOCTYPE html>
<html>
<head>
    <title>chatrelay</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { margin: 0; font-family: system-ui, -apple-system, sans-serif; background: #FFF8F0; color: #2C1F3D; }
        main { max-width: 760px; margin: 0 auto; padding: 2rem 1.25rem 10rem; }
        h1 { font-size: 1.4rem; color: #6B4C8A; }
        .msg { margin: 1.25rem 0; }
        .msg.user .body { padding: 1rem 1.25rem; background: #E8DCC4; border-left: 4px solid #6B4C8A; font-style: italic; white-space: pre-wrap; }
        .msg.assistant .body { padding: 1.25rem; background: #FFFBF5; border: 1px solid #E8DCC4; border-radius: 8px; white-space: pre-wrap; }
        .msg.error .body { border-color: #C0392B; }
        details.reasoning { margin-bottom: .75rem; color: #6B5A7A; font-size: .9rem; }
        details.reasoning pre { white-space: pre-wrap; font-family: inherit; margin: .5rem 0 0; }
        .sources { margin-top: .75rem; font-size: .85rem; }
        .sources a { color: #6B4C8A; margin-right: .75rem; }
        .file { font-size: .85rem; color: #6B5A7A; }
        .err { color: #C0392B; font-size: .9rem; margin-top: .5rem; }
        .suggestions { display: flex; flex-wrap: wrap; gap: .5rem; }
        .suggestions button { padding: .5rem .9rem; border: 1px solid #6B4C8A; background: #FFFBF5; color: #2C1F3D; border-radius: 999px; cursor: pointer; }
        form { position: fixed; bottom: 0; left: 0; right: 0; background: #FFF8F0; border-top: 1px solid #E8DCC4; padding: 1rem; }
        .row { max-width: 760px; margin: 0 auto; display: flex; gap: .5rem; align-items: center; }
        textarea { flex: 1; padding: .8rem 1rem; font: inherit; border: 3px solid #6B4C8A; border-radius: 12px; background: #FFFBF5; resize: none; outline: none; }
        textarea:disabled { opacity: .6; }
        select, .tool { padding: .45rem .7rem; border: 1px solid #6B4C8A; border-radius: 8px; background: #FFFBF5; color: #2C1F3D; cursor: pointer; font: inherit; }
        .tool.on { background: #6B4C8A; color: white; }
        .tool:disabled { opacity: .4; cursor: not-allowed; }
        .send { padding: .8rem 1.5rem; font-weight: 600; background: #6B4C8A; color: white; border: none; border-radius: 10px; cursor: pointer; }
        .tools { max-width: 760px; margin: 0 auto .5rem; display: flex; gap: .5rem; align-items: center; }
    </style>
</head>
<body>
<main>
    <h1>chatrelay</h1>
    <p class="file"><a href="/terms_of_service">Terms</a> &middot; <a href="/routing_table">Routing</a> &middot; <a href="/health">Health</a></p>
    <div id="suggestions" class="suggestions"></div>
    <div id="messages"></div>
</main>
<form id="composer">
    <div class="tools">
        <select id="model"></select>
        <button type="button" id="search" class="tool" title="Web search (OpenAI models)">Search</button>
        <button type="button" id="attach" class="tool" title="Attach a file">Attach</button>
        <input type="file" id="file" hidden>
        <button type="button" id="mic" class="tool" title="Dictate">Mic</button>
        <span id="status" class="file"></span>
    </div>
    <div class="row">
        <textarea id="input" rows="2" placeholder="Ask anything"></textarea>
        <button type="submit" class="send">Send</button>
    </div>
</form>
<script>
(function () {
    var SUGGESTIONS = [
        "What are the latest trends in AI?",
        "How does machine learning work?",
        "Explain quantum computing",
        "Best practices for React development",
        "Tell me about TypeScript benefits",
        "How to optimize database queries?"
    ];
    var state = {
        messages: [],
        models: [],
        modelId: "",
        provider: "openai",
        webSearch: false,
        status: "ready",
        recorder: null,
        transcribing: false
    };
    var $ = function (id) { return document.getElementById(id); };

    function newId() {
        return "msg_" + Math.random().toString(16).slice(2) + Date.now().toString(16);
    }

    function searchAllowed() { return state.provider === "openai"; }

    function metadata(withSearch) {
        var m = { modelId: state.modelId, provider: state.provider };
        if (withSearch) { m.useWebSearch = state.webSearch && searchAllowed(); }
        return m;
    }

    function searchHits(result) {
        if (typeof result === "string") {
            try { result = JSON.parse(result); } catch (e) { return []; }
        }
        if (!result || !Array.isArray(result.results)) { return []; }
        return result.results.map(function (r) { return { title: r.title || r.url, href: r.url }; });
    }

    function sources(msg) {
        var out = [], seen = {};
        var add = function (s) {
            if (!s.href || seen[s.href]) { return; }
            seen[s.href] = true;
            out.push(s);
        };
        msg.parts.forEach(function (p) {
            if ((p.type === "source-url" || p.type === "source-document") && p.url) {
                add({ title: p.title || p.url, href: p.url });
            }
        });
        msg.parts.forEach(function (p) {
            if (p.type === "tool-result" && p.toolName === "web_search_preview") {
                searchHits(p.result).forEach(add);
            }
        });
        return out;
    }

    function render() {
        var box = $("messages");
        box.innerHTML = "";
        state.messages.forEach(function (m) {
            var el = document.createElement("div");
            el.className = "msg " + m.role + (m.error ? " error" : "");
            var body = document.createElement("div");
            body.className = "body";
            m.parts.forEach(function (p) {
                if (p.type === "reasoning" && p.text) {
                    var d = document.createElement("details");
                    d.className = "reasoning";
                    d.innerHTML = "<summary>Reasoning</summary>";
                    var pre = document.createElement("pre");
                    pre.textContent = p.text;
                    d.appendChild(pre);
                    body.appendChild(d);
                } else if (p.type === "text") {
                    body.appendChild(document.createTextNode(p.text));
                } else if (p.type === "file") {
                    var f = document.createElement("div");
                    f.className = "file";
                    f.textContent = "Attached " + (p.filename || p.mediaType);
                    body.appendChild(f);
                }
            });
            if (m.role === "assistant") {
                var src = sources(m);
                if (src.length) {
                    var s = document.createElement("div");
                    s.className = "sources";
                    src.forEach(function (x) {
                        var a = document.createElement("a");
                        a.href = x.href;
                        a.target = "_blank";
                        a.rel = "noopener";
                        a.textContent = x.title;
                        s.appendChild(a);
                    });
                    body.appendChild(s);
                }
                if (m.error) {
                    var e = document.createElement("div");
                    e.className = "err";
                    e.textContent = m.error;
                    body.appendChild(e);
                }
            }
            el.appendChild(body);
            box.appendChild(el);
        });
        $("suggestions").style.display = state.messages.length ? "none" : "flex";
        $("search").classList.toggle("on", state.webSearch && searchAllowed());
        $("search").disabled = !searchAllowed();
        $("mic").classList.toggle("on", !!state.recorder);
        $("mic").textContent = state.recorder ? "Stop" : "Mic";
        $("input").disabled = state.transcribing;
        $("status").textContent = state.transcribing ? "Transcribing..." : (state.status === "streaming" ? "Streaming..." : "");
        window.scrollTo(0, document.body.scrollHeight);
    }

    function lastAssistant() {
        var last = state.messages[state.messages.length - 1];
        if (!last || last.role !== "assistant") {
            last = { id: newId(), role: "assistant", parts: [] };
            state.messages.push(last);
        }
        return last;
    }

    function appendDelta(msg, kind, delta) {
        for (var i = msg.parts.length - 1; i >= 0; i--) {
            if (msg.parts[i].type === kind) { msg.parts[i].text += delta; return; }
        }
        msg.parts.push({ type: kind, text: delta });
    }

    function apply(chunk) {
        var m = lastAssistant();
        switch (chunk.type) {
        case "start": if (chunk.messageId) { m.id = chunk.messageId; } break;
        case "text-start": m.parts.push({ type: "text", text: "" }); break;
        case "reasoning-start": m.parts.push({ type: "reasoning", text: "" }); break;
        case "text-delta": appendDelta(m, "text", chunk.delta); break;
        case "reasoning-delta": appendDelta(m, "reasoning", chunk.delta); break;
        case "source-url":
        case "source-document":
            m.parts.push({ type: chunk.type, sourceId: chunk.sourceId, url: chunk.url, title: chunk.title });
            break;
        case "tool-result":
            m.parts.push({ type: "tool-result", toolCallId: chunk.toolCallId, toolName: chunk.toolName, result: chunk.result });
            break;
        case "error": m.error = chunk.errorText || "Something went wrong"; state.status = "error"; break;
        case "finish": if (state.status !== "error") { state.status = "ready"; } break;
        }
    }

    async function send(msg) {
        state.messages.push(msg);
        state.status = "submitted";
        render();
        try {
            var res = await fetch("/api/chat", {
                method: "POST",
                headers: { "Content-Type": "application/json" },
                body: JSON.stringify({ messages: state.messages })
            });
            if (!res.ok || !res.body) {
                var body = await res.json().catch(function () { return {}; });
                throw new Error(body.error || res.statusText);
            }
            state.status = "streaming";
            var reader = res.body.getReader();
            var decoder = new TextDecoder();
            var buf = "", done = false;
            while (!done) {
                var r = await reader.read();
                if (r.done) { break; }
                buf += decoder.decode(r.value, { stream: true });
                var idx;
                while ((idx = buf.indexOf("\n\n")) >= 0) {
                    var ev = buf.slice(0, idx);
                    buf = buf.slice(idx + 2);
                    var data = ev.split("\n").filter(function (l) { return l.indexOf("data:") === 0; })
                        .map(function (l) { return l.slice(5).trim(); }).join("\n");
                    if (!data) { continue; }
                    if (data === "[DONE]") { done = true; break; }
                    apply(JSON.parse(data));
                    render();
                }
            }
            if (!done && state.status !== "error") {
                throw new Error("Connection interrupted");
            }
        } catch (e) {
            lastAssistant().error = e.message;
            state.status = "error";
        }
        if (state.status !== "error") { state.status = "ready"; }
        render();
    }

    function userText(text) {
        return { id: newId(), role: "user", parts: [{ type: "text", text: text }], metadata: metadata(true) };
    }

    $("composer").addEventListener("submit", function (e) {
        e.preventDefault();
        var text = $("input").value;
        if (state.transcribing || !text.trim()) { return; }
        $("input").value = "";
        send(userText(text));
    });
    $("input").addEventListener("keydown", function (e) {
        if (e.key === "Enter" && !e.shiftKey) {
            e.preventDefault();
            $("composer").requestSubmit();
        }
    });

    SUGGESTIONS.forEach(function (s) {
        var b = document.createElement("button");
        b.type = "button";
        b.textContent = s;
        b.onclick = function () { send(userText(s)); };
        $("suggestions").appendChild(b);
    });

    $("model").addEventListener("change", function () {
        state.modelId = this.value;
        var found = state.models.filter(function (m) { return m.id === state.modelId; })[0];
        state.provider = found ? found.provider : "openai";
        render();
    });
    $("search").addEventListener("click", function () {
        if (!searchAllowed()) { return; }
        state.webSearch = !state.webSearch;
        render();
    });

    $("attach").addEventListener("click", function () { $("file").click(); });
    $("file").addEventListener("change", function () {
        var file = this.files[0];
        this.value = "";
        if (!file) { return; }
        var reader = new FileReader();
        reader.onload = function () {
            send({
                id: newId(),
                role: "user",
                parts: [{ type: "file", mediaType: file.type || "application/octet-stream", filename: file.name, url: reader.result }],
                metadata: metadata(false)
            });
        };
        reader.readAsDataURL(file);
    });

    function release(stream) {
        stream.getTracks().forEach(function (t) { t.stop(); });
    }

    async function transcribe(blob) {
        state.transcribing = true;
        render();
        try {
            var fd = new FormData();
            fd.append("audio", blob, "recording.webm");
            var res = await fetch("/api/transcribe", { method: "POST", body: fd });
            var body = await res.json();
            if (!res.ok) { throw new Error(body.error || "Transcription failed"); }
            if (body.text) { $("input").value = body.text; }
        } catch (e) {
            $("status").textContent = e.message;
        }
        state.transcribing = false;
        render();
    }

    $("mic").addEventListener("click", async function () {
        if (state.recorder) {
            state.recorder.stop();
            return;
        }
        var media;
        try {
            media = await navigator.mediaDevices.getUserMedia({ audio: true });
        } catch (e) {
            $("status").textContent = "Microphone unavailable";
            return;
        }
        try {
            var chunks = [];
            var rec = new MediaRecorder(media);
            rec.ondataavailable = function (e) { if (e.data.size) { chunks.push(e.data); } };
            rec.onstop = function () {
                release(media);
                state.recorder = null;
                transcribe(new Blob(chunks, { type: "audio/webm" }));
            };
            rec.onerror = function () {
                release(media);
                state.recorder = null;
                render();
            };
            rec.start();
            state.recorder = rec;
        } catch (e) {
            release(media);
            state.recorder = null;
        }
        render();
    });

    fetch("/api/models").then(function (r) { return r.json(); }).then(function (body) {
        state.models = body.models || [];
        var sel = $("model");
        state.models.forEach(function (m) {
            var o = document.createElement("option");
            o.value = m.id;
            o.textContent = m.name || m.id;
            sel.appendChild(o);
        });
        if (state.models.length) {
            state.modelId = state.models[0].id;
            state.provider = state.models[0].provider;
        } else if (body.defaults) {
            state.modelId = body.defaults.modelId;
            state.provider = body.defaults.provider;
        }
        render();
    });
    render();
})();
</script>
</body>
</html>`
