package handlers

import (
	"net/http"
	"strings"

	"github.com/pysugar/photo-slideshow/internal/version"
)

// PlayerHandler serves the slideshow page.
func PlayerHandler() http.HandlerFunc {
	page := strings.ReplaceAll(playerHTML, "{{VERSION}}", version.Version)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	}
}

const playerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Photo Slideshow</title>
<style>
  body { margin: 0; background: #111; color: #eee; font-family: system-ui, sans-serif; }
  header { display: flex; gap: .5rem; align-items: center; padding: .5rem 1rem; background: #1b1b1b; }
  header .spacer { flex: 1; }
  select, button, input { background: #2a2a2a; color: #eee; border: 1px solid #444; border-radius: 4px; padding: .3rem .5rem; }
  #stage { position: fixed; inset: 3rem 0 0 0; display: flex; align-items: center; justify-content: center; }
  #stage img, #stage video { max-width: 100%; max-height: 100%; object-fit: contain; transition: opacity .6s; }
  #info { position: fixed; left: 1rem; bottom: 1rem; font-size: .85rem; opacity: .7; }
  #device { display: none; padding: 1rem; background: #222; }
  footer { position: fixed; right: 1rem; bottom: 1rem; font-size: .7rem; opacity: .4; }
</style>
</head>
<body>
<header>
  <select id="account"></select>
  <select id="type">
    <option value="image">Photos</option>
    <option value="video">Videos</option>
    <option value="all">All</option>
  </select>
  <select id="album"><option value="">All media</option></select>
  <label><input type="checkbox" id="favorites"> Favorites</label>
  <input type="date" id="start"> <input type="date" id="end">
  <button id="play">Play</button>
  <span class="spacer"></span>
  <button id="add">Add account</button>
  <button id="device-login">Add via code</button>
  <button id="remove">Remove</button>
</header>
<div id="device"></div>
<div id="stage"></div>
<div id="info"></div>
<footer>v{{VERSION}}</footer>
<script>
const $ = (id) => document.getElementById(id);
let settings = { speed: 5, shuffle: false, repeat: true, showInfo: true };
let items = [], index = 0, nextToken = "", timer = null;

async function api(path, opts) {
  const res = await fetch(path, opts);
  const body = await res.json().catch(() => ({}));
  if (!res.ok) throw new Error(body.error || res.statusText);
  return body;
}

async function loadAccounts() {
  const accounts = await api("/api/accounts");
  $("account").innerHTML = accounts.map(a =>
    '<option value="' + a.user_id + '">' + a.email + (a.valid === false ? " (expired)" : "") + "</option>").join("");
  if (accounts.length) loadAlbums();
}

async function loadAlbums() {
  const id = $("account").value;
  if (!id) return;
  const res = await api("/api/albums/" + id);
  $("album").innerHTML = '<option value="">All media</option>' +
    (res.albums || []).map(a => '<option value="' + a.id + '">' + a.title + " (" + a.mediaItemsCount + ")</option>").join("");
}

async function fetchPage() {
  const p = new URLSearchParams({ type: $("type").value });
  if ($("album").value) p.set("album_id", $("album").value);
  if ($("favorites").checked) p.set("favorites", "true");
  if ($("start").value && $("end").value) { p.set("start_date", $("start").value); p.set("end_date", $("end").value); }
  if (nextToken) p.set("page_token", nextToken);
  const res = await api("/api/photos/" + $("account").value + "?" + p);
  let page = res.mediaItems || [];
  if (settings.shuffle) page.sort(() => Math.random() - .5);
  items = items.concat(page);
  nextToken = res.nextPageToken || "";
}

function show() {
  const item = items[index];
  if (!item) return;
  const stage = $("stage");
  stage.innerHTML = "";
  let el;
  if (item.type === "video") {
    el = document.createElement("video");
    el.src = item.videoUrl; el.autoplay = true; el.muted = true; el.controls = true;
  } else {
    el = document.createElement("img");
    el.src = item.displayUrl || item.baseUrl;
  }
  stage.appendChild(el);
  $("info").textContent = settings.showInfo ? item.filename + "  " + (item.creationTime || "") : "";
}

async function advance() {
  index++;
  if (index >= items.length - 2 && nextToken) await fetchPage();
  if (index >= items.length) {
    if (!settings.repeat) { clearInterval(timer); return; }
    index = 0;
  }
  show();
}

async function play() {
  clearInterval(timer);
  items = []; index = 0; nextToken = "";
  try { await fetchPage(); } catch (e) { $("info").textContent = e.message; return; }
  show();
  timer = setInterval(advance, settings.speed * 1000);
}

async function deviceLogin() {
  const res = await api("/api/auth/start?method=device", { method: "POST" });
  const box = $("device");
  box.style.display = "block";
  box.textContent = "Visit " + res.verification_url + " and enter " + res.user_code;
  const poll = setInterval(async () => {
    try {
      const st = await api("/api/auth/check/" + res.flow_id);
      if (st.status === "complete") { clearInterval(poll); box.style.display = "none"; loadAccounts(); }
    } catch (e) { clearInterval(poll); box.textContent = e.message; }
  }, Math.max(res.interval || 5, 5) * 1000);
}

$("add").onclick = async () => { const res = await api("/api/auth/start", { method: "POST" }); location.href = res.auth_url; };
$("device-login").onclick = () => deviceLogin().catch(e => alert(e.message));
$("remove").onclick = async () => { if ($("account").value) { await api("/api/auth/remove/" + $("account").value, { method: "DELETE" }); loadAccounts(); } };
$("account").onchange = loadAlbums;
$("play").onclick = play;

api("/api/settings").then(s => { settings = s; }).catch(() => {});
loadAccounts().catch(e => { $("info").textContent = e.message; });
</script>
</body>
</html>
`
