// Package dev 提供 GridLab 的「內部 Dev Panel」HTTP endpoints。
//
// 目的（ explain the why ）：
//   - 給數學家 / 後端在開發期快速驗證：指定 Engine、權重矩陣、Seed / Snap，然後執行 Sample 或 Verify。
//   - 支援可回放（replay）：把 Snapshot（Snap）以字串形式在前端顯示，並可貼回後端做 Restore。
//
// 注意（ contract ）：
//   - 這不是 production API；它偏向 debug / tooling，行為允許更寬鬆，但仍需維持 deterministic concludes。
//   - 這裡的錯誤處理走 `httperr.Errs`（以 errs.Warn/errs.Fatal 對應 HTTP response）。
//   - Seed/Snap 的互斥與優先級由前端 + 後端共同保證（Snap takes precedence）。
package dev

import (
	"crypto/rand"
	"embed"
	"encoding/json"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/catalog"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/server/httperr"
	"github.com/zintix-labs/gridlab/server/netsvr"
	"github.com/zintix-labs/gridlab/server/svrcfg"
	"github.com/zintix-labs/gridlab/spec"
)

// devRequest 是 Dev Panel 的「輸入 payload」。
//
// 兼容性（backward compatibility）：
//   - 同時保留 `samples` 與舊欄位 `sample`（SampleAlt）。
//   - 同時保留 `rounds` 與舊欄位 `round`。
//   - `eid` 與 `engine` 兩者擇一即可；若兩者同時存在，後端會優先使用 eid 做解析。
//
// Weights：
//   - row-major 攤平矩陣，長度須為 rows*cols；留空代表 uniform（後端補 1.0）。
//
// Seed / Snap：
//   - Seed（int64 string）用於 deterministic 起始；若為空字串則自動生成（crypto/rand）。
//   - Snap（base64url string）代表 StateArray snapshot；若提供 Snap，則後端以 Snap Restore 為準（Snap precedence）。
//
// 注意：
//   - 這個 struct 是 API 邊界用的 DTO；不要把它滲透到 sampler kernel / math domain。
type devRequest struct {
	EID         int64     `json:"eid"`
	Engine      string    `json:"engine"`
	Rows        int       `json:"rows"`
	Cols        int       `json:"cols"`
	Samples     *int      `json:"samples"`
	SampleAlt   *int      `json:"sample"`
	Replacement bool      `json:"replacement"`
	Weights     []float64 `json:"weights"`
	Rounds      int       `json:"rounds"`
	Round       int       `json:"round"`
	Seed        string    `json:"seed"`
	Snap        string    `json:"snap"`
}

// round() 將 rounds/round 做兼容合併：優先 rounds，其次 round；若都未提供則回 0。
func (r devRequest) round() int {
	if r.Rounds > 0 {
		return r.Rounds
	}
	if r.Round > 0 {
		return r.Round
	}
	return 0
}

// samples() 將 samples/sample 做兼容合併：優先 samples，其次 sample；
// 都未提供回 0，由引擎以 default_samples 補齊。
func (r devRequest) samples() int {
	if r.Samples != nil {
		return *r.Samples
	}
	if r.SampleAlt != nil {
		return *r.SampleAlt
	}
	return 0
}

// Register 註冊 Dev Panel 的 routes。
//
// Routes：
//   - GET  /dev         ：Dev Panel HTML（內嵌 JS）。
//   - GET  /dev/meta    ：回傳 Catalog summary（供前端下拉選單：Engine）。
//   - POST /dev/sample  ：執行 N 輪 Sample 並回傳每輪結果（含 start_b64u/after_b64u）。
//   - POST /dev/verify  ：執行 N 輪抽樣並回傳卡方統計報表（不回傳逐輪 results）。
//
// 依賴（dependency）：
//   - 需要 cfg.Gridlab 已被上層組裝完成並注入；否則會回 errs.Fatal。
func Register(svr netsvr.NetRouter, cfg *svrcfg.SvrCfg) {
	svr.Get("/dev", devPage)
	svr.Get("/favicon.svg", favicon)
	svr.Get("/dev/meta", devMeta(cfg))
	svr.Post("/dev/sample", devSample(cfg))
	svr.Post("/dev/verify", devVerify(cfg))
}

// devPageHTML 是內嵌的 Dev Panel UI。
//
// UI 行為（contract）：
//   - Engine：由 /dev/meta 動態載入。
//   - Seed/Snap 互斥：
//   - Snap 非空 → Seed 會被清空並 disable。
//   - Seed 非空 → Snap 會被清空並 disable。
//   - Snap takes precedence（後端也會以 Snap 為準）。
//   - Weights：textarea，逗號或空白分隔；留空 = uniform。
//   - Rounds：
//   - Sample：前端會 cap 在 5,000 以避免回傳 payload 過大。
//   - Verify：前端會 cap 在 3,000,000 以避免長時間阻塞（仍屬 dev tooling）。
//
// 回傳呈現：
//   - Sample：Summary 區顯示整體統計；Sample Results 展開後可點選查看 raw SampleResult JSON。
//   - Verify：僅顯示統計（statistic），不顯示逐輪 results。
const devPageHTML = `<!doctype html>
<html lang="zh-Hant">
<head>
  <meta charset="utf-8" />
  <link rel="icon" type="image/svg+xml" href="/favicon.svg" />
  <title>GridLab Dev</title>
  <style>
    body { font-family: -apple-system,BlinkMacSystemFont,"Segoe UI",sans-serif; background:#0f172a; color:#e2e8f0; margin:0; }
    .wrap { max-width: 980px; margin: 24px auto; padding: 16px 20px; background:#111827; border:1px solid #1f2937; border-radius:12px; box-shadow:0 12px 50px rgba(0,0,0,0.35); }
    h1 { margin: 0 0 16px; font-size: 22px; letter-spacing: 0.3px; }
    .grid { display:grid; grid-template-columns: repeat(auto-fit, minmax(180px,1fr)); gap:12px; margin-bottom:12px; }
    label { display:flex; flex-direction:column; gap:6px; font-size: 13px; color:#cbd5e1; }
    label.full { grid-column: 1 / -1; }
    input, select, textarea { background:#0b1224; color:#e2e8f0; border:1px solid #1f2738; border-radius:8px; padding:10px 12px; font-size:14px; }
    textarea { font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, "Liberation Mono", "Courier New", monospace; min-height:64px; resize:vertical; }
    input:focus, select:focus, textarea:focus { outline:1px solid #38bdf8; border-color:#38bdf8; }
    .actions { position:relative; display:flex; gap:10px; align-items:center; justify-content:flex-end; margin: 8px 0 14px; }
    button { cursor:pointer; border:none; border-radius:10px; padding:10px 14px; font-weight:600; letter-spacing:0.2px; }
    #btn-sample { background:#38bdf8; color:#0b1224; }
    #btn-verify { background:#22c55e; color:#0b1224; }
    #btn-clear { background:#1f2937; color:#e2e8f0; border:1px solid #334155; }
    button:disabled { opacity:0.6; cursor:not-allowed; }
    input:disabled, select:disabled {
      opacity: 0.55;
      cursor: not-allowed;
      filter: grayscale(0.25);
    }
    label.is-disabled { opacity: 0.55; }
    label.is-disabled input, label.is-disabled select { pointer-events: none; }
    .hint { font-size: 12px; color:#94a3b8; margin-top:4px; }
    .info { position:absolute; left:50%; transform:translateX(-50%); font-size:13px; color:#94a3b8; }
    .info.warn { color:#f87171; font-weight:600; }
    #summary { background:#0b1224; border:1px solid #1f2738; border-radius:12px; padding:14px; min-height:120px; overflow:auto; font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, "Liberation Mono", "Courier New", monospace; white-space:pre-wrap; margin-bottom:12px; }
    #roundsBox { border:1px solid #1f2737; border-radius:12px; padding:10px; background:#0b1224; margin-bottom:12px; max-height: calc(60vh - 56px); overflow:auto; }
    #roundList { max-height: calc(60vh - 136px); overflow:auto; }
    .round-item { display:grid; grid-template-columns: minmax(3.5em, max-content) minmax(100px, 1fr) max-content; align-items:center; column-gap:8px; width:100%; text-align:left; background:none; border:none; padding:6px 10px; color:#e2e8f0; font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, "Liberation Mono", "Courier New", monospace; cursor:pointer; border-left: 4px solid transparent; }
    .round-item:hover { background:#1f2937; border-left-color:#38bdf8; }
    .round-item.selected { background:#2563eb; border-left-color:#60a5fa; }
    .round-index { color:#94a3b8; text-align:right; justify-self:end; min-width:3.5em; font-variant-numeric: tabular-nums; }
    .round-cats { text-align:left; overflow:hidden; text-overflow:ellipsis; white-space:nowrap; font-variant-numeric: tabular-nums; }
    .round-flag { text-align:right; justify-self:end; }
    .inv-true { color:#f87171; font-weight:600; }
    #detail { background:#0b1224; border:1px solid #1f2738; border-radius:12px; padding:14px; min-height:220px; overflow:auto; font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, "Liberation Mono", "Courier New", monospace; white-space:pre-wrap; display:none; }
    .note { font-size:12px; color:#94a3b8; margin-top:4px; }
  </style>
</head>
<body>
  <div class="wrap">
    <h1>GridLab Dev Panel</h1>
    <div class="grid">
      <label>Engine
        <select id="engine"></select>
      </label>
      <label>Rows
        <input id="rows" type="number" min="1" value="4" />
      </label>
      <label>Cols
        <input id="cols" type="number" min="1" value="8" />
      </label>
      <label>Samples
        <input id="samples" type="number" min="0" placeholder="0 = engine default" value="1" />
      </label>
      <label>Replacement
        <select id="replacement">
          <option value="true" selected>with replacement</option>
          <option value="false">without replacement</option>
        </select>
      </label>
      <label>Seed (int64)
   <input id="seed" type="text" inputmode="numeric" placeholder="Empty = auto" />
      </label>
      <label>Snap(base64url)
        <input id="snap" type="text" placeholder="Paste snap (base64url)" />
      </label>
      <label>Rounds
        <input id="rounds" type="number" min="1" max="3000000" value="1" />
      </label>
      <label class="full">Weights (row-major, rows*cols; empty = uniform)
        <textarea id="weights" placeholder="1, 2, 3, 4, ..."></textarea>
      </label>
    </div>
    <div class="actions">
      <button id="btn-sample">Sample</button>
      <button id="btn-verify">Verify</button>
      <button id="btn-clear">Clear</button>
      <span class="info" id="info"></span>
    </div>

    <pre id="summary"></pre>

    <details id="roundsBox" style="display:none;">
      <summary>Sample Results</summary>
      <div id="roundList"></div>
    </details>

    <pre id="detail" style="display:none;"></pre>
  </div>
<script>
const state = { meta: null, results: [] };
const engineSel = document.getElementById('engine');
const rowsInput = document.getElementById('rows');
const colsInput = document.getElementById('cols');
const samplesInput = document.getElementById('samples');
const replacementSel = document.getElementById('replacement');
const weightsInput = document.getElementById('weights');
const seedInput = document.getElementById('seed');
const snapInput = document.getElementById('snap');
const roundsInput = document.getElementById('rounds');
const summary = document.getElementById('summary');
const roundsBox = document.getElementById('roundsBox');
const roundList = document.getElementById('roundList');
const detail = document.getElementById('detail');
const infoEl = document.getElementById('info');
const btnRun = document.getElementById('btn-sample');
const btnVerify = document.getElementById('btn-verify');
const btnClear = document.getElementById('btn-clear');
const numberFormatter = new Intl.NumberFormat('en-US');

function setDisabled(el, disabled) {
  el.disabled = disabled;
  const label = el.closest('label');
  if (label) label.classList.toggle('is-disabled', disabled);
}

function syncInputLocks() {
  const seedValue = seedInput.value.trim();
  const snapValue = snapInput.value.trim();

  if (snapValue !== '') {
    seedInput.value = '';
    setDisabled(seedInput, true);
    setDisabled(snapInput, false);
    return;
  }
  if (seedValue !== '') {
    snapInput.value = '';
    setDisabled(snapInput, true);
    setDisabled(seedInput, false);
    return;
  }
  setDisabled(seedInput, false);
  setDisabled(snapInput, false);
}

function parseWeights() {
  const raw = weightsInput.value.trim();
  if (raw === '') return [];
  const parts = raw.split(/[\s,;]+/).filter((p) => p !== '');
  const ws = [];
  for (const p of parts) {
    const v = Number(p);
    if (!Number.isFinite(v)) return null;
    ws.push(v);
  }
  return ws;
}

async function loadMeta() {
  try {
    const res = await fetch('/dev/meta');
    if (!res.ok) throw new Error(await res.text());
    const data = await res.json();
    const engines = Array.isArray(data) ? data : (data.engines || data.summary || []);
    state.meta = { engines };
    engineSel.innerHTML = '';
    state.meta.engines.forEach((g) => {
      const opt = document.createElement('option');
      const eid = g.eid ?? g.id ?? g.EID;
      opt.value = eid != null ? String(eid) : (g.name || g.engine || '');
      const grid = (g.blocks != null && g.lanes != null) ? ' (' + g.blocks + 'x' + g.lanes + ')' : '';
      opt.textContent = (g.name || g.engine || String(opt.value)) + grid;
      opt.dataset.name = g.name || g.engine || '';
      engineSel.appendChild(opt);
    });
    summary.textContent = '';
    roundsBox.style.display = 'none';
    detail.style.display = 'none';
    setInfo('', false);
  } catch (err) {
    summary.textContent = 'Failed to load meta: ' + err.message;
  }
}

function getSelectedEngine() {
  if (!state.meta || !state.meta.engines) return null;
  const value = engineSel.value;
  return state.meta.engines.find((g) => String(g.eid ?? g.id ?? g.EID) === value)
    || state.meta.engines.find((g) => (g.name || g.engine || '') === value);
}

function setInfo(text, isWarn) {
  infoEl.textContent = text;
  if (isWarn) {
    infoEl.classList.add('warn');
  } else {
    infoEl.classList.remove('warn');
  }
}

function setLoading(isLoading) {
  btnRun.disabled = isLoading;
  btnVerify.disabled = isLoading;
  if (isLoading) {
    setInfo('Running…', false);
  }
}

function clearSelection() {
  summary.textContent = '';
  roundsBox.style.display = 'none';
  detail.style.display = 'none';
  roundList.innerHTML = '';
  state.results = [];
}

function renderDetail(index) {
  if (!state.results || !state.results[index]) {
    detail.textContent = '';
    detail.style.display = 'none';
    return;
  }
  const result = state.results[index];
  detail.textContent = JSON.stringify(result, null, 2);
  detail.style.display = 'block';

  // highlight selected
  const buttons = roundList.querySelectorAll('.round-item');
  buttons.forEach((btn, idx) => {
    if (idx === index) {
      btn.classList.add('selected');
    } else {
      btn.classList.remove('selected');
    }
  });
}

function buildPayload(maxRounds) {
  const seed = seedInput.value.trim();
  const snap = snapInput.value.trim();
  const inputRounds = Number(roundsInput.value) || 1;
  const safeRounds = Math.min(inputRounds, maxRounds);
  const samples = Number(samplesInput.value) || 0;
  const ws = parseWeights();
  if (ws === null) {
    return { err: 'weights must be numbers' };
  }
  const payload = {
    rows: Number(rowsInput.value) || 0,
    cols: Number(colsInput.value) || 0,
    samples: samples,
    sample: samples,
    replacement: replacementSel.value === 'true',
    rounds: safeRounds,
    round: safeRounds,
  };
  if (ws.length > 0) {
    payload.weights = ws;
  }
  const eid = Number(engineSel.value);
  if (Number.isFinite(eid)) {
    payload.eid = eid;
  }
  const selectedEngine = getSelectedEngine();
  if (selectedEngine && selectedEngine.name) {
    payload.engine = selectedEngine.name;
  } else if (engineSel.value) {
    payload.engine = engineSel.value;
  }
  if (snap) {
    payload.snap = snap;
  } else if (seed) {
    payload.seed = seed;
  }
  return { payload, inputRounds };
}

async function run() {
  setLoading(true);
  clearSelection();
  const built = buildPayload(5000);
  if (built.err) {
    summary.textContent = built.err;
    setLoading(false);
    return;
  }
  try {
    const res = await fetch('/dev/sample', {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify(built.payload),
    });
    if (!res.ok) throw new Error(await res.text());
    const data = await res.json();

    const summaryObj = { ...data };
    delete summaryObj.results;
    summary.textContent = JSON.stringify(summaryObj, null, 2);

    if (built.inputRounds > 5000) {
      setInfo('Sample records are capped at 5,000 rounds.', true);
    } else {
      setInfo('', false);
    }

    const results = Array.isArray(data.results) ? data.results : [];
    if (results.length > 0) {
      state.results = results;
      roundList.innerHTML = '';
      results.forEach((dto, idx) => {
        const rows = Array.isArray(dto && dto.categories) ? dto.categories : [];
        const flat = [];
        rows.forEach((row) => { if (Array.isArray(row)) flat.push(...row); });
        const cols = (dto && typeof dto.cols === 'number') ? dto.cols : 0;
        const invalid = flat.some((c) => c < 1 || (cols > 0 && c > cols));
        const preview = flat.slice(0, 16).join(' ') + (flat.length > 16 ? ' …' : '');
        const btn = document.createElement('button');
        btn.type = 'button';
        btn.className = 'round-item';
        btn.textContent = '';
        const idxSpan = document.createElement('span');
        idxSpan.className = 'round-index';
        idxSpan.textContent = '#' + (idx + 1);
        const catSpan = document.createElement('span');
        catSpan.className = 'round-cats';
        catSpan.textContent = preview;
        const flagSpan = document.createElement('span');
        flagSpan.className = 'round-flag';
        const invSpan = document.createElement('span');
        invSpan.textContent = invalid ? 'invalid' : '';
        if (invalid) {
          invSpan.className = 'inv-true';
        }
        flagSpan.appendChild(invSpan);
        btn.appendChild(idxSpan);
        btn.appendChild(catSpan);
        btn.appendChild(flagSpan);
        btn.title = 'Round ' + (idx + 1) + ' | draws=' + numberFormatter.format(flat.length) + (invalid ? ' | invalid' : '');
        btn.addEventListener('click', () => {
          renderDetail(idx);
        });
        roundList.appendChild(btn);
      });
      roundsBox.style.display = 'block';
      renderDetail(0);
    } else {
      roundsBox.style.display = 'none';
      detail.style.display = 'none';
      state.results = [];
    }
  } catch (err) {
    summary.textContent = 'Request failed: ' + err.message;
    setInfo('', false);
  } finally {
    setLoading(false);
  }
}

async function runVerify() {
  setLoading(true);
  clearSelection();
  const built = buildPayload(3000000);
  if (built.err) {
    summary.textContent = built.err;
    setLoading(false);
    return;
  }
  try {
    const res = await fetch('/dev/verify', {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify(built.payload),
    });
    if (!res.ok) throw new Error(await res.text());
    const data = await res.json();
    const summaryObj = data.statistic || data.stats || data.stat || data;
    summary.textContent = JSON.stringify(summaryObj, null, 2);
    if (data.before || data.after) {
      setInfo('before=' + (data.before || '') + ' after=' + (data.after || ''), false);
    } else if (built.inputRounds > 3000000) {
      setInfo('Verify statistics are capped at 3,000,000 rounds.', true);
    } else {
      setInfo('', false);
    }
  } catch (err) {
    summary.textContent = 'Request failed: ' + err.message;
    setInfo('', false);
  } finally {
    setLoading(false);
  }
}

btnRun.addEventListener('click', run);
btnVerify.addEventListener('click', runVerify);
btnClear.addEventListener('click', () => {
  clearSelection();
  setInfo('', false);
});
seedInput.addEventListener('input', syncInputLocks);
snapInput.addEventListener('input', syncInputLocks);

syncInputLocks();
loadMeta();
</script>
</body>
</html>`

// devPage 回傳內嵌 HTML（single page）。這裡不做 templating，降低 dev tool 維護成本。
func devPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(devPageHTML))
}

// favicon 提供 Dev Panel 的 favicon.svg。
func favicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write([]byte(faviconSVG))
}

// devMeta 回傳 Catalog summary（JSON）。
//
// 前端依賴欄位：
//   - eid / id / EID
//   - name / engine
//   - blocks / lanes（顯示用）
func devMeta(cfg *svrcfg.SvrCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		gl, ok := getGridlab(cfg)
		if !ok {
			httperr.Errs(w, errs.NewFatal("gridlab is required"))
			return
		}
		sum, err := gl.Summary()
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sum)
	}
}

// devSample 執行「可回放」的 Sample。
//
// 流程（high level）：
//  1. decode devRequest（JSON body）
//  2. resolve engine（eid/name）→ catalog.Summary
//  3. resolve weights（留空 = uniform）
//  4. resolve seed（empty = auto）
//  5. 建立 Replay → Samples() 或 RestoreSamples()
//
// Snap precedence：若 snap 非空，會走 RestoreSamples(snap, ...)。
func devSample(cfg *svrcfg.SvrCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		req := new(devRequest)
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
			return
		}
		gl, ok := getGridlab(cfg)
		if !ok {
			httperr.Errs(w, errs.NewFatal("gridlab is required"))
			return
		}
		sum, err := resolveSummary(gl, req)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		round := req.round()
		if round < 1 {
			httperr.Errs(w, errs.NewWarn("round is required"))
			return
		}
		weights, err := resolveWeights(req)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		snap := strings.TrimSpace(req.Snap)
		seed, err := resolveSeed(req.Seed)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		rp, err := gl.NewReplay(sum.EID, seed)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		var report gridlab.ReplaySampleReport
		if snap != "" {
			report, err = rp.RestoreSamples(snap, weights, req.Rows, req.Cols, req.samples(), req.Replacement, round)
		} else {
			report, err = rp.Samples(weights, req.Rows, req.Cols, req.samples(), req.Replacement, round)
		}
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	}
}

// devVerify 執行統計驗證（verification）。
//
// 和 devSample 的差異：
//   - devVerify 不回逐輪 results（降低 response size），僅回 ReplayVerifyReport（statistic）。
//   - 若提供 snap，會走 RestoreVerify(snap, ...)。
func devVerify(cfg *svrcfg.SvrCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		req := new(devRequest)
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			httperr.Errs(w, errs.NewWarn("invalid json:"+err.Error()))
			return
		}
		gl, ok := getGridlab(cfg)
		if !ok {
			httperr.Errs(w, errs.NewFatal("gridlab is required"))
			return
		}
		sum, err := resolveSummary(gl, req)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		round := req.round()
		if round < 1 {
			httperr.Errs(w, errs.NewWarn("round is required"))
			return
		}
		weights, err := resolveWeights(req)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		snap := strings.TrimSpace(req.Snap)
		seed, err := resolveSeed(req.Seed)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		rp, err := gl.NewReplay(sum.EID, seed)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		var report gridlab.ReplayVerifyReport
		if snap != "" {
			report, err = rp.RestoreVerify(snap, weights, req.Rows, req.Cols, req.samples(), req.Replacement, round)
		} else {
			report, err = rp.Verify(weights, req.Rows, req.Cols, req.samples(), req.Replacement, round)
		}
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	}
}

// getGridlab 從 server config 取得已組裝的 Gridlab instance。
// Dev routes 不負責組裝（assembler），只負責使用（runtime entry）。
func getGridlab(cfg *svrcfg.SvrCfg) (*gridlab.Gridlab, bool) {
	if cfg == nil || cfg.Gridlab == nil {
		return nil, false
	}
	return cfg.Gridlab, true
}

// resolveSummary 解析使用者指定的引擎：
//   - 若 eid > 0：以 eid 精準匹配（fast path）。
//   - 否則若 engine(name) 非空：先做 case-insensitive name 匹配；也允許把 engine 當作數字字串解析成 eid。
//
// 回傳 catalog.Summary 作為後續 Replay 建構的依據。
func resolveSummary(gl *gridlab.Gridlab, req *devRequest) (catalog.Summary, error) {
	sums, err := gl.Summary()
	if err != nil {
		return catalog.Summary{}, err
	}
	if req.EID > 0 {
		eid := spec.EID(req.EID)
		for _, s := range sums {
			if s.EID == eid {
				return s, nil
			}
		}
		return catalog.Summary{}, errs.NewWarn("eid not found")
	}
	name := strings.TrimSpace(req.Engine)
	if name != "" {
		for _, s := range sums {
			if strings.EqualFold(s.Name, name) {
				return s, nil
			}
		}
		if eid, err := strconv.ParseUint(name, 10, 64); err == nil {
			se := spec.EID(eid)
			for _, s := range sums {
				if s.EID == se {
					return s, nil
				}
			}
		}
		return catalog.Summary{}, errs.NewWarn("engine not found")
	}
	return catalog.Summary{}, errs.NewWarn("engine is required")
}

// resolveWeights 驗證權重矩陣：
//   - 留空：回傳 rows*cols 的 uniform 權重（全 1.0）。
//   - 非空：長度必須等於 rows*cols。
func resolveWeights(req *devRequest) ([]float64, error) {
	if req.Rows < 1 || req.Cols < 1 {
		return nil, errs.NewWarn("rows/cols must > 0")
	}
	if len(req.Weights) == 0 {
		ws := make([]float64, req.Rows*req.Cols)
		for i := range ws {
			ws[i] = 1.0
		}
		return ws, nil
	}
	if len(req.Weights) != req.Rows*req.Cols {
		return nil, errs.NewWarn("weights length must be rows*cols")
	}
	return req.Weights, nil
}

// resolveSeed 解析 seed（int64 string）。
//   - 空字串：自動生成 seed（crypto/rand），方便快速測試。
//   - 非空：必須為合法 int64。
func resolveSeed(seed string) (int64, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return randomSeed()
	}
	v, err := strconv.ParseInt(seed, 10, 64)
	if err != nil {
		return 0, errs.NewWarn("seed must be int64")
	}
	return v, nil
}

// randomSeed 使用 crypto/rand 產生 [0, MaxInt64) 的種子。
// 目的：避免 math/rand 的 deterministic 來源造成 seed 品質偏差（dev tool 也要可依賴）。
func randomSeed() (int64, error) {
	rnd, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return 0, errs.NewWarn("seed generate failed")
	}
	return rnd.Int64(), nil
}

//go:embed favicon.svg
var faviconSVG string

// keep embed imported even if only used for directives
var _ embed.FS
