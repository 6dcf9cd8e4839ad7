/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: scripts.go
Description: Page instrumentation. The execution watcher marks document.title once the run
marker shows up in the live DOM and keeps re-asserting it; the sink hooks wrap dangerous DOM
write primitives, log each call and forward it unchanged.
*/

package detector

import (
	"strconv"
	"strings"

	"github.com/kleascm/xssentinel/pkg/core"
)

// Page-side globals
const (
	sinkLogGlobal = "__xssentinel_sinks"
	hitsGlobal    = "__xssentinel_hits"
)

// Read-side probes
const (
	titleScript     = "document.title"
	domScript       = "document.documentElement ? document.documentElement.outerHTML : ''"
	sinkReadScript  = "(window." + sinkLogGlobal + "||[]).slice()"
	sinkClearScript = "(function(){ if (window." + sinkLogGlobal + ") { window." + sinkLogGlobal + ".length = 0; } return true; })()"
)

// ReassertIntervalMS is how often the watcher re-applies the mark after a hit
const ReassertIntervalMS = 500

const watcherTemplate = `(function(){
  try {
    var marker = '{{MARKER}}';
    var mark = '{{MARK}}';
    var key = '__xssentinel_watch_' + marker;
    if (window[key]) { return; }
    window[key] = true;
    window.` + hitsGlobal + ` = window.` + hitsGlobal + ` || [];
    var hit = function(){
      if (window.` + hitsGlobal + `.indexOf(marker) === -1) { window.` + hitsGlobal + `.push(marker); }
      try { if (document.title.indexOf(mark) === -1) { document.title = mark; } } catch(e){}
    };
    var scan = function(){
      try {
        var root = document.documentElement;
        if (document.title && document.title.indexOf(mark) !== -1) { hit(); return; }
        if (root && root.innerHTML && root.innerHTML.indexOf(marker) !== -1) { hit(); }
      } catch(e){}
    };
    var observer = new MutationObserver(scan);
    observer.observe(document.documentElement || document, {subtree: true, childList: true, attributes: true, characterData: true});
    var timer = setInterval(function(){
      if (window.` + hitsGlobal + `.indexOf(marker) !== -1) {
        try { if (document.title.indexOf(mark) === -1) { document.title = mark; } } catch(e){}
      }
    }, {{INTERVAL}});
    window.addEventListener('pagehide', function(){ clearInterval(timer); observer.disconnect(); });
    scan();
  } catch(e){}
})();`

// WatcherScript renders the execution watcher for marker
func WatcherScript(marker string) string {
	r := strings.NewReplacer(
		"{{MARKER}}", jsEscape(marker),
		"{{MARK}}", jsEscape(core.ExecutionMark(marker)),
		"{{INTERVAL}}", strconv.Itoa(ReassertIntervalMS),
	)
	return r.Replace(watcherTemplate)
}

// SinkHookScript wraps the dangerous DOM write primitives. Every wrapper logs
// {name, detail, ts} and then calls the original with the same arguments.
const SinkHookScript = `(function(){
  try {
    if (window.__xssentinel_hooked) { return; }
    window.__xssentinel_hooked = true;
    window.` + sinkLogGlobal + ` = window.` + sinkLogGlobal + ` || [];
    var logSink = function(name, detail){
      try { window.` + sinkLogGlobal + `.push({name: name, detail: String(detail == null ? '' : detail), ts: Date.now()}); } catch(e){}
    };

    try {
      var write = document.write;
      document.write = function(){ logSink('document.write', Array.prototype.join.call(arguments, '')); return write.apply(document, arguments); };
      var writeln = document.writeln;
      document.writeln = function(){ logSink('document.writeln', Array.prototype.join.call(arguments, '')); return writeln.apply(document, arguments); };
    } catch(e){}

    try {
      var desc = Object.getOwnPropertyDescriptor(Element.prototype, 'innerHTML');
      if (desc && desc.set) {
        Object.defineProperty(Element.prototype, 'innerHTML', {
          get: desc.get,
          set: function(v){ logSink('innerHTML', v); return desc.set.call(this, v); },
          configurable: true,
          enumerable: desc.enumerable
        });
      }
    } catch(e){}

    try {
      var insert = Element.prototype.insertAdjacentHTML;
      Element.prototype.insertAdjacentHTML = function(pos, html){ logSink('insertAdjacentHTML', html); return insert.apply(this, arguments); };
    } catch(e){}

    try {
      var setAttr = Element.prototype.setAttribute;
      Element.prototype.setAttribute = function(name, value){
        if (String(name == null ? '' : name).toLowerCase().indexOf('on') === 0) { logSink('setAttribute', name + '=' + String(value == null ? '' : value)); }
        return setAttr.apply(this, arguments);
      };
    } catch(e){}

    try {
      ['assign', 'replace'].forEach(function(fn){
        var orig = window.location[fn].bind(window.location);
        window.location[fn] = function(v){ logSink('location.' + fn, v); return orig(v); };
      });
    } catch(e){}

    try {
      var push = history.pushState;
      history.pushState = function(){ logSink('history.pushState', arguments[2] || ''); return push.apply(history, arguments); };
      var replace = history.replaceState;
      history.replaceState = function(){ logSink('history.replaceState', arguments[2] || ''); return replace.apply(history, arguments); };
    } catch(e){}
  } catch(e){}
})();`

// HashChangeScript notifies single-page routers of a fragment change
const HashChangeScript = `(function(){ try { window.dispatchEvent(new HashChangeEvent('hashchange')); } catch(e) { window.dispatchEvent(new Event('hashchange')); } return true; })()`

func jsEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`, "<", `\x3c`)
	return r.Replace(s)
}
