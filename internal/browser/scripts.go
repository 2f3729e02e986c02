package browser

// recorderScript wraps the rrweb bundle so it installs once per document and
// defines window.__vstreamStart. The bundle is concatenated rather than
// formatted because minified sources contain verbs.
func recorderScript(bundle string) string {
	return `(function () {
  if (window.__vstreamInstalled) return;
  window.__vstreamInstalled = true;
` + bundle + `
;
  if (typeof rrweb !== 'undefined' && !window.rrweb) window.rrweb = rrweb;
  window.__vstreamStart = function () {
    if (window.__vstreamStop) return true;
    if (!window.rrweb || typeof window.rrweb.record !== 'function') return false;
    if (typeof window.` + bindingName + ` !== 'function') return false;
    window.__vstreamStop = window.rrweb.record({
      emit: function (event) {
        try {
          window.` + bindingName + `(JSON.stringify({ event: event }));
        } catch (e) {}
      }
    });
    return !!window.__vstreamStop;
  };
})();`
}

// autoStartScript starts recording as soon as a new document has a DOM.
const autoStartScript = `(function () {
  var start = function () { if (window.__vstreamStart) window.__vstreamStart(); };
  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', start, { once: true });
  } else {
    start();
  }
})();`
