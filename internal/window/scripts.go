package window

// LoadingOverlayScript paints a spinner until the frontend mounts.
const LoadingOverlayScript = `
(function () {
  function createLoadingOverlay() {
    if (document.getElementById('initial-loading-overlay')) {
      return;
    }
    var overlay = document.createElement('div');
    overlay.id = 'initial-loading-overlay';
    overlay.setAttribute('style', [
      'position:fixed', 'inset:0', 'z-index:9999',
      'display:flex', 'flex-direction:column', 'align-items:center', 'justify-content:center',
      'background:var(--bg-color,#f5f5f5)', 'color:var(--text-color,#333)',
      'font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif',
      'transition:opacity .3s ease'
    ].join(';'));
    overlay.innerHTML =
      '<div style="width:40px;height:40px;margin-bottom:20px;border:3px solid #e3e3e3;' +
      'border-top-color:#3498db;border-radius:50%;animation:outclash-spin 1s linear infinite"></div>' +
      '<div style="font-size:14px;opacity:.7">Loading OutClash...</div>' +
      '<style>@keyframes outclash-spin{to{transform:rotate(360deg)}}' +
      '@media (prefers-color-scheme: dark){:root{--bg-color:#1a1a1a;--text-color:#fff}}</style>';
    if (document.body) {
      document.body.appendChild(overlay);
    }
  }
  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', createLoadingOverlay);
  } else {
    createLoadingOverlay();
  }
})();
`

// RemoveOverlayScript fades the loading overlay out.
const RemoveOverlayScript = `
(function () {
  var overlay = document.getElementById('initial-loading-overlay');
  if (overlay) {
    overlay.style.opacity = '0';
    setTimeout(function () { overlay.remove(); }, 300);
  }
})();
`
