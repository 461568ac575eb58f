package browser

import (
	"fmt"
	"time"

	"github.com/teovin/scoop/internal/capture"
)

// scrollScript walks the page to the bottom in viewport-sized steps so lazy
// content below the fold gets a chance to load.
const scrollScript = `(async () => {
	const step = window.innerHeight;
	let last = -1;
	while (window.scrollY !== last) {
		last = window.scrollY;
		window.scrollBy(0, step);
		await new Promise(r => setTimeout(r, 150));
	}
	window.scrollTo(0, 0);
	return true;
})()`

// behaviorScript assembles the in-page behavior bundle the capture runs after
// load: media playback, lazy-resource fetching and site-specific unfurling
// are toggled individually and the whole bundle resolves within its deadline.
func behaviorScript(opts capture.BehaviorOptions) string {
	budgetMS := int64(0)
	if opts.Timeout > 0 {
		budgetMS = opts.Timeout.Milliseconds()
	} else {
		budgetMS = (20 * time.Second).Milliseconds()
	}
	return fmt.Sprintf(`(async () => {
	const deadline = Date.now() + %d;
	const tasks = [];
	if (%t) {
		tasks.push((async () => {
			for (const m of document.querySelectorAll('video, audio')) {
				try { m.muted = true; await m.play(); } catch (e) {}
			}
		})());
	}
	if (%t) {
		tasks.push((async () => {
			for (const el of document.querySelectorAll('[loading="lazy"]')) {
				el.loading = 'eager';
			}
			for (const img of document.querySelectorAll('img[data-src]')) {
				img.src = img.dataset.src;
			}
		})());
	}
	if (%t) {
		tasks.push((async () => {
			for (const el of document.querySelectorAll('details:not([open])')) {
				el.open = true;
			}
			for (const btn of document.querySelectorAll('[aria-expanded="false"]')) {
				try { btn.click(); } catch (e) {}
			}
		})());
	}
	const timeLeft = Math.max(0, deadline - Date.now());
	await Promise.race([
		Promise.allSettled(tasks),
		new Promise(r => setTimeout(r, timeLeft)),
	]);
	return true;
})()`, budgetMS, opts.Autoplay, opts.Autofetch, opts.SiteSpecific)
}
