package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/chromedp"
)

// jsString encodes s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		// Strings always marshal; invalid UTF-8 is replaced, not rejected.
		return `""`
	}
	return string(b)
}

func nodeByXPathJS(xpath string) string {
	return `document.evaluate(` + jsString(xpath) + `, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue`
}

// selectByLabelJS selects the option whose visible text equals label and fires change.
func selectByLabelJS(xpath, label string) string {
	return `(() => {
	const el = ` + nodeByXPathJS(xpath) + `;
	if (!el) return false;
	const opt = Array.from(el.options).find(o => o.text.trim() === ` + jsString(label) + `);
	if (!opt) return false;
	el.value = opt.value;
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return true;
})()`
}

// injectOptionJS enables the select, appends the option when absent, and selects it.
func injectOptionJS(xpath, label, value string) string {
	v := jsString(value)
	return `(() => {
	const el = ` + nodeByXPathJS(xpath) + `;
	if (!el) return false;
	el.removeAttribute('disabled');
	if (!Array.from(el.options).some(o => o.value === ` + v + `)) {
		el.appendChild(new Option(` + jsString(label) + `, ` + v + `));
	}
	el.value = ` + v + `;
	return true;
})()`
}

// evaluateTrue runs a script that must return true.
func evaluateTrue(script, what string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var ok bool
		if err := chromedp.Evaluate(script, &ok).Do(ctx); err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
		if !ok {
			return fmt.Errorf("%s: element or option not found", what)
		}
		return nil
	})
}
