package browser

// SetValueJS assigns a value to an input the way a framework-bound widget
// expects it: direct property assignment, then bubbling input and change
// events so the widget re-renders. With onlyIfEmpty set, an input that
// already holds a value is left alone. It returns the resulting value.
//
// Call it through Element.Eval with (value, onlyIfEmpty).
const SetValueJS = `(v, onlyIfEmpty) => {
	if (onlyIfEmpty && this.value) return this.value;
	this.value = v;
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
	return this.value || '';
}`
