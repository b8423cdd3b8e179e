package browser

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Visible(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Visible()
}

// Enabled treats the disabled property, aria-disabled and a "disabled" class
// as disabled; CMS pagers use all three.
func (e *rodElement) Enabled(ctx context.Context) (bool, error) {
	res, err := e.el.Context(ctx).Eval(`() => !(this.disabled ||
		this.getAttribute('aria-disabled') === 'true' ||
		this.classList.contains('disabled'))`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Fill(ctx context.Context, value string) error {
	el := e.el.Context(ctx)
	// Some widgets refuse text selection; Input still replaces the value.
	_ = el.SelectAllText()
	return el.Input(value)
}

func (e *rodElement) PressEnter(ctx context.Context) error {
	return e.el.Context(ctx).Type(input.Enter)
}

func (e *rodElement) Eval(ctx context.Context, js string, args ...any) (string, error) {
	res, err := e.el.Context(ctx).Eval(js, args...)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}
