// Package acceptance drives the account pages the way a browser user
// would. Pages talk to an Actor, HTTPActor is the stock implementation.
package acceptance

import (
	"context"
	"fmt"
	"strings"
)

// Actor performs user level interactions against a running site
type Actor interface {
	AmOnPage(ctx context.Context, route string) error
	FillField(ctx context.Context, selector, value string) error
	Click(ctx context.Context, button string) error
}

// Field is a single form value, order is kept when submitting
type Field struct {
	Name  string
	Value string
}

// BasePage holds the route shared by every page object
type BasePage struct {
	Route string
	Actor Actor
}

// Open navigates the actor to the page route
func (p BasePage) Open(ctx context.Context) error {
	return p.Actor.AmOnPage(ctx, p.URL())
}

// URL returns the route as an absolute path
func (p BasePage) URL() string {
	return "/" + strings.TrimLeft(p.Route, "/")
}

// SignupPage represents the signup form
type SignupPage struct {
	BasePage
}

// SignupRoute is the route of the signup form
const SignupRoute = "site/signup"

// SignupButton is the name of the signup submit button
const SignupButton = "signup-button"

// NewSignupPage binds a signup page object to actor
func NewSignupPage(actor Actor) *SignupPage {
	return &SignupPage{BasePage: BasePage{Route: SignupRoute, Actor: actor}}
}

// OpenSignupPage creates the page object and navigates to it
func OpenSignupPage(ctx context.Context, actor Actor) (*SignupPage, error) {
	page := NewSignupPage(actor)
	if err := page.Open(ctx); err != nil {
		return nil, err
	}
	return page, nil
}

// Submit fills every field of the signup form and clicks the signup button.
// The body field is a textarea, everything else an input.
func (p *SignupPage) Submit(ctx context.Context, fields ...Field) error {
	for _, f := range fields {
		if err := p.Actor.FillField(ctx, SignupFieldSelector(f.Name), f.Value); err != nil {
			return fmt.Errorf("fill %s: %w", f.Name, err)
		}
	}
	return p.Actor.Click(ctx, SignupButton)
}

// SignupFieldSelector returns the selector for a SignupForm field
func SignupFieldSelector(field string) string {
	tag := "input"
	if field == "body" {
		tag = "textarea"
	}
	return fmt.Sprintf(`%s[name="SignupForm[%s]"]`, tag, field)
}
