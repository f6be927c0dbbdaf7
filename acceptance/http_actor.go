package acceptance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	// ErrNoPage is returned when an interaction happens before AmOnPage
	ErrNoPage = errors.New("no page loaded")
	// ErrFieldNotFound is returned when FillField matches no form control
	ErrFieldNotFound = errors.New("field not found")
	// ErrButtonNotFound is returned when Click matches no submit button
	ErrButtonNotFound = errors.New("button not found")
)

var selectorRe = regexp.MustCompile(`^(input|textarea|select)?\[name="([^"]+)"\]$`)

// Response is the last page the actor received
type Response struct {
	StatusCode int
	URL        string
	Body       string
}

// Contains checks the page body for text
func (r *Response) Contains(text string) bool {
	return r != nil && strings.Contains(r.Body, text)
}

type formControl struct {
	tag   string
	name  string
	id    string
	kind  string
	value string
	text  string
}

type form struct {
	method   string
	action   string
	controls []*formControl
}

// HTTPActor is an Actor that talks to the site over HTTP, keeping
// cookies between requests like a browser session.
type HTTPActor struct {
	baseURL *url.URL
	client  *http.Client

	forms  []*form
	filled map[*form]map[string]string
	last   *Response
}

// NewHTTPActor creates an actor for the site at baseURL
func NewHTTPActor(baseURL string, client *http.Client) (*HTTPActor, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	if client == nil {
		client = &http.Client{}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		client.Jar = jar
	}

	return &HTTPActor{baseURL: u, client: client}, nil
}

// LastResponse returns the page currently loaded
func (a *HTTPActor) LastResponse() *Response {
	return a.last
}

func (a *HTTPActor) AmOnPage(ctx context.Context, route string) error {
	target, err := a.resolve(route)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return a.do(req)
}

func (a *HTTPActor) FillField(ctx context.Context, selector, value string) error {
	if a.last == nil {
		return ErrNoPage
	}

	tag, name := parseSelector(selector)
	for _, f := range a.forms {
		for _, c := range f.controls {
			if c.name != name || (tag != "" && c.tag != tag) {
				continue
			}
			a.filled[f][name] = value
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrFieldNotFound, selector)
}

// Click submits the form owning the button whose name, id or label
// matches button.
func (a *HTTPActor) Click(ctx context.Context, button string) error {
	if a.last == nil {
		return ErrNoPage
	}

	for _, f := range a.forms {
		for _, c := range f.controls {
			if !c.isSubmit() || !c.matches(button) {
				continue
			}
			return a.submit(ctx, f, c)
		}
	}
	return fmt.Errorf("%w: %s", ErrButtonNotFound, button)
}

func (a *HTTPActor) submit(ctx context.Context, f *form, clicked *formControl) error {
	values := url.Values{}
	for _, c := range f.controls {
		if c.name == "" || (c.isSubmit() && c != clicked) {
			continue
		}
		if v, ok := a.filled[f][c.name]; ok {
			values.Set(c.name, v)
			continue
		}
		values.Set(c.name, c.value)
	}

	action := f.action
	if action == "" {
		action = a.last.URL
	}
	target, err := a.resolve(action)
	if err != nil {
		return err
	}

	var req *http.Request
	if f.method == http.MethodGet {
		u, err := url.Parse(target)
		if err != nil {
			return err
		}
		u.RawQuery = values.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(values.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	return a.do(req)
}

func (a *HTTPActor) do(req *http.Request) error {
	res, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	forms, err := parseForms(string(body))
	if err != nil {
		return fmt.Errorf("parse page: %w", err)
	}

	a.last = &Response{
		StatusCode: res.StatusCode,
		URL:        res.Request.URL.String(),
		Body:       string(body),
	}
	a.forms = forms
	a.filled = make(map[*form]map[string]string, len(forms))
	for _, f := range forms {
		a.filled[f] = map[string]string{}
	}

	return nil
}

func (a *HTTPActor) resolve(ref string) (string, error) {
	base := a.baseURL
	if a.last != nil {
		if u, err := url.Parse(a.last.URL); err == nil {
			base = u
		}
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

func parseSelector(selector string) (tag, name string) {
	if m := selectorRe.FindStringSubmatch(selector); m != nil {
		return m[1], m[2]
	}
	return "", selector
}

func (c *formControl) isSubmit() bool {
	switch c.tag {
	case "button":
		return c.kind == "" || c.kind == "submit"
	case "input":
		return c.kind == "submit"
	}
	return false
}

func (c *formControl) matches(button string) bool {
	return c.name == button || c.id == button || strings.TrimSpace(c.text) == button
}

func parseForms(body string) ([]*form, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	var forms []*form
	var current *form

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "form":
				f := &form{
					method: strings.ToUpper(attr(n, "method")),
					action: attr(n, "action"),
				}
				if f.method == "" {
					f.method = http.MethodGet
				}
				forms = append(forms, f)
				prev := current
				current = f
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c)
				}
				current = prev
				return
			case "input", "textarea", "select", "button":
				if current != nil {
					current.controls = append(current.controls, newControl(n))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return forms, nil
}

func newControl(n *html.Node) *formControl {
	c := &formControl{
		tag:   n.Data,
		name:  attr(n, "name"),
		id:    attr(n, "id"),
		kind:  strings.ToLower(attr(n, "type")),
		value: attr(n, "value"),
		text:  textContent(n),
	}
	if c.tag == "textarea" {
		c.value = c.text
	}
	return c
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
