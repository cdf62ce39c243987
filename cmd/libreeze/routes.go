package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"libreeze/internal/guard"
)

type access int

const (
	accessNone access = iota
	accessAuthenticated
	accessAdmin
	accessPublicOnly
)

type route struct {
	path    string
	command string
	access  access
}

var routes = []route{
	{"/dashboard", "dashboard", accessAuthenticated},
	{"/books", "books list", accessAuthenticated},
	{"/books/add", "books add", accessAuthenticated},
	{"/books/:id", "books show <id>", accessAuthenticated},
	{"/lending/lend", "lending lend <library-book-id> <member-id>", accessAdmin},
	{"/lending/return", "lending return <transaction-id>", accessAdmin},
	{"/lending/history", "lending history", accessAdmin},
	{"/lending/members", "lending members", accessAdmin},
	{"/auth/login", "auth login", accessPublicOnly},
	{"/auth/register", "auth register", accessPublicOnly},
	{"/auth/check-email", "auth check-email", accessPublicOnly},
	{"/auth/library-options", "auth library-options", accessAuthenticated},
	{"/auth/profile", "auth profile", accessAuthenticated},
}

// errDenied reports a navigation a guard turned away. The navigator has
// already told the user where to go instead.
var errDenied = errors.New("navigation denied")

func matchPath(pattern, path string) bool {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	xs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(xs) {
		return false
	}
	for i := range ps {
		if strings.HasPrefix(ps[i], ":") {
			if xs[i] == "" {
				return false
			}
			continue
		}
		if ps[i] != xs[i] {
			return false
		}
	}
	return true
}

// resolve finds the route for path. Empty and unknown paths land on the
// dashboard.
func resolve(path string) route {
	// Static routes win over parameterised ones, so /books/add is not /books/:id.
	for _, r := range routes {
		if !strings.Contains(r.path, ":") && r.path == path {
			return r
		}
	}
	for _, r := range routes {
		if matchPath(r.path, path) {
			return r
		}
	}
	return routes[0]
}

// commandFor is the CLI invocation that opens path.
func commandFor(path string) string {
	r := resolve(path)
	if r.path == "/books/:id" {
		if id := strings.TrimPrefix(path, "/books/"); id != path && id != "" {
			return "books show " + id
		}
	}
	return r.command
}

// printNavigator turns a guard redirect into a hint on which command to run.
type printNavigator struct {
	out  io.Writer
	last string
}

func (n *printNavigator) Navigate(path string) {
	n.last = path
	fmt.Fprintf(n.out, "Redirected to %s: run `libreeze %s`\n", path, commandFor(path))
}

func guardsFor(g *guard.Guards, a access) []guard.Func {
	switch a {
	case accessAuthenticated:
		return []guard.Func{g.Authenticated}
	case accessAdmin:
		return []guard.Func{g.Admin}
	case accessPublicOnly:
		return []guard.Func{g.PublicOnly}
	}
	return nil
}

// enter runs the guards of the route owning path. It returns errDenied when
// a guard redirected elsewhere.
func enter(ctx context.Context, g *guard.Guards, path string) error {
	ok, err := guard.Run(ctx, path, guardsFor(g, resolve(path).access)...)
	if err != nil {
		return err
	}
	if !ok {
		return errDenied
	}
	return nil
}
